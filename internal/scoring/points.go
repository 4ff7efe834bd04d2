// Package scoring holds the pure point and streak arithmetic. Nothing in
// here touches the database; the tracker and handlers feed it values and
// persist the results.
package scoring

import "math"

// Breakdown is the composition of a completed todo's point award.
type Breakdown struct {
	BasePoints   int `json:"base_points"`
	TimeBonus    int `json:"time_bonus"`
	NoPauseBonus int `json:"no_pause_bonus"`
	Total        int `json:"total"`
}

// Compute calculates the points for a completed todo.
//
// Base is one point per estimated minute. The time bonus is the whole-minute
// difference between estimate and actual: finishing early rounds to the
// nearest minute (half up), running over floors toward the larger penalty.
// A super point zeroes the time bonus. The no-pause bonus adds 10% (rounded)
// of the subtotal, but only when neither a pause nor a super point was used
// and the subtotal is positive. A todo with no estimate scores nothing.
func Compute(estimatedMinutes, actualTimeSeconds int, pauseUsed, superPointUsed bool) Breakdown {
	if estimatedMinutes <= 0 {
		return Breakdown{}
	}

	base := estimatedMinutes
	diffSeconds := estimatedMinutes*60 - actualTimeSeconds

	var diffMinutes int
	if diffSeconds < 0 {
		diffMinutes = int(math.Floor(float64(diffSeconds) / 60))
	} else {
		diffMinutes = int(math.Round(float64(diffSeconds) / 60))
	}

	timeBonus := diffMinutes
	if superPointUsed {
		timeBonus = 0
	}

	subtotal := base + timeBonus

	noPauseBonus := 0
	if !pauseUsed && !superPointUsed && subtotal > 0 {
		noPauseBonus = int(math.Round(float64(subtotal) * 0.1))
	}

	return Breakdown{
		BasePoints:   base,
		TimeBonus:    timeBonus,
		NoPauseBonus: noPauseBonus,
		Total:        subtotal + noPauseBonus,
	}
}

// OnTime reports whether a completed todo counts toward a perfect day.
// Only a spent super point or meeting the estimate qualifies; a completed
// todo with no estimate (and no super point) does not.
func OnTime(estimatedMinutes int, actualTimeSeconds *int, superPointUsed bool) bool {
	if superPointUsed {
		return true
	}
	if estimatedMinutes <= 0 || actualTimeSeconds == nil {
		return false
	}
	return *actualTimeSeconds <= estimatedMinutes*60
}
