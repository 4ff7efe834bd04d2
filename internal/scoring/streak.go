package scoring

import "github.com/dukerupert/questboard/internal/schedule"

// StreakLength returns the length of the consecutive-day run ending at the
// most recent date. Dates must be sorted descending. Only the run touching
// the first entry counts; an older, longer run is irrelevant.
func StreakLength(datesDesc []schedule.Date) int {
	if len(datesDesc) == 0 {
		return 0
	}

	streak := 1
	cursor := datesDesc[0]
	for _, d := range datesDesc[1:] {
		if !d.Equal(cursor.AddDays(-1)) {
			break
		}
		streak++
		cursor = d
	}
	return streak
}

// MilestoneAward returns the bonus granted for reaching the given streak
// length exactly. Most milestones pay points; a full year refills super
// points instead.
func MilestoneAward(streak int) (points, superPoints int) {
	switch streak {
	case 7:
		return 10, 0
	case 30:
		return 30, 0
	case 90:
		return 50, 0
	case 365:
		return 0, 12
	default:
		return 0, 0
	}
}
