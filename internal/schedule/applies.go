package schedule

import "github.com/dukerupert/questboard/internal/model"

// AppliesOn reports whether a todo has an occurrence on the given date.
// One-off todos apply only on their specific date. Daily todos apply every
// day. Weekly todos apply when the date's weekday is in the recurrence set.
// Undated one-off todos apply to no date.
func AppliesOn(t *model.Todo, d Date) bool {
	switch t.RecurrenceType {
	case model.RecurrenceDaily:
		return true
	case model.RecurrenceWeekly:
		wd := d.Weekday()
		for _, day := range t.RecurrenceDays {
			if day == wd {
				return true
			}
		}
		return false
	default:
		return t.SpecificDate != "" && t.SpecificDate == d.String()
	}
}
