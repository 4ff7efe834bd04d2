package schedule

import (
	"fmt"
	"time"
)

// Layout is the wire format for calendar dates.
const Layout = "2006-01-02"

// Date is a civil calendar date with no time-of-day or timezone component.
// All date reasoning in the app goes through this type so the weekday
// convention (0 = Sunday, matching the client) lives in one place.
type Date struct {
	t time.Time
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

// Today returns the current date in local time.
func Today() Date {
	return FromTime(time.Now())
}

// FromTime truncates t to its calendar date.
func FromTime(t time.Time) Date {
	return Date{t: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.t.Format(Layout)
}

// Weekday returns the weekday index, 0 = Sunday through 6 = Saturday.
func (d Date) Weekday() int {
	return int(d.t.Weekday())
}

// AddDays returns the date n calendar days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

func (d Date) Before(o Date) bool {
	return d.t.Before(o.t)
}

func (d Date) Equal(o Date) bool {
	return d.t.Equal(o.t)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.t.IsZero()
}

// Sub returns the number of whole calendar days from o to d.
func (d Date) Sub(o Date) int {
	return int(d.t.Sub(o.t) / (24 * time.Hour))
}
