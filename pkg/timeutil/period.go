package timeutil

import (
	"fmt"
	"time"
)

// DateFormat is the calendar-date layout used for display and date inputs.
const DateFormat = "2006-01-02"

// Range is an inclusive [From, To] interval. From <= To always holds for
// ranges produced by this package.
type Range struct {
	From time.Time
	To   time.Time
}

// Equal reports whether both boundaries are the same instants.
func (r Range) Equal(o Range) bool {
	return r.From.Equal(o.From) && r.To.Equal(o.To)
}

// Contains reports whether t lies within the range, boundaries included.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}

// Days returns the number of calendar days covered, counting both endpoints.
func (r Range) Days() int {
	return DaysBetween(r.From, r.To) + 1
}

func (r Range) String() string {
	return fmt.Sprintf("%s to %s", r.From.Format(DateFormat), r.To.Format(DateFormat))
}

// StartOfDay returns 00:00:00.000 of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59.999 of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// AddDays moves t by n calendar days, keeping the wall clock.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// AddMonths moves t by n calendar months. When the target month is shorter
// than t's day of month the result is clamped to the target month's last day,
// so 2024-02-29 minus 12 months is 2023-02-28 rather than 2023-03-01.
func AddMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, n, 0)
	day := t.Day()
	if last := daysIn(target.Year(), target.Month()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// StartOfWeek returns the Monday of t's week at start of day.
func StartOfWeek(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return StartOfDay(t).AddDate(0, 0, -weekday+1)
}

// StartOfMonth returns the first day of t's month at start of day.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// EndOfMonth returns the last day of t's month at end of day.
func EndOfMonth(t time.Time) time.Time {
	return EndOfDay(time.Date(t.Year(), t.Month(), daysIn(t.Year(), t.Month()), 0, 0, 0, 0, t.Location()))
}

// DaysBetween counts calendar days from a's date to b's date. Wall-clock
// time and DST transitions are ignored.
func DaysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da) / (24 * time.Hour))
}

// DateIn reinterprets t's calendar date in loc at start of day.
func DateIn(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
