package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// CALENDAR MONTHS - All reward math is bucketed by calendar month
// =============================================================================

// MonthKeyLayout is the wire format of a month key ("2024-02").
const MonthKeyLayout = "2006-01"

// MonthKey identifies a calendar month, e.g. "2024-02".
type MonthKey string

// MonthKeyOf returns the key of the month containing t, in t's location.
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey(t.Format(MonthKeyLayout))
}

// ParseMonthKey parses "YYYY-MM". The returned time is the first instant of
// the month in loc.
func ParseMonthKey(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(MonthKeyLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return t, nil
}

// Valid reports whether k parses as "YYYY-MM".
func (k MonthKey) Valid() bool {
	_, err := time.Parse(MonthKeyLayout, string(k))
	return err == nil
}

func (k MonthKey) String() string { return string(k) }

// Start returns the first instant of the month in loc.
func (k MonthKey) Start(loc *time.Location) (time.Time, error) {
	return ParseMonthKey(string(k), loc)
}

// StartOfMonth returns 00:00:00 on the first day of t's month, in t's location.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// EndOfMonth returns the last representable instant of t's month.
func EndOfMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// AddMonths shifts t by n calendar months, clamping the day to the length of
// the target month: Mar 31 minus one month is Feb 28 (or 29), never Mar 3.
func AddMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, n, 0)
	day := t.Day()
	if last := DaysInMonth(target); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// DaysInMonth returns the number of days in t's month.
func DaysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// =============================================================================
// CLOCK - The only source of "now"
// =============================================================================

// Clock supplies the reference date at the outer edge of the system.
// The engine itself never reads the wall clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in a fixed location.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// FixedClock always returns the same instant. Used by tests and the CLI
// "--ref" flag.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }
