package generic

import "time"

// =============================================================================
// PERIOD - Closed time range used for lesson windows
// =============================================================================

// Period is the closed range [Start, End].
//
// Examples:
//   - A calendar month: MonthPeriod(t)
//   - The rank window for March 2024: Dec 1 2023 00:00 - Feb 29 2024 23:59:59.999999999
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains returns true if t is within [Start, End].
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// MonthPeriod returns the calendar month containing t.
func MonthPeriod(t time.Time) Period {
	return Period{Start: StartOfMonth(t), End: EndOfMonth(t)}
}

// TrailingMonths returns the n whole calendar months that end the month
// before ref's month. TrailingMonths(Mar 15, 3) covers Dec 1 through the
// end of February; ref's own month is never included.
func TrailingMonths(ref time.Time, n int) Period {
	return Period{
		Start: StartOfMonth(AddMonths(ref, -n)),
		End:   EndOfMonth(AddMonths(ref, -1)),
	}
}

// LookbackStart returns the first instant of the month n months before ref.
// Callers fetching lessons for a history of m months pass n = m + rank window
// so the oldest reported month still has a full rank window.
func LookbackStart(ref time.Time, n int) time.Time {
	return StartOfMonth(AddMonths(ref, -n))
}
