package rewards

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// RATE CLASSIFIER - Commission tier from the trailing window
// =============================================================================

// RateClassifier maps a coach's trailing lesson volume to a rate.
type RateClassifier struct {
	Policy Policy
}

// NewRateClassifier returns a classifier for p.
func NewRateClassifier(p Policy) RateClassifier {
	return RateClassifier{Policy: p}
}

// RankWindow returns the trailing window for ref: the RankWindowMonths whole
// months ending the month before ref's month.
func (c RateClassifier) RankWindow(ref time.Time) generic.Period {
	return generic.TrailingMonths(c.Policy.in(ref), c.Policy.window())
}

// TrailingAverage is the coach's average lessons per month over the rank
// window of ref.
func (c RateClassifier) TrailingAverage(coachID generic.CoachID, lessons []generic.Lesson, ref time.Time) decimal.Decimal {
	window := c.RankWindow(ref)

	count := 0
	active := make(map[generic.MonthKey]bool)
	for _, l := range lessons {
		if l.CoachID != coachID {
			continue
		}
		d := c.Policy.in(l.LessonDate)
		if !window.Contains(d) {
			continue
		}
		count++
		active[generic.MonthKeyOf(d)] = true
	}

	divisor := c.Policy.window()
	if c.Policy.Averaging == AverageOverActiveMonths {
		divisor = len(active)
	}
	if divisor == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(count)).Div(decimal.NewFromInt(int64(divisor)))
}

// Rate returns the commission rate for coachID in ref's month. Lessons of
// other coaches and outside the window are ignored; no lessons yields the
// default rate.
func (c RateClassifier) Rate(coachID generic.CoachID, lessons []generic.Lesson, ref time.Time) decimal.Decimal {
	return c.Policy.Tiers.Rate(c.TrailingAverage(coachID, lessons, ref))
}

// RateForAverage maps an average directly through the tier table.
func (c RateClassifier) RateForAverage(average decimal.Decimal) decimal.Decimal {
	return c.Policy.Tiers.Rate(average)
}
