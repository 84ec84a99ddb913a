package rewards

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// CALCULATOR - Lesson rewards, monthly aggregates and history
// =============================================================================

// Calculator computes rewards under a Policy.
type Calculator struct {
	Policy Policy
}

func NewCalculator(p Policy) Calculator {
	return Calculator{Policy: p}
}

// Classifier returns the rate classifier sharing the calculator's policy.
func (c Calculator) Classifier() RateClassifier {
	return NewRateClassifier(c.Policy)
}

// LessonReward returns the reward owed for one lesson at rate.
//
// Precedence:
//  1. no master: 0
//  2. trial master: the fixed trial reward, whatever the rate or override
//  3. base price is the membership override for the master when one is
//     configured with a value, else the master's unit price
//  4. floor(base × rate)
//
// A two-person lesson adds the surcharge after the floor.
func (c Calculator) LessonReward(l generic.Lesson, rate decimal.Decimal) generic.Money {
	if l.Master == nil {
		return 0
	}

	var reward generic.Money
	if l.Master.IsTrial {
		reward = c.Policy.TrialReward
	} else {
		reward = c.basePrice(l).MulFloor(rate)
	}

	if l.Student != nil && l.Student.IsTwoPersonLesson {
		reward = reward.Add(c.Policy.TwoPersonSurcharge)
	}
	return reward
}

// basePrice resolves the membership override for non-trial lessons.
func (c Calculator) basePrice(l generic.Lesson) generic.Money {
	if l.Student != nil {
		if price, ok := l.Student.Membership.RewardPriceFor(l.Master.ID); ok {
			return price
		}
	}
	return l.Master.UnitPrice
}

// Detail builds the detail line of a lesson.
func (c Calculator) Detail(l generic.Lesson, rate decimal.Decimal) Detail {
	d := Detail{
		LessonID: l.ID,
		Date:     l.LessonDate,
		Title:    c.Policy.RegularTitle,
		Price:    l.Price,
		Reward:   c.LessonReward(l, rate),
	}
	if l.Master != nil {
		d.IsTrial = l.Master.IsTrial
		if d.IsTrial {
			d.Title = c.Policy.TrialTitle
		}
	}
	if l.Student != nil {
		d.StudentName = l.Student.FullName
	}
	return d
}

// MonthlyStats aggregates coachID's lessons in monthLessons at rate. The
// caller selects the month; lessons of other coaches are skipped. Details
// keep input order.
func (c Calculator) MonthlyStats(coachID generic.CoachID, monthLessons []generic.Lesson, rate decimal.Decimal) MonthlyStats {
	stats := MonthlyStats{
		CoachID: coachID,
		Rate:    rate,
		Details: []Detail{},
	}
	for _, l := range monthLessons {
		if l.CoachID != coachID {
			continue
		}
		d := c.Detail(l, rate)
		stats.TotalSales = stats.TotalSales.Add(l.Price)
		stats.TotalReward = stats.TotalReward.Add(d.Reward)
		stats.LessonCount++
		stats.Details = append(stats.Details, d)
	}
	return stats
}

// =============================================================================
// HISTORY - Rolling window of monthly stats
// =============================================================================

// HistoryInput is the input of History.
type HistoryInput struct {
	CoachID generic.CoachID

	// Lessons must reach back MonthsBack + RankWindowMonths months from
	// Reference for the oldest month to see a full rank window.
	Lessons []generic.Lesson

	MonthsBack int

	// CreatedAt, when set, truncates history: months starting before the
	// coach's creation month are omitted.
	CreatedAt *time.Time

	// Reference is the month reported first.
	Reference time.Time

	// OverrideRate, when valid and non-zero, replaces the classified rate
	// in every month.
	OverrideRate decimal.NullDecimal
}

// History returns MonthsBack months of stats, most recent first.
func (c Calculator) History(in HistoryInput) []MonthlyStats {
	ref := c.Policy.in(in.Reference)

	var created time.Time
	if in.CreatedAt != nil {
		created = generic.StartOfMonth(c.Policy.in(*in.CreatedAt))
	}

	override := in.OverrideRate.Valid && !in.OverrideRate.Decimal.IsZero()

	history := make([]MonthlyStats, 0, max(in.MonthsBack, 0))
	for i := 0; i < in.MonthsBack; i++ {
		d := generic.AddMonths(ref, -i)
		month := generic.StartOfMonth(d)
		if in.CreatedAt != nil && month.Before(created) {
			continue
		}

		rate := in.OverrideRate.Decimal
		if !override {
			rate = c.Classifier().Rate(in.CoachID, in.Lessons, d)
		}

		stats := c.MonthlyStats(in.CoachID, c.lessonsInMonth(in.Lessons, d), rate)
		stats.MonthKey = generic.MonthKeyOf(month)
		stats.Month = month
		stats.Label = c.Policy.Label(month)
		stats.RateOverridden = override
		history = append(history, stats)
	}
	return history
}

// Month computes the stats of the single month containing ref.
func (c Calculator) Month(in HistoryInput) MonthlyStats {
	in.MonthsBack = 1
	in.CreatedAt = nil
	return c.History(in)[0]
}

func (c Calculator) lessonsInMonth(lessons []generic.Lesson, d time.Time) []generic.Lesson {
	period := generic.MonthPeriod(d)
	var result []generic.Lesson
	for _, l := range lessons {
		if period.Contains(c.Policy.in(l.LessonDate)) {
			result = append(result, l)
		}
	}
	return result
}
