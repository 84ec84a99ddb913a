/*
policies.go - Commission tiers and every tunable constant of the engine

PURPOSE:
  The numbers that drive reward math live here and nowhere else: the tier
  table, the trailing window length, the trial reward, the two-person
  surcharge, the tax rates, fees and payment schedule. DefaultPolicy()
  reproduces the business's current rules; factory/policy.go builds
  alternatives from JSON or YAML.

DEFAULT TIER TABLE (trailing average lessons/month -> rate):
  >= 30 -> 0.70
  >= 25 -> 0.65
  >= 20 -> 0.60
  >= 15 -> 0.55
  else  -> 0.50

AVERAGING:
  AverageOverFullWindow (default): count / RankWindowMonths, always. A coach
  with one month of history in a three month window is averaged over three.
  AverageOverActiveMonths: count / months in the window with any lesson.
  Opt-in only.

SEE ALSO:
  - classifier.go: applies the tier table
  - settlement.go: applies tax rates and fees
*/
package rewards

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
)

// RankWindowMonths is the length of the trailing window the tier is
// classified from.
const RankWindowMonths = 3

// AveragingPolicy selects the divisor of the trailing average.
type AveragingPolicy string

const (
	AverageOverFullWindow   AveragingPolicy = "full_window"
	AverageOverActiveMonths AveragingPolicy = "active_months"
)

// =============================================================================
// TIERS
// =============================================================================

// Tier applies Rate when the trailing average is at least Threshold.
type Tier struct {
	Name      string
	Threshold decimal.Decimal
	Rate      decimal.Decimal
}

// TierTable is ordered by Threshold, highest first. Averages below the
// lowest threshold get Default.
type TierTable struct {
	Tiers   []Tier
	Default decimal.Decimal
}

// Lookup returns the rate of the highest tier whose threshold does not
// exceed average.
func (t TierTable) Lookup(average decimal.Decimal) (Tier, bool) {
	for _, tier := range t.Tiers {
		if average.GreaterThanOrEqual(tier.Threshold) {
			return tier, true
		}
	}
	return Tier{}, false
}

// Rate is Lookup falling back to the default rate.
func (t TierTable) Rate(average decimal.Decimal) decimal.Decimal {
	if tier, ok := t.Lookup(average); ok {
		return tier.Rate
	}
	return t.Default
}

// Sorted returns a copy ordered highest threshold first.
func (t TierTable) Sorted() TierTable {
	tiers := append([]Tier(nil), t.Tiers...)
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].Threshold.GreaterThan(tiers[j].Threshold)
	})
	return TierTable{Tiers: tiers, Default: t.Default}
}

// DefaultTiers is the current commission table.
func DefaultTiers() TierTable {
	return TierTable{
		Tiers: []Tier{
			{Name: "platinum", Threshold: decimal.NewFromInt(30), Rate: decimal.RequireFromString("0.70")},
			{Name: "gold", Threshold: decimal.NewFromInt(25), Rate: decimal.RequireFromString("0.65")},
			{Name: "silver", Threshold: decimal.NewFromInt(20), Rate: decimal.RequireFromString("0.60")},
			{Name: "bronze", Threshold: decimal.NewFromInt(15), Rate: decimal.RequireFromString("0.55")},
		},
		Default: decimal.RequireFromString("0.50"),
	}
}

// =============================================================================
// POLICY
// =============================================================================

// Policy holds every tunable of the engine.
type Policy struct {
	// Version identifies the policy in cache keys. Change it whenever any
	// other field changes.
	Version string

	Tiers            TierTable
	RankWindowMonths int
	Averaging        AveragingPolicy

	TrialReward        generic.Money
	TwoPersonSurcharge generic.Money

	ConsumptionTaxRate decimal.Decimal
	WithholdingRate    decimal.Decimal
	SystemFeeRate      decimal.Decimal
	TransferFee        generic.Money

	// PayDay is the day of the month following the target month on which
	// the transfer is scheduled.
	PayDay int

	LabelLayout  string
	TrialTitle   string
	RegularTitle string

	// Location buckets lessons into calendar months. Nil uses the location
	// of the reference date.
	Location *time.Location
}

// DefaultPolicy reproduces the current business rules.
func DefaultPolicy() Policy {
	return Policy{
		Version:            "default-v1",
		Tiers:              DefaultTiers(),
		RankWindowMonths:   RankWindowMonths,
		Averaging:          AverageOverFullWindow,
		TrialReward:        4500,
		TwoPersonSurcharge: 1000,
		ConsumptionTaxRate: decimal.RequireFromString("0.10"),
		WithholdingRate:    decimal.RequireFromString("0.1021"),
		SystemFeeRate:      decimal.Zero,
		TransferFee:        0,
		PayDay:             25,
		LabelLayout:        "2006年1月分",
		TrialTitle:         "体験レッスン",
		RegularTitle:       "通常レッスン",
	}
}

// Validate checks the policy is usable.
func (p Policy) Validate() error {
	var problems []string
	if p.RankWindowMonths <= 0 {
		problems = append(problems, "rank window must be at least one month")
	}
	switch p.Averaging {
	case AverageOverFullWindow, AverageOverActiveMonths:
	default:
		problems = append(problems, fmt.Sprintf("unknown averaging policy %q", p.Averaging))
	}
	if p.Tiers.Default.IsNegative() {
		problems = append(problems, "default rate must not be negative")
	}
	for i, tier := range p.Tiers.Tiers {
		if tier.Rate.IsNegative() || tier.Threshold.IsNegative() {
			problems = append(problems, fmt.Sprintf("tier %d: negative threshold or rate", i))
		}
		if i > 0 && !tier.Threshold.LessThan(p.Tiers.Tiers[i-1].Threshold) {
			problems = append(problems, fmt.Sprintf("tier %d: thresholds must strictly decrease", i))
		}
		// Monotone: a higher threshold never pays less.
		if i > 0 && tier.Rate.GreaterThan(p.Tiers.Tiers[i-1].Rate) {
			problems = append(problems, fmt.Sprintf("tier %d: rate exceeds higher tier", i))
		}
	}
	if n := len(p.Tiers.Tiers); n > 0 && p.Tiers.Default.GreaterThan(p.Tiers.Tiers[n-1].Rate) {
		problems = append(problems, "default rate exceeds lowest tier")
	}
	if p.TrialReward.IsNegative() || p.TwoPersonSurcharge.IsNegative() || p.TransferFee.IsNegative() {
		problems = append(problems, "fixed amounts must not be negative")
	}
	if p.ConsumptionTaxRate.IsNegative() || p.WithholdingRate.IsNegative() || p.SystemFeeRate.IsNegative() {
		problems = append(problems, "tax and fee rates must not be negative")
	}
	if p.PayDay < 1 || p.PayDay > 31 {
		problems = append(problems, "pay day must be within 1..31")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", generic.ErrInvalidPolicy, strings.Join(problems, "; "))
	}
	return nil
}

// in converts t into the policy's location.
func (p Policy) in(t time.Time) time.Time {
	if p.Location == nil {
		return t
	}
	return t.In(p.Location)
}

// window returns the rank window length, never below one month.
func (p Policy) window() int {
	if p.RankWindowMonths <= 0 {
		return RankWindowMonths
	}
	return p.RankWindowMonths
}

// Label formats the display label of a month.
func (p Policy) Label(month time.Time) string {
	if p.LabelLayout == "" {
		return string(generic.MonthKeyOf(month))
	}
	return month.Format(p.LabelLayout)
}

// PaymentDate returns the pay day of the month after month, clamped to the
// length of that month.
func (p Policy) PaymentDate(month time.Time) time.Time {
	next := generic.StartOfMonth(month).AddDate(0, 1, 0)
	day := p.PayDay
	if day < 1 {
		day = 1
	}
	if last := generic.DaysInMonth(next); day > last {
		day = last
	}
	return time.Date(next.Year(), next.Month(), day, 0, 0, 0, 0, next.Location())
}
