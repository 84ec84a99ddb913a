/*
Package rewards is the coach reward and payout reconciliation engine.

PURPOSE:
  Turns raw lesson records into what a coach is owed, month by month, and
  compares that against the payouts actually recorded. Everything in this
  package is a pure function of its inputs: no I/O, no wall clock, no locks.

PIPELINE:
  lessons
    -> RateClassifier.Rate        (tier from trailing 3-month average)
    -> Calculator.LessonReward    (per lesson: trial, override, floor)
    -> Calculator.MonthlyStats    (per coach, per calendar month)
    -> Calculator.History         (N months, most recent first)
    -> Settle                     (consumption tax, withholding, fees)
    -> Reconcile                  (against the payout ledger snapshot)

KEY CONCEPTS:
  Rate:         commission fraction applied to a lesson's base price
  Reward:       what the coach earns for one lesson (not the customer price)
  Trailing window: the three calendar months before the month evaluated;
                a month's own lessons never affect its own rate
  Settlement:   tax and fee adjusted net amount for one month

ROUNDING:
  Money is integer yen. Every multiplication or division is done in exact
  decimal and floored explicitly; there is no other rounding.

EXAMPLE:
  calc := rewards.NewCalculator(rewards.DefaultPolicy())
  history := calc.History(rewards.HistoryInput{
      CoachID:    "coach-1",
      Lessons:    lessons,
      MonthsBack: 12,
      Reference:  clock.Now(),
  })
  for _, month := range history {
      rec := rewards.Settle(month, rewards.TaxProfile{InvoiceRegistered: true, WithholdingEnabled: true}, calc.Policy)
      status := rewards.Reconcile(rec.FinalAmount, payouts[month.MonthKey])
  }

SEE ALSO:
  - policy.go: tier table and every tunable constant
  - classifier.go, calculator.go, settlement.go, reconcile.go
  - payouts/: the service layer that fetches data and caches histories
*/
package rewards

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// MONTHLY STATS - Derived per coach, per calendar month
// =============================================================================

// MonthlyStats is a coach's activity for one calendar month. It is always
// recomputed from lessons and never persisted.
type MonthlyStats struct {
	CoachID  generic.CoachID
	MonthKey generic.MonthKey
	Label    string
	Month    time.Time // first instant of the month

	Rate           decimal.Decimal
	RateOverridden bool

	TotalSales  generic.Money
	TotalReward generic.Money
	LessonCount int

	// Details in the order the lessons were supplied.
	Details []Detail
}

// Detail is one lesson line of a month.
type Detail struct {
	LessonID    generic.LessonID
	Date        time.Time
	Title       string
	StudentName string
	IsTrial     bool
	Price       generic.Money
	Reward      generic.Money
}

// =============================================================================
// SETTLEMENT - Tax and fee adjusted amounts
// =============================================================================

// TaxProfile is the per-coach settlement configuration.
type TaxProfile struct {
	InvoiceRegistered  bool
	WithholdingEnabled bool
}

// TaxProfileOf reads the tax configuration off coach metadata.
func TaxProfileOf(c generic.Coach) TaxProfile {
	return TaxProfile{
		InvoiceRegistered:  c.InvoiceRegistered,
		WithholdingEnabled: c.WithholdingEnabled,
	}
}

type ScheduleStatus string

const (
	ScheduleProcessing ScheduleStatus = "processing"
	SchedulePaid       ScheduleStatus = "paid"
)

// SettlementRecord is MonthlyStats plus the settlement breakdown.
//
// Invariants:
//
//	FinalAmount = TotalReward - WithholdingTax - SystemFee - TransferFee
//	TotalReward = BaseAmount + ConsumptionTax
//	ConsumptionTax = 0 unless the coach is invoice registered
type SettlementRecord struct {
	MonthlyStats

	Tax TaxProfile

	BaseAmount     generic.Money
	ConsumptionTax generic.Money
	WithholdingTax generic.Money
	SystemFee      generic.Money
	TransferFee    generic.Money
	FinalAmount    generic.Money

	// PaymentDate is the scheduled transfer date for the month.
	PaymentDate time.Time
	// ScheduleStatus is set relative to a reference date; see StatusAt.
	ScheduleStatus ScheduleStatus
}

// Deductions returns everything subtracted from TotalReward.
func (r SettlementRecord) Deductions() generic.Money {
	return generic.Sum(r.WithholdingTax, r.SystemFee, r.TransferFee)
}

// StatusAt reports whether the scheduled payment date has been reached.
func (r SettlementRecord) StatusAt(ref time.Time) ScheduleStatus {
	if r.PaymentDate.IsZero() || ref.Before(r.PaymentDate) {
		return ScheduleProcessing
	}
	return SchedulePaid
}

// =============================================================================
// RECONCILIATION - Computed liability vs recorded payouts
// =============================================================================

type ReconcileStatus string

const (
	StatusPaid    ReconcileStatus = "paid"
	StatusPartial ReconcileStatus = "partial"
	StatusUnpaid  ReconcileStatus = "unpaid"
)

// Severity orders statuses by urgency: unpaid > partial > paid.
func (s ReconcileStatus) Severity() int {
	switch s {
	case StatusUnpaid:
		return 2
	case StatusPartial:
		return 1
	default:
		return 0
	}
}

// ReconciledStatus is the payout state of one coach for one month.
type ReconciledStatus struct {
	TotalReward   generic.Money
	PaidAmount    generic.Money
	PendingAmount generic.Money
	UnpaidAmount  generic.Money
	Status        ReconcileStatus
}
