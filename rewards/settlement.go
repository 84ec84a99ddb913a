package rewards

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// SETTLEMENT - Consumption tax, withholding and fees
// =============================================================================

// Settle converts a month's tax-inclusive reward into the net payable.
//
// Order matters: consumption tax is extracted from the inclusive total
// first, and withholding is applied to the tax-excluded base.
//
//	registered:   base = floor(total / (1 + consumption tax rate))
//	              tax  = total - base
//	otherwise:    base = total, tax = 0
//	withholding = enabled ? floor(base × withholding rate) : 0
//	system fee  = floor(total × system fee rate)
//	transfer fee = total > 0 ? transfer fee : 0
//	final = total - withholding - system fee - transfer fee
func Settle(stats MonthlyStats, tax TaxProfile, p Policy) SettlementRecord {
	total := stats.TotalReward

	base, consumption := total, generic.Money(0)
	if tax.InvoiceRegistered {
		base = total.DivFloor(decimal.NewFromInt(1).Add(p.ConsumptionTaxRate))
		consumption = total.Sub(base)
	}

	var withholding generic.Money
	if tax.WithholdingEnabled {
		withholding = base.MulFloor(p.WithholdingRate)
	}

	systemFee := total.MulFloor(p.SystemFeeRate)

	var transferFee generic.Money
	if total.IsPositive() {
		transferFee = p.TransferFee
	}

	rec := SettlementRecord{
		MonthlyStats:   stats,
		Tax:            tax,
		BaseAmount:     base,
		ConsumptionTax: consumption,
		WithholdingTax: withholding,
		SystemFee:      systemFee,
		TransferFee:    transferFee,
	}
	rec.FinalAmount = total.Sub(rec.Deductions())
	if !stats.Month.IsZero() {
		rec.PaymentDate = p.PaymentDate(stats.Month)
	}
	return rec
}

// SettlementInput is the input of SettlementHistory.
type SettlementInput struct {
	HistoryInput
	Tax TaxProfile

	// SkipEmptyPastMonths drops months without lessons, except the
	// reference month which is always reported.
	SkipEmptyPastMonths bool
}

// SettlementHistory settles every month of the coach's history, most recent
// first. ScheduleStatus is evaluated against the reference date.
func (c Calculator) SettlementHistory(in SettlementInput) []SettlementRecord {
	return SettleHistory(c.History(in.HistoryInput), in.Tax, c.Policy, c.Policy.in(in.Reference), in.SkipEmptyPastMonths)
}

// SettleHistory settles an already computed history as of ref. With
// skipEmpty, months without lessons are dropped except ref's own month.
func SettleHistory(history []MonthlyStats, tax TaxProfile, p Policy, ref time.Time, skipEmpty bool) []SettlementRecord {
	current := generic.MonthKeyOf(p.in(ref))

	records := make([]SettlementRecord, 0, len(history))
	for _, stats := range history {
		if skipEmpty && stats.LessonCount == 0 && stats.MonthKey != current {
			continue
		}
		rec := Settle(stats, tax, p)
		rec.ScheduleStatus = rec.StatusAt(ref)
		records = append(records, rec)
	}
	return records
}

// SettleMonth settles the single month containing in.Reference as of asOf.
func (c Calculator) SettleMonth(in SettlementInput, asOf time.Time) SettlementRecord {
	rec := Settle(c.Month(in.HistoryInput), in.Tax, c.Policy)
	rec.ScheduleStatus = rec.StatusAt(asOf)
	return rec
}
