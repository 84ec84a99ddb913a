package rewards_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/rewards"
)

func statsWithReward(total generic.Money) rewards.MonthlyStats {
	return rewards.MonthlyStats{
		CoachID:     "coach-1",
		MonthKey:    "2024-03",
		Month:       time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		TotalReward: total,
	}
}

var fullTax = rewards.TaxProfile{InvoiceRegistered: true, WithholdingEnabled: true}

func TestSettle_InvoiceRegisteredScenario(t *testing.T) {
	// GIVEN: total reward 11,000, invoice registered, withholding enabled, no fees
	// THEN: base 10,000, tax 1,000, withholding 1,021, final 9,979

	rec := rewards.Settle(statsWithReward(11000), fullTax, rewards.DefaultPolicy())

	assert.Equal(t, generic.Money(10000), rec.BaseAmount)
	assert.Equal(t, generic.Money(1000), rec.ConsumptionTax)
	assert.Equal(t, generic.Money(1021), rec.WithholdingTax)
	assert.Equal(t, generic.Money(0), rec.SystemFee)
	assert.Equal(t, generic.Money(0), rec.TransferFee)
	assert.Equal(t, generic.Money(9979), rec.FinalAmount)
	assert.Equal(t, time.Date(2024, time.April, 25, 0, 0, 0, 0, time.UTC), rec.PaymentDate)
}

func TestSettle_WithholdingAppliesToExcludedBase(t *testing.T) {
	// GIVEN: total 110,000 registered
	// THEN: withholding is floor(100,000 × 0.1021), not floor(110,000 × 0.1021)

	rec := rewards.Settle(statsWithReward(110000), fullTax, rewards.DefaultPolicy())
	assert.Equal(t, generic.Money(10210), rec.WithholdingTax)
	assert.NotEqual(t, generic.Money(11231), rec.WithholdingTax)
}

func TestSettle_NotRegistered(t *testing.T) {
	rec := rewards.Settle(statsWithReward(11000),
		rewards.TaxProfile{InvoiceRegistered: false, WithholdingEnabled: true}, rewards.DefaultPolicy())

	assert.Equal(t, generic.Money(11000), rec.BaseAmount)
	assert.Equal(t, generic.Money(0), rec.ConsumptionTax)
	assert.Equal(t, generic.Money(1123), rec.WithholdingTax) // floor(1123.1)
	assert.Equal(t, generic.Money(9877), rec.FinalAmount)
}

func TestSettle_WithholdingDisabled(t *testing.T) {
	rec := rewards.Settle(statsWithReward(11000),
		rewards.TaxProfile{InvoiceRegistered: true}, rewards.DefaultPolicy())

	assert.Equal(t, generic.Money(0), rec.WithholdingTax)
	assert.Equal(t, generic.Money(11000), rec.FinalAmount)
}

func TestSettle_FloorsBase(t *testing.T) {
	// GIVEN: total 1,000 registered: 1000 / 1.1 = 909.09...
	// THEN: base 909, tax 91, withholding floor(909 × 0.1021) = 92

	rec := rewards.Settle(statsWithReward(1000), fullTax, rewards.DefaultPolicy())
	assert.Equal(t, generic.Money(909), rec.BaseAmount)
	assert.Equal(t, generic.Money(91), rec.ConsumptionTax)
	assert.Equal(t, generic.Money(92), rec.WithholdingTax)
}

func TestSettle_Fees(t *testing.T) {
	// GIVEN: 3% system fee and a 250 transfer fee
	// THEN: both are deducted; nothing is deducted from a zero month

	p := rewards.DefaultPolicy()
	p.SystemFeeRate = decimal.RequireFromString("0.03")
	p.TransferFee = 250

	rec := rewards.Settle(statsWithReward(11000), fullTax, p)
	assert.Equal(t, generic.Money(330), rec.SystemFee)
	assert.Equal(t, generic.Money(250), rec.TransferFee)
	assert.Equal(t, generic.Money(11000-1021-330-250), rec.FinalAmount)

	zero := rewards.Settle(statsWithReward(0), fullTax, p)
	assert.Equal(t, generic.Money(0), zero.TransferFee)
	assert.Equal(t, generic.Money(0), zero.FinalAmount)
}

func TestSettle_IdentityHolds(t *testing.T) {
	// GIVEN: A range of totals under every tax profile and with fees
	// THEN: final + withholding + fees == total, and base + tax == total

	p := rewards.DefaultPolicy()
	p.SystemFeeRate = decimal.RequireFromString("0.015")
	p.TransferFee = 330

	profiles := []rewards.TaxProfile{
		{InvoiceRegistered: true, WithholdingEnabled: true},
		{InvoiceRegistered: true, WithholdingEnabled: false},
		{InvoiceRegistered: false, WithholdingEnabled: true},
		{InvoiceRegistered: false, WithholdingEnabled: false},
	}
	for total := generic.Money(0); total < 200000; total += 997 {
		for _, tax := range profiles {
			rec := rewards.Settle(statsWithReward(total), tax, p)
			require.Equal(t, total, rec.FinalAmount+rec.WithholdingTax+rec.SystemFee+rec.TransferFee)
			require.Equal(t, total, rec.BaseAmount+rec.ConsumptionTax)
			if !tax.InvoiceRegistered {
				require.Equal(t, total, rec.BaseAmount)
			}
		}
	}
}

func TestSettlementRecord_StatusAt(t *testing.T) {
	rec := rewards.Settle(statsWithReward(11000), fullTax, rewards.DefaultPolicy())

	assert.Equal(t, rewards.ScheduleProcessing, rec.StatusAt(time.Date(2024, time.April, 24, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, rewards.SchedulePaid, rec.StatusAt(time.Date(2024, time.April, 25, 0, 0, 0, 0, time.UTC)))
}

func TestSettlementHistory_SkipsEmptyPastMonths(t *testing.T) {
	// GIVEN: Lessons in January only, reference March
	// WHEN: Settling 3 months with SkipEmptyPastMonths
	// THEN: March (current, empty) and January are reported; February is skipped

	lessons := lessonsPerMonth("coach-1", 2, date(2024, time.January, 1))
	calc := newCalculator()

	in := rewards.SettlementInput{
		HistoryInput: rewards.HistoryInput{
			CoachID:    "coach-1",
			Lessons:    lessons,
			MonthsBack: 3,
			Reference:  date(2024, time.March, 10),
		},
		Tax:                 fullTax,
		SkipEmptyPastMonths: true,
	}
	records := calc.SettlementHistory(in)

	require.Len(t, records, 2)
	assert.Equal(t, generic.MonthKey("2024-03"), records[0].MonthKey)
	assert.Equal(t, generic.MonthKey("2024-01"), records[1].MonthKey)
	assert.Equal(t, rewards.ScheduleProcessing, records[0].ScheduleStatus)
	assert.Equal(t, rewards.SchedulePaid, records[1].ScheduleStatus) // paid Feb 25

	in.SkipEmptyPastMonths = false
	assert.Len(t, calc.SettlementHistory(in), 3)
}
