package rewards_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/rewards"
)

// =============================================================================
// LESSON REWARD TESTS
// =============================================================================

func TestLessonReward_UnitPriceTimesRate(t *testing.T) {
	// GIVEN: unit price 8000, rate 0.60, no override
	// THEN: floor(8000 × 0.60) = 4800

	l := lesson("coach-1", date(2024, time.March, 1), regularMaster)
	assert.Equal(t, generic.Money(4800), newCalculator().LessonReward(l, rate("0.60")))
}

func TestLessonReward_Floors(t *testing.T) {
	// GIVEN: unit price 3333 at 0.55 = 1833.15
	// THEN: 1833

	master := &generic.LessonMaster{ID: "odd", UnitPrice: 3333}
	l := lesson("coach-1", date(2024, time.March, 1), master)
	assert.Equal(t, generic.Money(1833), newCalculator().LessonReward(l, rate("0.55")))
}

func TestLessonReward_NoMasterIsZero(t *testing.T) {
	l := lesson("coach-1", date(2024, time.March, 1), nil)
	assert.Equal(t, generic.Money(0), newCalculator().LessonReward(l, rate("0.70")))
}

func TestLessonReward_TrialIsFixed(t *testing.T) {
	// GIVEN: A trial lesson with a membership override configured for the trial master
	// WHEN: Computing at every tier rate
	// THEN: Always 4500

	l := lesson("coach-1", date(2024, time.March, 1), trialMaster)
	l.Student.Membership = &generic.Membership{
		ID: "premium",
		LessonRewards: []generic.MembershipLessonReward{
			{LessonMasterID: trialMaster.ID, RewardPrice: money(20000)},
		},
	}

	calc := newCalculator()
	for _, r := range []string{"0", "0.50", "0.55", "0.60", "0.65", "0.70", "1"} {
		assert.Equal(t, generic.Money(4500), calc.LessonReward(l, rate(r)), "rate %s", r)
	}
}

func TestLessonReward_MembershipOverride(t *testing.T) {
	// GIVEN: Membership overrides the regular master's base price to 6000
	// THEN: floor(6000 × 0.60) = 3600

	l := lesson("coach-1", date(2024, time.March, 1), regularMaster)
	l.Student.Membership = &generic.Membership{
		ID: "monthly-4",
		LessonRewards: []generic.MembershipLessonReward{
			{LessonMasterID: "other-master", RewardPrice: money(1)},
			{LessonMasterID: regularMaster.ID, RewardPrice: money(6000)},
		},
	}
	assert.Equal(t, generic.Money(3600), newCalculator().LessonReward(l, rate("0.60")))
}

func TestLessonReward_EmptyOverrideUsesUnitPrice(t *testing.T) {
	// GIVEN: Override configured for the master with no value
	// THEN: The unit price applies, not zero

	l := lesson("coach-1", date(2024, time.March, 1), regularMaster)
	l.Student.Membership = &generic.Membership{
		ID: "monthly-4",
		LessonRewards: []generic.MembershipLessonReward{
			{LessonMasterID: regularMaster.ID, RewardPrice: nil},
		},
	}
	assert.Equal(t, generic.Money(4800), newCalculator().LessonReward(l, rate("0.60")))
}

func TestLessonReward_ZeroOverrideIsHonoured(t *testing.T) {
	l := lesson("coach-1", date(2024, time.March, 1), regularMaster)
	l.Student.Membership = &generic.Membership{
		LessonRewards: []generic.MembershipLessonReward{
			{LessonMasterID: regularMaster.ID, RewardPrice: money(0)},
		},
	}
	assert.Equal(t, generic.Money(0), newCalculator().LessonReward(l, rate("0.60")))
}

func TestLessonReward_TwoPersonSurchargeAfterFloor(t *testing.T) {
	// GIVEN: A two-person lesson, unit price 3333 at 0.55
	// THEN: floor(1833.15) + 1000 = 2833; trial becomes 4500 + 1000

	master := &generic.LessonMaster{ID: "odd", UnitPrice: 3333}
	l := lesson("coach-1", date(2024, time.March, 1), master)
	l.Student.IsTwoPersonLesson = true

	calc := newCalculator()
	assert.Equal(t, generic.Money(2833), calc.LessonReward(l, rate("0.55")))

	l.Master = trialMaster
	assert.Equal(t, generic.Money(5500), calc.LessonReward(l, rate("0.55")))

	l.Master = nil
	assert.Equal(t, generic.Money(0), calc.LessonReward(l, rate("0.55")))
}

func TestLessonReward_NoStudent(t *testing.T) {
	l := lesson("coach-1", date(2024, time.March, 1), regularMaster)
	l.Student = nil
	assert.Equal(t, generic.Money(4000), newCalculator().LessonReward(l, rate("0.50")))
}

// =============================================================================
// MONTHLY STATS TESTS
// =============================================================================

func TestMonthlyStats_SumsAndKeepsOrder(t *testing.T) {
	// GIVEN: Three lessons for coach-1 (regular, trial, no master) and one for coach-2
	// WHEN: Aggregating coach-1 at 0.60
	// THEN: Sales sum all prices, rewards 4800 + 4500 + 0, count 3, details in input order

	regular := lesson("coach-1", date(2024, time.March, 20), regularMaster)
	trial := lesson("coach-1", date(2024, time.March, 2), trialMaster)
	trial.Price = 3000
	orphan := lesson("coach-1", date(2024, time.March, 10), nil)
	orphan.Price = 5000
	other := lesson("coach-2", date(2024, time.March, 11), regularMaster)

	stats := newCalculator().MonthlyStats("coach-1",
		[]generic.Lesson{regular, other, trial, orphan}, rate("0.60"))

	assert.Equal(t, generic.Money(18000), stats.TotalSales)
	assert.Equal(t, generic.Money(9300), stats.TotalReward)
	assert.Equal(t, 3, stats.LessonCount)

	require.Len(t, stats.Details, 3)
	assert.Equal(t, regular.ID, stats.Details[0].LessonID)
	assert.Equal(t, trial.ID, stats.Details[1].LessonID)
	assert.Equal(t, orphan.ID, stats.Details[2].LessonID)

	assert.Equal(t, "体験レッスン", stats.Details[1].Title)
	assert.True(t, stats.Details[1].IsTrial)
	assert.Equal(t, "通常レッスン", stats.Details[0].Title)
	assert.Equal(t, "Hanako Sato", stats.Details[0].StudentName)
}

func TestMonthlyStats_Empty(t *testing.T) {
	stats := newCalculator().MonthlyStats("coach-1", nil, rate("0.50"))

	assert.Equal(t, generic.Money(0), stats.TotalSales)
	assert.Equal(t, generic.Money(0), stats.TotalReward)
	assert.Equal(t, 0, stats.LessonCount)
	assert.NotNil(t, stats.Details)
	assert.True(t, rate("0.50").Equal(stats.Rate))
}

func TestMonthlyStats_RewardIsIndependentOfPrice(t *testing.T) {
	l := lesson("coach-1", date(2024, time.March, 1), regularMaster)
	l.Price = 1

	stats := newCalculator().MonthlyStats("coach-1", []generic.Lesson{l}, rate("0.60"))
	assert.Equal(t, generic.Money(1), stats.TotalSales)
	assert.Equal(t, generic.Money(4800), stats.TotalReward)
}

func TestPolicy_DefaultIsValid(t *testing.T) {
	require.NoError(t, rewards.DefaultPolicy().Validate())

	p := rewards.DefaultPolicy()
	p.Averaging = "median"
	p.PayDay = 0
	err := p.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrInvalidPolicy)
}

func TestPolicy_PaymentDateClampsToMonthLength(t *testing.T) {
	p := rewards.DefaultPolicy()
	assert.Equal(t, time.Date(2024, time.April, 25, 0, 0, 0, 0, time.UTC),
		p.PaymentDate(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)))

	p.PayDay = 31
	assert.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
		p.PaymentDate(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)))
}
