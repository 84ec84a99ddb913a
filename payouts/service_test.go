package payouts_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/generic/store"
	"github.com/warp/payout-engine/payouts"
	"github.com/warp/payout-engine/rewards"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var master = &generic.LessonMaster{ID: "regular", Title: "Regular", UnitPrice: 10000}

func addLessons(mem *store.Memory, coach generic.CoachID, n int, month time.Time) {
	for i := 0; i < n; i++ {
		mem.AddLessons(generic.Lesson{
			ID:         generic.LessonID(fmt.Sprintf("%s-%s-%02d", coach, month.Format("200601"), i)),
			CoachID:    coach,
			LessonDate: time.Date(month.Year(), month.Month(), 1+i%28, 10, 0, 0, 0, time.UTC),
			Price:      12000,
			Master:     master,
			Student:    &generic.Student{ID: "s-1", FullName: "Student"},
		})
	}
}

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	mem     *store.Memory
	service *payouts.Service
	cache   *payouts.MemoryCache
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()

	require.NoError(t, mem.SaveCoach(ctx, generic.Coach{
		ID: "coach-a", FullName: "Aoki", CreatedAt: month(2023, time.June),
		InvoiceRegistered: true, WithholdingEnabled: true,
	}))
	require.NoError(t, mem.SaveCoach(ctx, generic.Coach{
		ID: "coach-b", FullName: "Baba", CreatedAt: month(2023, time.June),
		InvoiceRegistered: false, WithholdingEnabled: false,
	}))
	require.NoError(t, mem.SaveCoach(ctx, generic.Coach{
		ID: "coach-c", FullName: "Chiba", CreatedAt: month(2024, time.April),
	}))

	// coach-a: 1 lesson in March 2024 -> 0.50 -> reward 5000
	addLessons(mem, "coach-a", 1, month(2024, time.March))
	// coach-b: 2 lessons in March 2024 -> 0.50 -> reward 10000
	addLessons(mem, "coach-b", 2, month(2024, time.March))

	cache := payouts.NewMemoryCache(generic.FixedClock(now))
	service := payouts.NewService(payouts.ServiceConfig{
		Lessons:  mem,
		Coaches:  mem,
		Payouts:  mem,
		Policy:   rewards.DefaultPolicy(),
		Cache:    cache,
		CacheTTL: time.Minute,
	})
	return fixture{mem: mem, service: service, cache: cache}
}

func (f fixture) pay(t *testing.T, coach generic.CoachID, amount generic.Money, status generic.PayoutStatus) {
	t.Helper()
	require.NoError(t, f.mem.InsertPayout(context.Background(), generic.PayoutTransaction{
		ID:          generic.PayoutID(fmt.Sprintf("%s-%d-%s", coach, amount, status)),
		CoachID:     coach,
		TargetMonth: "2024-03",
		Amount:      amount,
		Status:      status,
		CreatedAt:   now,
	}))
}

// =============================================================================
// HISTORY
// =============================================================================

func TestService_History_RespectsCreationAndCaches(t *testing.T) {
	// GIVEN: coach-a created June 2023
	// WHEN: Asking for 24 months as of April 2024
	// THEN: History stops at June 2023, and the second call is served from cache

	f := newFixture(t)
	ctx := context.Background()

	history, err := f.service.History(ctx, "coach-a", 24, now)
	require.NoError(t, err)
	require.Len(t, history, 11) // Jun 2023 .. Apr 2024
	assert.Equal(t, generic.MonthKey("2024-04"), history[0].MonthKey)
	assert.Equal(t, generic.MonthKey("2023-06"), history[len(history)-1].MonthKey)
	assert.Equal(t, generic.Money(5000), history[1].TotalReward)
	assert.Equal(t, 1, f.cache.Len())

	// A lesson added now is not seen until the entry expires.
	addLessons(f.mem, "coach-a", 5, month(2024, time.April))
	again, err := f.service.History(ctx, "coach-a", 24, now)
	require.NoError(t, err)
	assert.Equal(t, 0, again[0].LessonCount)
}

func TestService_History_UnknownCoach(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.History(context.Background(), "ghost", 3, now)
	assert.ErrorIs(t, err, generic.ErrCoachNotFound)
}

func TestService_History_OverrideRate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.mem.SaveCoach(ctx, generic.Coach{ID: "coach-o", FullName: "Ono", OverrideRate: "0.70"}))
	addLessons(f.mem, "coach-o", 1, month(2024, time.March))

	history, err := f.service.History(ctx, "coach-o", 2, now)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, generic.Money(7000), history[1].TotalReward)
	assert.True(t, history[1].RateOverridden)
}

func TestService_History_ReferenceOutsideUTC(t *testing.T) {
	// GIVEN: The default policy (no timezone) and a lesson at 21:00 New York
	//        time on June 30, which is July 1 in UTC
	// WHEN: Asking for history with reference dates carrying the New York zone
	// THEN: Months are bucketed in UTC and the fetch window agrees, so the
	//       lesson is counted exactly once, in July

	newYork := time.FixedZone("EDT", -4*60*60)

	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.mem.SaveCoach(ctx, generic.Coach{ID: "coach-ny", FullName: "Nakano", CreatedAt: month(2023, time.June)}))
	f.mem.AddLessons(generic.Lesson{
		ID:         "coach-ny-late",
		CoachID:    "coach-ny",
		LessonDate: time.Date(2024, time.June, 30, 21, 0, 0, 0, newYork),
		Price:      12000,
		Master:     master,
	})

	june, err := f.service.History(ctx, "coach-ny", 1, time.Date(2024, time.June, 15, 12, 0, 0, 0, newYork))
	require.NoError(t, err)
	require.Len(t, june, 1)
	assert.Equal(t, generic.MonthKey("2024-06"), june[0].MonthKey)
	assert.Equal(t, 0, june[0].LessonCount)

	july, err := f.service.History(ctx, "coach-ny", 2, time.Date(2024, time.July, 15, 12, 0, 0, 0, newYork))
	require.NoError(t, err)
	require.Len(t, july, 2)
	assert.Equal(t, generic.MonthKey("2024-07"), july[0].MonthKey)
	assert.Equal(t, 1, july[0].LessonCount)
	assert.Equal(t, 0, july[1].LessonCount)
	assert.Equal(t, time.UTC, f.service.Location())
}

func TestService_History_PolicyLocation(t *testing.T) {
	// GIVEN: A policy bucketing months in New York
	// WHEN: The reference date is in UTC
	// THEN: The late June 30 lesson is fetched and counted in June

	newYork := time.FixedZone("EDT", -4*60*60)

	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.SaveCoach(ctx, generic.Coach{ID: "coach-ny", FullName: "Nakano", CreatedAt: month(2023, time.June)}))
	mem.AddLessons(generic.Lesson{
		ID:         "coach-ny-late",
		CoachID:    "coach-ny",
		LessonDate: time.Date(2024, time.June, 30, 21, 0, 0, 0, newYork),
		Price:      12000,
		Master:     master,
	})

	policy := rewards.DefaultPolicy()
	policy.Location = newYork
	service := payouts.NewService(payouts.ServiceConfig{Lessons: mem, Coaches: mem, Payouts: mem, Policy: policy})

	history, err := service.History(ctx, "coach-ny", 1, time.Date(2024, time.June, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, generic.MonthKey("2024-06"), history[0].MonthKey)
	assert.Equal(t, 1, history[0].LessonCount)
}

// =============================================================================
// STATEMENT
// =============================================================================

func TestService_Statement_ReconcilesFinalAmount(t *testing.T) {
	// GIVEN: coach-a earned 5000 in March (registered, withholding on)
	//        base floor(5000/1.1)=4545, withholding floor(4545×0.1021)=464, final 4536
	// WHEN: 4536 was paid
	// THEN: March is paid

	f := newFixture(t)
	f.pay(t, "coach-a", 4536, generic.PayoutPaid)

	stmt, err := f.service.Statement(context.Background(), "coach-a", now, payouts.StatementOptions{
		MonthsBack:          3,
		SkipEmptyPastMonths: true,
	})
	require.NoError(t, err)

	require.Len(t, stmt.Months, 2) // April (current) and March
	march := stmt.Months[1]
	assert.Equal(t, generic.MonthKey("2024-03"), march.Settlement.MonthKey)
	assert.Equal(t, generic.Money(4536), march.Settlement.FinalAmount)
	assert.Equal(t, rewards.StatusPaid, march.Reconciled.Status)
	assert.Equal(t, rewards.ScheduleProcessing, march.Settlement.ScheduleStatus)
	assert.Len(t, march.Payouts, 1)

	assert.Equal(t, rewards.StatusPaid, stmt.Months[0].Reconciled.Status) // nothing owed
}

// =============================================================================
// DASHBOARD
// =============================================================================

func TestService_Dashboard(t *testing.T) {
	// GIVEN: coach-a owed 4536 with 1000 paid; coach-b owed 10000 with nothing recorded;
	//        coach-c created after March
	// WHEN: Building the March dashboard
	// THEN: coach-b (unpaid) comes before coach-a (partial), coach-c is absent

	f := newFixture(t)
	f.pay(t, "coach-a", 1000, generic.PayoutPaid)

	d, err := f.service.Dashboard(context.Background(), "2024-03", now)
	require.NoError(t, err)

	require.Len(t, d.Rows, 2)
	assert.Equal(t, generic.CoachID("coach-b"), d.Rows[0].Coach.ID)
	assert.Equal(t, rewards.StatusUnpaid, d.Rows[0].Reconciled.Status)
	assert.Equal(t, generic.Money(10000), d.Rows[0].Settlement.FinalAmount)

	assert.Equal(t, generic.CoachID("coach-a"), d.Rows[1].Coach.ID)
	assert.Equal(t, rewards.StatusPartial, d.Rows[1].Reconciled.Status)
	assert.Equal(t, generic.Money(3536), d.Rows[1].Reconciled.UnpaidAmount)

	assert.Equal(t, generic.Money(15000), d.Totals.TotalReward)
	assert.Equal(t, generic.Money(14536), d.Totals.FinalAmount)
	assert.Equal(t, generic.Money(1000), d.Totals.PaidAmount)
	assert.Equal(t, 1, d.Totals.ByStatus[rewards.StatusUnpaid])
	assert.Equal(t, 1, d.Totals.ByStatus[rewards.StatusPartial])
}

func TestService_Dashboard_InvalidMonth(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Dashboard(context.Background(), "03-2024", now)
	assert.ErrorIs(t, err, generic.ErrInvalidMonth)
}

// =============================================================================
// SLIP
// =============================================================================

func TestService_Slip(t *testing.T) {
	f := newFixture(t)
	f.pay(t, "coach-b", 10000, generic.PayoutPending)

	slip, err := f.service.Slip(context.Background(), "coach-b", "2024-03", now)
	require.NoError(t, err)

	assert.Equal(t, "Baba", slip.Coach.FullName)
	assert.Equal(t, generic.Money(10000), slip.Settlement.TotalReward)
	assert.Equal(t, generic.Money(0), slip.Settlement.ConsumptionTax)
	assert.Len(t, slip.Settlement.Details, 2)
	assert.Equal(t, rewards.StatusPartial, slip.Reconciled.Status)
	assert.Equal(t, time.Date(2024, time.April, 25, 0, 0, 0, 0, time.UTC), slip.Settlement.PaymentDate)
}

// =============================================================================
// FETCH FAILURES AND WARM-UP
// =============================================================================

type failingLessons struct{}

func (failingLessons) Lessons(context.Context, generic.LessonQuery) ([]generic.Lesson, error) {
	return nil, errors.New("database unreachable")
}

func TestService_FetchFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	service := payouts.NewService(payouts.ServiceConfig{
		Lessons: failingLessons{},
		Coaches: f.mem,
		Payouts: f.mem,
		Policy:  rewards.DefaultPolicy(),
	})

	_, err := service.Dashboard(context.Background(), "2024-03", now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch lessons")

	_, err = service.Slip(context.Background(), "coach-a", "2024-03", now)
	assert.Error(t, err)
}

func TestService_WarmHistories(t *testing.T) {
	f := newFixture(t)

	n, err := f.service.WarmHistories(context.Background(), now, 6)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, f.cache.Len())

	noCache := payouts.NewService(payouts.ServiceConfig{
		Lessons: f.mem, Coaches: f.mem, Payouts: f.mem, Policy: rewards.DefaultPolicy(),
	})
	n, err = noCache.WarmHistories(context.Background(), now, 6)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
