package payouts

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/rewards"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// PAYOUT DASHBOARD - Every coach for one target month
// =============================================================================

// DashboardRow is one coach on the dashboard.
type DashboardRow struct {
	Coach      generic.Coach
	Settlement rewards.SettlementRecord
	Reconciled rewards.ReconciledStatus
	Payouts    []generic.PayoutTransaction
}

// DashboardTotals sums the rows.
type DashboardTotals struct {
	TotalSales    generic.Money
	TotalReward   generic.Money
	FinalAmount   generic.Money
	PaidAmount    generic.Money
	PendingAmount generic.Money
	UnpaidAmount  generic.Money
	ByStatus      map[rewards.ReconcileStatus]int
}

// Dashboard is the payout overview for one month, most urgent rows first.
type Dashboard struct {
	Month  generic.MonthKey
	AsOf   time.Time
	Rows   []DashboardRow
	Totals DashboardTotals
}

// Dashboard settles and reconciles every coach for month. Coaches created
// after month are left out. Rows are sorted unpaid, partial, paid and by
// name within a status.
func (s *Service) Dashboard(ctx context.Context, month generic.MonthKey, asOf time.Time) (Dashboard, error) {
	start, err := s.ParseMonth(month)
	if err != nil {
		return Dashboard{}, err
	}
	from, to := s.lessonWindow(start, 1)

	var (
		coaches []generic.Coach
		lessons []generic.Lesson
		payouts []generic.PayoutTransaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		coaches, err = s.coaches.Coaches(gctx)
		if err != nil {
			return fmt.Errorf("list coaches: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		lessons, err = s.lessons.Lessons(gctx, generic.LessonQuery{From: from, To: to})
		if err != nil {
			return fmt.Errorf("fetch lessons: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		payouts, err = s.payouts.Payouts(gctx, generic.PayoutQuery{TargetMonth: month})
		if err != nil {
			return fmt.Errorf("fetch payouts: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	lessonsByCoach := make(map[generic.CoachID][]generic.Lesson)
	for _, l := range lessons {
		lessonsByCoach[l.CoachID] = append(lessonsByCoach[l.CoachID], l)
	}
	payoutsByCoach := make(map[generic.CoachID][]generic.PayoutTransaction)
	for _, p := range payouts {
		payoutsByCoach[p.CoachID] = append(payoutsByCoach[p.CoachID], p)
	}

	d := Dashboard{
		Month:  month,
		AsOf:   asOf,
		Totals: DashboardTotals{ByStatus: make(map[rewards.ReconcileStatus]int)},
	}
	for _, c := range coaches {
		if !c.CreatedAt.IsZero() && generic.StartOfMonth(c.CreatedAt.In(s.Location())).After(start) {
			continue
		}
		s.logMalformed(ctx, c.ID, lessonsByCoach[c.ID])

		rec := s.calc.SettleMonth(rewards.SettlementInput{
			HistoryInput: s.historyInput(c, lessonsByCoach[c.ID], 1, start),
			Tax:          rewards.TaxProfileOf(c),
		}, asOf)
		row := DashboardRow{
			Coach:      c,
			Settlement: rec,
			Reconciled: rewards.Reconcile(rec.FinalAmount, payoutsByCoach[c.ID]),
			Payouts:    payoutsByCoach[c.ID],
		}
		d.Rows = append(d.Rows, row)
		d.Totals.add(row)
	}

	rewards.SortBySeverity(d.Rows,
		func(r DashboardRow) rewards.ReconcileStatus { return r.Reconciled.Status },
		func(a, b DashboardRow) bool {
			if a.Coach.FullName != b.Coach.FullName {
				return a.Coach.FullName < b.Coach.FullName
			}
			return a.Coach.ID < b.Coach.ID
		})
	return d, nil
}

func (t *DashboardTotals) add(row DashboardRow) {
	t.TotalSales = t.TotalSales.Add(row.Settlement.TotalSales)
	t.TotalReward = t.TotalReward.Add(row.Settlement.TotalReward)
	t.FinalAmount = t.FinalAmount.Add(row.Settlement.FinalAmount)
	t.PaidAmount = t.PaidAmount.Add(row.Reconciled.PaidAmount)
	t.PendingAmount = t.PendingAmount.Add(row.Reconciled.PendingAmount)
	t.UnpaidAmount = t.UnpaidAmount.Add(row.Reconciled.UnpaidAmount)
	t.ByStatus[row.Reconciled.Status]++
}
