package payouts

import (
	"context"
	"time"

	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/rewards"
)

// =============================================================================
// SETTLEMENT SLIP - Printable per coach, per month document
// =============================================================================

// Slip is everything a settlement slip shows: who, the settlement breakdown
// with its lesson lines, and what has been paid against it.
type Slip struct {
	Coach      generic.Coach
	IssuedAt   time.Time
	Settlement rewards.SettlementRecord
	Payouts    []generic.PayoutTransaction
	Reconciled rewards.ReconciledStatus
}

// Slip builds the settlement slip of coachID for month as of asOf.
func (s *Service) Slip(ctx context.Context, coachID generic.CoachID, month generic.MonthKey, asOf time.Time) (Slip, error) {
	start, err := s.ParseMonth(month)
	if err != nil {
		return Slip{}, err
	}

	snap, err := s.Snapshot(ctx, coachID, start, 1)
	if err != nil {
		return Slip{}, err
	}
	payouts := groupByMonth(snap.Payouts)[month]

	rec := s.calc.SettleMonth(rewards.SettlementInput{
		HistoryInput: s.historyInput(snap.Coach, snap.Lessons, 1, start),
		Tax:          rewards.TaxProfileOf(snap.Coach),
	}, asOf)

	return Slip{
		Coach:      snap.Coach,
		IssuedAt:   asOf,
		Settlement: rec,
		Payouts:    payouts,
		Reconciled: rewards.Reconcile(rec.FinalAmount, payouts),
	}, nil
}
