package rewards

import (
	"slices"

	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// RECONCILE - Computed liability against the payout ledger
// =============================================================================

// Reconcile compares totalReward with the recorded payouts of one coach and
// month. The caller selects the payouts; transactions with an unknown
// status are ignored.
//
// Status, first match wins:
//  1. nothing owed                               -> paid
//  2. paid transactions cover the total          -> paid
//  3. something paid                             -> partial
//  4. pending transactions would cover the rest  -> partial
//  5. otherwise                                  -> unpaid
func Reconcile(totalReward generic.Money, payouts []generic.PayoutTransaction) ReconciledStatus {
	var paid, pending generic.Money
	for _, p := range payouts {
		switch p.Status {
		case generic.PayoutPaid:
			paid = paid.Add(p.Amount)
		case generic.PayoutPending:
			pending = pending.Add(p.Amount)
		}
	}

	unpaid := totalReward.Sub(paid).Max(0)

	r := ReconciledStatus{
		TotalReward:   totalReward,
		PaidAmount:    paid,
		PendingAmount: pending,
		UnpaidAmount:  unpaid,
	}

	switch {
	case totalReward.IsZero():
		r.Status = StatusPaid
	case !unpaid.IsPositive():
		r.Status = StatusPaid
	case paid.IsPositive():
		r.Status = StatusPartial
	case !unpaid.Sub(pending).IsPositive():
		r.Status = StatusPartial
	default:
		r.Status = StatusUnpaid
	}
	return r
}

// SortBySeverity orders rows unpaid, partial, paid. Rows of equal status are
// ordered by less, or keep their order when less is nil.
func SortBySeverity[T any](rows []T, status func(T) ReconcileStatus, less func(a, b T) bool) {
	slices.SortStableFunc(rows, func(a, b T) int {
		if d := status(b).Severity() - status(a).Severity(); d != 0 {
			return d
		}
		if less == nil {
			return 0
		}
		switch {
		case less(a, b):
			return -1
		case less(b, a):
			return 1
		}
		return 0
	})
}
