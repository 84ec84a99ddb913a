/*
source.go - Data interfaces between the engine and persistence

PURPOSE:
  The reward engine is a pure function of in-memory collections. These
  interfaces describe where callers obtain those collections: the lesson
  feed, coach metadata and the payout ledger. Different implementations
  can use SQLite or in-memory storage.

KEY INTERFACES:
  LessonSource: read-only lesson feed, filtered by lookback window
  CoachSource:  coach metadata and tax configuration
  PayoutStore:  payout ledger (read for reconciliation, write for the
                admin workflow only)

SNAPSHOT CONTRACT:
  The engine never writes. Readers get a copy; mutating a returned slice
  must not affect the store.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - payouts/ledger.go: admin workflow over PayoutStore
  - payouts/service.go: parallel snapshot loading
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// LESSON SOURCE
// =============================================================================

// LessonQuery selects lessons with LessonDate in [From, To]. A zero bound is
// open. An empty CoachID selects every coach.
type LessonQuery struct {
	CoachID CoachID
	From    time.Time
	To      time.Time
}

// Matches reports whether l satisfies the query.
func (q LessonQuery) Matches(l Lesson) bool {
	if q.CoachID != "" && l.CoachID != q.CoachID {
		return false
	}
	if !q.From.IsZero() && l.LessonDate.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && l.LessonDate.After(q.To) {
		return false
	}
	return true
}

// LessonSource is the read-only lesson feed.
type LessonSource interface {
	// Lessons returns matching lessons ordered by LessonDate ascending.
	Lessons(ctx context.Context, q LessonQuery) ([]Lesson, error)
}

// =============================================================================
// COACH SOURCE
// =============================================================================

// CoachSource provides coach metadata.
type CoachSource interface {
	// Coach returns ErrCoachNotFound if id is unknown.
	Coach(ctx context.Context, id CoachID) (Coach, error)

	// Coaches returns all coaches ordered by name.
	Coaches(ctx context.Context) ([]Coach, error)
}

// TaxSettings is the per-coach settlement configuration.
type TaxSettings struct {
	InvoiceRegistered  bool
	WithholdingEnabled bool
}

// CoachStore extends CoachSource with the writes the admin workflow needs.
type CoachStore interface {
	CoachSource

	SaveCoach(ctx context.Context, c Coach) error
	SaveTaxSettings(ctx context.Context, id CoachID, s TaxSettings) error
}

// =============================================================================
// PAYOUT STORE
// =============================================================================

// PayoutQuery selects payouts. Empty fields are unconstrained.
type PayoutQuery struct {
	CoachID     CoachID
	TargetMonth MonthKey
	Status      PayoutStatus
}

// Matches reports whether p satisfies the query.
func (q PayoutQuery) Matches(p PayoutTransaction) bool {
	if q.CoachID != "" && p.CoachID != q.CoachID {
		return false
	}
	if q.TargetMonth != "" && p.TargetMonth != q.TargetMonth {
		return false
	}
	if q.Status != "" && p.Status != q.Status {
		return false
	}
	return true
}

// PayoutReader is the read side used by reconciliation.
type PayoutReader interface {
	// Payouts returns matching transactions ordered by CreatedAt ascending.
	Payouts(ctx context.Context, q PayoutQuery) ([]PayoutTransaction, error)
}

// PayoutStore is the payout ledger.
type PayoutStore interface {
	PayoutReader

	// GetPayout returns ErrPayoutNotFound if id is unknown.
	GetPayout(ctx context.Context, id PayoutID) (PayoutTransaction, error)

	// InsertPayout persists p. Returns ErrDuplicateIdempotencyKey if
	// p.IdempotencyKey is set and already recorded.
	InsertPayout(ctx context.Context, p PayoutTransaction) error

	// UpdatePayoutStatus sets status (and paid_at) of an existing payout.
	UpdatePayoutStatus(ctx context.Context, id PayoutID, status PayoutStatus, paidAt *time.Time, at time.Time) error

	// DeletePayout removes a payout. Returns ErrPayoutNotFound if id is unknown.
	DeletePayout(ctx context.Context, id PayoutID) error
}
