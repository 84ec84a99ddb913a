/*
ledger.go - Payout ledger workflow with input validation

PURPOSE:
  Wraps generic.PayoutStore with the admin rules for recording transfers
  to coaches. The reward engine never writes the ledger; this is the only
  component that does.

OPERATIONS:
  Create:       validate input, default status to paid, stamp paid_at
  ToggleStatus: paid <-> pending, paid_at follows the status
  Delete:       remove a mistaken entry
  List:         filtered read for the admin screen

VALIDATION (go-playground/validator):
  coach_id       required, must exist when a CoachSource is configured
  target_month   required, YYYY-MM
  amount         >= 0
  status         paid | pending, default paid
  note           optional, at most 500 characters

IDEMPOTENCY:
  An optional idempotency key makes Create safe to retry: the store
  rejects a second insert with generic.ErrDuplicateIdempotencyKey.

EXAMPLE:
  ledger := payouts.NewLedger(store, store, clock, logger)
  p, err := ledger.Create(ctx, payouts.PayoutInput{
      CoachID: "coach-1", TargetMonth: "2024-03", Amount: 98000,
  })
  var verr *generic.ValidationError
  if errors.As(err, &verr) {
      // 400 with verr.Fields
  }

SEE ALSO:
  - generic/source.go: PayoutStore
  - rewards/reconcile.go: reads what this writes
*/
package payouts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// INPUT
// =============================================================================

// PayoutInput is an admin request to record a payout.
type PayoutInput struct {
	CoachID        string     `json:"coach_id" validate:"required"`
	TargetMonth    string     `json:"target_month" validate:"required,monthkey"`
	Amount         int64      `json:"amount" validate:"gte=0"`
	Status         string     `json:"status" validate:"omitempty,oneof=paid pending"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	Note           string     `json:"note" validate:"max=500"`
	IdempotencyKey string     `json:"idempotency_key,omitempty" validate:"omitempty,max=128"`
	CreatedBy      string     `json:"created_by,omitempty"`
}

// TaxSettingsInput updates a coach's settlement configuration. Omitted
// fields keep their current value.
type TaxSettingsInput struct {
	InvoiceRegistered  *bool `json:"invoice_registered"`
	WithholdingEnabled *bool `json:"withholding_enabled"`
}

// NewValidator returns a validator that reports fields by their JSON names
// and knows the monthkey rule.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("monthkey", func(fl validator.FieldLevel) bool {
		return generic.MonthKey(fl.Field().String()).Valid()
	})
	return v
}

// ToValidationError converts validator output into a generic.ValidationError
// of the given kind. Other errors are returned unchanged.
func ToValidationError(err error, kind error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := &generic.ValidationError{Kind: kind}
	for _, fe := range ve {
		out.Fields = append(out.Fields, generic.FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: ruleMessage(fe),
		})
	}
	return out
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "monthkey":
		return "must be YYYY-MM"
	case "gte":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "email":
		return "must be an email address"
	case "datetime":
		return "must match " + fe.Param()
	case "numeric":
		return "must be a number"
	default:
		return "is invalid"
	}
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger is the admin workflow over the payout store.
type Ledger struct {
	store    generic.PayoutStore
	coaches  generic.CoachSource // optional
	clock    generic.Clock
	validate *validator.Validate
	logger   *slog.Logger
	newID    func() generic.PayoutID
}

// NewLedger creates a ledger. coaches may be nil to skip the existence check.
func NewLedger(store generic.PayoutStore, coaches generic.CoachSource, clock generic.Clock, logger *slog.Logger) *Ledger {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:    store,
		coaches:  coaches,
		clock:    clock,
		validate: NewValidator(),
		logger:   logger.With("component", "payout_ledger"),
		newID:    func() generic.PayoutID { return generic.PayoutID(uuid.NewString()) },
	}
}

// Create validates in and records a payout.
func (l *Ledger) Create(ctx context.Context, in PayoutInput) (generic.PayoutTransaction, error) {
	if err := l.validate.Struct(in); err != nil {
		return generic.PayoutTransaction{}, ToValidationError(err, generic.ErrInvalidPayout)
	}

	coachID := generic.CoachID(in.CoachID)
	if l.coaches != nil {
		if _, err := l.coaches.Coach(ctx, coachID); err != nil {
			return generic.PayoutTransaction{}, err
		}
	}

	now := l.clock.Now()
	status := generic.PayoutStatus(in.Status)
	if status == "" {
		status = generic.PayoutPaid
	}

	p := generic.PayoutTransaction{
		ID:             l.newID(),
		CoachID:        coachID,
		TargetMonth:    generic.MonthKey(in.TargetMonth),
		Amount:         generic.Money(in.Amount),
		Status:         status,
		Note:           in.Note,
		IdempotencyKey: in.IdempotencyKey,
		CreatedBy:      in.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if status == generic.PayoutPaid {
		paidAt := now
		if in.PaidAt != nil {
			paidAt = *in.PaidAt
		}
		p.PaidAt = &paidAt
	}

	if err := l.store.InsertPayout(ctx, p); err != nil {
		return generic.PayoutTransaction{}, err
	}

	l.logger.InfoContext(ctx, "payout recorded",
		"payout_id", p.ID,
		"coach_id", p.CoachID,
		"target_month", p.TargetMonth,
		"amount", int64(p.Amount),
		"status", p.Status,
	)
	return p, nil
}

// ToggleStatus flips a payout between paid and pending.
func (l *Ledger) ToggleStatus(ctx context.Context, id generic.PayoutID) (generic.PayoutTransaction, error) {
	p, err := l.store.GetPayout(ctx, id)
	if err != nil {
		return generic.PayoutTransaction{}, err
	}

	now := l.clock.Now()
	p.Status = p.Status.Toggled()
	p.PaidAt = nil
	if p.Status == generic.PayoutPaid {
		p.PaidAt = &now
	}
	p.UpdatedAt = now

	if err := l.store.UpdatePayoutStatus(ctx, id, p.Status, p.PaidAt, now); err != nil {
		return generic.PayoutTransaction{}, fmt.Errorf("update payout status: %w", err)
	}

	l.logger.InfoContext(ctx, "payout status changed", "payout_id", id, "status", p.Status)
	return p, nil
}

// Delete removes a payout.
func (l *Ledger) Delete(ctx context.Context, id generic.PayoutID) error {
	if err := l.store.DeletePayout(ctx, id); err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "payout deleted", "payout_id", id)
	return nil
}

// Get returns one payout.
func (l *Ledger) Get(ctx context.Context, id generic.PayoutID) (generic.PayoutTransaction, error) {
	return l.store.GetPayout(ctx, id)
}

// List returns payouts matching q. An invalid month in q is rejected.
func (l *Ledger) List(ctx context.Context, q generic.PayoutQuery) ([]generic.PayoutTransaction, error) {
	if q.TargetMonth != "" && !q.TargetMonth.Valid() {
		return nil, fmt.Errorf("%w: %q", generic.ErrInvalidMonth, q.TargetMonth)
	}
	return l.store.Payouts(ctx, q)
}
