/*
handlers.go - HTTP API handlers for the payout engine

PURPOSE:
  Exposes the reward engine and the payout ledger via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to the payouts
  service and ledger.

ENDPOINTS:
  Coaches:
    GET    /api/coaches                        List all coaches
    POST   /api/coaches                        Create or replace a coach
    GET    /api/coaches/{id}                   Coach details
    GET    /api/coaches/{id}/history           Monthly roll-up (?months=&ref=)
    GET    /api/coaches/{id}/statement         Settled + reconciled history
    GET    /api/coaches/{id}/tax-settings      Tax configuration
    PUT    /api/coaches/{id}/tax-settings      Update tax configuration
    GET    /api/coaches/{id}/slips/{month}     Settlement slip

  Payouts:
    GET    /api/payouts                        List (?coach_id=&target_month=&status=)
    POST   /api/payouts                        Record a payout
    GET    /api/payouts/{id}                   Payout details
    DELETE /api/payouts/{id}                   Delete a payout
    POST   /api/payouts/{id}/toggle            paid <-> pending

  Views:
    GET    /api/dashboard/{month}              Payout dashboard for a month
    GET    /api/policy                         Reward policy in use

  Admin:
    POST   /api/admin/warm-cache               Precompute histories

REFERENCE DATE:
  Endpoints that depend on "today" accept ?ref=YYYY-MM-DD (or YYYY-MM);
  default is the handler clock.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (idempotency key reused)
  - 501: Operation needs a store capability that is not configured
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/factory"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/payouts"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// HandlerConfig wires a Handler. Seeder and Cache are optional.
type HandlerConfig struct {
	Coaches    generic.CoachStore
	Service    *payouts.Service
	Ledger     *payouts.Ledger
	Seeder     Seeder
	Cache      payouts.HistoryCache
	Clock      generic.Clock
	Logger     *slog.Logger
	MonthsBack int
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Coaches    generic.CoachStore
	Service    *payouts.Service
	Ledger     *payouts.Ledger
	Seeder     Seeder
	Cache      payouts.HistoryCache
	Clock      generic.Clock
	Logger     *slog.Logger
	MonthsBack int

	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.RWMutex
	currentScenario string
}

// NewHandler creates a new handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Clock == nil {
		cfg.Clock = generic.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MonthsBack <= 0 {
		cfg.MonthsBack = payouts.DefaultMonthsBack
	}

	return &Handler{
		Coaches:    cfg.Coaches,
		Service:    cfg.Service,
		Ledger:     cfg.Ledger,
		Seeder:     cfg.Seeder,
		Cache:      cfg.Cache,
		Clock:      cfg.Clock,
		Logger:     cfg.Logger.With("component", "api"),
		MonthsBack: cfg.MonthsBack,
		validate:   payouts.NewValidator(),
	}
}

func (h *Handler) loc() *time.Location {
	return h.Service.Location()
}

// =============================================================================
// COACH HANDLERS
// =============================================================================

// ListCoaches returns all coaches.
func (h *Handler) ListCoaches(w http.ResponseWriter, r *http.Request) {
	coaches, err := h.Coaches.Coaches(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "Failed to list coaches", err)
		return
	}

	dtos := make([]CoachDTO, len(coaches))
	for i, c := range coaches {
		dtos[i] = toCoachDTO(c, h.loc())
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCoach returns a single coach.
func (h *Handler) GetCoach(w http.ResponseWriter, r *http.Request) {
	c, err := h.Coaches.Coach(r.Context(), generic.CoachID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, "Failed to get coach", err)
		return
	}
	writeJSON(w, http.StatusOK, toCoachDTO(c, h.loc()))
}

// CreateCoach creates or replaces a coach.
func (h *Handler) CreateCoach(w http.ResponseWriter, r *http.Request) {
	var req CreateCoachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	c, err := h.coachFromRequest(req)
	if err != nil {
		h.writeDomainError(w, r, "Invalid coach", err)
		return
	}

	if err := h.Coaches.SaveCoach(r.Context(), c); err != nil {
		h.writeDomainError(w, r, "Failed to save coach", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCoachDTO(c, h.loc()))
}

func (h *Handler) coachFromRequest(req CreateCoachRequest) (generic.Coach, error) {
	if err := h.validate.Struct(req); err != nil {
		return generic.Coach{}, payouts.ToValidationError(err, generic.ErrInvalidCoach)
	}

	c := generic.Coach{
		ID:                 generic.CoachID(req.ID),
		FullName:           req.FullName,
		Email:              req.Email,
		InvoiceRegistered:  true,
		WithholdingEnabled: true,
		OverrideRate:       req.OverrideRate,
	}
	if req.InvoiceRegistered != nil {
		c.InvoiceRegistered = *req.InvoiceRegistered
	}
	if req.WithholdingEnabled != nil {
		c.WithholdingEnabled = *req.WithholdingEnabled
	}
	if req.CreatedAt != "" {
		// Format already validated.
		c.CreatedAt, _ = time.ParseInLocation(dateLayout, req.CreatedAt, h.loc())
	}
	if req.OverrideRate != "" {
		rate, err := decimal.NewFromString(req.OverrideRate)
		if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			return generic.Coach{}, &generic.ValidationError{
				Kind: generic.ErrInvalidCoach,
				Fields: []generic.FieldError{{
					Field: "override_rate", Rule: "range", Message: "must be a decimal between 0 and 1",
				}},
			}
		}
	}
	return c, nil
}

// =============================================================================
// HISTORY HANDLERS
// =============================================================================

// GetHistory returns the monthly roll-up for a coach, most recent first.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	coachID := generic.CoachID(chi.URLParam(r, "id"))
	ref, months, err := h.referenceParams(r)
	if err != nil {
		h.writeDomainError(w, r, "Invalid query", err)
		return
	}

	history, err := h.Service.History(r.Context(), coachID, months, ref)
	if err != nil {
		h.writeDomainError(w, r, "Failed to compute history", err)
		return
	}

	withDetails := r.URL.Query().Get("details") == "true"
	dto := HistoryDTO{
		CoachID:        string(coachID),
		ReferenceMonth: string(generic.MonthKeyOf(ref.In(h.loc()))),
		Months:         make([]MonthlyStatsDTO, len(history)),
	}
	for i, m := range history {
		dto.Months[i] = toMonthlyStatsDTO(m, h.loc(), withDetails)
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetStatement returns the settled, reconciled history for a coach.
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	coachID := generic.CoachID(chi.URLParam(r, "id"))
	ref, months, err := h.referenceParams(r)
	if err != nil {
		h.writeDomainError(w, r, "Invalid query", err)
		return
	}

	stmt, err := h.Service.Statement(r.Context(), coachID, ref, payouts.StatementOptions{
		MonthsBack:          months,
		SkipEmptyPastMonths: r.URL.Query().Get("skip_empty") == "true",
	})
	if err != nil {
		h.writeDomainError(w, r, "Failed to compute statement", err)
		return
	}
	writeJSON(w, http.StatusOK, toStatementDTO(stmt, h.loc()))
}

// GetSlip returns the settlement slip of a coach for a month.
func (h *Handler) GetSlip(w http.ResponseWriter, r *http.Request) {
	coachID := generic.CoachID(chi.URLParam(r, "id"))
	month := generic.MonthKey(chi.URLParam(r, "month"))
	ref, _, err := h.referenceParams(r)
	if err != nil {
		h.writeDomainError(w, r, "Invalid query", err)
		return
	}

	slip, err := h.Service.Slip(r.Context(), coachID, month, ref)
	if err != nil {
		h.writeDomainError(w, r, "Failed to build slip", err)
		return
	}
	writeJSON(w, http.StatusOK, toSlipDTO(slip, h.loc()))
}

// =============================================================================
// TAX SETTINGS HANDLERS
// =============================================================================

// GetTaxSettings returns a coach's tax configuration.
func (h *Handler) GetTaxSettings(w http.ResponseWriter, r *http.Request) {
	c, err := h.Coaches.Coach(r.Context(), generic.CoachID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, "Failed to get coach", err)
		return
	}
	writeJSON(w, http.StatusOK, payouts.TaxSettingsInput{
		InvoiceRegistered:  &c.InvoiceRegistered,
		WithholdingEnabled: &c.WithholdingEnabled,
	})
}

// UpdateTaxSettings updates a coach's tax configuration.
func (h *Handler) UpdateTaxSettings(w http.ResponseWriter, r *http.Request) {
	var req payouts.TaxSettingsInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	c, err := payouts.UpdateTaxSettings(r.Context(), h.Coaches, generic.CoachID(chi.URLParam(r, "id")), req, h.Logger)
	if err != nil {
		h.writeDomainError(w, r, "Failed to update tax settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toCoachDTO(c, h.loc()))
}

// =============================================================================
// PAYOUT HANDLERS
// =============================================================================

// ListPayouts returns payouts matching the query filters.
func (h *Handler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.Ledger.List(r.Context(), generic.PayoutQuery{
		CoachID:     generic.CoachID(q.Get("coach_id")),
		TargetMonth: generic.MonthKey(q.Get("target_month")),
		Status:      generic.PayoutStatus(q.Get("status")),
	})
	if err != nil {
		h.writeDomainError(w, r, "Failed to list payouts", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutDTOs(list))
}

// CreatePayout records a payout.
func (h *Handler) CreatePayout(w http.ResponseWriter, r *http.Request) {
	var req payouts.PayoutInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	p, err := h.Ledger.Create(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, r, "Failed to create payout", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayoutDTO(p))
}

// GetPayout returns a single payout.
func (h *Handler) GetPayout(w http.ResponseWriter, r *http.Request) {
	p, err := h.Ledger.Get(r.Context(), generic.PayoutID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, "Failed to get payout", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutDTO(p))
}

// TogglePayout flips a payout between paid and pending.
func (h *Handler) TogglePayout(w http.ResponseWriter, r *http.Request) {
	p, err := h.Ledger.ToggleStatus(r.Context(), generic.PayoutID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, "Failed to toggle payout", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutDTO(p))
}

// DeletePayout removes a payout.
func (h *Handler) DeletePayout(w http.ResponseWriter, r *http.Request) {
	if err := h.Ledger.Delete(r.Context(), generic.PayoutID(chi.URLParam(r, "id"))); err != nil {
		h.writeDomainError(w, r, "Failed to delete payout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// VIEW HANDLERS
// =============================================================================

// GetDashboard returns the payout dashboard for a month.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	month := generic.MonthKey(chi.URLParam(r, "month"))
	ref, _, err := h.referenceParams(r)
	if err != nil {
		h.writeDomainError(w, r, "Invalid query", err)
		return
	}

	d, err := h.Service.Dashboard(r.Context(), month, ref)
	if err != nil {
		h.writeDomainError(w, r, "Failed to build dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(d, h.loc()))
}

// GetPolicy returns the reward policy in use.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, factory.ToJSON(h.Service.Policy()))
}

// WarmCache precomputes histories for every coach.
func (h *Handler) WarmCache(w http.ResponseWriter, r *http.Request) {
	n, err := h.Service.WarmHistories(r.Context(), h.Clock.Now(), h.MonthsBack)
	if err != nil {
		h.writeDomainError(w, r, "Failed to warm cache", err)
		return
	}
	writeJSON(w, http.StatusOK, WarmCacheResponse{Coaches: n})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// referenceParams reads ?ref= and ?months=.
func (h *Handler) referenceParams(r *http.Request) (time.Time, int, error) {
	q := r.URL.Query()

	ref := h.Clock.Now()
	if s := q.Get("ref"); s != "" {
		var err error
		ref, err = h.parseReference(s)
		if err != nil {
			return time.Time{}, 0, err
		}
	}

	months := h.MonthsBack
	if s := q.Get("months"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 120 {
			return time.Time{}, 0, &generic.ValidationError{
				Kind:   generic.ErrInvalidMonth,
				Fields: []generic.FieldError{{Field: "months", Rule: "range", Message: "must be between 1 and 120"}},
			}
		}
		months = n
	}
	return ref, months, nil
}

func (h *Handler) parseReference(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(dateLayout, s, h.loc()); err == nil {
		return t, nil
	}
	t, err := h.Service.ParseMonth(generic.MonthKey(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("ref %q: %w", s, generic.ErrInvalidMonth)
	}
	return t, nil
}

func statusFor(err error) int {
	switch {
	case generic.IsClientError(err):
		return http.StatusBadRequest
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, generic.ErrStoreRequired):
		return http.StatusNotImplemented
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError maps err to a status and logs server-side failures.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.ErrorContext(r.Context(), message,
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}

	resp := ErrorResponse{Error: message, Details: err.Error()}
	var verr *generic.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func strPtr(s string) *string {
	return &s
}
