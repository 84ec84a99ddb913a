/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - to*DTO: Conversion from domain types

MONEY AND RATES:
  Amounts are integers in the smallest currency unit (yen). Rates are
  decimal strings ("0.55") so clients never see float rounding.

DATES:
  Calendar dates are "YYYY-MM-DD" in the policy time zone, months are
  "YYYY-MM", timestamps are RFC 3339.

TYPES:
  Coach:      CoachDTO, CreateCoachRequest
  History:    HistoryDTO, MonthlyStatsDTO, DetailDTO
  Settlement: SettlementDTO, ReconciledDTO, StatementDTO
  Payouts:    PayoutDTO (request is payouts.PayoutInput)
  Views:      DashboardDTO, SlipDTO
  Scenarios:  ScenarioDTO, LoadScenarioRequest

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: PolicyJSON, returned as is
*/
package api

import (
	"time"

	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/payouts"
	"github.com/warp/payout-engine/rewards"
)

const (
	dateLayout = "2006-01-02"
)

// =============================================================================
// COACHES
// =============================================================================

// CoachDTO represents a coach in API responses.
type CoachDTO struct {
	ID                 string `json:"id"`
	FullName           string `json:"full_name"`
	Email              string `json:"email,omitempty"`
	CreatedAt          string `json:"created_at,omitempty"`
	InvoiceRegistered  bool   `json:"invoice_registered"`
	WithholdingEnabled bool   `json:"withholding_enabled"`
	OverrideRate       string `json:"override_rate,omitempty"`
}

// CreateCoachRequest creates or replaces a coach. Tax flags default to true.
type CreateCoachRequest struct {
	ID                 string `json:"id" validate:"required,max=64"`
	FullName           string `json:"full_name" validate:"required,max=200"`
	Email              string `json:"email" validate:"omitempty,email"`
	CreatedAt          string `json:"created_at" validate:"omitempty,datetime=2006-01-02"`
	InvoiceRegistered  *bool  `json:"invoice_registered"`
	WithholdingEnabled *bool  `json:"withholding_enabled"`
	OverrideRate       string `json:"override_rate" validate:"omitempty,numeric"`
}

func toCoachDTO(c generic.Coach, loc *time.Location) CoachDTO {
	dto := CoachDTO{
		ID:                 string(c.ID),
		FullName:           c.FullName,
		Email:              c.Email,
		InvoiceRegistered:  c.InvoiceRegistered,
		WithholdingEnabled: c.WithholdingEnabled,
		OverrideRate:       c.OverrideRate,
	}
	if !c.CreatedAt.IsZero() {
		dto.CreatedAt = c.CreatedAt.In(loc).Format(dateLayout)
	}
	return dto
}

// =============================================================================
// HISTORY
// =============================================================================

// DetailDTO is one lesson line.
type DetailDTO struct {
	LessonID    string        `json:"lesson_id"`
	Date        string        `json:"date"`
	Title       string        `json:"title"`
	StudentName string        `json:"student_name"`
	IsTrial     bool          `json:"is_trial"`
	Price       generic.Money `json:"price"`
	Reward      generic.Money `json:"reward"`
}

// MonthlyStatsDTO is one month of a coach's history.
type MonthlyStatsDTO struct {
	Month          string        `json:"month"`
	Label          string        `json:"label"`
	Rate           string        `json:"rate"`
	RateOverridden bool          `json:"rate_overridden"`
	TotalSales     generic.Money `json:"total_sales"`
	TotalReward    generic.Money `json:"total_reward"`
	LessonCount    int           `json:"lesson_count"`
	Details        []DetailDTO   `json:"details,omitempty"`
}

// HistoryDTO is the response of the history endpoint, most recent first.
type HistoryDTO struct {
	CoachID        string            `json:"coach_id"`
	ReferenceMonth string            `json:"reference_month"`
	Months         []MonthlyStatsDTO `json:"months"`
}

func toMonthlyStatsDTO(m rewards.MonthlyStats, loc *time.Location, withDetails bool) MonthlyStatsDTO {
	dto := MonthlyStatsDTO{
		Month:          string(m.MonthKey),
		Label:          m.Label,
		Rate:           m.Rate.String(),
		RateOverridden: m.RateOverridden,
		TotalSales:     m.TotalSales,
		TotalReward:    m.TotalReward,
		LessonCount:    m.LessonCount,
	}
	if withDetails {
		dto.Details = make([]DetailDTO, len(m.Details))
		for i, d := range m.Details {
			dto.Details[i] = DetailDTO{
				LessonID:    string(d.LessonID),
				Date:        d.Date.In(loc).Format(dateLayout),
				Title:       d.Title,
				StudentName: d.StudentName,
				IsTrial:     d.IsTrial,
				Price:       d.Price,
				Reward:      d.Reward,
			}
		}
	}
	return dto
}

// =============================================================================
// SETTLEMENT
// =============================================================================

// SettlementDTO is a settled month.
type SettlementDTO struct {
	MonthlyStatsDTO
	InvoiceRegistered  bool          `json:"invoice_registered"`
	WithholdingEnabled bool          `json:"withholding_enabled"`
	BaseAmount         generic.Money `json:"base_amount"`
	ConsumptionTax     generic.Money `json:"consumption_tax"`
	WithholdingTax     generic.Money `json:"withholding_tax"`
	SystemFee          generic.Money `json:"system_fee"`
	TransferFee        generic.Money `json:"transfer_fee"`
	FinalAmount        generic.Money `json:"final_amount"`
	PaymentDate        string        `json:"payment_date,omitempty"`
	ScheduleStatus     string        `json:"schedule_status"`
}

func toSettlementDTO(r rewards.SettlementRecord, loc *time.Location, withDetails bool) SettlementDTO {
	dto := SettlementDTO{
		MonthlyStatsDTO:    toMonthlyStatsDTO(r.MonthlyStats, loc, withDetails),
		InvoiceRegistered:  r.Tax.InvoiceRegistered,
		WithholdingEnabled: r.Tax.WithholdingEnabled,
		BaseAmount:         r.BaseAmount,
		ConsumptionTax:     r.ConsumptionTax,
		WithholdingTax:     r.WithholdingTax,
		SystemFee:          r.SystemFee,
		TransferFee:        r.TransferFee,
		FinalAmount:        r.FinalAmount,
		ScheduleStatus:     string(r.ScheduleStatus),
	}
	if !r.PaymentDate.IsZero() {
		dto.PaymentDate = r.PaymentDate.In(loc).Format(dateLayout)
	}
	return dto
}

// ReconciledDTO is the payment status of one month.
type ReconciledDTO struct {
	TotalReward   generic.Money `json:"total_reward"`
	PaidAmount    generic.Money `json:"paid_amount"`
	PendingAmount generic.Money `json:"pending_amount"`
	UnpaidAmount  generic.Money `json:"unpaid_amount"`
	Status        string        `json:"status"`
}

func toReconciledDTO(r rewards.ReconciledStatus) ReconciledDTO {
	return ReconciledDTO{
		TotalReward:   r.TotalReward,
		PaidAmount:    r.PaidAmount,
		PendingAmount: r.PendingAmount,
		UnpaidAmount:  r.UnpaidAmount,
		Status:        string(r.Status),
	}
}

// StatementMonthDTO is one month of a statement.
type StatementMonthDTO struct {
	Settlement SettlementDTO `json:"settlement"`
	Reconciled ReconciledDTO `json:"reconciled"`
	Payouts    []PayoutDTO   `json:"payouts"`
}

// StatementDTO is a coach's settled and reconciled history.
type StatementDTO struct {
	Coach  CoachDTO            `json:"coach"`
	AsOf   string              `json:"as_of"`
	Months []StatementMonthDTO `json:"months"`
}

func toStatementDTO(s payouts.CoachStatement, loc *time.Location) StatementDTO {
	dto := StatementDTO{
		Coach:  toCoachDTO(s.Coach, loc),
		AsOf:   s.AsOf.In(loc).Format(dateLayout),
		Months: make([]StatementMonthDTO, len(s.Months)),
	}
	for i, m := range s.Months {
		dto.Months[i] = StatementMonthDTO{
			Settlement: toSettlementDTO(m.Settlement, loc, false),
			Reconciled: toReconciledDTO(m.Reconciled),
			Payouts:    toPayoutDTOs(m.Payouts),
		}
	}
	return dto
}

// =============================================================================
// PAYOUTS
// =============================================================================

// PayoutDTO represents a payout transaction.
type PayoutDTO struct {
	ID             string        `json:"id"`
	CoachID        string        `json:"coach_id"`
	TargetMonth    string        `json:"target_month"`
	Amount         generic.Money `json:"amount"`
	Status         string        `json:"status"`
	PaidAt         *string       `json:"paid_at,omitempty"`
	Note           string        `json:"note,omitempty"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	CreatedBy      string        `json:"created_by,omitempty"`
	CreatedAt      string        `json:"created_at"`
	UpdatedAt      string        `json:"updated_at"`
}

func toPayoutDTO(p generic.PayoutTransaction) PayoutDTO {
	dto := PayoutDTO{
		ID:             string(p.ID),
		CoachID:        string(p.CoachID),
		TargetMonth:    string(p.TargetMonth),
		Amount:         p.Amount,
		Status:         string(p.Status),
		Note:           p.Note,
		IdempotencyKey: p.IdempotencyKey,
		CreatedBy:      p.CreatedBy,
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      p.UpdatedAt.Format(time.RFC3339),
	}
	if p.PaidAt != nil {
		dto.PaidAt = strPtr(p.PaidAt.Format(time.RFC3339))
	}
	return dto
}

func toPayoutDTOs(ps []generic.PayoutTransaction) []PayoutDTO {
	dtos := make([]PayoutDTO, len(ps))
	for i, p := range ps {
		dtos[i] = toPayoutDTO(p)
	}
	return dtos
}

// =============================================================================
// DASHBOARD AND SLIP
// =============================================================================

// DashboardRowDTO is one coach on the dashboard.
type DashboardRowDTO struct {
	Coach      CoachDTO      `json:"coach"`
	Settlement SettlementDTO `json:"settlement"`
	Reconciled ReconciledDTO `json:"reconciled"`
	Payouts    []PayoutDTO   `json:"payouts"`
}

// DashboardTotalsDTO sums the rows.
type DashboardTotalsDTO struct {
	TotalSales    generic.Money  `json:"total_sales"`
	TotalReward   generic.Money  `json:"total_reward"`
	FinalAmount   generic.Money  `json:"final_amount"`
	PaidAmount    generic.Money  `json:"paid_amount"`
	PendingAmount generic.Money  `json:"pending_amount"`
	UnpaidAmount  generic.Money  `json:"unpaid_amount"`
	ByStatus      map[string]int `json:"by_status"`
}

// DashboardDTO is the payout dashboard of one month.
type DashboardDTO struct {
	Month  string             `json:"month"`
	AsOf   string             `json:"as_of"`
	Rows   []DashboardRowDTO  `json:"rows"`
	Totals DashboardTotalsDTO `json:"totals"`
}

func toDashboardDTO(d payouts.Dashboard, loc *time.Location) DashboardDTO {
	dto := DashboardDTO{
		Month: string(d.Month),
		AsOf:  d.AsOf.In(loc).Format(dateLayout),
		Rows:  make([]DashboardRowDTO, len(d.Rows)),
		Totals: DashboardTotalsDTO{
			TotalSales:    d.Totals.TotalSales,
			TotalReward:   d.Totals.TotalReward,
			FinalAmount:   d.Totals.FinalAmount,
			PaidAmount:    d.Totals.PaidAmount,
			PendingAmount: d.Totals.PendingAmount,
			UnpaidAmount:  d.Totals.UnpaidAmount,
			ByStatus:      make(map[string]int, len(d.Totals.ByStatus)),
		},
	}
	for status, n := range d.Totals.ByStatus {
		dto.Totals.ByStatus[string(status)] = n
	}
	for i, row := range d.Rows {
		dto.Rows[i] = DashboardRowDTO{
			Coach:      toCoachDTO(row.Coach, loc),
			Settlement: toSettlementDTO(row.Settlement, loc, false),
			Reconciled: toReconciledDTO(row.Reconciled),
			Payouts:    toPayoutDTOs(row.Payouts),
		}
	}
	return dto
}

// SlipDTO is a settlement slip.
type SlipDTO struct {
	Coach      CoachDTO      `json:"coach"`
	IssuedAt   string        `json:"issued_at"`
	Settlement SettlementDTO `json:"settlement"`
	Payouts    []PayoutDTO   `json:"payouts"`
	Reconciled ReconciledDTO `json:"reconciled"`
}

func toSlipDTO(s payouts.Slip, loc *time.Location) SlipDTO {
	return SlipDTO{
		Coach:      toCoachDTO(s.Coach, loc),
		IssuedAt:   s.IssuedAt.In(loc).Format(dateLayout),
		Settlement: toSettlementDTO(s.Settlement, loc, true),
		Payouts:    toPayoutDTOs(s.Payouts),
		Reconciled: toReconciledDTO(s.Reconciled),
	}
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// WarmCacheResponse reports a cache warm-up run.
type WarmCacheResponse struct {
	Coaches int `json:"coaches"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string               `json:"error"`
	Details string               `json:"details,omitempty"`
	Fields  []generic.FieldError `json:"fields,omitempty"`
}
