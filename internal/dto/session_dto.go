package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Terminal input ──────────────────────────────────────────────────────────
// Balances arrive as typed text from the till and are parsed by the service.

type OpenSessionRequest struct {
	LocationID     int     `validate:"required,min=1"`
	OpeningBalance string  `validate:"required,money"`
	Notes          *string `validate:"omitempty,max=500"`
}

type CloseSessionRequest struct {
	ActualBalance    string `validate:"required,money"`
	CommercialIncome string `validate:"omitempty,money"`
	Payouts          string `validate:"omitempty,money"`
	ClosingNotes     string `validate:"max=500"`
}

type ForceCloseRequest struct {
	ActualBalance string `validate:"required,money"`
	ClosingNotes  string `validate:"trimmed_min=10,max=500"`
}

// ─── Backend wire format ─────────────────────────────────────────────────────

type OpenSessionBody struct {
	LocationID     int             `json:"location_id"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Notes          *string         `json:"notes,omitempty"`
}

type CloseSessionBody struct {
	ActualBalance    decimal.Decimal `json:"actual_balance"`
	CommercialIncome decimal.Decimal `json:"commercial_income"`
	Payouts          decimal.Decimal `json:"payouts"`
	ClosingNotes     *string         `json:"closing_notes,omitempty"`
}

type ForceCloseBody struct {
	ActualBalance decimal.Decimal `json:"actual_balance"`
	ClosingNotes  string          `json:"closing_notes"`
}

type SessionResponse struct {
	ID               string           `json:"id"`
	SessionNumber    string           `json:"session_number"`
	LocationID       int              `json:"location_id"`
	Status           string           `json:"status"` // open | closed
	OpeningBalance   decimal.Decimal  `json:"opening_balance"`
	ActualBalance    *decimal.Decimal `json:"actual_balance"`
	ExpectedBalance  *decimal.Decimal `json:"expected_balance"`
	Variance         *decimal.Decimal `json:"variance"`
	VariancePercent  *decimal.Decimal `json:"variance_percent"`
	CommercialIncome *decimal.Decimal `json:"commercial_income"`
	Payouts          *decimal.Decimal `json:"payouts"`
	Notes            *string          `json:"notes"`
	ClosingNotes     *string          `json:"closing_notes"`
	ForceClosed      bool             `json:"force_closed"`
	OpenedAt         time.Time        `json:"opened_at"`
	ClosedAt         *time.Time       `json:"closed_at"`
}

// SessionSummaryResponse is GET /sessions/last-closed.
type SessionSummaryResponse struct {
	ID              string           `json:"id"`
	SessionNumber   string           `json:"session_number"`
	LocationID      int              `json:"location_id"`
	ActualBalance   *decimal.Decimal `json:"actual_balance"`
	ExpectedBalance *decimal.Decimal `json:"expected_balance"`
	Variance        *decimal.Decimal `json:"variance"`
	OpenedAt        time.Time        `json:"opened_at"`
	ClosedAt        *time.Time       `json:"closed_at"`
}

// ─── Errors ──────────────────────────────────────────────────────────────────

// ErrorBody is the backend's 4xx envelope.
type ErrorBody struct {
	Code             string            `json:"code"`
	Detail           string            `json:"detail"`
	Fields           map[string]string `json:"fields"`
	PendingCount     int               `json:"pending_count"`
	SampleOrderCodes []string          `json:"sample_order_codes"`
}
