package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionStatus: "open" | "closed"
type SessionStatus string

const (
	SessionOpen   SessionStatus = "open"
	SessionClosed SessionStatus = "closed"
)

// Session represents the lifecycle of a cash drawer session.
// Sessions are never deleted: closing is terminal and the closed record is the Z-report.
type Session struct {
	ID             uuid.UUID
	SessionNumber  string
	LocationID     int
	Status         SessionStatus
	OpeningBalance decimal.Decimal
	Notes          *string
	// Closing fields are set only by close / force-close.
	ActualBalance    *decimal.Decimal
	ExpectedBalance  *decimal.Decimal
	Variance         *decimal.Decimal
	VariancePercent  *decimal.Decimal
	CommercialIncome *decimal.Decimal
	Payouts          *decimal.Decimal
	ClosingNotes     *string
	ForceClosed      bool
	OpenedAt         time.Time
	ClosedAt         *time.Time
}

func (s *Session) IsOpen() bool { return s != nil && s.Status == SessionOpen }

// SessionSummary is the last closed session kept for display on an idle terminal.
type SessionSummary struct {
	ID              uuid.UUID        `json:"id"`
	SessionNumber   string           `json:"session_number"`
	LocationID      int              `json:"location_id"`
	ActualBalance   *decimal.Decimal `json:"actual_balance"`
	ExpectedBalance *decimal.Decimal `json:"expected_balance"`
	Variance        *decimal.Decimal `json:"variance"`
	OpenedAt        time.Time        `json:"opened_at"`
	ClosedAt        *time.Time       `json:"closed_at"`
}

// ZReport is the archived, immutable copy of a closed session returned by the store.
// Rows are inserted once and never updated.
type ZReport struct {
	SessionID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SessionNumber    string          `gorm:"not null"`
	LocationID       int             `gorm:"not null;index"`
	OpeningBalance   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CashSales        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CommercialIncome decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Payouts          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ExpectedBalance  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ActualBalance    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Variance         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	VariancePercent  decimal.Decimal `gorm:"type:decimal(7,2);not null"`
	// Classification: "normal" | "warning" | "critical"
	Classification string `gorm:"type:varchar(20);not null"`
	ClosingNotes   *string
	ForceClosed    bool `gorm:"not null;default:false"`
	OpenedAt       time.Time
	ClosedAt       time.Time `gorm:"index"`
	CreatedAt      time.Time
}

func (ZReport) TableName() string { return "z_reports" }
