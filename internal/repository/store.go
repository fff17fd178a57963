package repository

import (
	"context"

	"posterminal/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// The interfaces below are the contract with the external system of record.
// The core consumes them and never implements persistence for them.

// SessionStore is the cash drawer session collaborator.
type SessionStore interface {
	// GetOpenSession returns (nil, nil) when the location has no open session.
	GetOpenSession(ctx context.Context, locationID int) (*model.Session, error)
	// GetLastClosedSession returns (nil, nil) when nothing was ever closed.
	GetLastClosedSession(ctx context.Context, locationID int) (*model.SessionSummary, error)
	CreateSession(ctx context.Context, locationID int, openingBalance decimal.Decimal, notes *string) (*model.Session, error)
	// CloseSession may fail with a pending-orders or already-closed ConflictError.
	CloseSession(ctx context.Context, sessionID uuid.UUID, in CloseInput) (*model.Session, error)
	ForceCloseSession(ctx context.Context, sessionID uuid.UUID, actualBalance decimal.Decimal, notes string) (*model.Session, error)
}

type CloseInput struct {
	ActualBalance    decimal.Decimal
	CommercialIncome decimal.Decimal
	Payouts          decimal.Decimal
	Notes            *string
}

// ReportStore is the reporting collaborator (payment breakdown by session).
type ReportStore interface {
	GetSessionReport(ctx context.Context, sessionID uuid.UUID) (*model.ReportSummary, error)
}

// OrderDraft is the current cart persisted as an order. ID is set when an
// existing order is being edited.
type OrderDraft struct {
	ID         *uuid.UUID
	SessionID  uuid.UUID
	LocationID int
	Items      []model.CartItem
	Totals     model.Totals
}

// OrderStore is the order-items collaborator.
type OrderStore interface {
	SaveOrder(ctx context.Context, draft OrderDraft) (*model.OrderRef, error)
}

// PaymentGateway records completed payments against a session.
type PaymentGateway interface {
	SubmitPayment(ctx context.Context, orderID, sessionID uuid.UUID, payments []model.PaymentRecord, printReceipt bool) (*model.Receipt, error)
}

// CategoryStore is the category collaborator.
type CategoryStore interface {
	SearchCategories(ctx context.Context, query string) ([]model.Category, error)
	CreateCategory(ctx context.Context, name string, description *string) (*model.Category, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, name string, description *string) (*model.Category, error)
}

// ProductCatalog serves product lookups for the search box.
type ProductCatalog interface {
	SearchProducts(ctx context.Context, query string) ([]model.Product, error)
}
