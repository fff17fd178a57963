package dto

import "github.com/shopspring/decimal"

// ─── Terminal input ──────────────────────────────────────────────────────────

type CheckoutRequest struct {
	TenderedAmount  string `validate:"omitempty,money"` // cash only
	ReferenceNumber string `validate:"max=64"`
	PrintReceipt    bool
}

// ─── Backend wire format ─────────────────────────────────────────────────────

type OrderItemBody struct {
	ProductID      string          `json:"product_id"`
	Name           string          `json:"name"`
	SKU            string          `json:"sku"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Quantity       int             `json:"quantity"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	IsCustom       bool            `json:"is_custom"`
}

type OrderBody struct {
	SessionID  string          `json:"session_id"`
	LocationID int             `json:"location_id"`
	Items      []OrderItemBody `json:"items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	Discount   decimal.Decimal `json:"discount"`
	Total      decimal.Decimal `json:"total"`
}

type OrderResponse struct {
	ID        string `json:"id"`
	OrderCode string `json:"order_code"`
}

type PaymentBody struct {
	Method          string          `json:"payment_method"`
	Amount          decimal.Decimal `json:"amount"`
	ReferenceNumber *string         `json:"reference_number,omitempty"`
}

type SubmitPaymentBody struct {
	SessionID    string        `json:"session_id"`
	Payments     []PaymentBody `json:"payments"`
	PrintReceipt bool          `json:"print_receipt"`
}

type ReceiptResponse struct {
	OrderID   string          `json:"order_id"`
	OrderCode string          `json:"order_code"`
	SessionID string          `json:"session_id"`
	Payments  []PaymentBody   `json:"payments"`
	Total     decimal.Decimal `json:"total"`
	Change    decimal.Decimal `json:"change"`
}

type ProductResponse struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	SKU             string          `json:"sku"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	DefaultQuantity int             `json:"default_quantity"`
}
