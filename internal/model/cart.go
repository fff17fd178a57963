package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemSource discriminates how a line entered the cart.
type ItemSource string

const (
	SourceCatalog ItemSource = "catalog" // quick-access item with its own default quantity
	SourceSearch  ItemSource = "search"
	SourceCustom  ItemSource = "custom" // manually entered; may share a placeholder product id
)

func (s ItemSource) Valid() bool {
	switch s {
	case SourceCatalog, SourceSearch, SourceCustom:
		return true
	}
	return false
}

// CartItem is one order line.
type CartItem struct {
	ProductID      uuid.UUID
	Name           string
	SKU            string
	UnitPrice      decimal.Decimal
	Quantity       int
	TaxRate        decimal.Decimal // percent, per line
	DiscountAmount decimal.Decimal
	Source         ItemSource
}

// Cart is owned by a single terminal flow and never shared across concurrent edits.
type Cart struct {
	Items []CartItem
	// EditingOrderID is set when the cart mirrors an already persisted order.
	EditingOrderID *uuid.UUID
}

// Totals is always re-derivable from the item list alone.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Product is a catalog entry as returned by a quick-item grid or a search.
type Product struct {
	ID              uuid.UUID
	Name            string
	SKU             string
	UnitPrice       decimal.Decimal
	TaxRate         decimal.Decimal
	DefaultQuantity int // quick-access items only; 0 means 1
}

// OrderRef identifies an order persisted by the order-items API.
type OrderRef struct {
	ID   uuid.UUID
	Code string
}
