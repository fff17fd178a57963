package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is a closed set; Valid rejects anything else.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodCard         PaymentMethod = "card"
	MethodAccount      PaymentMethod = "account" // on credit, named customers only
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCheque       PaymentMethod = "cheque"
)

var PaymentMethods = []PaymentMethod{MethodCash, MethodCard, MethodAccount, MethodBankTransfer, MethodCheque}

func (m PaymentMethod) Valid() bool {
	for _, pm := range PaymentMethods {
		if m == pm {
			return true
		}
	}
	return false
}

// PaymentRecord is created once per completed payment submission and never modified.
type PaymentRecord struct {
	Method          PaymentMethod
	Amount          decimal.Decimal
	ReferenceNumber *string
}

// Receipt is the store's answer to a payment submission.
type Receipt struct {
	OrderID   uuid.UUID
	OrderCode string
	SessionID uuid.UUID
	Payments  []PaymentRecord
	Total     decimal.Decimal
	Change    decimal.Decimal
}
