// Package payment holds the payment-method rules, change calculation and
// payment record construction. Everything here is pure.
package payment

import (
	"fmt"
	"strings"
	"time"

	"posterminal/internal/apierror"
	"posterminal/internal/model"

	"github.com/shopspring/decimal"
)

// Selection is the method currently chosen at the till plus whether the
// customer is a walk-in. The zero value is not usable; call NewSelection.
type Selection struct {
	method model.PaymentMethod
	walkIn bool
}

// NewSelection starts with cash for a walk-in customer.
func NewSelection() Selection {
	return Selection{method: model.MethodCash, walkIn: true}
}

func (s Selection) Method() model.PaymentMethod { return s.method }
func (s Selection) WalkIn() bool                { return s.walkIn }

// SetCustomer switches between walk-in and a named customer. Selecting a
// walk-in while "account" is chosen resets the method to cash.
func (s *Selection) SetCustomer(walkIn bool) {
	s.walkIn = walkIn
	if walkIn && s.method == model.MethodAccount {
		s.method = model.MethodCash
	}
}

// SetMethod rejects unknown methods and "account" for walk-in customers.
func (s *Selection) SetMethod(m model.PaymentMethod) error {
	if !m.Valid() {
		return apierror.Invalid("payment_method", "unknown method "+string(m))
	}
	if m == model.MethodAccount && s.walkIn {
		return apierror.Invalid("payment_method", "account requires a named customer")
	}
	s.method = m
	return nil
}

// AvailableMethods lists what the till may offer for the current customer.
func (s Selection) AvailableMethods() []model.PaymentMethod {
	out := make([]model.PaymentMethod, 0, len(model.PaymentMethods))
	for _, m := range model.PaymentMethods {
		if m == model.MethodAccount && s.walkIn {
			continue
		}
		out = append(out, m)
	}
	return out
}

// ChangeAmount is meaningful for cash only. Negative means short.
func ChangeAmount(tendered, total decimal.Decimal) decimal.Decimal {
	return tendered.Sub(total)
}

func IsSufficient(method model.PaymentMethod, change decimal.Decimal) bool {
	return method != model.MethodCash || !change.IsNegative()
}

// Validate checks a proposed payment before anything is submitted.
func Validate(method model.PaymentMethod, tendered, total decimal.Decimal) error {
	if !method.Valid() {
		return apierror.Invalid("payment_method", "unknown method "+string(method))
	}
	if total.IsNegative() {
		return apierror.Invalid("total", "min=0")
	}
	if method == model.MethodCash && tendered.IsNegative() {
		return apierror.Invalid("tendered_amount", "min=0")
	}
	if !IsSufficient(method, ChangeAmount(tendered, total)) {
		return fmt.Errorf("%w: tendered %s, total %s", apierror.ErrInsufficientPayment, tendered.StringFixed(2), total.StringFixed(2))
	}
	return nil
}

// BuildRecords builds the records for one submission. Cash records carry the
// tendered amount so drawer reconciliation sees the physical currency moved;
// other methods record the order total with a synthesized reference when the
// caller supplied none.
func BuildRecords(method model.PaymentMethod, tendered, total decimal.Decimal, reference string, now time.Time) []model.PaymentRecord {
	if method == model.MethodCash {
		rec := model.PaymentRecord{Method: method, Amount: tendered}
		if ref := strings.TrimSpace(reference); ref != "" {
			rec.ReferenceNumber = &ref
		}
		return []model.PaymentRecord{rec}
	}
	ref := strings.TrimSpace(reference)
	if ref == "" {
		ref = SynthesizeReference(method, now)
	}
	return []model.PaymentRecord{{Method: method, Amount: total, ReferenceNumber: &ref}}
}

// SynthesizeReference formats METHOD-yyyymmddHHMMSS.
func SynthesizeReference(method model.PaymentMethod, now time.Time) string {
	return strings.ToUpper(string(method)) + "-" + now.Format("20060102150405")
}
