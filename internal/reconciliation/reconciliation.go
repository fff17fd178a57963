// Package reconciliation computes a session's expected cash and variance for
// X (read-only) and Z (closing) reports.
package reconciliation

import (
	"time"

	"posterminal/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Classification: "normal" | "warning" | "critical"
type Classification string

const (
	Normal   Classification = "normal"
	Warning  Classification = "warning"
	Critical Classification = "critical"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
	five    = decimal.NewFromInt(5)
)

// Inputs are the figures entered by the cashier at close.
type Inputs struct {
	ActualBalance    decimal.Decimal
	CommercialIncome decimal.Decimal
	Payouts          decimal.Decimal
}

// Result: positive variance is an overage, negative a shortage.
type Result struct {
	ExpectedBalance decimal.Decimal
	Variance        decimal.Decimal
	VariancePercent decimal.Decimal
	Classification  Classification
}

// ExpectedBalance = opening + cash sales + commercial income - payouts.
func ExpectedBalance(opening, cashSales, commercialIncome, payouts decimal.Decimal) decimal.Decimal {
	return opening.Add(cashSales).Add(commercialIncome).Sub(payouts)
}

// Compute derives expected balance, variance and variance percent.
// A zero expected balance yields a zero percent regardless of the actual count.
func Compute(opening, cashSales decimal.Decimal, in Inputs) Result {
	expected := ExpectedBalance(opening, cashSales, in.CommercialIncome, in.Payouts)
	variance := in.ActualBalance.Sub(expected)
	pct := decimal.Zero
	if !expected.IsZero() {
		pct = variance.Div(expected).Mul(hundred).Round(2)
	}
	return Result{
		ExpectedBalance: expected,
		Variance:        variance,
		VariancePercent: pct,
		Classification:  Classify(pct),
	}
}

// Classify: normal |pct| <= 1, warning <= 5, critical > 5.
func Classify(pct decimal.Decimal) Classification {
	abs := pct.Abs()
	switch {
	case abs.LessThanOrEqual(one):
		return Normal
	case abs.LessThanOrEqual(five):
		return Warning
	default:
		return Critical
	}
}

// XReport is a non-destructive snapshot of an open session.
type XReport struct {
	SessionID        uuid.UUID
	SessionNumber    string
	LocationID       int
	OpeningBalance   decimal.Decimal
	CashSales        decimal.Decimal
	ExpectedCash     decimal.Decimal
	PaymentBreakdown map[model.PaymentMethod]decimal.Decimal
	Stats            model.ReportStats
	OpenedAt         time.Time
	GeneratedAt      time.Time
}

// BuildXReport projects (session, summary). Expected cash assumes no
// commercial income or payouts yet; those are only entered at close.
func BuildXReport(s *model.Session, summary *model.ReportSummary, now time.Time) XReport {
	breakdown := make(map[model.PaymentMethod]decimal.Decimal, len(summary.PaymentBreakdown))
	for k, v := range summary.PaymentBreakdown {
		breakdown[k] = v
	}
	return XReport{
		SessionID:        s.ID,
		SessionNumber:    s.SessionNumber,
		LocationID:       s.LocationID,
		OpeningBalance:   s.OpeningBalance,
		CashSales:        summary.CashSales,
		ExpectedCash:     ExpectedBalance(s.OpeningBalance, summary.CashSales, decimal.Zero, decimal.Zero),
		PaymentBreakdown: breakdown,
		Stats:            summary.Stats,
		OpenedAt:         s.OpenedAt,
		GeneratedAt:      now,
	}
}

// ToZReport copies a closed session record into its archived form. The
// closing figures are taken verbatim from the store's record; only figures the
// store omitted are filled from the local computation.
func ToZReport(closed *model.Session, cashSales decimal.Decimal, in Inputs, local Result) model.ZReport {
	z := model.ZReport{
		SessionID:        closed.ID,
		SessionNumber:    closed.SessionNumber,
		LocationID:       closed.LocationID,
		OpeningBalance:   closed.OpeningBalance,
		CashSales:        cashSales,
		CommercialIncome: valueOr(closed.CommercialIncome, in.CommercialIncome),
		Payouts:          valueOr(closed.Payouts, in.Payouts),
		ExpectedBalance:  valueOr(closed.ExpectedBalance, local.ExpectedBalance),
		ActualBalance:    valueOr(closed.ActualBalance, in.ActualBalance),
		Variance:         valueOr(closed.Variance, local.Variance),
		VariancePercent:  valueOr(closed.VariancePercent, local.VariancePercent),
		ClosingNotes:     closed.ClosingNotes,
		ForceClosed:      closed.ForceClosed,
		OpenedAt:         closed.OpenedAt,
	}
	z.Classification = string(Classify(z.VariancePercent))
	if closed.ClosedAt != nil {
		z.ClosedAt = *closed.ClosedAt
	}
	return z
}

func valueOr(p *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if p != nil {
		return *p
	}
	return fallback
}
