package model

import "github.com/shopspring/decimal"

// ReportSummary is the reporting collaborator's view of a session.
// CashSales is the cash portion of completed sales.
type ReportSummary struct {
	CashSales        decimal.Decimal
	PaymentBreakdown map[PaymentMethod]decimal.Decimal
	Stats            ReportStats
}

type ReportStats struct {
	OrderCount    int
	ItemsSold     int
	VoidedCount   int
	AverageTicket decimal.Decimal
}
