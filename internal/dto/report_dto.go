package dto

import "github.com/shopspring/decimal"

type ReportStatsResponse struct {
	OrderCount    int             `json:"order_count"`
	ItemsSold     int             `json:"items_sold"`
	VoidedCount   int             `json:"voided_count"`
	AverageTicket decimal.Decimal `json:"average_ticket"`
}

// SessionReportResponse is GET /sessions/:id/report.
type SessionReportResponse struct {
	CashSales        decimal.Decimal            `json:"cash_sales"`
	PaymentBreakdown map[string]decimal.Decimal `json:"payment_breakdown"`
	Stats            ReportStatsResponse        `json:"stats"`
}
