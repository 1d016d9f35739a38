package model

import "github.com/shopspring/decimal"

// ReportLine is one position valued at the current market price.
// LookupErr carries a failed price lookup for that symbol; the rest of
// the report is still produced.
type ReportLine struct {
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	Quantity     decimal.Decimal `json:"quantity"`
	AvgCost      decimal.Decimal `json:"avg_cost"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	MarketValue  decimal.Decimal `json:"market_value"`
	UnrealizedPL decimal.Decimal `json:"unrealized_pl_percent"`
	Allocation   decimal.Decimal `json:"allocation_percent"`
	LookupErr    string          `json:"lookup_error,omitempty"`
}

// Benchmark is the daily change of a reference symbol (e.g. SPY),
// best-effort.
type Benchmark struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	ChangePercent decimal.Decimal `json:"change_percent"`
}

type PortfolioReport struct {
	PortfolioID string          `json:"portfolio_id"`
	Lines       []ReportLine    `json:"lines"`
	TotalValue  decimal.Decimal `json:"total_value"`
	Benchmark   *Benchmark      `json:"benchmark,omitempty"`
}
