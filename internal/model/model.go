package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// CanonicalSymbol is applied on every entry point, tickers are never
// stored mixed-case.
func CanonicalSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// LedgerEntry is one executed trade. Entries are append-only and never
// mutated or deleted once written.
type LedgerEntry struct {
	ID          int64           `json:"id" db:"id"`
	PortfolioID string          `json:"portfolio_id" db:"portfolio_id"`
	RequestID   string          `json:"request_id" db:"request_id"`
	Symbol      string          `json:"symbol" db:"symbol"`
	Side        Side            `json:"side" db:"side"`
	Quantity    decimal.Decimal `json:"quantity" db:"quantity"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Ts          time.Time       `json:"ts" db:"ts"`
}

// LedgerEntryDraft is an entry before the store assigned its id and
// timestamp. Price is the execution price, not the post-trade average.
type LedgerEntryDraft struct {
	PortfolioID string
	RequestID   string
	Symbol      string
	Side        Side
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Ts          time.Time
}

// Position is the current holding for one symbol in one portfolio. It
// is derived state: replaying the symbol's ledger reproduces it.
type Position struct {
	PortfolioID string          `json:"portfolio_id" db:"portfolio_id"`
	Symbol      string          `json:"symbol" db:"symbol"`
	Name        string          `json:"name" db:"name"`
	Quantity    decimal.Decimal `json:"quantity" db:"quantity"`
	AvgCost     decimal.Decimal `json:"avg_cost" db:"avg_cost"`
}

// Instrument is a catalog entry for a known ticker. Market is empty
// for instruments that are not exchange tradable.
type Instrument struct {
	Symbol string `json:"symbol" yaml:"symbol"`
	Name   string `json:"name" yaml:"name"`
	Market string `json:"market" yaml:"market"`
}

func (i Instrument) Tradable() (string, bool) {
	return i.Market, i.Market != ""
}

// PricePoint is one close price observation from the market data
// source.
type PricePoint struct {
	Ts    time.Time       `json:"ts"`
	Price decimal.Decimal `json:"price"`
}
