package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

type fakePrices struct {
	prices map[string]string
	prev   map[string]string
}

func (f fakePrices) CurrentPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	p, ok := f.prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("no quote for %s", symbol)
	}
	return d(p), nil
}

func (f fakePrices) DailyChange(_ context.Context, symbol string) (decimal.Decimal, decimal.Decimal, error) {
	p, ok := f.prices[symbol]
	if !ok {
		return decimal.Zero, decimal.Zero, fmt.Errorf("no quote for %s", symbol)
	}
	prev, ok := f.prev[symbol]
	if !ok {
		return d(p), decimal.Zero, nil
	}
	change := d(p).Sub(d(prev)).Div(d(prev)).Mul(decimal.NewFromInt(100)).RoundBank(2)
	return d(p), change, nil
}

func TestReport(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	mustBuy(t, e, "p1", "AAPL", "10", "100") // worth 1500 at 150
	mustBuy(t, e, "p1", "MSFT", "5", "200")  // worth 500 at 100

	prices := fakePrices{
		prices: map[string]string{"AAPL": "150", "MSFT": "100", "SPY": "402"},
		prev:   map[string]string{"SPY": "400"},
	}

	report, err := e.Report(ctx, "p1", "SPY", prices)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !report.TotalValue.Equal(d("2000")) {
		t.Fatalf("total = %s, want 2000", report.TotalValue)
	}
	if len(report.Lines) != 2 {
		t.Fatalf("lines = %+v", report.Lines)
	}

	aapl, msft := report.Lines[0], report.Lines[1]
	if !aapl.UnrealizedPL.Equal(d("50")) || !aapl.Allocation.Equal(d("75")) {
		t.Fatalf("AAPL pl=%s alloc=%s", aapl.UnrealizedPL, aapl.Allocation)
	}
	if !msft.UnrealizedPL.Equal(d("-50")) || !msft.Allocation.Equal(d("25")) {
		t.Fatalf("MSFT pl=%s alloc=%s", msft.UnrealizedPL, msft.Allocation)
	}

	if report.Benchmark == nil || !report.Benchmark.ChangePercent.Equal(d("0.5")) {
		t.Fatalf("benchmark = %+v", report.Benchmark)
	}
}

func TestReportLookupErrorIsPerSymbol(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	mustBuy(t, e, "p1", "AAPL", "10", "100")
	mustBuy(t, e, "p1", "MSFT", "5", "200")

	prices := fakePrices{prices: map[string]string{"AAPL": "150"}}
	report, err := e.Report(ctx, "p1", "", prices)
	if err != nil {
		t.Fatalf("one failed lookup must not fail the report: %v", err)
	}

	if !report.TotalValue.Equal(d("1500")) {
		t.Fatalf("total = %s, want 1500 (failed symbol excluded)", report.TotalValue)
	}
	aapl, msft := report.Lines[0], report.Lines[1]
	if aapl.LookupErr != "" || !aapl.Allocation.Equal(d("100")) {
		t.Fatalf("AAPL line = %+v", aapl)
	}
	if msft.LookupErr == "" || !msft.Allocation.IsZero() {
		t.Fatalf("MSFT line = %+v", msft)
	}
	if report.Benchmark != nil {
		t.Fatalf("no benchmark requested, got %+v", report.Benchmark)
	}
}

func TestReportEmptyPortfolio(t *testing.T) {
	e := newTestEngine()
	_, err := e.Report(context.Background(), "ghost", "", fakePrices{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
