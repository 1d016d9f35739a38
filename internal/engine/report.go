package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/portfolio-hub/invest-tracker/internal/model"
	"github.com/portfolio-hub/invest-tracker/internal/money"
)

// PriceSource is the narrow slice of the market data client the
// report needs. A lookup failure is a per-symbol condition, never
// fatal to the whole report.
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	DailyChange(ctx context.Context, symbol string) (price, changePercent decimal.Decimal, err error)
}

// Report values every position of the portfolio at current market
// prices and derives P/L and allocation percentages. Reads are
// point-in-time per position; no cross-symbol atomicity is promised.
func (e *Engine) Report(ctx context.Context, portfolioID, benchmark string, prices PriceSource) (model.PortfolioReport, error) {
	if portfolioID == "" {
		return model.PortfolioReport{}, fmt.Errorf("%w: empty portfolio id", ErrValidation)
	}

	positions, err := e.Positions(ctx, portfolioID)
	if err != nil {
		return model.PortfolioReport{}, err
	}
	if len(positions) == 0 {
		return model.PortfolioReport{}, fmt.Errorf("%w: portfolio %s has no positions", ErrNotFound, portfolioID)
	}

	report := model.PortfolioReport{
		PortfolioID: portfolioID,
		Lines:       make([]model.ReportLine, 0, len(positions)),
	}

	total := decimal.Zero
	for _, pos := range positions {
		line := model.ReportLine{
			Symbol:   pos.Symbol,
			Name:     pos.Name,
			Quantity: pos.Quantity,
			AvgCost:  pos.AvgCost,
		}

		price, err := prices.CurrentPrice(ctx, pos.Symbol)
		if err != nil {
			e.logger.Warnf("%s: can't get current price for %s", err, pos.Symbol)
			line.LookupErr = err.Error()
			report.Lines = append(report.Lines, line)
			continue
		}

		line.CurrentPrice = money.QuantizePrice(price)
		line.MarketValue = money.MarketValue(pos.Quantity, line.CurrentPrice)
		line.UnrealizedPL = money.PLPercent(line.CurrentPrice, pos.AvgCost)
		total = total.Add(line.MarketValue)
		report.Lines = append(report.Lines, line)
	}

	for i := range report.Lines {
		if report.Lines[i].LookupErr == "" {
			report.Lines[i].Allocation = money.AllocationPercent(report.Lines[i].MarketValue, total)
		}
	}
	report.TotalValue = total

	if benchmark != "" {
		price, change, err := prices.DailyChange(ctx, benchmark)
		if err != nil {
			e.logger.Warnf("%s: can't get benchmark change for %s", err, benchmark)
		} else {
			report.Benchmark = &model.Benchmark{
				Symbol:        model.CanonicalSymbol(benchmark),
				Price:         money.QuantizePrice(price),
				ChangePercent: change.RoundBank(money.PricePrecision),
			}
		}
	}

	return report, nil
}

// Replay runs a symbol's ledger through the buy/sell rules and
// returns the position it produces, or removed=true when the history
// nets to zero. The stored position must always match the replay.
func Replay(entries []model.LedgerEntry) (pos model.Position, held bool, err error) {
	for _, entry := range entries {
		switch entry.Side {
		case model.Buy:
			if !held {
				pos = model.Position{
					PortfolioID: entry.PortfolioID,
					Symbol:      entry.Symbol,
					Quantity:    entry.Quantity,
					AvgCost:     entry.Price,
				}
				held = true
				continue
			}
			pos.AvgCost = money.WeightedAverage(pos.AvgCost, pos.Quantity, entry.Price, entry.Quantity)
			pos.Quantity = pos.Quantity.Add(entry.Quantity)
		case model.Sell:
			if !held || entry.Quantity.GreaterThan(pos.Quantity) {
				return model.Position{}, false, fmt.Errorf("ledger entry %d oversells %s", entry.ID, entry.Symbol)
			}
			pos.Quantity = pos.Quantity.Sub(entry.Quantity)
			if pos.Quantity.IsZero() {
				pos = model.Position{}
				held = false
			}
		default:
			return model.Position{}, false, fmt.Errorf("ledger entry %d has unknown side %q", entry.ID, entry.Side)
		}
	}
	return pos, held, nil
}
