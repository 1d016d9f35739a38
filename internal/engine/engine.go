// Package engine is the position and ledger core: it validates trade
// intents, appends them to the ledger and keeps the positions view
// consistent with it. Both writes of a trade happen in one store
// transaction, guarded by a per-(portfolio, symbol) lock, so readers
// never observe a ledger entry without its position update or the
// other way round.
package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/portfolio-hub/invest-tracker/internal/logger"
	"github.com/portfolio-hub/invest-tracker/internal/model"
	"github.com/portfolio-hub/invest-tracker/internal/money"
	"github.com/portfolio-hub/invest-tracker/internal/store"
)

type Engine struct {
	st      store.Store
	keys    *keyMutex
	catalog map[string]model.Instrument
	logger  logger.Logger
}

func NewEngine(st store.Store, catalog []model.Instrument, logger logger.Logger) *Engine {
	bySymbol := make(map[string]model.Instrument, len(catalog))
	for _, i := range catalog {
		i.Symbol = model.CanonicalSymbol(i.Symbol)
		bySymbol[i.Symbol] = i
	}

	return &Engine{
		st:      st,
		keys:    newKeyMutex(),
		catalog: bySymbol,
		logger:  logger,
	}
}

type BuyRequest struct {
	PortfolioID string
	Symbol      string
	Name        string
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	// RequestID deduplicates client retries; generated when empty, in
	// which case a retry is a new trade.
	RequestID string
}

type SellRequest struct {
	PortfolioID string
	Symbol      string
	// Quantity is ignored when All is set; All disposes exactly the
	// held quantity.
	Quantity  decimal.Decimal
	All       bool
	Price     decimal.Decimal
	RequestID string
}

// TradeResult pairs the ledger entry of an executed trade with the
// position it produced. Position is nil when the trade removed the
// position (a full sell).
type TradeResult struct {
	Position *model.Position   `json:"position,omitempty"`
	Removed  bool              `json:"removed"`
	Entry    model.LedgerEntry `json:"entry"`
}

func (e *Engine) Buy(ctx context.Context, req BuyRequest) (TradeResult, error) {
	symbol := model.CanonicalSymbol(req.Symbol)
	if err := e.validateTrade(req.PortfolioID, symbol, req.Price); err != nil {
		return TradeResult{}, err
	}
	if !req.Quantity.IsPositive() {
		return TradeResult{}, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}

	qty := money.QuantizeQuantity(req.Quantity)
	if !qty.IsPositive() {
		return TradeResult{}, fmt.Errorf("%w: quantity rounds to zero", ErrValidation)
	}
	price := money.QuantizePrice(req.Price)
	name := e.displayName(symbol, req.Name)
	requestID := orNewRequestID(req.RequestID)

	unlock := e.keys.lock(tradeKey{req.PortfolioID, symbol})
	defer unlock()

	var res TradeResult
	err := e.st.WithinTx(ctx, func(s store.Store) error {
		pos, ok, err := s.Positions().Get(ctx, req.PortfolioID, symbol)
		if err != nil {
			return err
		}

		if ok {
			pos.AvgCost = money.WeightedAverage(pos.AvgCost, pos.Quantity, price, qty)
			pos.Quantity = pos.Quantity.Add(qty)
			pos.Name = name
		} else {
			pos = model.Position{
				PortfolioID: req.PortfolioID,
				Symbol:      symbol,
				Name:        name,
				Quantity:    qty,
				AvgCost:     price,
			}
		}

		entry, err := s.Ledger().Append(ctx, model.LedgerEntryDraft{
			PortfolioID: req.PortfolioID,
			RequestID:   requestID,
			Symbol:      symbol,
			Side:        model.Buy,
			Quantity:    qty,
			Price:       price,
		})
		if err != nil {
			return err
		}

		if err := s.Positions().Put(ctx, pos); err != nil {
			return err
		}

		res = TradeResult{Position: &pos, Entry: entry}
		return nil
	})
	if err != nil {
		return TradeResult{}, wrapStorage(err)
	}

	e.logger.Infof("buy %s %s x %s @ %s", req.PortfolioID, symbol, qty, price)
	return res, nil
}

func (e *Engine) Sell(ctx context.Context, req SellRequest) (TradeResult, error) {
	symbol := model.CanonicalSymbol(req.Symbol)
	if err := e.validateTrade(req.PortfolioID, symbol, req.Price); err != nil {
		return TradeResult{}, err
	}
	if !req.All && !req.Quantity.IsPositive() {
		return TradeResult{}, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}

	price := money.QuantizePrice(req.Price)
	requestID := orNewRequestID(req.RequestID)

	unlock := e.keys.lock(tradeKey{req.PortfolioID, symbol})
	defer unlock()

	var res TradeResult
	err := e.st.WithinTx(ctx, func(s store.Store) error {
		pos, ok, err := s.Positions().Get(ctx, req.PortfolioID, symbol)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, req.PortfolioID, symbol)
		}

		disposed := pos.Quantity
		if !req.All {
			disposed = money.QuantizeQuantity(req.Quantity)
			if !disposed.IsPositive() {
				return fmt.Errorf("%w: quantity rounds to zero", ErrValidation)
			}
			if disposed.GreaterThan(pos.Quantity) {
				return fmt.Errorf("%w: have %s, requested %s", ErrInsufficientQuantity, pos.Quantity, disposed)
			}
		}

		// the ledger records the actual disposed quantity, always
		// equal to the position's delta
		entry, err := s.Ledger().Append(ctx, model.LedgerEntryDraft{
			PortfolioID: req.PortfolioID,
			RequestID:   requestID,
			Symbol:      symbol,
			Side:        model.Sell,
			Quantity:    disposed,
			Price:       price,
		})
		if err != nil {
			return err
		}

		pos.Quantity = pos.Quantity.Sub(disposed)
		if pos.Quantity.IsZero() {
			if err := s.Positions().Delete(ctx, req.PortfolioID, symbol); err != nil {
				return err
			}
			res = TradeResult{Removed: true, Entry: entry}
			return nil
		}

		// selling never moves the average cost of remaining shares
		if err := s.Positions().Put(ctx, pos); err != nil {
			return err
		}
		res = TradeResult{Position: &pos, Entry: entry}
		return nil
	})
	if err != nil {
		return TradeResult{}, wrapStorage(err)
	}

	e.logger.Infof("sell %s %s x %s @ %s", req.PortfolioID, symbol, res.Entry.Quantity, price)
	return res, nil
}

// Positions lists the current holdings of a portfolio.
func (e *Engine) Positions(ctx context.Context, portfolioID string) ([]model.Position, error) {
	positions, err := e.st.Positions().ListByPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, wrapStorage(err)
	}
	return positions, nil
}

// Ledger lists a portfolio's trade history, oldest first. When symbol
// is non-empty the listing is restricted to it.
func (e *Engine) Ledger(ctx context.Context, portfolioID, symbol string) ([]model.LedgerEntry, error) {
	var (
		entries []model.LedgerEntry
		err     error
	)
	if symbol != "" {
		entries, err = e.st.Ledger().ListBySymbol(ctx, portfolioID, model.CanonicalSymbol(symbol))
	} else {
		entries, err = e.st.Ledger().ListByPortfolio(ctx, portfolioID)
	}
	if err != nil {
		return nil, wrapStorage(err)
	}
	return entries, nil
}

func (e *Engine) validateTrade(portfolioID, symbol string, price decimal.Decimal) error {
	if portfolioID == "" {
		return fmt.Errorf("%w: empty portfolio id", ErrValidation)
	}
	if symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrValidation)
	}
	if price.IsNegative() {
		return fmt.Errorf("%w: negative price", ErrValidation)
	}
	return nil
}

func (e *Engine) displayName(symbol, name string) string {
	if name != "" {
		return name
	}
	if i, ok := e.catalog[symbol]; ok {
		return i.Name
	}
	return symbol
}

// Instruments returns the configured instrument catalog.
func (e *Engine) Instruments() []model.Instrument {
	out := make([]model.Instrument, 0, len(e.catalog))
	for _, i := range e.catalog {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b model.Instrument) int {
		return strings.Compare(a.Symbol, b.Symbol)
	})
	return out
}

func orNewRequestID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
