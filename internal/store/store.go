// Package store holds the two persistence surfaces of the tracker:
// the append-only trade ledger and the derived positions table. The
// engine is the only writer of either.
package store

import (
	"context"
	"errors"

	"github.com/portfolio-hub/invest-tracker/internal/model"
)

var (
	// ErrDuplicateRequest means an entry with the same
	// (portfolio_id, request_id) was already appended.
	ErrDuplicateRequest = errors.New("duplicate request id")
)

// Ledger is the append-only trade log. There is deliberately no update
// or delete on this interface.
type Ledger interface {
	// Append assigns id and, when the draft's Ts is zero, the
	// timestamp, then persists the entry. Timestamps are
	// non-decreasing within a portfolio.
	Append(ctx context.Context, draft model.LedgerEntryDraft) (model.LedgerEntry, error)
	// ListBySymbol returns entries in (ts, id) ascending order.
	ListBySymbol(ctx context.Context, portfolioID, symbol string) ([]model.LedgerEntry, error)
	ListByPortfolio(ctx context.Context, portfolioID string) ([]model.LedgerEntry, error)
}

// Positions is the materialized holdings view. Put and Delete are
// engine-internal; zero-quantity rows are never stored.
type Positions interface {
	Get(ctx context.Context, portfolioID, symbol string) (model.Position, bool, error)
	ListByPortfolio(ctx context.Context, portfolioID string) ([]model.Position, error)
	Put(ctx context.Context, p model.Position) error
	Delete(ctx context.Context, portfolioID, symbol string) error
}

// Store bundles both surfaces with a transaction scope. Writes issued
// through the Store passed to WithinTx commit together or not at all;
// nothing is visible to readers until commit.
type Store interface {
	Ledger() Ledger
	Positions() Positions
	WithinTx(ctx context.Context, fn func(s Store) error) error
}
