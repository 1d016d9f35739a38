package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/portfolio-hub/invest-tracker/internal/model"
)

const _pqUniqueViolation = "23505"

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx so the same
// store code runs inside and outside a transaction.
type queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type PGStore struct {
	db *sqlx.DB
	q  queryer
}

func NewPGStore(db *sqlx.DB) *PGStore {
	return &PGStore{db: db, q: db}
}

func (s *PGStore) Ledger() Ledger       { return (*pgLedger)(s) }
func (s *PGStore) Positions() Positions { return (*pgPositions)(s) }

func (s *PGStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	if _, inTx := s.q.(*sqlx.Tx); inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: can't begin tx", err)
	}

	if err := fn(&PGStore{db: s.db, q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w: can't rollback tx", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: can't commit tx", err)
	}
	return nil
}

type pgLedger PGStore

const (
	_appendLedger = `INSERT INTO ledger (portfolio_id, request_id, symbol, side, quantity, price, ts)
						VALUES ($1,$2,$3,$4,$5,$6,$7)
						RETURNING id`
	_queryLedgerBySymbol    = "SELECT * FROM ledger WHERE portfolio_id = $1 AND symbol = $2 ORDER BY ts, id"
	_queryLedgerByPortfolio = "SELECT * FROM ledger WHERE portfolio_id = $1 ORDER BY ts, id"
)

func (l *pgLedger) Append(ctx context.Context, draft model.LedgerEntryDraft) (model.LedgerEntry, error) {
	entry := model.LedgerEntry{
		PortfolioID: draft.PortfolioID,
		RequestID:   draft.RequestID,
		Symbol:      draft.Symbol,
		Side:        draft.Side,
		Quantity:    draft.Quantity,
		Price:       draft.Price,
		Ts:          draft.Ts,
	}
	if entry.Ts.IsZero() {
		entry.Ts = time.Now().UTC()
	}

	if err := l.q.GetContext(ctx, &entry.ID, _appendLedger,
		entry.PortfolioID,
		entry.RequestID,
		entry.Symbol,
		entry.Side,
		entry.Quantity,
		entry.Price,
		entry.Ts,
	); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == _pqUniqueViolation {
			return model.LedgerEntry{}, fmt.Errorf("%w: %s/%s", ErrDuplicateRequest, entry.PortfolioID, entry.RequestID)
		}
		return model.LedgerEntry{}, fmt.Errorf("%w: can't append ledger entry", err)
	}

	return entry, nil
}

func (l *pgLedger) ListBySymbol(ctx context.Context, portfolioID, symbol string) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	if err := l.q.SelectContext(ctx, &entries, _queryLedgerBySymbol, portfolioID, symbol); err != nil {
		return nil, fmt.Errorf("%w: can't query ledger by symbol", err)
	}
	return entries, nil
}

func (l *pgLedger) ListByPortfolio(ctx context.Context, portfolioID string) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	if err := l.q.SelectContext(ctx, &entries, _queryLedgerByPortfolio, portfolioID); err != nil {
		return nil, fmt.Errorf("%w: can't query ledger by portfolio", err)
	}
	return entries, nil
}

type pgPositions PGStore

const (
	_queryPosition           = "SELECT * FROM positions WHERE portfolio_id = $1 AND symbol = $2"
	_queryPositionsPortfolio = "SELECT * FROM positions WHERE portfolio_id = $1 ORDER BY symbol"
	_upsertPosition          = `INSERT INTO positions (portfolio_id, symbol, name, quantity, avg_cost)
									VALUES ($1,$2,$3,$4,$5)
									ON CONFLICT (portfolio_id, symbol)
									DO UPDATE SET
										name = EXCLUDED.name,
										quantity = EXCLUDED.quantity,
										avg_cost = EXCLUDED.avg_cost`
	_deletePosition = "DELETE FROM positions WHERE portfolio_id = $1 AND symbol = $2"
)

func (p *pgPositions) Get(ctx context.Context, portfolioID, symbol string) (model.Position, bool, error) {
	var pos model.Position
	if err := p.q.GetContext(ctx, &pos, _queryPosition, portfolioID, symbol); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Position{}, false, nil
		}
		return model.Position{}, false, fmt.Errorf("%w: can't query position", err)
	}
	return pos, true, nil
}

func (p *pgPositions) ListByPortfolio(ctx context.Context, portfolioID string) ([]model.Position, error) {
	var positions []model.Position
	if err := p.q.SelectContext(ctx, &positions, _queryPositionsPortfolio, portfolioID); err != nil {
		return nil, fmt.Errorf("%w: can't query positions", err)
	}
	return positions, nil
}

func (p *pgPositions) Put(ctx context.Context, pos model.Position) error {
	if _, err := p.q.ExecContext(ctx, _upsertPosition,
		pos.PortfolioID,
		pos.Symbol,
		pos.Name,
		pos.Quantity,
		pos.AvgCost,
	); err != nil {
		return fmt.Errorf("%w: can't upsert position", err)
	}
	return nil
}

func (p *pgPositions) Delete(ctx context.Context, portfolioID, symbol string) error {
	if _, err := p.q.ExecContext(ctx, _deletePosition, portfolioID, symbol); err != nil {
		return fmt.Errorf("%w: can't delete position", err)
	}
	return nil
}
