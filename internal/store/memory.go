package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/portfolio-hub/invest-tracker/internal/model"
)

type posKey struct {
	portfolioID string
	symbol      string
}

type reqKey struct {
	portfolioID string
	requestID   string
}

type memState struct {
	nextID    int64
	entries   []model.LedgerEntry
	requests  map[reqKey]struct{}
	lastTs    map[string]time.Time
	positions map[posKey]model.Position
}

func (st *memState) clone() *memState {
	return &memState{
		nextID:    st.nextID,
		entries:   slices.Clone(st.entries),
		requests:  maps.Clone(st.requests),
		lastTs:    maps.Clone(st.lastTs),
		positions: maps.Clone(st.positions),
	}
}

// MemStore keeps both surfaces in process memory. It backs tests and
// single-user runs without postgres; the transactional contract is
// the same as the postgres store's (staged writes, swapped in on
// commit).
type MemStore struct {
	mu   sync.RWMutex
	st   *memState
	inTx bool
}

func NewMemStore() *MemStore {
	return &MemStore{
		st: &memState{
			nextID:    1,
			requests:  make(map[reqKey]struct{}),
			lastTs:    make(map[string]time.Time),
			positions: make(map[posKey]model.Position),
		},
	}
}

func (s *MemStore) Ledger() Ledger       { return (*memLedger)(s) }
func (s *MemStore) Positions() Positions { return (*memPositions)(s) }

func (s *MemStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := &MemStore{st: s.st.clone(), inTx: true}
	if err := fn(staged); err != nil {
		return err
	}

	s.st = staged.st
	return nil
}

func (s *MemStore) rlock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *MemStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type memLedger MemStore

func (l *memLedger) Append(ctx context.Context, draft model.LedgerEntryDraft) (model.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return model.LedgerEntry{}, err
	}
	defer (*MemStore)(l).lock()()

	st := l.st
	if draft.RequestID != "" {
		k := reqKey{draft.PortfolioID, draft.RequestID}
		if _, ok := st.requests[k]; ok {
			return model.LedgerEntry{}, fmt.Errorf("%w: %s/%s", ErrDuplicateRequest, draft.PortfolioID, draft.RequestID)
		}
		st.requests[k] = struct{}{}
	}

	entry := model.LedgerEntry{
		ID:          st.nextID,
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
	// keep timestamps non-decreasing within a portfolio
	if last := st.lastTs[entry.PortfolioID]; entry.Ts.Before(last) {
		entry.Ts = last
	}
	st.lastTs[entry.PortfolioID] = entry.Ts
	st.nextID++
	st.entries = append(st.entries, entry)

	return entry, nil
}

func (l *memLedger) ListBySymbol(ctx context.Context, portfolioID, symbol string) ([]model.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer (*MemStore)(l).rlock()()

	var entries []model.LedgerEntry
	for _, e := range l.st.entries {
		if e.PortfolioID == portfolioID && e.Symbol == symbol {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (l *memLedger) ListByPortfolio(ctx context.Context, portfolioID string) ([]model.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer (*MemStore)(l).rlock()()

	var entries []model.LedgerEntry
	for _, e := range l.st.entries {
		if e.PortfolioID == portfolioID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

type memPositions MemStore

func (p *memPositions) Get(ctx context.Context, portfolioID, symbol string) (model.Position, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Position{}, false, err
	}
	defer (*MemStore)(p).rlock()()

	pos, ok := p.st.positions[posKey{portfolioID, symbol}]
	return pos, ok, nil
}

func (p *memPositions) ListByPortfolio(ctx context.Context, portfolioID string) ([]model.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer (*MemStore)(p).rlock()()

	var positions []model.Position
	for k, pos := range p.st.positions {
		if k.portfolioID == portfolioID {
			positions = append(positions, pos)
		}
	}
	slices.SortFunc(positions, func(a, b model.Position) int {
		return strings.Compare(a.Symbol, b.Symbol)
	})
	return positions, nil
}

func (p *memPositions) Put(ctx context.Context, pos model.Position) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer (*MemStore)(p).lock()()

	p.st.positions[posKey{pos.PortfolioID, pos.Symbol}] = pos
	return nil
}

func (p *memPositions) Delete(ctx context.Context, portfolioID, symbol string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer (*MemStore)(p).lock()()

	delete(p.st.positions, posKey{portfolioID, symbol})
	return nil
}
