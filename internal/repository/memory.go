package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/kjannette/mtf-backend/internal/models"
)

// MemStore keeps everything in process memory. Each owner has its own lock;
// a transaction works on a copy that replaces the owner's state only when
// the callback succeeds.
type MemStore struct {
	mu     sync.Mutex
	owners map[string]*ownerState
}

type ownerState struct {
	mu   sync.Mutex
	data ownerData
}

type ownerData struct {
	settings *models.RateConfig
	ledger   *models.BudgetLedger
	trades   map[string]models.Trade
}

func (d ownerData) clone() ownerData {
	c := ownerData{trades: make(map[string]models.Trade, len(d.trades))}
	if d.settings != nil {
		s := *d.settings
		c.settings = &s
	}
	c.ledger = d.ledger.Clone()
	for id, t := range d.trades {
		c.trades[id] = t.Clone()
	}
	return c
}

func NewMemStore() *MemStore {
	return &MemStore{owners: map[string]*ownerState{}}
}

func (s *MemStore) state(ownerID string) *ownerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.owners[ownerID]
	if !ok {
		st = &ownerState{data: ownerData{trades: map[string]models.Trade{}}}
		s.owners[ownerID] = st
	}
	return st
}

func (s *MemStore) InTx(ctx context.Context, ownerID string, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	st := s.state(ownerID)
	st.mu.Lock()
	defer st.mu.Unlock()

	tx := &memTx{owner: ownerID, data: st.data.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	st.data = tx.data
	return nil
}

func (s *MemStore) Owners(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	states := make(map[string]*ownerState, len(s.owners))
	for id, st := range s.owners {
		states[id] = st
	}
	s.mu.Unlock()

	var owners []string
	for id, st := range states {
		st.mu.Lock()
		for _, t := range st.data.trades {
			if !t.IsClosed() {
				owners = append(owners, id)
				break
			}
		}
		st.mu.Unlock()
	}
	sort.Strings(owners)
	return owners, nil
}

func (s *MemStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemStore) Close() {}

type memTx struct {
	owner string
	data  ownerData
}

func (t *memTx) GetSettings(ctx context.Context) (*models.RateConfig, error) {
	if t.data.settings == nil {
		return nil, nil
	}
	s := *t.data.settings
	return &s, nil
}

func (t *memTx) SaveSettings(ctx context.Context, s *models.RateConfig) error {
	c := *s
	c.OwnerID = t.owner
	t.data.settings = &c
	return nil
}

func (t *memTx) GetLedger(ctx context.Context) (*models.BudgetLedger, error) {
	return t.data.ledger.Clone(), nil
}

func (t *memTx) SaveLedger(ctx context.Context, l *models.BudgetLedger) error {
	current := int64(0)
	if t.data.ledger != nil {
		current = t.data.ledger.Version
	}
	if l.Version != current {
		return ErrVersionConflict
	}
	l.Version++
	c := l.Clone()
	c.OwnerID = t.owner
	t.data.ledger = c
	return nil
}

func (t *memTx) GetTrade(ctx context.Context, id string) (*models.Trade, error) {
	tr, ok := t.data.trades[id]
	if !ok {
		return nil, nil
	}
	c := tr.Clone()
	return &c, nil
}

func (t *memTx) ListTrades(ctx context.Context, f TradeFilter) ([]models.Trade, error) {
	out := []models.Trade{}
	for _, tr := range t.data.trades {
		if f.matches(&tr) {
			out = append(out, tr.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.BuyDate.Equal(b.BuyDate) {
			return a.BuyDate.Before(b.BuyDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (t *memTx) InsertTrade(ctx context.Context, tr *models.Trade) error {
	c := tr.Clone()
	c.OwnerID = t.owner
	t.data.trades[tr.ID] = c
	return nil
}

func (t *memTx) UpdateTrade(ctx context.Context, tr *models.Trade) error {
	if _, ok := t.data.trades[tr.ID]; !ok {
		return ErrTradeNotFound
	}
	return t.InsertTrade(ctx, tr)
}

func (t *memTx) DeleteTrade(ctx context.Context, id string) (bool, error) {
	if _, ok := t.data.trades[id]; !ok {
		return false, nil
	}
	delete(t.data.trades, id)
	return true, nil
}
