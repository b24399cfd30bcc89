// Package external talks to market data providers.
package external

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kjannette/mtf-backend/internal/httputil"
	"github.com/kjannette/mtf-backend/internal/models"
)

var (
	// ErrPriceUnavailable means no source produced a price. Callers keep
	// their last known price.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrRateLimited is joined into the error when a source answered 429.
	ErrRateLimited = errors.New("rate limited by upstream")
)

const searchLimit = 10

type PriceSource interface {
	Name() string
	Quote(ctx context.Context, symbol string) (*models.Quote, error)
}

type HistorySource interface {
	History(ctx context.Context, symbol, period string) ([]models.PriceBar, error)
}

type SymbolLookup interface {
	Lookup(ctx context.Context, query string, limit int) ([]string, error)
}

// QuoteStore persists fetched quotes and warms the cache on startup.
type QuoteStore interface {
	Record(ctx context.Context, q *models.Quote) error
	LatestSince(ctx context.Context, since time.Time) ([]models.Quote, error)
}

type MarketOptions struct {
	CacheTTL    time.Duration
	MinInterval time.Duration
	History     HistorySource
	Lookup      SymbolLookup
	Store       QuoteStore
}

// Market tries each price source in order, caches successful quotes and
// keeps a minimum spacing between upstream calls.
type Market struct {
	sources []PriceSource
	opts    MarketOptions
	log     zerolog.Logger
	now     func() time.Time

	mu    sync.Mutex
	cache map[string]models.Quote

	throttleMu sync.Mutex
	lastCall   time.Time
}

func NewMarket(sources []PriceSource, opts MarketOptions, log zerolog.Logger) *Market {
	return &Market{
		sources: sources,
		opts:    opts,
		log:     log.With().Str("component", "market").Logger(),
		now:     time.Now,
		cache:   map[string]models.Quote{},
	}
}

// Enabled reports whether any price source is configured.
func (m *Market) Enabled() bool { return len(m.sources) > 0 }

func (m *Market) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrPriceUnavailable)
	}

	if q, ok := m.cached(symbol); ok {
		return q, nil
	}

	var errs []error
	rateLimited := false
	for _, src := range m.sources {
		if err := m.throttle(ctx); err != nil {
			return nil, err
		}
		q, err := src.Quote(ctx, symbol)
		if err == nil && q != nil && q.Price > 0 {
			m.store(ctx, q)
			m.log.Debug().Str("symbol", symbol).Str("source", src.Name()).Float64("price", q.Price).Msg("Quote fetched")
			out := *q
			return &out, nil
		}
		if err == nil {
			err = errors.New("empty quote")
		}
		var se *httputil.StatusError
		if errors.As(err, &se) && se.RateLimited() {
			rateLimited = true
		}
		m.log.Warn().Err(err).Str("symbol", symbol).Str("source", src.Name()).Msg("Price source failed")
		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
	}

	if rateLimited {
		errs = append(errs, ErrRateLimited)
	}
	if len(errs) == 0 {
		errs = append(errs, errors.New("no price sources configured"))
	}
	return nil, fmt.Errorf("%w for %s: %w", ErrPriceUnavailable, symbol, errors.Join(errs...))
}

func (m *Market) cached(symbol string) (*models.Quote, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.cache[symbol]
	if !ok || m.now().Sub(q.AsOf) >= m.opts.CacheTTL {
		return nil, false
	}
	return &q, true
}

func (m *Market) store(ctx context.Context, q *models.Quote) {
	m.SeedCache(q)
	if m.opts.Store == nil {
		return
	}
	if err := m.opts.Store.Record(ctx, q); err != nil {
		m.log.Warn().Err(err).Str("symbol", q.Symbol).Msg("Failed to persist quote")
	}
}

// SeedCache puts q in the cache as if it had just been fetched at q.AsOf.
func (m *Market) SeedCache(q *models.Quote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[q.Symbol] = *q
}

// WarmCache loads still-fresh persisted quotes into the cache.
func (m *Market) WarmCache(ctx context.Context) (int, error) {
	if m.opts.Store == nil {
		return 0, nil
	}
	quotes, err := m.opts.Store.LatestSince(ctx, m.now().Add(-m.opts.CacheTTL))
	if err != nil {
		return 0, fmt.Errorf("warm quote cache: %w", err)
	}
	for i := range quotes {
		m.SeedCache(&quotes[i])
	}
	return len(quotes), nil
}

func (m *Market) throttle(ctx context.Context) error {
	m.throttleMu.Lock()
	defer m.throttleMu.Unlock()

	if wait := m.opts.MinInterval - m.now().Sub(m.lastCall); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	m.lastCall = m.now()
	return nil
}

// History returns daily bars, defaulting to one month.
func (m *Market) History(ctx context.Context, symbol, period string) ([]models.PriceBar, error) {
	if period == "" {
		period = "1mo"
	}
	if m.opts.History == nil {
		return nil, fmt.Errorf("%w: history source disabled", ErrPriceUnavailable)
	}
	if !HistoryPeriods[period] {
		return nil, fmt.Errorf("unsupported period %q", period)
	}
	if err := m.throttle(ctx); err != nil {
		return nil, err
	}
	bars, err := m.opts.History.History(ctx, NormalizeSymbol(symbol), period)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPriceUnavailable, err)
	}
	return bars, nil
}

// Search matches the built-in symbol list first and falls back to an
// upstream lookup.
func (m *Market) Search(ctx context.Context, query string) ([]models.SymbolMatch, error) {
	out := []models.SymbolMatch{}
	for _, sym := range matchCommon(query) {
		out = append(out, models.SymbolMatch{Symbol: sym + SuffixNSE, Name: commonSymbols[sym]})
		if len(out) == searchLimit {
			return out, nil
		}
	}
	if len(out) > 0 || m.opts.Lookup == nil {
		return out, nil
	}

	if err := m.throttle(ctx); err != nil {
		return nil, err
	}
	symbols, err := m.opts.Lookup.Lookup(ctx, query, searchLimit)
	if err != nil {
		m.log.Debug().Err(err).Str("query", query).Msg("Symbol lookup found nothing")
		return out, nil
	}
	for _, sym := range symbols {
		out = append(out, models.SymbolMatch{Symbol: sym, Name: BaseSymbol(sym)})
	}
	return out, nil
}
