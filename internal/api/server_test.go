package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/mtf-backend/internal/external"
	"github.com/kjannette/mtf-backend/internal/models"
	"github.com/kjannette/mtf-backend/internal/repository"
	"github.com/kjannette/mtf-backend/internal/service"
)

var clock = time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC)

type fakeMarket struct {
	prices map[string]float64
	err    error
}

func (m *fakeMarket) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", external.ErrPriceUnavailable, symbol)
	}
	return &models.Quote{Symbol: external.NormalizeSymbol(symbol), Price: p, Source: "fake", AsOf: clock}, nil
}

func (m *fakeMarket) History(ctx context.Context, symbol, period string) ([]models.PriceBar, error) {
	return []models.PriceBar{{Date: "2024-06-14", Open: 1, High: 2, Low: 1, Close: 2, Volume: 10}}, nil
}

func (m *fakeMarket) Search(ctx context.Context, query string) ([]models.SymbolMatch, error) {
	return []models.SymbolMatch{{Symbol: "INFY.NS", Name: "Infosys Limited"}}, nil
}

type testEnv struct {
	srv    *Server
	market *fakeMarket
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := repository.NewMemStore()
	market := &fakeMarket{prices: map[string]float64{"INFY": 540}}
	svc := service.New(store, service.Options{
		Defaults: models.RateConfig{InterestRatePerDay: 0.0005, PledgeCharges: 20, UnpledgeCharges: 20},
		Prices:   market,
		Log:      zerolog.Nop(),
		Now:      func() time.Time { return clock },
	})
	srv := NewServer(Config{
		Port:         0,
		Service:      svc,
		Market:       market,
		DB:           store,
		Tokens:       map[string]string{"alice-token": "alice", "bob-token": "bob"},
		DefaultOwner: "default",
		CORSOrigins:  []string{"https://app.example.com"},
		Log:          zerolog.Nop(),
	})
	return &testEnv{srv: srv, market: market, token: "alice-token"}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return e.doAs(t, e.token, method, path, body)
}

func (e *testEnv) doAs(t *testing.T, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func newTrade(scrip string, price float64, qty int) map[string]any {
	return map[string]any{
		"scripCode": scrip,
		"buyPrice":  price,
		"buyDate":   "2024-06-01",
		"qty":       qty,
		"source":    "Technical Analysis",
	}
}

func TestHealth_NoAuthRequired(t *testing.T) {
	e := newTestEnv(t)
	rr := e.doAs(t, "", http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	h := decode[healthResponse](t, rr)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "connected", h.Services.Database)
	assert.Equal(t, "enabled", h.Services.Market)
}

func TestCORS_AllowList(t *testing.T) {
	e := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rr := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rr, req)
	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr = httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestV1RequiresToken(t *testing.T) {
	e := newTestEnv(t)
	rr := e.doAs(t, "", http.MethodGet, "/v1/trades", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestTradeLifecycle(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(t, http.MethodPut, "/v1/budget", map[string]any{"totalBudget": 120000})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	b := decode[service.BudgetView](t, rr)
	assert.Equal(t, 7500.0, b.Ledger.FundPerTrade)

	rr = e.do(t, http.MethodPost, "/v1/trades", newTrade("infy", 500, 20))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[tradeJSON](t, rr)
	assert.Equal(t, "INFY", created.ScripCode)
	assert.Equal(t, "open", created.Status)
	assert.Equal(t, "2024-06-01", created.BuyDate)
	assert.Equal(t, "Technical Analysis", created.Source.String())
	assert.Equal(t, 30, created.SuggestedQty)

	rr = e.do(t, http.MethodPost, "/v1/trades/"+created.ID+"/margin", map[string]any{"amount": 1000})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 4000.0, decode[tradeJSON](t, rr).MTFFund)

	rr = e.do(t, http.MethodPost, "/v1/trades/"+created.ID+"/refresh-price", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	refreshed := decode[refreshResponse](t, rr)
	assert.Equal(t, 540.0, refreshed.Trade.CMP)
	assert.Empty(t, refreshed.Warning)

	rr = e.do(t, http.MethodPost, "/v1/trades/"+created.ID+"/close",
		map[string]any{"sellPrice": 550, "sellDate": "2024-06-11"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	closed := decode[tradeJSON](t, rr)
	assert.Equal(t, "closed", closed.Status)
	require.NotNil(t, closed.SellDate)
	assert.Equal(t, "2024-06-11", *closed.SellDate)

	rr = e.do(t, http.MethodPost, "/v1/trades/"+created.ID+"/margin", map[string]any{"amount": 100})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = e.do(t, http.MethodGet, "/v1/budget", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	b = decode[service.BudgetView](t, rr)
	assert.Equal(t, 0, b.Ledger.TradesMade)
	assert.InDelta(t, 90000+closed.NetProfitLoss, b.Ledger.AvailableBudget, 0.001)
}

func TestCreateTrade_Errors(t *testing.T) {
	e := newTestEnv(t)

	bad := newTrade("INFY", 500, 20)
	bad["buyDate"] = "15/06/2024"
	rr := e.do(t, http.MethodPost, "/v1/trades", bad)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "buyDate", decode[errorBody](t, rr).Field)

	bad = newTrade("INFY", 0, 20)
	rr = e.do(t, http.MethodPost, "/v1/trades", bad)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(t, http.MethodPost, "/v1/trades", map[string]any{"unknown": 1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(t, http.MethodPut, "/v1/budget", map[string]any{"totalBudget": 10000})
	require.Equal(t, http.StatusOK, rr.Code)
	rr = e.do(t, http.MethodPost, "/v1/trades", newTrade("TCS", 4000, 10))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "insufficient_budget", decode[errorBody](t, rr).Code)
}

func TestTradesAreScopedToOwner(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(t, http.MethodPost, "/v1/trades", newTrade("INFY", 500, 20))
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[tradeJSON](t, rr).ID

	rr = e.doAs(t, "bob-token", http.MethodGet, "/v1/trades/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = e.doAs(t, "bob-token", http.MethodGet, "/v1/trades", nil)
	assert.Empty(t, decode[[]tradeJSON](t, rr))
}

func TestListTrades_Filters(t *testing.T) {
	e := newTestEnv(t)
	for _, tr := range []map[string]any{newTrade("INFY", 500, 20), newTrade("TCS", 3000, 2)} {
		rr := e.do(t, http.MethodPost, "/v1/trades", tr)
		require.Equal(t, http.StatusCreated, rr.Code)
	}
	closed := newTrade("ITC", 400, 10)
	closed["sellPrice"] = 420
	closed["sellDate"] = "2024-06-10"
	rr := e.do(t, http.MethodPost, "/v1/trades", closed)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = e.do(t, http.MethodGet, "/v1/trades?status=open", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]tradeJSON](t, rr), 2)

	rr = e.do(t, http.MethodGet, "/v1/trades?scrip=tcs", nil)
	assert.Len(t, decode[[]tradeJSON](t, rr), 1)

	rr = e.do(t, http.MethodGet, "/v1/trades?from=2024-06-02", nil)
	assert.Empty(t, decode[[]tradeJSON](t, rr))

	rr = e.do(t, http.MethodGet, "/v1/trades?status=pending", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(t, http.MethodGet, "/v1/trades/export.csv?status=closed", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/csv")
	rows, err := csv.NewReader(rr.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ITC", rows[1][1])
}

func TestUpdateAndDeleteTrade(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(t, http.MethodPost, "/v1/trades", newTrade("INFY", 500, 20))
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[tradeJSON](t, rr).ID

	rr = e.do(t, http.MethodPatch, "/v1/trades/"+id, map[string]any{"qty": 30, "targetPrice": 600})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	up := decode[tradeJSON](t, rr)
	assert.Equal(t, 30, up.Qty)
	assert.Equal(t, 15000.0, up.Total)

	rr = e.do(t, http.MethodDelete, "/v1/trades/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = e.do(t, http.MethodDelete, "/v1/trades/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRefreshPrice_UnavailableIsWarning(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(t, http.MethodPost, "/v1/trades", newTrade("ZZZ", 100, 5))
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[tradeJSON](t, rr).ID

	rr = e.do(t, http.MethodPost, "/v1/trades/"+id+"/refresh-price", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	res := decode[refreshResponse](t, rr)
	assert.NotEmpty(t, res.Warning)
	assert.Equal(t, 100.0, res.Trade.CMP)

	rr = e.do(t, http.MethodPost, "/v1/trades/"+id+"/refresh-price", map[string]any{"cmp": 110})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 110.0, decode[refreshResponse](t, rr).Trade.CMP)
}

func TestPreview(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(t, http.MethodPost, "/v1/trades/preview", map[string]any{"buyPrice": 500, "qty": 20, "buyDate": "2024-06-05"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var m map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m))
	assert.Equal(t, 10000.0, m["total"])
	assert.Equal(t, 10.0, m["daysHeld"])
}

func TestSettings(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(t, http.MethodGet, "/v1/settings", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0.0005, decode[models.RateConfig](t, rr).InterestRatePerDay)

	rr = e.do(t, http.MethodPut, "/v1/settings", map[string]any{"interestRatePerDay": 2})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(t, http.MethodPut, "/v1/settings", map[string]any{
		"interestRatePerDay": 0.0004, "brokerageRate": 0.0003, "pledgeCharges": 15, "unpledgeCharges": 15,
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 15.0, decode[models.RateConfig](t, rr).PledgeCharges)
}

func TestReports(t *testing.T) {
	e := newTestEnv(t)
	closed := newTrade("INFY", 500, 20)
	closed["sellPrice"] = 550
	closed["sellDate"] = "2024-06-11"
	rr := e.do(t, http.MethodPost, "/v1/trades", closed)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = e.do(t, http.MethodGet, "/v1/reports/periods", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]map[string]any](t, rr), 9)

	for _, kind := range []string{"summary", "pnl", "interest", "tax"} {
		rr = e.do(t, http.MethodGet, "/v1/reports/"+kind+"?period=current_month", nil)
		require.Equal(t, http.StatusOK, rr.Code, kind)
		rep := decode[map[string]any](t, rr)
		assert.Equal(t, kind, rep["kind"])
		assert.Equal(t, 1.0, rep["tradeCount"])
	}

	rr = e.do(t, http.MethodGet, "/v1/reports/pnl?period=fortnight", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = e.do(t, http.MethodGet, "/v1/reports/forecast", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMarketRoutes(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(t, http.MethodGet, "/v1/market/price/INFY", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	q := decode[models.Quote](t, rr)
	assert.Equal(t, "INFY.NS", q.Symbol)
	assert.Equal(t, 540.0, q.Price)

	rr = e.do(t, http.MethodGet, "/v1/market/price/NOPE", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, 60, decode[errorBody](t, rr).RetryAfter)

	e.market.err = fmt.Errorf("%w: %w", external.ErrPriceUnavailable, external.ErrRateLimited)
	rr = e.do(t, http.MethodGet, "/v1/market/price/INFY", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	e.market.err = nil

	rr = e.do(t, http.MethodGet, "/v1/market/search/inf", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]models.SymbolMatch](t, rr), 1)

	rr = e.do(t, http.MethodGet, "/v1/market/history/INFY?period=3mo", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = e.do(t, http.MethodGet, "/v1/market/history/INFY?period=7w", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
