package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kjannette/mtf-backend/internal/external"
)

func invalidSymbolRune(r rune) bool {
	return !(r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '.' || r == '-' || r == '&')
}

// validSymbol accepts NSE/BSE tickers such as M&M.NS or BAJAJ-AUTO.
func validSymbol(s string) bool {
	return s != "" && len(s) <= 32 && strings.IndexFunc(s, invalidSymbolRune) < 0
}

func (s *Server) marketEnabled(w http.ResponseWriter) bool {
	if s.market == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "market data is disabled", Code: "price_unavailable"})
		return false
	}
	return true
}

func (s *Server) handleMarketPrice(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if !validSymbol(symbol) {
		writeError(w, http.StatusBadRequest, "invalid symbol")
		return
	}
	if !s.marketEnabled(w) {
		return
	}
	q, err := s.market.Quote(r.Context(), symbol)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleMarketSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(chi.URLParam(r, "query"))
	if query == "" || len(query) > 64 {
		writeError(w, http.StatusBadRequest, "invalid search query")
		return
	}
	if !s.marketEnabled(w) {
		return
	}
	matches, err := s.market.Search(r.Context(), query)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleMarketHistory(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if !validSymbol(symbol) {
		writeError(w, http.StatusBadRequest, "invalid symbol")
		return
	}
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "1mo"
	}
	if !external.HistoryPeriods[period] {
		writeError(w, http.StatusBadRequest, "invalid period, expected one of 1d,5d,1mo,3mo,6mo,1y,2y,5y,10y,ytd,max")
		return
	}
	if !s.marketEnabled(w) {
		return
	}
	bars, err := s.market.History(r.Context(), symbol, period)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": external.NormalizeSymbol(symbol),
		"period": period,
		"data":   bars,
	})
}
