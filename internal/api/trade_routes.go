package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kjannette/mtf-backend/internal/calc"
	"github.com/kjannette/mtf-backend/internal/export"
	"github.com/kjannette/mtf-backend/internal/models"
	"github.com/kjannette/mtf-backend/internal/repository"
	"github.com/kjannette/mtf-backend/internal/service"
)

const defaultTradeLimit = 500

type tradeJSON struct {
	ID               string             `json:"id"`
	ScripCode        string             `json:"scripCode"`
	Status           string             `json:"status"`
	BuyPrice         float64            `json:"buyPrice"`
	BuyDate          string             `json:"buyDate"`
	Qty              int                `json:"qty"`
	TargetPrice      float64            `json:"targetPrice"`
	Source           models.TradeSource `json:"source"`
	AdditionalMargin float64            `json:"additionalMargin"`
	CMP              float64            `json:"cmp"`
	CMPUpdatedAt     *time.Time         `json:"cmpUpdatedAt,omitempty"`
	SellPrice        *float64           `json:"sellPrice,omitempty"`
	SellDate         *string            `json:"sellDate,omitempty"`
	Total            float64            `json:"total"`
	OwnFund          float64            `json:"ownFund"`
	MTFFund          float64            `json:"mtfFund"`
	SuggestedQty     int                `json:"suggestedQty"`
	DaysHeld         int                `json:"daysHeld"`
	InterestPaid     float64            `json:"interestPaid"`
	Turnover         float64            `json:"turnover"`
	TotalChargesPaid float64            `json:"totalChargesPaid"`
	NetProfitLoss    float64            `json:"netProfitLoss"`
	ROI              float64            `json:"roi"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

func toTradeJSON(t *models.Trade) tradeJSON {
	out := tradeJSON{
		ID:               t.ID,
		ScripCode:        t.ScripCode,
		Status:           t.Status(),
		BuyPrice:         t.BuyPrice,
		BuyDate:          t.BuyDate.Format(models.DateLayout),
		Qty:              t.Qty,
		TargetPrice:      t.TargetPrice,
		Source:           t.Source,
		AdditionalMargin: t.AdditionalMargin,
		CMP:              t.CMP,
		CMPUpdatedAt:     t.CMPUpdatedAt,
		SellPrice:        t.SellPrice,
		Total:            t.Total,
		OwnFund:          t.OwnFund,
		MTFFund:          t.MTFFund,
		SuggestedQty:     t.SuggestedQty,
		DaysHeld:         t.DaysHeld,
		InterestPaid:     t.InterestPaid,
		Turnover:         t.Turnover,
		TotalChargesPaid: t.TotalChargesPaid,
		NetProfitLoss:    t.NetProfitLoss,
		ROI:              t.ROI,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
	if t.SellDate != nil {
		d := t.SellDate.Format(models.DateLayout)
		out.SellDate = &d
	}
	return out
}

type tradeRequest struct {
	ScripCode        string             `json:"scripCode"`
	BuyPrice         float64            `json:"buyPrice"`
	BuyDate          string             `json:"buyDate"`
	Qty              int                `json:"qty"`
	TargetPrice      float64            `json:"targetPrice"`
	Source           models.TradeSource `json:"source"`
	AdditionalMargin float64            `json:"additionalMargin"`
	CMP              float64            `json:"cmp"`
	SellPrice        *float64           `json:"sellPrice"`
	SellDate         *string            `json:"sellDate"`
}

func (req tradeRequest) draft() (service.TradeDraft, error) {
	d := service.TradeDraft{
		ScripCode:        req.ScripCode,
		BuyPrice:         req.BuyPrice,
		Qty:              req.Qty,
		TargetPrice:      req.TargetPrice,
		Source:           req.Source,
		AdditionalMargin: req.AdditionalMargin,
		CMP:              req.CMP,
		SellPrice:        req.SellPrice,
	}
	buy, err := parseDateField("buyDate", &req.BuyDate)
	if err != nil {
		return d, err
	}
	if buy != nil {
		d.BuyDate = *buy
	}
	if d.SellDate, err = parseDateField("sellDate", req.SellDate); err != nil {
		return d, err
	}
	return d, nil
}

type patchRequest struct {
	ScripCode        *string             `json:"scripCode"`
	BuyPrice         *float64            `json:"buyPrice"`
	BuyDate          *string             `json:"buyDate"`
	Qty              *int                `json:"qty"`
	TargetPrice      *float64            `json:"targetPrice"`
	Source           *models.TradeSource `json:"source"`
	AdditionalMargin *float64            `json:"additionalMargin"`
	CMP              *float64            `json:"cmp"`
	SellPrice        *float64            `json:"sellPrice"`
	SellDate         *string             `json:"sellDate"`
}

func (req patchRequest) patch() (service.TradePatch, error) {
	p := service.TradePatch{
		ScripCode:        req.ScripCode,
		BuyPrice:         req.BuyPrice,
		Qty:              req.Qty,
		TargetPrice:      req.TargetPrice,
		Source:           req.Source,
		AdditionalMargin: req.AdditionalMargin,
		CMP:              req.CMP,
		SellPrice:        req.SellPrice,
	}
	var err error
	if p.BuyDate, err = parseDateField("buyDate", req.BuyDate); err != nil {
		return p, err
	}
	if p.SellDate, err = parseDateField("sellDate", req.SellDate); err != nil {
		return p, err
	}
	return p, nil
}

// parseTradeFilter reads ?status=open|closed|all&from=&to=&scrip=&limit=.
func parseTradeFilter(r *http.Request) (repository.TradeFilter, error) {
	q := r.URL.Query()
	f := repository.TradeFilter{
		Scrip: strings.ToUpper(strings.TrimSpace(q.Get("scrip"))),
		Limit: parseLimit(r, defaultTradeLimit),
	}
	switch v := q.Get("status"); v {
	case "", "all":
	case models.StatusOpen, models.StatusClosed:
		f.Status = v
	default:
		return f, &calc.ValidationError{Field: "status", Message: fmt.Sprintf("invalid status %q, expected open|closed|all", v)}
	}

	var err error
	from, to := q.Get("from"), q.Get("to")
	if f.From, err = parseDateField("from", &from); err != nil {
		return f, err
	}
	if f.To, err = parseDateField("to", &to); err != nil {
		return f, err
	}
	return f, nil
}

func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	f, err := parseTradeFilter(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	trades, err := s.svc.List(r.Context(), ownerFrom(r.Context()), f)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	out := make([]tradeJSON, len(trades))
	for i := range trades {
		out[i] = toTradeJSON(&trades[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleExportTrades(w http.ResponseWriter, r *http.Request) {
	f, err := parseTradeFilter(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if r.URL.Query().Get("limit") == "" {
		f.Limit = 0
	}
	trades, err := s.svc.List(r.Context(), ownerFrom(r.Context()), f)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="trades.csv"`)
	if err := export.WriteTrades(w, trades); err != nil {
		s.log.Error().Err(err).Msg("CSV export failed")
	}
}

func (s *Server) handleCreateTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	d, err := req.draft()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	t, err := s.svc.Create(r.Context(), ownerFrom(r.Context()), d)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTradeJSON(t))
}

func (s *Server) handlePreviewTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	d, err := req.draft()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	m, err := s.svc.Preview(r.Context(), ownerFrom(r.Context()), d)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleGetTrade(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.Get(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTradeJSON(t))
}

func (s *Server) handleUpdateTrade(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	p, err := req.patch()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	t, err := s.svc.Update(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id"), p)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTradeJSON(t))
}

func (s *Server) handleDeleteTrade(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type closeRequest struct {
	SellPrice float64 `json:"sellPrice"`
	SellDate  string  `json:"sellDate"`
}

func (s *Server) handleCloseTrade(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	sellDate, err := parseDateField("sellDate", &req.SellDate)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var when time.Time
	if sellDate != nil {
		when = *sellDate
	}
	t, err := s.svc.Close(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id"), req.SellPrice, when)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTradeJSON(t))
}

type marginRequest struct {
	Amount float64 `json:"amount"`
}

func (s *Server) handleTopUpMargin(w http.ResponseWriter, r *http.Request) {
	var req marginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	t, err := s.svc.TopUpMargin(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTradeJSON(t))
}

type refreshRequest struct {
	// CMP sets the price by hand instead of fetching it.
	CMP *float64 `json:"cmp"`
}

type refreshResponse struct {
	Trade   tradeJSON `json:"trade"`
	Warning string    `json:"warning,omitempty"`
}

func (s *Server) handleRefreshPrice(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	ctx := r.Context()
	owner, id := ownerFrom(ctx), chi.URLParam(r, "id")
	var (
		t       *models.Trade
		warning string
		err     error
	)
	if req.CMP != nil {
		t, err = s.svc.SetCMP(ctx, owner, id, *req.CMP)
	} else {
		t, warning, err = s.svc.RefreshCMP(ctx, owner, id)
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{Trade: toTradeJSON(t), Warning: warning})
}
