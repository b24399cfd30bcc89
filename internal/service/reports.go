package service

import (
	"context"
	"time"

	"github.com/kjannette/mtf-backend/internal/models"
	"github.com/kjannette/mtf-backend/internal/reports"
	"github.com/kjannette/mtf-backend/internal/repository"
)

// Report is one aggregated view over the trades bought in a period. The
// summary always spans every trade, so it carries no date range.
type Report struct {
	Kind        reports.Kind   `json:"kind"`
	Period      reports.Period `json:"period"`
	StartDate   string         `json:"startDate,omitempty"`
	EndDate     string         `json:"endDate,omitempty"`
	TradeCount  int            `json:"tradeCount"`
	GeneratedAt time.Time      `json:"generatedAt"`
	Data        any            `json:"data"`
}

// Periods lists the named reporting periods resolved against today.
func (s *Service) Periods() []reports.PeriodInfo {
	return reports.Catalog(s.today())
}

// Report builds kind over trades whose buy date falls in period. An empty
// period means all time. The summary ignores period and covers every trade.
func (s *Service) Report(ctx context.Context, owner string, kind reports.Kind, period reports.Period) (*Report, error) {
	if _, err := reports.ParseKind(string(kind)); err != nil {
		return nil, err
	}

	out := &Report{Kind: kind, GeneratedAt: s.now()}
	var filter repository.TradeFilter

	if kind == reports.KindSummary {
		out.Period = reports.AllTime
	} else {
		if period == "" {
			period = reports.AllTime
		}
		r, err := reports.Resolve(period, s.today())
		if err != nil {
			return nil, err
		}
		from, to := r.Start, r.End
		filter = repository.TradeFilter{From: &from, To: &to}
		out.Period = period
		out.StartDate = r.Start.Format(models.DateLayout)
		out.EndDate = r.End.Format(models.DateLayout)
	}

	trades, err := s.List(ctx, owner, filter)
	if err != nil {
		return nil, err
	}
	out.TradeCount = len(trades)

	switch kind {
	case reports.KindSummary:
		out.Data = reports.Summary(trades)
	case reports.KindPnL:
		out.Data = reports.PnL(trades)
	case reports.KindInterest:
		out.Data = reports.Interest(trades)
	case reports.KindTax:
		out.Data = reports.Tax(trades)
	}
	return out, nil
}
