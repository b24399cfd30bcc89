// Package reports aggregates stored trades into the Summary, P&L, Interest
// and Tax views. Aggregations over empty input return zeroed reports.
package reports

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/kjannette/mtf-backend/internal/calc"
	"github.com/kjannette/mtf-backend/internal/models"
)

const (
	// ProfitFactorNoLoss stands in for an infinite profit factor.
	ProfitFactorNoLoss = 999

	// LTCGThresholdDays is the longest holding still taxed as short term.
	LTCGThresholdDays = 365
	STCGRate          = 0.15
	LTCGRate          = 0.10
	// LTCGExemption is the yearly long-term gain that is not taxed.
	LTCGExemption = 100000
)

// Kind names one of the four report views.
type Kind string

const (
	KindSummary  Kind = "summary"
	KindPnL      Kind = "pnl"
	KindInterest Kind = "interest"
	KindTax      Kind = "tax"
)

// ParseKind returns a *calc.ValidationError for an unknown report name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindSummary, KindPnL, KindInterest, KindTax:
		return k, nil
	}
	return "", &calc.ValidationError{Field: "kind", Message: fmt.Sprintf("unknown report %q", s)}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

func closedOnly(trades []models.Trade) []models.Trade {
	var out []models.Trade
	for _, t := range trades {
		if t.IsClosed() {
			out = append(out, t)
		}
	}
	return out
}

// --- P&L ---

// PnLReport aggregates realized results. GrossLoss, LargestLoss and AvgLoss
// are positive magnitudes.
type PnLReport struct {
	TotalTrades      int     `json:"totalTrades"`
	ProfitableTrades int     `json:"profitableTrades"`
	LosingTrades     int     `json:"losingTrades"`
	GrossProfit      float64 `json:"grossProfit"`
	GrossLoss        float64 `json:"grossLoss"`
	NetPL            float64 `json:"netPL"`
	WinRate          float64 `json:"winRate"`
	ProfitFactor     float64 `json:"profitFactor"`
	ROI              float64 `json:"roi"`
	LargestWin       float64 `json:"largestWin"`
	LargestLoss      float64 `json:"largestLoss"`
	AvgWin           float64 `json:"avgWin"`
	AvgLoss          float64 `json:"avgLoss"`
}

// PnL covers closed trades only.
func PnL(trades []models.Trade) PnLReport {
	var r PnLReport
	var ownFund float64
	var wins, losses []float64

	for _, t := range closedOnly(trades) {
		r.TotalTrades++
		ownFund += t.OwnFund
		pl := t.NetProfitLoss
		switch {
		case pl > 0:
			r.ProfitableTrades++
			r.GrossProfit += pl
			r.LargestWin = math.Max(r.LargestWin, pl)
			wins = append(wins, pl)
		case pl < 0:
			r.LosingTrades++
			r.GrossLoss += -pl
			r.LargestLoss = math.Max(r.LargestLoss, -pl)
			losses = append(losses, -pl)
		}
	}

	r.NetPL = r.GrossProfit - r.GrossLoss
	if r.TotalTrades > 0 {
		r.WinRate = float64(r.ProfitableTrades) / float64(r.TotalTrades) * 100
	}
	switch {
	case r.GrossLoss > 0:
		r.ProfitFactor = r.GrossProfit / r.GrossLoss
	case r.GrossProfit > 0:
		r.ProfitFactor = ProfitFactorNoLoss
	}
	if ownFund > 0 {
		r.ROI = r.NetPL / ownFund * 100
	}
	r.AvgWin = mean(wins)
	r.AvgLoss = mean(losses)
	return r
}

// --- Interest ---

// InterestLine is one interest-bearing trade.
type InterestLine struct {
	ID           string  `json:"id"`
	ScripCode    string  `json:"scripCode"`
	BuyDate      string  `json:"buyDate"`
	MTFFund      float64 `json:"mtfFund"`
	DaysHeld     int     `json:"daysHeld"`
	InterestPaid float64 `json:"interestPaid"`
	Status       string  `json:"status"`
}

// MonthBucket sums interest for trades bought in Month (YYYY-MM).
type MonthBucket struct {
	Month    string  `json:"month"`
	Interest float64 `json:"interest"`
	Trades   int     `json:"trades"`
}

// InterestReport lists interest-bearing trades with totals and monthly buckets.
type InterestReport struct {
	Trades            []InterestLine `json:"trades"`
	TotalInterestPaid float64        `json:"totalInterestPaid"`
	TotalDays         int            `json:"totalDays"`
	AvgDailyInterest  float64        `json:"avgDailyInterest"`
	AvgMTFAmount      float64        `json:"avgMtfAmount"`
	Monthly           []MonthBucket  `json:"monthlyBreakdown"`
}

// Interest covers trades that have accrued any interest.
func Interest(trades []models.Trade) InterestReport {
	r := InterestReport{Trades: []InterestLine{}, Monthly: []MonthBucket{}}
	var mtf []float64
	buckets := map[string]*MonthBucket{}

	for _, t := range trades {
		if t.InterestPaid <= 0 {
			continue
		}
		r.Trades = append(r.Trades, InterestLine{
			ID:           t.ID,
			ScripCode:    t.ScripCode,
			BuyDate:      t.BuyDate.Format(models.DateLayout),
			MTFFund:      t.MTFFund,
			DaysHeld:     t.DaysHeld,
			InterestPaid: t.InterestPaid,
			Status:       t.Status(),
		})
		r.TotalInterestPaid += t.InterestPaid
		r.TotalDays += t.DaysHeld
		mtf = append(mtf, t.MTFFund)

		key := t.BuyDate.Format("2006-01")
		b, ok := buckets[key]
		if !ok {
			b = &MonthBucket{Month: key}
			buckets[key] = b
		}
		b.Interest += t.InterestPaid
		b.Trades++
	}

	if r.TotalDays > 0 {
		r.AvgDailyInterest = r.TotalInterestPaid / float64(r.TotalDays)
	}
	r.AvgMTFAmount = mean(mtf)

	for _, b := range buckets {
		r.Monthly = append(r.Monthly, *b)
	}
	sort.Slice(r.Monthly, func(i, j int) bool { return r.Monthly[i].Month < r.Monthly[j].Month })
	return r
}

// --- Tax ---

// TaxLine is one closed trade within a tax bucket.
type TaxLine struct {
	ID            string  `json:"id"`
	ScripCode     string  `json:"scripCode"`
	BuyDate       string  `json:"buyDate"`
	SellDate      string  `json:"sellDate"`
	DaysHeld      int     `json:"daysHeld"`
	NetProfitLoss float64 `json:"netProfitLoss"`
}

// TaxBucket collects short- or long-term trades and their gains.
type TaxBucket struct {
	Trades []TaxLine `json:"trades"`
	Profit float64   `json:"profit"`
	Loss   float64   `json:"loss"`
	Net    float64   `json:"net"`
}

func (b *TaxBucket) add(t models.Trade) {
	b.Trades = append(b.Trades, TaxLine{
		ID:            t.ID,
		ScripCode:     t.ScripCode,
		BuyDate:       t.BuyDate.Format(models.DateLayout),
		SellDate:      t.SellDate.Format(models.DateLayout),
		DaysHeld:      t.DaysHeld,
		NetProfitLoss: t.NetProfitLoss,
	})
	if t.NetProfitLoss > 0 {
		b.Profit += t.NetProfitLoss
	} else if t.NetProfitLoss < 0 {
		b.Loss += -t.NetProfitLoss
	}
	b.Net = b.Profit - b.Loss
}

// TaxReport holds estimated capital gains tax per bucket.
type TaxReport struct {
	STCG              TaxBucket `json:"stcg"`
	LTCG              TaxBucket `json:"ltcg"`
	EstimatedSTCGTax  float64   `json:"estimatedStcgTax"`
	EstimatedLTCGTax  float64   `json:"estimatedLtcgTax"`
	TotalEstimatedTax float64   `json:"totalEstimatedTax"`
}

// Tax classifies closed trades by holding period and estimates tax on each
// bucket's net gain.
func Tax(trades []models.Trade) TaxReport {
	r := TaxReport{
		STCG: TaxBucket{Trades: []TaxLine{}},
		LTCG: TaxBucket{Trades: []TaxLine{}},
	}
	for _, t := range closedOnly(trades) {
		if t.DaysHeld > LTCGThresholdDays {
			r.LTCG.add(t)
		} else {
			r.STCG.add(t)
		}
	}
	r.EstimatedSTCGTax = math.Max(0, r.STCG.Net*STCGRate)
	r.EstimatedLTCGTax = math.Max(0, (r.LTCG.Net-LTCGExemption)*LTCGRate)
	r.TotalEstimatedTax = r.EstimatedSTCGTax + r.EstimatedLTCGTax
	return r
}

// --- Summary ---

// StockPerformance is the summed closed P&L of one scrip.
type StockPerformance struct {
	ScripCode string  `json:"scripCode"`
	PL        float64 `json:"pl"`
}

// SummaryReport is the portfolio overview across all trades.
type SummaryReport struct {
	TotalTrades          int               `json:"totalTrades"`
	OpenTrades           int               `json:"openTrades"`
	ClosedTrades         int               `json:"closedTrades"`
	TotalInvested        float64           `json:"totalInvested"`
	CurrentValue         float64           `json:"currentValue"`
	TotalPL              float64           `json:"totalPL"`
	OverallROI           float64           `json:"overallROI"`
	AvgHoldingPeriod     float64           `json:"avgHoldingPeriod"`
	BestPerformingStock  *StockPerformance `json:"bestPerformingStock"`
	WorstPerformingStock *StockPerformance `json:"worstPerformingStock"`
}

// Summary covers every trade, open and closed.
func Summary(trades []models.Trade) SummaryReport {
	var r SummaryReport
	var holding []float64
	var order []string
	byScrip := map[string]float64{}

	for _, t := range trades {
		r.TotalTrades++
		r.TotalInvested += t.OwnFund + t.AdditionalMargin
		if !t.IsClosed() {
			r.OpenTrades++
			r.CurrentValue += t.CMP * float64(t.Qty)
			continue
		}
		r.ClosedTrades++
		r.TotalPL += t.NetProfitLoss
		holding = append(holding, float64(t.DaysHeld))
		if _, seen := byScrip[t.ScripCode]; !seen {
			order = append(order, t.ScripCode)
		}
		byScrip[t.ScripCode] += t.NetProfitLoss
	}

	if r.TotalInvested > 0 {
		r.OverallROI = (r.TotalPL + r.CurrentValue - r.TotalInvested) / r.TotalInvested * 100
	}
	r.AvgHoldingPeriod = mean(holding)

	for _, scrip := range order {
		pl := byScrip[scrip]
		if r.BestPerformingStock == nil || pl > r.BestPerformingStock.PL {
			r.BestPerformingStock = &StockPerformance{ScripCode: scrip, PL: pl}
		}
		if r.WorstPerformingStock == nil || pl < r.WorstPerformingStock.PL {
			r.WorstPerformingStock = &StockPerformance{ScripCode: scrip, PL: pl}
		}
	}
	return r
}
