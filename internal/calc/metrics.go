// Package calc derives the financial fields of a single MTF trade.
//
// Everything here is pure: the same inputs, rates and as-of instant always
// produce the same Metrics.
package calc

import (
	"math"
	"time"

	"github.com/kjannette/mtf-backend/internal/models"
)

// Inputs are the user-entered fields a trade's metrics depend on.
type Inputs struct {
	BuyPrice         float64
	BuyDate          time.Time
	Qty              int
	AdditionalMargin float64
	CMP              float64
	SellPrice        *float64
	SellDate         *time.Time
}

func (in Inputs) closed() bool {
	return in.SellPrice != nil && in.SellDate != nil
}

// Metrics are the derived fields at full float64 precision.
type Metrics struct {
	Total            float64 `json:"total"`
	SuggestedQty     int     `json:"suggestedQty"`
	OwnFund          float64 `json:"ownFund"`
	MTFFund          float64 `json:"mtfFund"`
	DaysHeld         int     `json:"daysHeld"`
	InterestPaid     float64 `json:"interestPaid"`
	Turnover         float64 `json:"turnover"`
	OtherCharges     float64 `json:"otherCharges"`
	Brokerage        float64 `json:"brokerage"`
	TotalChargesPaid float64 `json:"totalChargesPaid"`
	NetProfitLoss    float64 `json:"netProfitLoss"`
	ROI              float64 `json:"roi"`
}

// Compute derives all metrics. today is the civil date used as the end of the
// holding period for open trades; callers obtain it with Today.
func Compute(in Inputs, rates models.RateConfig, budgetPerTrade float64, today time.Time) Metrics {
	var m Metrics

	qty := float64(in.Qty)
	m.Total = in.BuyPrice * qty
	m.SuggestedQty = SuggestedQty(budgetPerTrade, in.BuyPrice)
	m.OwnFund, m.MTFFund = FundSplit(m.Total, budgetPerTrade, in.AdditionalMargin)

	end := today
	if in.closed() {
		end = *in.SellDate
	}
	m.DaysHeld = DaysBetween(in.BuyDate, end)
	m.InterestPaid = Interest(m.MTFFund, rates.InterestRatePerDay, m.DaysHeld)

	m.Turnover = m.Total
	if in.closed() {
		m.Turnover = m.Total + *in.SellPrice*qty
	}
	m.OtherCharges = OtherCharges(m.Turnover)
	m.Brokerage = m.Turnover * rates.BrokerageRate
	m.TotalChargesPaid = m.InterestPaid + rates.PledgeCharges + rates.UnpledgeCharges + m.Brokerage + m.OtherCharges

	effective := in.CMP
	if in.closed() {
		effective = *in.SellPrice
	}
	m.NetProfitLoss = (effective-in.BuyPrice)*qty - m.TotalChargesPaid

	if m.OwnFund > 0 {
		m.ROI = m.NetProfitLoss / m.OwnFund * 100
	}
	return m
}

// SuggestedQty is the quantity a per-trade budget buys at 2x MTF leverage.
func SuggestedQty(budgetPerTrade, buyPrice float64) int {
	if buyPrice <= 0 {
		return 0
	}
	return int(math.Floor(budgetPerTrade * 2 / buyPrice))
}

// FundSplit splits a position into the trader's own half and the broker
// funded half, net of any additional margin. Before a position size is known
// the per-trade budget stands in for the own-fund half.
func FundSplit(total, budgetPerTrade, additionalMargin float64) (ownFund, mtfFund float64) {
	if total > 0 {
		return total / 2, math.Max(0, total/2-additionalMargin)
	}
	return budgetPerTrade, math.Max(0, budgetPerTrade-additionalMargin)
}

// Interest accrues the funding cost on the final MTF balance for the whole
// holding period. Replace this to model day-by-day balances.
func Interest(mtfFund, ratePerDay float64, days int) float64 {
	return mtfFund * ratePerDay * float64(days)
}

// OtherCharges sums STT, exchange transaction charges with GST, the flat
// DP charge, SEBI fees and stamp duty on turnover. The expression is kept in
// this exact order so results match the figures users already have.
func OtherCharges(turnover float64) float64 {
	return turnover*0.001 + (turnover*0.00325/100)*1.18 + 23.6 + (turnover/10_000_000)*15 + turnover*0.01/100
}

// FromTrade extracts the inputs of a stored trade.
func FromTrade(t *models.Trade) Inputs {
	return Inputs{
		BuyPrice:         t.BuyPrice,
		BuyDate:          t.BuyDate,
		Qty:              t.Qty,
		AdditionalMargin: t.AdditionalMargin,
		CMP:              t.CMP,
		SellPrice:        t.SellPrice,
		SellDate:         t.SellDate,
	}
}

// Apply writes m into t, rounded to two decimals for storage.
func Apply(t *models.Trade, m Metrics) {
	t.Total = Round2(m.Total)
	t.OwnFund = Round2(m.OwnFund)
	t.MTFFund = Round2(m.MTFFund)
	t.SuggestedQty = m.SuggestedQty
	t.DaysHeld = m.DaysHeld
	t.InterestPaid = Round2(m.InterestPaid)
	t.Turnover = Round2(m.Turnover)
	t.TotalChargesPaid = Round2(m.TotalChargesPaid)
	t.NetProfitLoss = Round2(m.NetProfitLoss)
	t.ROI = Round2(m.ROI)
}
