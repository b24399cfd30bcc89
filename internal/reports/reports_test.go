package reports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/mtf-backend/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func closed(scrip string, buy, sell time.Time, days int, pl, own float64) models.Trade {
	sp := 100.0
	return models.Trade{
		ID: scrip + buy.Format("0102"), ScripCode: scrip,
		BuyDate: buy, SellDate: &sell, SellPrice: &sp,
		DaysHeld: days, NetProfitLoss: pl, OwnFund: own,
	}
}

func TestEmptyInputsAreZeroed(t *testing.T) {
	assert.Equal(t, PnLReport{}, PnL(nil))

	ir := Interest(nil)
	assert.Empty(t, ir.Trades)
	assert.Empty(t, ir.Monthly)
	assert.Zero(t, ir.AvgDailyInterest)
	assert.Zero(t, ir.AvgMTFAmount)

	tr := Tax(nil)
	assert.Zero(t, tr.TotalEstimatedTax)
	assert.Empty(t, tr.STCG.Trades)

	s := Summary(nil)
	assert.Zero(t, s.OverallROI)
	assert.Zero(t, s.AvgHoldingPeriod)
	assert.Nil(t, s.BestPerformingStock)
	assert.Nil(t, s.WorstPerformingStock)
}

func TestPnL(t *testing.T) {
	trades := []models.Trade{
		closed("A", day(2024, 1, 1), day(2024, 1, 10), 9, 1000, 5000),
		closed("B", day(2024, 1, 2), day(2024, 1, 12), 10, -400, 5000),
		closed("C", day(2024, 1, 3), day(2024, 1, 13), 10, 0, 0),
		{ScripCode: "OPEN", BuyDate: day(2024, 1, 4), NetProfitLoss: 9999, OwnFund: 5000},
	}
	r := PnL(trades)

	assert.Equal(t, 3, r.TotalTrades)
	assert.Equal(t, 1, r.ProfitableTrades)
	assert.Equal(t, 1, r.LosingTrades)
	assert.Equal(t, 1000.0, r.GrossProfit)
	assert.Equal(t, 400.0, r.GrossLoss)
	assert.Equal(t, 600.0, r.NetPL)
	assert.InDelta(t, 33.333, r.WinRate, 1e-3)
	assert.Equal(t, 2.5, r.ProfitFactor)
	assert.Equal(t, 6.0, r.ROI)
	assert.Equal(t, 1000.0, r.LargestWin)
	assert.Equal(t, 400.0, r.LargestLoss)
}

func TestPnL_NoLossesUsesSentinel(t *testing.T) {
	r := PnL([]models.Trade{closed("A", day(2024, 1, 1), day(2024, 1, 2), 1, 10, 100)})
	assert.Equal(t, float64(ProfitFactorNoLoss), r.ProfitFactor)
}

func TestPnL_LargestLossIsMagnitude(t *testing.T) {
	r := PnL([]models.Trade{
		closed("B", day(2024, 2, 1), day(2024, 2, 5), 4, -400, 4000),
		closed("C", day(2024, 2, 2), day(2024, 2, 6), 4, -150, 4000),
	})
	assert.Equal(t, 400.0, r.LargestLoss)
	assert.Equal(t, 275.0, r.AvgLoss)
	assert.Zero(t, r.LargestWin)
}

func TestInterest(t *testing.T) {
	trades := []models.Trade{
		{ID: "1", BuyDate: day(2024, 3, 5), MTFFund: 6000, DaysHeld: 10, InterestPaid: 30},
		{ID: "2", BuyDate: day(2024, 1, 20), MTFFund: 4000, DaysHeld: 10, InterestPaid: 20},
		{ID: "3", BuyDate: day(2024, 3, 25), MTFFund: 2000, DaysHeld: 0, InterestPaid: 0},
		{ID: "4", BuyDate: day(2024, 3, 28), MTFFund: 2000, DaysHeld: 5, InterestPaid: 5},
	}
	r := Interest(trades)

	require.Len(t, r.Trades, 3)
	assert.Equal(t, 55.0, r.TotalInterestPaid)
	assert.Equal(t, 25, r.TotalDays)
	assert.InDelta(t, 2.2, r.AvgDailyInterest, 1e-9)
	assert.InDelta(t, 4000, r.AvgMTFAmount, 1e-9)
	assert.Equal(t, []MonthBucket{
		{Month: "2024-01", Interest: 20, Trades: 1},
		{Month: "2024-03", Interest: 35, Trades: 2},
	}, r.Monthly)
}

func TestTax_ShortTerm(t *testing.T) {
	r := Tax([]models.Trade{closed("A", day(2023, 1, 1), day(2023, 6, 1), 151, 50000, 0)})

	require.Len(t, r.STCG.Trades, 1)
	assert.Equal(t, 50000.0, r.STCG.Net)
	assert.Equal(t, 7500.0, r.EstimatedSTCGTax)
	assert.Zero(t, r.EstimatedLTCGTax)
	assert.Equal(t, 7500.0, r.TotalEstimatedTax)
}

func TestTax_LongTermExemption(t *testing.T) {
	trades := []models.Trade{
		closed("A", day(2022, 1, 1), day(2023, 2, 5), 400, 150000, 0),
		closed("B", day(2022, 1, 1), day(2023, 1, 1), 365, -2000, 0),
	}
	r := Tax(trades)

	assert.Len(t, r.LTCG.Trades, 1)
	assert.InDelta(t, 5000, r.EstimatedLTCGTax, 1e-9)
	assert.Equal(t, 2000.0, r.STCG.Loss)
	assert.Zero(t, r.EstimatedSTCGTax)

	small := Tax([]models.Trade{closed("A", day(2022, 1, 1), day(2023, 2, 5), 400, 50000, 0)})
	assert.Zero(t, small.EstimatedLTCGTax)
}

func TestSummary(t *testing.T) {
	trades := []models.Trade{
		closed("A", day(2024, 1, 1), day(2024, 1, 11), 10, 600, 5000),
		closed("B", day(2024, 1, 2), day(2024, 1, 22), 20, -500, 5000),
		closed("A", day(2024, 1, 3), day(2024, 1, 9), 6, 400, 5000),
		{ScripCode: "C", BuyDate: day(2024, 1, 4), OwnFund: 5000, AdditionalMargin: 1000, CMP: 110, Qty: 100},
	}
	r := Summary(trades)

	assert.Equal(t, 4, r.TotalTrades)
	assert.Equal(t, 1, r.OpenTrades)
	assert.Equal(t, 3, r.ClosedTrades)
	assert.Equal(t, 21000.0, r.TotalInvested)
	assert.Equal(t, 11000.0, r.CurrentValue)
	assert.Equal(t, 500.0, r.TotalPL)
	assert.InDelta(t, (500.0+11000-21000)/21000*100, r.OverallROI, 1e-9)
	assert.InDelta(t, 12, r.AvgHoldingPeriod, 1e-9)
	assert.Equal(t, &StockPerformance{ScripCode: "A", PL: 1000}, r.BestPerformingStock)
	assert.Equal(t, &StockPerformance{ScripCode: "B", PL: -500}, r.WorstPerformingStock)
}

func TestSummary_TieKeepsFirstSeen(t *testing.T) {
	r := Summary([]models.Trade{
		closed("X", day(2024, 1, 1), day(2024, 1, 2), 1, 100, 1),
		closed("Y", day(2024, 1, 1), day(2024, 1, 2), 1, 100, 1),
	})
	assert.Equal(t, "X", r.BestPerformingStock.ScripCode)
	assert.Equal(t, "X", r.WorstPerformingStock.ScripCode)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("tax")
	require.NoError(t, err)
	assert.Equal(t, KindTax, k)
	_, err = ParseKind("nope")
	assert.Error(t, err)
}
