// Package export writes trades as CSV.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kjannette/mtf-backend/internal/models"
)

var Header = []string{
	"id", "scrip_code", "status", "buy_date", "buy_price", "qty", "total",
	"own_fund", "mtf_fund", "additional_margin", "target_price", "source",
	"cmp", "sell_date", "sell_price", "days_held", "interest_paid", "turnover",
	"total_charges_paid", "net_profit_loss", "roi",
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(models.DateLayout)
}

func record(t *models.Trade) []string {
	var sellDate, sellPrice string
	if t.SellDate != nil {
		sellDate = date(*t.SellDate)
	}
	if t.SellPrice != nil {
		sellPrice = money(*t.SellPrice)
	}
	return []string{
		t.ID,
		t.ScripCode,
		t.Status(),
		date(t.BuyDate),
		money(t.BuyPrice),
		strconv.Itoa(t.Qty),
		money(t.Total),
		money(t.OwnFund),
		money(t.MTFFund),
		money(t.AdditionalMargin),
		money(t.TargetPrice),
		t.Source.String(),
		money(t.CMP),
		sellDate,
		sellPrice,
		strconv.Itoa(t.DaysHeld),
		money(t.InterestPaid),
		money(t.Turnover),
		money(t.TotalChargesPaid),
		money(t.NetProfitLoss),
		money(t.ROI),
	}
}

// WriteTrades writes the header and one row per trade.
func WriteTrades(w io.Writer, trades []models.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for i := range trades {
		if err := cw.Write(record(&trades[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
