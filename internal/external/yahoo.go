package external

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/lookup"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/ticker"

	mtfmodels "github.com/kjannette/mtf-backend/internal/models"
)

// HistoryPeriods are the range values Yahoo accepts for daily history.
var HistoryPeriods = map[string]bool{
	"1d": true, "5d": true, "1mo": true, "3mo": true, "6mo": true,
	"1y": true, "2y": true, "5y": true, "10y": true, "ytd": true, "max": true,
}

// YahooClient reads quotes, daily history and symbol lookups from Yahoo
// Finance. The underlying library is not context aware, so ctx is only
// checked before each call.
type YahooClient struct {
	log zerolog.Logger
}

func NewYahooClient(log zerolog.Logger) *YahooClient {
	return &YahooClient{log: log.With().Str("component", "yahoo").Logger()}
}

func (c *YahooClient) Name() string { return "yahoo" }

func (c *YahooClient) Quote(ctx context.Context, symbol string) (*mtfmodels.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("yahoo ticker %s: %w", symbol, err)
	}
	defer t.Close()

	q := &mtfmodels.Quote{
		Symbol:   symbol,
		Exchange: exchangeOf(symbol),
		Currency: "INR",
		Source:   c.Name(),
		AsOf:     time.Now().UTC(),
	}

	if quote, err := t.Quote(); err == nil && quote != nil {
		switch {
		case quote.RegularMarketPrice > 0:
			q.Price = quote.RegularMarketPrice
		case quote.PostMarketPrice > 0:
			q.Price = quote.PostMarketPrice
		case quote.PreMarketPrice > 0:
			q.Price = quote.PreMarketPrice
		}
	}

	if info, err := t.Info(); err == nil && info != nil {
		if q.Price <= 0 && info.CurrentPrice > 0 {
			q.Price = info.CurrentPrice
		}
		q.PreviousClose = info.RegularMarketPreviousClose
		q.CompanyName = info.LongName
		if q.CompanyName == "" {
			q.CompanyName = info.ShortName
		}
	}

	if q.Price <= 0 {
		return nil, fmt.Errorf("yahoo: no price for %s", symbol)
	}
	if q.PreviousClose > 0 {
		q.Change = q.Price - q.PreviousClose
		q.ChangePercent = q.Change / q.PreviousClose * 100
	}

	// Day range and volume come from today's daily bar.
	if bars, err := t.History(models.HistoryParams{Period: "1d", Interval: "1d", AutoAdjust: true}); err == nil && len(bars) > 0 {
		last := bars[len(bars)-1]
		q.DayHigh = last.High
		q.DayLow = last.Low
		q.Volume = int64(last.Volume)
	} else if err != nil {
		c.log.Debug().Err(err).Str("symbol", symbol).Msg("Day bar unavailable")
	}

	return q, nil
}

// History returns daily bars for period.
func (c *YahooClient) History(ctx context.Context, symbol, period string) ([]mtfmodels.PriceBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !HistoryPeriods[period] {
		return nil, fmt.Errorf("unsupported period %q", period)
	}
	symbol = NormalizeSymbol(symbol)

	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("yahoo ticker %s: %w", symbol, err)
	}
	defer t.Close()

	bars, err := t.History(models.HistoryParams{Period: period, Interval: "1d", AutoAdjust: true})
	if err != nil {
		return nil, fmt.Errorf("yahoo history %s: %w", symbol, err)
	}

	out := make([]mtfmodels.PriceBar, 0, len(bars))
	for _, b := range bars {
		out = append(out, mtfmodels.PriceBar{
			Date:   b.Date.Format(mtfmodels.DateLayout),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: int64(b.Volume),
		})
	}
	return out, nil
}

// Lookup finds Indian equity listings for a free-text query.
func (c *YahooClient) Lookup(ctx context.Context, query string, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l, err := lookup.New(query)
	if err != nil {
		return nil, fmt.Errorf("yahoo lookup: %w", err)
	}
	defer l.Close()

	results, err := l.Stock(limit * 3)
	if err != nil {
		return nil, fmt.Errorf("yahoo lookup %q: %w", query, err)
	}

	var out []string
	for _, r := range results {
		sym := strings.ToUpper(r.Symbol)
		if strings.HasSuffix(sym, SuffixNSE) || strings.HasSuffix(sym, SuffixBSE) {
			out = append(out, sym)
		}
		if len(out) == limit {
			break
		}
	}
	if len(out) == 0 {
		return nil, errors.New("yahoo lookup: no Indian listings")
	}
	return out, nil
}

func exchangeOf(symbol string) string {
	if strings.HasSuffix(symbol, SuffixBSE) {
		return "BSE"
	}
	return "NSE"
}
