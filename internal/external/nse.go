package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kjannette/mtf-backend/internal/httputil"
	"github.com/kjannette/mtf-backend/internal/models"
)

const nseUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// NSEClient reads equity quotes from the NSE website API. The API only
// answers requests that carry the session cookies set by the home page, so
// the client primes its cookie jar before the first quote.
type NSEClient struct {
	baseURL    string
	httpClient *http.Client
	retry      httputil.RetryConfig
	log        zerolog.Logger

	mu     sync.Mutex
	primed bool
}

func NewNSEClient(baseURL string, log zerolog.Logger) *NSEClient {
	jar, _ := cookiejar.New(nil)
	log = log.With().Str("component", "nse").Logger()
	return &NSEClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second, Jar: jar},
		log:        log,
		retry: httputil.RetryConfig{
			MaxAttempts: 2,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
			Log:         log,
		},
	}
}

func (c *NSEClient) Name() string { return "nse" }

type nseQuote struct {
	Info struct {
		Symbol      string `json:"symbol"`
		CompanyName string `json:"companyName"`
	} `json:"info"`
	Metadata struct {
		LastUpdateTime string `json:"lastUpdateTime"`
	} `json:"metadata"`
	PriceInfo struct {
		LastPrice       float64 `json:"lastPrice"`
		Change          float64 `json:"change"`
		PChange         float64 `json:"pChange"`
		PreviousClose   float64 `json:"previousClose"`
		VWAP            float64 `json:"vwap"`
		IntraDayHighLow struct {
			Min float64 `json:"min"`
			Max float64 `json:"max"`
		} `json:"intraDayHighLow"`
	} `json:"priceInfo"`
}

// Quote fetches one NSE-listed symbol. BSE symbols are not served here.
func (c *NSEClient) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = NormalizeSymbol(symbol)
	if strings.HasSuffix(symbol, SuffixBSE) {
		return nil, fmt.Errorf("nse: %s is a BSE listing", symbol)
	}
	if err := c.prime(ctx); err != nil {
		c.log.Debug().Err(err).Msg("Cookie priming failed, trying quote anyway")
	}

	endpoint := c.baseURL + "/api/quote-equity?symbol=" + url.QueryEscape(BaseSymbol(symbol))
	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("nse fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.mu.Lock()
		c.primed = false
		c.mu.Unlock()
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &httputil.StatusError{StatusCode: resp.StatusCode, Body: "nse quote"}
	}

	var data nseQuote
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("nse decode: %w", err)
	}
	p := data.PriceInfo
	if p.LastPrice <= 0 {
		return nil, errors.New("nse: no last price in response")
	}

	return &models.Quote{
		Symbol:        symbol,
		Price:         p.LastPrice,
		PreviousClose: p.PreviousClose,
		Change:        p.Change,
		ChangePercent: p.PChange,
		DayHigh:       p.IntraDayHighLow.Max,
		DayLow:        p.IntraDayHighLow.Min,
		CompanyName:   data.Info.CompanyName,
		Exchange:      "NSE",
		Currency:      "INR",
		Source:        c.Name(),
		AsOf:          time.Now().UTC(),
	}, nil
}

func (c *NSEClient) prime(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.primed {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("nse prime: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("nse prime: status %d", resp.StatusCode)
	}
	c.primed = true
	return nil
}

func (c *NSEClient) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", nseUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", c.baseURL+"/")
}
