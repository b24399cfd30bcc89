package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kjannette/mtf-backend/internal/httputil"
	"github.com/kjannette/mtf-backend/internal/models"
)

const defaultAppName = "MTFLedger"

// Sender posts short messages to a Slack or Discord webhook. With no URL it
// only logs.
type Sender struct {
	webhookURL string
	appName    string
	httpClient *http.Client
	retry      httputil.RetryConfig
	log        zerolog.Logger
}

func NewSender(webhookURL, appName string, log zerolog.Logger) *Sender {
	if appName == "" {
		appName = defaultAppName
	}
	log = log.With().Str("component", "notify").Logger()
	return &Sender{
		webhookURL: webhookURL,
		appName:    appName,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
			Log:         log,
		},
	}
}

func (s *Sender) Send(msg string) {
	formatted := fmt.Sprintf("[%s] %s", s.appName, msg)
	s.log.Info().Msg(formatted)

	if s.webhookURL == "" {
		return
	}

	body, err := json.Marshal(s.formatPayload(formatted))
	if err != nil {
		s.log.Error().Err(err).Msg("Marshal webhook payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := httputil.Do(ctx, s.httpClient, s.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to send notification after retries")
		return
	}
	resp.Body.Close()
}

// TradeClosed announces a realized trade.
func (s *Sender) TradeClosed(owner string, t *models.Trade) {
	verb := "profit"
	if t.NetProfitLoss < 0 {
		verb = "loss"
	}
	s.Send(fmt.Sprintf("%s closed %s x%d after %d days: %s ₹%.2f (ROI %.2f%%)",
		owner, t.ScripCode, t.Qty, t.DaysHeld, verb, t.NetProfitLoss, t.ROI))
}

// RefreshFailed reports symbols whose scheduled price refresh failed.
func (s *Sender) RefreshFailed(symbols []string) {
	if len(symbols) == 0 {
		return
	}
	s.Send(fmt.Sprintf("CMP refresh failed for %d symbol(s): %s, keeping last known prices",
		len(symbols), strings.Join(symbols, ", ")))
}

func (s *Sender) formatPayload(msg string) map[string]string {
	if strings.Contains(s.webhookURL, "discord") {
		return map[string]string{
			"content":  msg,
			"username": s.appName,
		}
	}
	return map[string]string{
		"text":     fmt.Sprintf("`%s`", msg),
		"username": s.appName,
	}
}

func (s *Sender) Enabled() bool {
	return s.webhookURL != ""
}
