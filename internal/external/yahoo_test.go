package external

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func liveOnly(t *testing.T) {
	t.Helper()
	if os.Getenv("MTF_LIVE_MARKET_TESTS") == "" {
		t.Skip("MTF_LIVE_MARKET_TESTS not set, skipping live Yahoo Finance call")
	}
}

func TestYahooClient_Quote(t *testing.T) {
	liveOnly(t)
	q, err := NewYahooClient(zerolog.Nop()).Quote(context.Background(), "RELIANCE")
	require.NoError(t, err)
	assert.Greater(t, q.Price, 0.0)
	t.Logf("RELIANCE.NS: %.2f (%s)", q.Price, q.CompanyName)
}

func TestYahooClient_History(t *testing.T) {
	liveOnly(t)
	bars, err := NewYahooClient(zerolog.Nop()).History(context.Background(), "TCS", "5d")
	require.NoError(t, err)
	assert.NotEmpty(t, bars)
}

func TestYahooClient_HistoryRejectsPeriod(t *testing.T) {
	_, err := NewYahooClient(zerolog.Nop()).History(context.Background(), "TCS", "7w")
	assert.Error(t, err)
}
