package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/mtf-backend/internal/models"
)

func TestWriteTrades(t *testing.T) {
	t.Parallel()

	sell := 550.0
	sellDate := time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)
	trades := []models.Trade{
		{
			ID: "t1", ScripCode: "INFY", BuyPrice: 500, Qty: 20,
			BuyDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			Source:  models.CustomSource("Friend, tip"),
			Total:   10000, OwnFund: 5000, MTFFund: 5000, CMP: 500,
			SellPrice: &sell, SellDate: &sellDate,
			DaysHeld: 10, InterestPaid: 25, NetProfitLoss: 887.46, ROI: 17.7492,
		},
		{ID: "t2", ScripCode: "TCS", BuyPrice: 3000.5, Qty: 1, BuyDate: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTrades(&buf, trades))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])

	first := rows[1]
	require.Len(t, first, len(Header))
	assert.Equal(t, "INFY", first[1])
	assert.Equal(t, "closed", first[2])
	assert.Equal(t, "2024-06-01", first[3])
	assert.Equal(t, "500.00", first[4])
	assert.Equal(t, "Friend, tip", first[11])
	assert.Equal(t, "2024-06-11", first[13])
	assert.Equal(t, "550.00", first[14])
	assert.Equal(t, "887.46", first[19])
	assert.Equal(t, "17.75", first[20])

	second := rows[2]
	assert.Equal(t, "open", second[2])
	assert.Equal(t, "3000.50", second[4])
	assert.Equal(t, "", second[13])
	assert.Equal(t, "", second[14])
}

func TestWriteTrades_Empty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteTrades(&buf, nil))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
