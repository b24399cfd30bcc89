package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/mtf-backend/internal/models"
	"github.com/kjannette/mtf-backend/internal/testutil"
)

// exerciseStore runs the same behavioral checks against any Store.
func exerciseStore(t *testing.T, s Store, owner string) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	// Missing records come back as nil, nil.
	err := s.InTx(ctx, owner, func(tx Tx) error {
		st, err := tx.GetSettings(ctx)
		require.NoError(t, err)
		assert.Nil(t, st)
		l, err := tx.GetLedger(ctx)
		require.NoError(t, err)
		assert.Nil(t, l)
		tr, err := tx.GetTrade(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, tr)
		return nil
	})
	require.NoError(t, err)

	// Settings upsert.
	require.NoError(t, s.InTx(ctx, owner, func(tx Tx) error {
		return tx.SaveSettings(ctx, &models.RateConfig{InterestRatePerDay: 0.0005, PledgeCharges: 20, UpdatedAt: now})
	}))
	require.NoError(t, s.InTx(ctx, owner, func(tx Tx) error {
		st, err := tx.GetSettings(ctx)
		require.NoError(t, err)
		require.NotNil(t, st)
		assert.Equal(t, 0.0005, st.InterestRatePerDay)
		assert.Equal(t, 20.0, st.PledgeCharges)
		return nil
	}))

	// Ledger insert, update and version check.
	require.NoError(t, s.InTx(ctx, owner, func(tx Tx) error {
		return tx.SaveLedger(ctx, &models.BudgetLedger{TotalBudget: 1000, AvailableBudget: 750, CreatedAt: now, UpdatedAt: now})
	}))
	var stale *models.BudgetLedger
	require.NoError(t, s.InTx(ctx, owner, func(tx Tx) error {
		l, err := tx.GetLedger(ctx)
		require.NoError(t, err)
		require.NotNil(t, l)
		assert.Equal(t, int64(1), l.Version)
		stale = l.Clone()
		l.AvailableBudget = 500
		return tx.SaveLedger(ctx, l)
	}))
	err = s.InTx(ctx, owner, func(tx Tx) error { return tx.SaveLedger(ctx, stale) })
	assert.ErrorIs(t, err, ErrVersionConflict)

	// Trades: insert, filter, update, delete.
	sell := 120.0
	sellDate := testutil.Date(2024, 2, 10)
	trades := []models.Trade{
		{ID: uuid.NewString(), ScripCode: "INFY", BuyPrice: 100, BuyDate: testutil.Date(2024, 2, 1), Qty: 5,
			Source: models.KnownSource(models.SourceNews), CreatedAt: now, UpdatedAt: now},
		{ID: uuid.NewString(), ScripCode: "TCS", BuyPrice: 100, BuyDate: testutil.Date(2024, 1, 15), Qty: 5,
			Source: models.CustomSource("friend"), SellPrice: &sell, SellDate: &sellDate, CreatedAt: now, UpdatedAt: now},
		{ID: uuid.NewString(), ScripCode: "INFY", BuyPrice: 100, BuyDate: testutil.Date(2024, 3, 1), Qty: 5,
			CreatedAt: now, UpdatedAt: now},
	}
	require.NoError(t, s.InTx(ctx, owner, func(tx Tx) error {
		for i := range trades {
			if err := tx.InsertTrade(ctx, &trades[i]); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.InTx(ctx, owner, func(tx Tx) error {
		all, err := tx.ListTrades(ctx, TradeFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "TCS", all[0].ScripCode, "ordered by buy date")
		assert.Equal(t, models.CustomSource("friend"), all[0].Source)
		assert.True(t, all[0].IsClosed())

		from, to := testutil.Date(2024, 2, 1), testutil.Date(2024, 2, 29)
		feb, err := tx.ListTrades(ctx, TradeFilter{From: &from, To: &to})
		require.NoError(t, err)
		require.Len(t, feb, 1)
		assert.Equal(t, trades[0].ID, feb[0].ID)

		open, err := tx.ListTrades(ctx, TradeFilter{Status: models.StatusOpen, Scrip: "INFY", Limit: 1})
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, trades[0].ID, open[0].ID)
		return nil
	}))

	owners, err := s.Owners(ctx)
	require.NoError(t, err)
	assert.Contains(t, owners, owner)

	require.NoError(t, s.InTx(ctx, owner, func(tx Tx) error {
		tr, err := tx.GetTrade(ctx, trades[0].ID)
		require.NoError(t, err)
		tr.CMP = 111
		tr.NetProfitLoss = 55.5
		return tx.UpdateTrade(ctx, tr)
	}))

	// A failing callback leaves nothing behind.
	boom := errors.New("boom")
	err = s.InTx(ctx, owner, func(tx Tx) error {
		if _, err := tx.DeleteTrade(ctx, trades[0].ID); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, s.InTx(ctx, owner, func(tx Tx) error {
		tr, err := tx.GetTrade(ctx, trades[0].ID)
		require.NoError(t, err)
		require.NotNil(t, tr)
		assert.Equal(t, 111.0, tr.CMP)
		assert.Equal(t, 55.5, tr.NetProfitLoss)

		for _, tr := range trades {
			ok, err := tx.DeleteTrade(ctx, tr.ID)
			require.NoError(t, err)
			assert.True(t, ok)
		}
		ok, err := tx.DeleteTrade(ctx, trades[0].ID)
		require.NoError(t, err)
		assert.False(t, ok)

		err = tx.UpdateTrade(ctx, &trades[0])
		assert.ErrorIs(t, err, ErrTradeNotFound)
		return nil
	}))
}

// exerciseSerialized checks that a second transaction for the same owner
// only starts after the first one has committed.
func exerciseSerialized(t *testing.T, s Store, owner string) {
	ctx := context.Background()
	entered := make(chan struct{})
	var (
		wg        sync.WaitGroup
		firstDone time.Time
		secondIn  time.Time
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.InTx(ctx, owner, func(tx Tx) error {
			close(entered)
			time.Sleep(200 * time.Millisecond)
			firstDone = time.Now()
			return nil
		}))
	}()
	go func() {
		defer wg.Done()
		<-entered
		assert.NoError(t, s.InTx(ctx, owner, func(tx Tx) error {
			secondIn = time.Now()
			return nil
		}))
	}()
	wg.Wait()

	assert.False(t, secondIn.Before(firstDone), "second transaction ran inside the first")
}

func TestMemStore(t *testing.T) {
	exerciseStore(t, NewMemStore(), "alice")
}

func TestMemStore_SerializesOwner(t *testing.T) {
	exerciseSerialized(t, NewMemStore(), "alice")
}

func TestMemStore_OwnersAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.InTx(ctx, "alice", func(tx Tx) error {
		return tx.InsertTrade(ctx, &models.Trade{ID: "t1", ScripCode: "INFY"})
	}))
	require.NoError(t, s.InTx(ctx, "bob", func(tx Tx) error {
		tr, err := tx.GetTrade(ctx, "t1")
		require.NoError(t, err)
		assert.Nil(t, tr)
		return nil
	}))
}

func TestPGStore(t *testing.T) {
	pool := testutil.SetupPool(t)
	owner := fmt.Sprintf("test-%s", uuid.NewString())
	t.Cleanup(func() {
		ctx := context.Background()
		pool.Exec(ctx, `DELETE FROM trades WHERE owner_id = $1`, owner)
		pool.Exec(ctx, `DELETE FROM budget_ledgers WHERE owner_id = $1`, owner)
		pool.Exec(ctx, `DELETE FROM rate_settings WHERE owner_id = $1`, owner)
	})
	exerciseStore(t, NewPGStore(pool), owner)
}

func TestPGStore_SerializesOwner(t *testing.T) {
	pool := testutil.SetupPool(t)
	exerciseSerialized(t, NewPGStore(pool), fmt.Sprintf("test-%s", uuid.NewString()))
}

func TestQuoteRepo(t *testing.T) {
	pool := testutil.SetupPool(t)
	repo := NewQuoteRepo(pool)
	ctx := context.Background()
	symbol := "TEST" + uuid.NewString()[:8] + ".NS"
	t.Cleanup(func() { pool.Exec(ctx, `DELETE FROM price_quotes WHERE symbol = $1`, symbol) })

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, repo.Record(ctx, &models.Quote{Symbol: symbol, Price: 10, Source: "nse", AsOf: now.Add(-time.Minute)}))
	require.NoError(t, repo.Record(ctx, &models.Quote{Symbol: symbol, Price: 11, Source: "yahoo", AsOf: now}))

	quotes, err := repo.LatestSince(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	var found *models.Quote
	for i := range quotes {
		if quotes[i].Symbol == symbol {
			found = &quotes[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, 11.0, found.Price)
	assert.Equal(t, "yahoo", found.Source)
}

func TestBuildFilteredQuery(t *testing.T) {
	from := testutil.Date(2024, 1, 1)
	q, args := buildFilteredQuery("SELECT * FROM trades WHERE owner_id = $1", []any{"o"},
		TradeFilter{From: &from, Status: models.StatusClosed, Scrip: "INFY", Limit: 5})

	assert.Equal(t, "SELECT * FROM trades WHERE owner_id = $1 AND buy_date >= $2 AND sell_date IS NOT NULL"+
		" AND scrip_code = $3 ORDER BY buy_date ASC, created_at ASC, id ASC LIMIT $4", q)
	assert.Equal(t, []any{"o", from, "INFY", 5}, args)
}
