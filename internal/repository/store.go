// Package repository persists settings, ledgers, trades and quotes.
//
// Owner-scoped reads and writes go through Store.InTx so that every
// read-modify-write of one owner's ledger is serialized.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kjannette/mtf-backend/internal/models"
)

// ErrVersionConflict means the ledger changed between read and write.
var ErrVersionConflict = errors.New("ledger was modified concurrently")

// ErrTradeNotFound is returned by UpdateTrade when the row is gone.
var ErrTradeNotFound = errors.New("trade not found")

// TradeFilter narrows ListTrades. Zero values disable a clause.
type TradeFilter struct {
	From   *time.Time // buy date, inclusive
	To     *time.Time // buy date, inclusive
	Status string     // models.StatusOpen, models.StatusClosed or ""
	Scrip  string
	Limit  int
}

func (f TradeFilter) matches(t *models.Trade) bool {
	if f.From != nil && t.BuyDate.Before(*f.From) {
		return false
	}
	if f.To != nil && t.BuyDate.After(*f.To) {
		return false
	}
	if f.Status != "" && t.Status() != f.Status {
		return false
	}
	if f.Scrip != "" && t.ScripCode != f.Scrip {
		return false
	}
	return true
}

// Tx is one owner's view of the store inside a transaction. Get methods
// return nil, nil when the record does not exist.
type Tx interface {
	GetSettings(ctx context.Context) (*models.RateConfig, error)
	SaveSettings(ctx context.Context, s *models.RateConfig) error

	// GetLedger locks the ledger row for the rest of the transaction.
	GetLedger(ctx context.Context) (*models.BudgetLedger, error)
	SaveLedger(ctx context.Context, l *models.BudgetLedger) error

	GetTrade(ctx context.Context, id string) (*models.Trade, error)
	ListTrades(ctx context.Context, f TradeFilter) ([]models.Trade, error)
	InsertTrade(ctx context.Context, t *models.Trade) error
	UpdateTrade(ctx context.Context, t *models.Trade) error
	DeleteTrade(ctx context.Context, id string) (bool, error)
}

type Store interface {
	// InTx runs fn in a transaction scoped to ownerID. Nothing fn wrote is
	// kept when it returns an error.
	InTx(ctx context.Context, ownerID string, fn func(Tx) error) error
	// Owners lists owners that have at least one open trade.
	Owners(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
	Close()
}
