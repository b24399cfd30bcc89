// Package service orchestrates trades, the budget ledger and reports for one
// owner at a time. Every read-modify-write runs inside repository.Store.InTx.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kjannette/mtf-backend/internal/calc"
	"github.com/kjannette/mtf-backend/internal/models"
	"github.com/kjannette/mtf-backend/internal/repository"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrTradeClosed = errors.New("trade is closed")
)

// PriceSource supplies the current market price used as a trade's CMP.
type PriceSource interface {
	Quote(ctx context.Context, symbol string) (*models.Quote, error)
}

// Notifier receives events after the transaction that caused them commits.
type Notifier interface {
	TradeClosed(owner string, t *models.Trade)
	RefreshFailed(symbols []string)
}

type Options struct {
	// Defaults seeds an owner's RateConfig on first access.
	Defaults models.RateConfig
	Location *time.Location
	Prices   PriceSource
	Notifier Notifier
	Log      zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	store    repository.Store
	defaults models.RateConfig
	loc      *time.Location
	prices   PriceSource
	notifier Notifier
	log      zerolog.Logger

	now   func() time.Time
	newID func() string
}

func New(store repository.Store, opts Options) *Service {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:    store,
		defaults: opts.Defaults,
		loc:      loc,
		prices:   opts.Prices,
		notifier: opts.Notifier,
		log:      opts.Log.With().Str("component", "service").Logger(),
		now:      now,
		newID:    uuid.NewString,
	}
}

// today is the civil date in the configured zone.
func (s *Service) today() time.Time {
	return calc.Today(s.now(), s.loc)
}

// loadSettings returns the owner's rates, persisting defaults on first use.
func (s *Service) loadSettings(ctx context.Context, tx repository.Tx, owner string) (models.RateConfig, error) {
	rc, err := tx.GetSettings(ctx)
	if err != nil {
		return models.RateConfig{}, fmt.Errorf("load settings: %w", err)
	}
	if rc != nil {
		return *rc, nil
	}
	def := s.defaults
	def.OwnerID = owner
	def.UpdatedAt = s.now()
	if err := tx.SaveSettings(ctx, &def); err != nil {
		return models.RateConfig{}, fmt.Errorf("save default settings: %w", err)
	}
	return def, nil
}

// Settings returns the owner's rate configuration.
func (s *Service) Settings(ctx context.Context, owner string) (models.RateConfig, error) {
	var rc models.RateConfig
	err := s.store.InTx(ctx, owner, func(tx repository.Tx) error {
		var err error
		rc, err = s.loadSettings(ctx, tx, owner)
		return err
	})
	return rc, err
}

type SettingsInput struct {
	InterestRatePerDay float64 `json:"interestRatePerDay"`
	BrokerageRate      float64 `json:"brokerageRate"`
	PledgeCharges      float64 `json:"pledgeCharges"`
	UnpledgeCharges    float64 `json:"unpledgeCharges"`
}

// UpdateSettings replaces the owner's rates. Stored trades keep their
// metrics until they are next edited or refreshed.
func (s *Service) UpdateSettings(ctx context.Context, owner string, in SettingsInput) (models.RateConfig, error) {
	if err := calc.ValidateRates(in.InterestRatePerDay, in.BrokerageRate, in.PledgeCharges, in.UnpledgeCharges); err != nil {
		return models.RateConfig{}, err
	}
	rc := models.RateConfig{
		OwnerID:            owner,
		InterestRatePerDay: in.InterestRatePerDay,
		BrokerageRate:      in.BrokerageRate,
		PledgeCharges:      in.PledgeCharges,
		UnpledgeCharges:    in.UnpledgeCharges,
		UpdatedAt:          s.now(),
	}
	err := s.store.InTx(ctx, owner, func(tx repository.Tx) error {
		return tx.SaveSettings(ctx, &rc)
	})
	if err != nil {
		return models.RateConfig{}, err
	}
	s.log.Info().Str("owner", owner).Float64("interest_per_day", rc.InterestRatePerDay).Msg("Rates updated")
	return rc, nil
}
