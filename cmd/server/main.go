package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kjannette/mtf-backend/internal/config"
	"github.com/kjannette/mtf-backend/internal/db"
	"github.com/kjannette/mtf-backend/internal/logging"
	"github.com/kjannette/mtf-backend/internal/models"
	"github.com/kjannette/mtf-backend/internal/repository"
)

const banner = `
╔══════════════════════════════════════╗
║      MTF Trade Ledger  v1.0          ║
║                                      ║
╚══════════════════════════════════════╝
`

func main() {
	root := &cobra.Command{
		Use:          "mtf-backend",
		Short:        "Margin trading facility ledger: trades, budget and reports",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newReportCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// app holds what every subcommand needs.
type app struct {
	cfg   *config.Config
	log   zerolog.Logger
	pool  *pgxpool.Pool // nil with STORE=memory
	store repository.Store
}

func loadConfig(quiet bool) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("config load: %w", err)
	}
	if quiet {
		cfg.Log.Console = false
	}
	log := logging.New(cfg.Log)
	if err := cfg.Validate(log); err != nil {
		return nil, log, err
	}
	return cfg, log, nil
}

// openApp connects the configured store. Postgres schemas are migrated on
// every start.
func openApp(ctx context.Context, quiet bool) (*app, error) {
	cfg, log, err := loadConfig(quiet)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}

	if cfg.Store == config.StoreMemory {
		a.store = repository.NewMemStore()
		return a, nil
	}

	dbLog := logging.Component(log, "db")
	dbLog.Info().Str("host", cfg.DBHost).Int("port", cfg.DBPort).Str("db", cfg.DBName).Msg("Connecting")
	pool, err := db.Connect(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if err := db.TestConnection(ctx, pool, dbLog); err != nil {
		pool.Close()
		return nil, err
	}
	if err := db.Migrate(ctx, pool, dbLog); err != nil {
		pool.Close()
		return nil, err
	}
	a.pool = pool
	a.store = repository.NewPGStore(pool)
	return a, nil
}

func (a *app) close() {
	a.store.Close()
	if a.pool != nil {
		a.log.Info().Msg("Database connection pool closed")
	}
}

func (a *app) defaultRates() models.RateConfig {
	return models.RateConfig{
		InterestRatePerDay: a.cfg.DefaultInterestRatePerDay,
		BrokerageRate:      a.cfg.DefaultBrokerageRate,
		PledgeCharges:      a.cfg.DefaultPledgeCharges,
		UnpledgeCharges:    a.cfg.DefaultUnpledgeCharges,
	}
}
