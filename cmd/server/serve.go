package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kjannette/mtf-backend/internal/api"
	"github.com/kjannette/mtf-backend/internal/external"
	"github.com/kjannette/mtf-backend/internal/logging"
	"github.com/kjannette/mtf-backend/internal/notifications"
	"github.com/kjannette/mtf-backend/internal/repository"
	"github.com/kjannette/mtf-backend/internal/scheduler"
	"github.com/kjannette/mtf-backend/internal/service"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API and the CMP refresh scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

// buildMarket wires the enabled price sources. It returns nil when none are.
func (a *app) buildMarket(ctx context.Context) *external.Market {
	log := logging.Component(a.log, "market")

	var (
		sources []external.PriceSource
		opts    = external.MarketOptions{
			CacheTTL:    time.Duration(a.cfg.PriceCacheSeconds) * time.Second,
			MinInterval: time.Duration(a.cfg.PriceMinIntervalSeconds) * time.Second,
		}
	)
	if a.cfg.NSEEnabled {
		sources = append(sources, external.NewNSEClient(a.cfg.NSEBaseURL, log))
	}
	if a.cfg.YahooEnabled {
		yahoo := external.NewYahooClient(log)
		sources = append(sources, yahoo)
		opts.History = yahoo
		opts.Lookup = yahoo
	}
	if len(sources) == 0 {
		return nil
	}
	if a.pool != nil {
		opts.Store = repository.NewQuoteRepo(a.pool)
	}

	m := external.NewMarket(sources, opts, log)
	if n, err := m.WarmCache(ctx); err != nil {
		log.Warn().Err(err).Msg("Quote cache warm-up failed")
	} else if n > 0 {
		log.Info().Int("quotes", n).Msg("Quote cache warmed from database")
	}
	return m
}

func runServe(parent context.Context) error {
	fmt.Print(banner)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()
	a.cfg.Print(a.log)

	notify := notifications.NewSender(a.cfg.WebhookURL, a.cfg.AppName, logging.Component(a.log, "notify"))

	opts := service.Options{
		Defaults: a.defaultRates(),
		Location: a.cfg.Location(),
		Log:      a.log,
	}
	if notify.Enabled() {
		opts.Notifier = notify
	}
	market := a.buildMarket(ctx)
	if market != nil {
		opts.Prices = market
	}
	svc := service.New(a.store, opts)

	// 1. API server
	apiCfg := api.Config{
		Port:         a.cfg.Port,
		Service:      svc,
		DB:           a.store,
		Tokens:       a.cfg.APITokens,
		DefaultOwner: a.cfg.DefaultOwner,
		CORSOrigins:  a.cfg.CORSOrigins,
		Log:          a.log,
	}
	if market != nil {
		apiCfg.Market = market
	}
	srv := api.NewServer(apiCfg)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 2. CMP refresh scheduler
	var sched *scheduler.Scheduler
	if a.cfg.CMPRefreshSchedule != "" && market != nil {
		sched = scheduler.New(a.log, a.cfg.Location())
		job := scheduler.NewCMPRefreshJob(svc, a.store, 5*time.Minute, a.log)
		if err := sched.AddJob(a.cfg.CMPRefreshSchedule, job); err != nil {
			return fmt.Errorf("CMP_REFRESH_SCHEDULE %q: %w", a.cfg.CMPRefreshSchedule, err)
		}
		sched.Start()
		go func() {
			if err := sched.RunNow(job); err != nil {
				a.log.Warn().Err(err).Msg("Initial CMP refresh failed")
			}
		}()
	} else {
		a.log.Info().Msg("CMP refresh scheduler skipped")
	}

	a.log.Info().Msg("All services started successfully")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		a.log.Error().Err(err).Msg("API server failed")
		stop()
	}
	a.log.Info().Msg("Shutting down gracefully...")

	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("API shutdown error")
	}
	a.log.Info().Msg("Shutdown complete")
	return nil
}
