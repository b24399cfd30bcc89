package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/kjannette/mtf-backend/internal/models"
	"github.com/kjannette/mtf-backend/internal/service"
)

// MarketData is the price, history and search surface exposed over HTTP.
type MarketData interface {
	Quote(ctx context.Context, symbol string) (*models.Quote, error)
	History(ctx context.Context, symbol, period string) ([]models.PriceBar, error)
	Search(ctx context.Context, query string) ([]models.SymbolMatch, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Port    int
	Service *service.Service
	// Market may be nil when every price source is disabled.
	Market MarketData
	DB     Pinger
	// Tokens maps bearer tokens to owners. Empty disables authentication
	// and every request acts as DefaultOwner.
	Tokens       map[string]string
	DefaultOwner string
	CORSOrigins  []string
	Log          zerolog.Logger
}

type Server struct {
	router       *chi.Mux
	httpServer   *http.Server
	svc          *service.Service
	market       MarketData
	db           Pinger
	tokens       map[string]string
	defaultOwner string
	log          zerolog.Logger
}

func NewServer(cfg Config) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		svc:          cfg.Service,
		market:       cfg.Market,
		db:           cfg.DB,
		tokens:       cfg.Tokens,
		defaultOwner: cfg.DefaultOwner,
		log:          cfg.Log.With().Str("component", "api").Logger(),
	}

	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Health check (no auth required)
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Route("/trades", func(r chi.Router) {
			r.Get("/", s.handleListTrades)
			r.Post("/", s.handleCreateTrade)
			r.Post("/preview", s.handlePreviewTrade)
			r.Get("/export.csv", s.handleExportTrades)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTrade)
				r.Patch("/", s.handleUpdateTrade)
				r.Delete("/", s.handleDeleteTrade)
				r.Post("/close", s.handleCloseTrade)
				r.Post("/margin", s.handleTopUpMargin)
				r.Post("/refresh-price", s.handleRefreshPrice)
			})
		})

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)
		r.Get("/budget", s.handleGetBudget)
		r.Put("/budget", s.handlePutBudget)

		r.Get("/reports/periods", s.handleReportPeriods)
		r.Get("/reports/{kind}", s.handleReport)

		r.Get("/market/price/{symbol}", s.handleMarketPrice)
		r.Get("/market/search/{query}", s.handleMarketSearch)
		r.Get("/market/history/{symbol}", s.handleMarketHistory)
	})

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("REST API server started")
	if len(s.tokens) > 0 {
		s.log.Info().Int("owners", len(s.tokens)).Msg("Authentication: enabled (Bearer token)")
	} else {
		s.log.Warn().Str("owner", s.defaultOwner).Msg("Authentication: disabled (no API_TOKENS configured)")
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
