package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/meridian-labs/riskd/internal/clients/yahoo"
	"github.com/meridian-labs/riskd/internal/config"
	"github.com/meridian-labs/riskd/internal/database/repositories"
	"github.com/meridian-labs/riskd/internal/modules/backtest"
	"github.com/meridian-labs/riskd/internal/modules/marketdata"
	"github.com/meridian-labs/riskd/internal/modules/portfolio"
	"github.com/meridian-labs/riskd/internal/modules/returns"
	"github.com/meridian-labs/riskd/internal/modules/riskmetrics"
	"github.com/meridian-labs/riskd/internal/modules/stress"
	"github.com/meridian-labs/riskd/internal/modules/varcalc"
)

// Config holds server configuration
type Config struct {
	Log        zerolog.Logger
	Config     *config.Config
	PriceCache *repositories.PriceCacheRepository
	Scenarios  *stress.Catalog
	DevMode    bool
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    *config.Config
}

// New creates a new HTTP server with all module services wired.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg.Config,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes(cfg)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes builds the module services and registers all routes.
func (s *Server) setupRoutes(cfg Config) {
	log := cfg.Log

	returnsEngine := returns.NewEngine(log)
	portfolioService := portfolio.NewService(log)

	marketService := marketdata.NewService(
		yahoo.NewClient(log),
		cfg.PriceCache,
		returnsEngine,
		marketdata.Options{
			CacheTTL:   s.cfg.CacheTTL,
			MinObs:     s.cfg.MinObservations,
			MaxFillGap: s.cfg.MaxFillGap,
		},
		log,
	)
	loader := marketdata.NewLoader(portfolioService, marketService, returnsEngine, log)

	varEngine := varcalc.NewEngine(returnsEngine, log)
	metricsEngine := riskmetrics.NewEngine(marketService, log)
	backtestEngine := backtest.NewEngine(log)
	stressService := stress.NewService(cfg.Scenarios, log)

	portfolioHandler := portfolio.NewHandler(portfolioService, log)
	marketHandler := marketdata.NewHandler(marketService, log)
	varHandler := varcalc.NewHandler(varEngine, loader, varcalc.HandlerDefaults{
		Seed:        s.cfg.DefaultSeed,
		Simulations: s.cfg.DefaultSimulations,
	}, log)
	metricsHandler := riskmetrics.NewHandler(metricsEngine, loader, riskmetrics.HandlerDefaults{
		BenchmarkSymbol:   s.cfg.DefaultBenchmark,
		AnnualizationDays: s.cfg.TradingDaysPerYear,
	}, log)
	backtestHandler := backtest.NewHandler(backtestEngine, loader, backtest.HandlerDefaults{
		LookbackDays: s.cfg.DefaultLookbackDays,
		BacktestDays: s.cfg.DefaultBacktestDays,
		Simulations:  s.cfg.DefaultSimulations,
		Seed:         s.cfg.DefaultSeed,
	}, log)
	stressHandler := stress.NewHandler(stressService, portfolioService, log)

	// Health check
	s.router.Get("/health", s.handleHealth)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		r.Route("/market", func(r chi.Router) {
			r.Post("/prices", marketHandler.HandlePrices)
		})

		r.Route("/portfolio", func(r chi.Router) {
			r.Post("/normalize", portfolioHandler.HandleNormalize)
		})

		r.Route("/risk", func(r chi.Router) {
			r.Post("/metrics", metricsHandler.HandleCompute)
			r.Post("/var", varHandler.HandleCompute)
		})

		r.Route("/backtest", func(r chi.Router) {
			r.Post("/var", backtestHandler.HandleRun)
		})

		r.Route("/stress", func(r chi.Router) {
			r.Get("/scenarios", stressHandler.HandleScenarios)
			r.Post("/run", stressHandler.HandleRun)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
