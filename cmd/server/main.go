package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meridian-labs/riskd/internal/config"
	"github.com/meridian-labs/riskd/internal/database"
	"github.com/meridian-labs/riskd/internal/database/repositories"
	"github.com/meridian-labs/riskd/internal/modules/stress"
	"github.com/meridian-labs/riskd/internal/scheduler"
	"github.com/meridian-labs/riskd/internal/server"
	"github.com/meridian-labs/riskd/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting riskd")

	// Initialize price cache database
	db, err := database.New(cfg.CachePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize price cache database")
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	priceCache := repositories.NewPriceCacheRepository(db.Conn(), log)

	// Load stress scenario catalog
	scenarios, err := stress.LoadCatalog(cfg.ScenarioFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.ScenarioFile).Msg("Failed to load scenario catalog")
	}

	// Initialize scheduler
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	// Register background jobs
	pruneJob := scheduler.NewCachePruneJob(priceCache, cfg.CacheTTL, log)
	if err := sched.AddJob("@hourly", pruneJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache prune job")
	}

	// Initialize HTTP server
	srv := server.New(server.Config{
		Log:        log,
		Config:     cfg,
		PriceCache: priceCache,
		Scenarios:  scenarios,
		DevMode:    cfg.DevMode,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
