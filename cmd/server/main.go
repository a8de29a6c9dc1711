// Package main is the entry point for the Windward physical climate risk service.
// It serves portfolio risk calculations over HTTP: hazard curves are ingested
// into a local SQLite store (optionally from an object store), vulnerability
// models turn them into impact distributions, and the risk calculator produces
// expected loss, exceedance curves and value at risk per asset.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/windward/internal/config"
	"github.com/aristath/windward/internal/database"
	"github.com/aristath/windward/internal/hazard"
	"github.com/aristath/windward/internal/hazard/store"
	"github.com/aristath/windward/internal/risk"
	"github.com/aristath/windward/internal/scheduler"
	"github.com/aristath/windward/internal/server"
	"github.com/aristath/windward/internal/vulnerability"
	"github.com/aristath/windward/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("port", cfg.Port).
		Str("failure_policy", cfg.FailurePolicy).
		Msg("Starting Windward")

	// Databases: the curve store is durable, the response cache is ephemeral.
	hazardDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "hazard.db"),
		Profile: database.ProfileStandard,
		Name:    "hazard",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open hazard database")
	}
	defer hazardDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	hazardStore, err := store.NewStore(hazardDB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize hazard store")
	}
	cachedProvider, err := store.NewCachingProvider(hazardStore, cacheDB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize hazard cache")
	}

	// Optional object-store loader for published curve sets.
	var loader *store.Loader
	if cfg.S3.Bucket != "" {
		loader, err = store.NewLoader(context.Background(), hazardStore, cfg.S3.Bucket, cfg.S3.Prefix, cfg.S3.Region, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize curve set loader")
		}
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("Curve set loader enabled")
	}

	// The model registry decides which vulnerability model serves each
	// (hazard type, asset type) pair; first registration wins.
	registry := vulnerability.NewRegistry(
		vulnerability.NewRealEstateRiverineInundationModel(),
		vulnerability.NewRealEstateCoastalInundationModel(),
		vulnerability.NewPowerGeneratingInundationModel(),
		vulnerability.NewChronicHeatModel(),
	)

	dispatcher := hazard.NewDispatcher(cachedProvider, cfg.DispatchConcurrency, log)
	calculator := risk.NewCalculator(registry, dispatcher, log)

	// Background maintenance: sweep stale cache entries hourly, checkpoint
	// and vacuum the databases daily.
	sched := scheduler.New(log)
	cacheTTL := time.Duration(cfg.CacheTTLHours) * time.Hour
	sweep := scheduler.NewCacheSweepJob(cachedProvider, cacheTTL, log)
	if err := sched.AddJob("@hourly", sweep); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache sweep job")
	}
	if err := sched.AddJob("@daily", scheduler.NewDBMaintenanceJob(log, hazardDB, cacheDB)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register database maintenance job")
	}
	// entries may have expired while the service was down
	if err := sched.RunNow(sweep); err != nil {
		log.Warn().Err(err).Msg("Startup cache sweep failed")
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:        log,
		Cfg:        cfg,
		Calculator: calculator,
		Store:      hazardStore,
		Loader:     loader,
		HazardDB:   hazardDB,
		CacheDB:    cacheDB,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Block until SIGINT or SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
