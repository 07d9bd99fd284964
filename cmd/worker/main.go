// Package main runs the route warm-up worker outside the API process.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/swasthyasetu/swasthyasetu/internal/config"
	"github.com/swasthyasetu/swasthyasetu/internal/facility"
	"github.com/swasthyasetu/swasthyasetu/internal/provider/resilience"
	"github.com/swasthyasetu/swasthyasetu/internal/routing/setup"
	"github.com/swasthyasetu/swasthyasetu/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const warmupInterval = 4 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		stderrLog := zerolog.New(os.Stderr)
		stderrLog.Fatal().Err(err).Msg("invalid configuration")
	}

	log := zerolog.New(os.Stdout).
		Level(cfg.LogLevel).
		With().
		Timestamp().
		Str("service", "swasthyasetu-worker").
		Str("version", Version).
		Logger()

	log.Info().Str("build_time", BuildTime).Msg("starting route warm-up worker")

	providers := resilience.NewRegistry()
	selector, err := setup.NewSelector(cfg, setup.Options{Registry: providers, Logger: log})
	if err != nil {
		// Nothing to warm without a provider.
		log.Fatal().Err(err).Msg("routing not configured")
	}

	seed := facility.DefaultSeed()
	if cfg.FacilitySeedPath != "" {
		seed, err = facility.LoadSeed(cfg.FacilitySeedPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.FacilitySeedPath).Msg("failed to load facility seed")
		}
	}
	registry, err := facility.NewRegistry(facility.RegistryConfig{Seed: seed, Logger: log})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid facility seed")
	}

	warmup := worker.DefaultWarmupConfig()
	warmup.Concurrency = cfg.RouteWarmupConcurrency
	for _, h := range registry.Hospitals() {
		warmup.Destinations = append(warmup.Destinations, h.Location)
	}
	job := worker.NewWarmupJob(worker.WarmupJobConfig{
		Config:   warmup,
		Selector: selector,
		Logger:   log,
	})

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Worker also exposes a health endpoint for the container platform
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "healthy",
			"version":   Version,
			"warmup":    job.MetricsSnapshot(),
			"providers": providers.Snapshot(),
		})
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	go job.Start(ctx, warmupInterval)
	log.Info().
		Int("pairs", warmup.TotalPairs()).
		Dur("interval", warmupInterval).
		Msg("route warm-up scheduled")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
