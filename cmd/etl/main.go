package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/forest-data-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/forest-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/forest-data-etl/internal/app"
	"github.com/couchcryptid/forest-data-etl/internal/config"
	"github.com/couchcryptid/forest-data-etl/internal/observability"
	"github.com/couchcryptid/forest-data-etl/internal/pipeline"
)

func main() {
	_ = godotenv.Load(".env.local")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open geocode cache", "backend", cfg.CacheBackend, "error", err)
		os.Exit(1)
	}
	resolver, cache, err := app.NewResolver(cfg, store, logger, metrics)
	if err != nil {
		_ = store.Close()
		logger.Error("failed to build geocoder", "error", err)
		os.Exit(1)
	}
	logger.Info("geocoding configured",
		"providers", cfg.GeocodeProviders,
		"upgrade_provider", cfg.GeocodeUpgradeProvider,
		"cache_backend", cfg.CacheBackend,
		"max_new_lookups", cfg.GeocodeMaxNewLookups,
	)

	// Kafka publishing is optional; the snapshot file is the primary output.
	var sink pipeline.RecordSink
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		sink = writer
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaSinkTopic)
	}

	reconciler := app.NewReconciler(cfg, resolver, sink, logger, metrics)
	p := pipeline.New(reconciler, cfg.RunInterval, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, reconciler, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start reconciliation schedule.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := cache.Close(); err != nil {
		logger.Error("geocode cache close error", "error", err)
	}

	logger.Info("shutdown complete")
}
