// Package app assembles the service's components from configuration. Both
// binaries share it so that the operator CLI exercises exactly the geocoding
// stack the scheduled service runs.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/forest-data-etl/internal/adapter/google"
	"github.com/couchcryptid/forest-data-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/forest-data-etl/internal/adapter/nominatim"
	"github.com/couchcryptid/forest-data-etl/internal/adapter/postgres"
	"github.com/couchcryptid/forest-data-etl/internal/adapter/redisstore"
	"github.com/couchcryptid/forest-data-etl/internal/adapter/snapshot"
	"github.com/couchcryptid/forest-data-etl/internal/adapter/source"
	"github.com/couchcryptid/forest-data-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/forest-data-etl/internal/config"
	"github.com/couchcryptid/forest-data-etl/internal/domain"
	"github.com/couchcryptid/forest-data-etl/internal/geocode"
	"github.com/couchcryptid/forest-data-etl/internal/observability"
	"github.com/couchcryptid/forest-data-etl/internal/pipeline"
)

// OpenStore opens the configured geocode cache backend.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (geocode.Store, error) {
	switch cfg.CacheBackend {
	case config.CacheMemory:
		return geocode.NewMemoryStore(), nil
	case config.CacheSQLite:
		s, err := sqlite.Open(ctx, cfg.CachePath, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.CacheRedis:
		s, err := redisstore.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.CachePostgres:
		s, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// Providers registers every provider the service knows. Providers without
// credentials stay registered and report PROVIDER_NOT_CONFIGURED when used.
func Providers(cfg *config.Config, logger *slog.Logger) *geocode.Registry {
	return geocode.NewRegistry(
		nominatim.NewClient(nominatim.Options{
			BaseURL:           cfg.NominatimURL,
			UserAgent:         cfg.NominatimUserAgent,
			CountryCode:       cfg.GeocodeCountry,
			RequestsPerSecond: cfg.NominatimRate,
		}, logger),
		google.NewClient(cfg.GoogleMapsAPIKey, cfg.GeocodeCountry, logger),
		mapbox.NewClient(cfg.MapboxToken, cfg.GeocodeCountry, logger),
	)
}

// ResolverOptions maps configuration onto resolver options.
func ResolverOptions(cfg *config.Config) geocode.Options {
	opts := geocode.DefaultOptions()
	opts.Timeout = cfg.GeocodeTimeout
	opts.MaxRetries = cfg.GeocodeMaxRetries
	opts.RetryBackoff = cfg.GeocodeRetryBackoff
	opts.RegionSuffix = cfg.GeocodeRegionSuffix
	opts.UpgradeQueueSize = cfg.GeocodeUpgradeQueueSize
	return opts
}

// NewResolver builds the cascading resolver over store. The returned cache
// owns store; closing it closes the store.
func NewResolver(cfg *config.Config, store geocode.Store, logger *slog.Logger, metrics *observability.Metrics) (*geocode.Resolver, *geocode.Cache, error) {
	registry := Providers(cfg, logger)
	providers, err := registry.Select(cfg.GeocodeProviders)
	if err != nil {
		return nil, nil, fmt.Errorf("select providers: %w", err)
	}

	var upgrader domain.GeocodeProvider
	if cfg.UpgradeEnabled() {
		upgrader, err = registry.Get(cfg.GeocodeUpgradeProvider)
		if err != nil {
			return nil, nil, fmt.Errorf("select upgrade provider: %w", err)
		}
	}

	for _, p := range providers {
		if err := p.Ready(); err != nil {
			logger.Warn("geocode provider not configured", "provider", p.Name(), "error", err)
		}
	}

	cache := geocode.NewCache(store, logger, metrics)
	return geocode.NewResolver(cache, providers, upgrader, ResolverOptions(cfg), logger, metrics), cache, nil
}

// PipelineOptions maps configuration onto reconciliation options.
func PipelineOptions(cfg *config.Config) pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.FacilityThreshold = cfg.FacilityMatchThreshold
	opts.ClosureThreshold = cfg.ClosureMatchThreshold
	opts.MaxNewLookups = cfg.GeocodeMaxNewLookups
	opts.Concurrency = cfg.GeocodeConcurrency
	return opts
}

// NewReconciler wires the file-based source and snapshot adapters around
// resolver. sink may be nil.
func NewReconciler(cfg *config.Config, resolver *geocode.Resolver, sink pipeline.RecordSink, logger *slog.Logger, metrics *observability.Metrics) *pipeline.Reconciler {
	return pipeline.NewReconciler(
		source.NewFileLoader(cfg.SourcePath, logger),
		resolver,
		snapshot.NewFileWriter(cfg.SnapshotPath, logger),
		sink,
		PipelineOptions(cfg),
		logger,
		metrics,
	)
}
