package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Cache backends.
const (
	CacheSQLite   = "sqlite"
	CacheRedis    = "redis"
	CachePostgres = "postgres"
	CacheMemory   = "memory"
)

// KnownProviders are the geocode providers the service can construct.
var KnownProviders = []string{"nominatim", "google", "mapbox"}

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	SourcePath   string
	SnapshotPath string
	RunInterval  time.Duration

	FacilityMatchThreshold float64
	ClosureMatchThreshold  float64

	// Geocoding cascade.
	GeocodeProviders        []string
	GeocodeUpgradeProvider  string
	GeocodeMaxNewLookups    int
	GeocodeConcurrency      int
	GeocodeTimeout          time.Duration
	GeocodeMaxRetries       int
	GeocodeRetryBackoff     time.Duration
	GeocodeCountry          string
	GeocodeRegionSuffix     string
	GeocodeUpgradeQueueSize int

	// Geocode cache store.
	CacheBackend  string
	CachePath     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PostgresDSN   string

	// Provider credentials and endpoints.
	NominatimURL       string
	NominatimUserAgent string
	NominatimRate      float64
	GoogleMapsAPIKey   string
	MapboxToken        string

	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	p := &parser{}
	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		SourcePath:   sharedcfg.EnvOrDefault("SOURCE_PATH", "data/scrape.json"),
		SnapshotPath: sharedcfg.EnvOrDefault("SNAPSHOT_PATH", "data/forests.json"),
		RunInterval:  p.duration("RUN_INTERVAL", "1h"),

		FacilityMatchThreshold: p.float("FACILITY_MATCH_THRESHOLD", "0.62"),
		ClosureMatchThreshold:  p.float("CLOSURE_MATCH_THRESHOLD", "0.68"),

		GeocodeProviders:        parseList(sharedcfg.EnvOrDefault("GEOCODE_PROVIDERS", "nominatim,google")),
		GeocodeUpgradeProvider:  strings.ToLower(strings.TrimSpace(sharedcfg.EnvOrDefault("GEOCODE_UPGRADE_PROVIDER", "google"))),
		GeocodeMaxNewLookups:    p.int("GEOCODE_MAX_NEW_LOOKUPS", "100"),
		GeocodeConcurrency:      p.int("GEOCODE_CONCURRENCY", "4"),
		GeocodeTimeout:          p.duration("GEOCODE_TIMEOUT", "8s"),
		GeocodeMaxRetries:       p.int("GEOCODE_MAX_RETRIES", "2"),
		GeocodeRetryBackoff:     p.duration("GEOCODE_RETRY_BACKOFF", "500ms"),
		GeocodeCountry:          sharedcfg.EnvOrDefault("GEOCODE_COUNTRY", "au"),
		GeocodeRegionSuffix:     sharedcfg.EnvOrDefault("GEOCODE_REGION_SUFFIX", "New South Wales, Australia"),
		GeocodeUpgradeQueueSize: p.int("GEOCODE_UPGRADE_QUEUE_SIZE", "256"),

		CacheBackend:  strings.ToLower(sharedcfg.EnvOrDefault("CACHE_BACKEND", CacheSQLite)),
		CachePath:     sharedcfg.EnvOrDefault("CACHE_PATH", "data/geocode-cache.db"),
		RedisAddr:     sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       p.int("REDIS_DB", "0"),
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),

		NominatimURL:       sharedcfg.EnvOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		NominatimUserAgent: sharedcfg.EnvOrDefault("NOMINATIM_USER_AGENT", "forest-data-etl"),
		NominatimRate:      p.float("NOMINATIM_RATE", "1"),
		GoogleMapsAPIKey:   os.Getenv("GOOGLE_MAPS_API_KEY"),
		MapboxToken:        os.Getenv("MAPBOX_TOKEN"),

		KafkaEnabled:   sharedcfg.EnvOrDefault("KAFKA_ENABLED", "false") == "true",
		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "forest-records"),
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.RunInterval <= 0 {
		return errors.New("invalid RUN_INTERVAL: must be positive")
	}
	if c.FacilityMatchThreshold <= 0 || c.FacilityMatchThreshold > 1 {
		return errors.New("invalid FACILITY_MATCH_THRESHOLD: must be in (0,1]")
	}
	if c.ClosureMatchThreshold <= 0 || c.ClosureMatchThreshold > 1 {
		return errors.New("invalid CLOSURE_MATCH_THRESHOLD: must be in (0,1]")
	}
	if len(c.GeocodeProviders) == 0 {
		return errors.New("GEOCODE_PROVIDERS is required")
	}
	for _, name := range c.GeocodeProviders {
		if !knownProvider(name) {
			return fmt.Errorf("invalid GEOCODE_PROVIDERS: unknown provider %q", name)
		}
	}
	if c.GeocodeUpgradeProvider != "" && c.GeocodeUpgradeProvider != "none" && !knownProvider(c.GeocodeUpgradeProvider) {
		return fmt.Errorf("invalid GEOCODE_UPGRADE_PROVIDER: unknown provider %q", c.GeocodeUpgradeProvider)
	}
	if c.GeocodeMaxNewLookups < 0 {
		return errors.New("invalid GEOCODE_MAX_NEW_LOOKUPS: must be >= 0")
	}
	if c.GeocodeConcurrency < 1 {
		return errors.New("invalid GEOCODE_CONCURRENCY: must be >= 1")
	}
	if c.GeocodeTimeout <= 0 {
		return errors.New("invalid GEOCODE_TIMEOUT: must be positive")
	}
	if c.GeocodeMaxRetries < 0 {
		return errors.New("invalid GEOCODE_MAX_RETRIES: must be >= 0")
	}
	if c.GeocodeUpgradeQueueSize < 1 {
		return errors.New("invalid GEOCODE_UPGRADE_QUEUE_SIZE: must be >= 1")
	}
	switch c.CacheBackend {
	case CacheSQLite, CacheRedis, CacheMemory:
	case CachePostgres:
		if c.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required when CACHE_BACKEND is postgres")
		}
	default:
		return fmt.Errorf("invalid CACHE_BACKEND: %q", c.CacheBackend)
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required")
		}
		if c.KafkaSinkTopic == "" {
			return errors.New("KAFKA_SINK_TOPIC is required")
		}
	}
	return nil
}

// UpgradeEnabled reports whether background precision upgrades are configured.
func (c *Config) UpgradeEnabled() bool {
	return c.GeocodeUpgradeProvider != "" && c.GeocodeUpgradeProvider != "none"
}

func knownProvider(name string) bool {
	for _, k := range KnownProviders {
		if k == name {
			return true
		}
	}
	return false
}

// parser keeps the first parse error so Load reads as a flat list of fields.
type parser struct {
	err error
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}

func (p *parser) duration(key, def string) time.Duration {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		p.fail(key, err)
	}
	return d
}

func (p *parser) int(key, def string) int {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		p.fail(key, err)
	}
	return n
}

func (p *parser) float(key, def string) float64 {
	f, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, def), 64)
	if err != nil {
		p.fail(key, err)
	}
	return f
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.ToLower(strings.TrimSpace(part)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
