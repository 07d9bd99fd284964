// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// ErrInvalidConfig is returned when an environment variable cannot be parsed.
var ErrInvalidConfig = errors.New("invalid configuration")

// Routing providers.
const (
	ProviderOpenRouteService = "openrouteservice"
	ProviderMapbox           = "mapbox"
	ProviderNone             = "none"
)

// Config holds the API server configuration.
type Config struct {
	Port        string
	Environment string
	LogLevel    zerolog.Level

	TelemetryEnabled bool
	OTLPEndpoint     string

	// RoutingProvider is one of openrouteservice, mapbox or none.
	RoutingProvider string
	ORSAPIKey       string
	MapboxToken     string
	RoutingBaseURL  string
	RouteTimeout    time.Duration
	RouteCacheTTL   time.Duration

	// FacilitySeedPath overrides the embedded facility seed when set.
	FacilitySeedPath string

	NotificationTTL     time.Duration
	LowBalanceThreshold float64
	DonorMatchLimit     int

	RouteWarmup            bool
	RouteWarmupConcurrency int

	RequireTLS bool
}

// Load reads the optional dotenv files (".env" when none are given) and
// then builds a Config from the process environment. Variables already set
// in the environment win over the files.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv. Unset variables take their defaults;
// malformed values are reported, never defaulted.
func FromEnv(getenv func(string) string) (Config, error) {
	p := parser{getenv: getenv}

	cfg := Config{
		Port:             p.str("APP_PORT", "8080"),
		Environment:      p.str("APP_ENV", "development"),
		LogLevel:         p.level("LOG_LEVEL", zerolog.InfoLevel),
		TelemetryEnabled: p.boolean("OTEL_ENABLED", false),
		OTLPEndpoint:     p.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		RoutingProvider: strings.ToLower(p.str("ROUTING_PROVIDER", ProviderOpenRouteService)),
		ORSAPIKey:       getenv("ORS_API_KEY"),
		MapboxToken:     getenv("MAPBOX_TOKEN"),
		RoutingBaseURL:  getenv("ROUTING_BASE_URL"),
		RouteTimeout:    p.duration("ROUTE_TIMEOUT", 10*time.Second),
		RouteCacheTTL:   p.duration("ROUTE_CACHE_TTL", 5*time.Minute),

		FacilitySeedPath: getenv("FACILITY_SEED_PATH"),

		NotificationTTL:     p.duration("NOTIFICATION_TTL", 12*time.Second),
		LowBalanceThreshold: p.float("LOW_BALANCE_THRESHOLD", 10),
		DonorMatchLimit:     p.integer("DONOR_MATCH_LIMIT", 2),

		RouteWarmup:            p.boolean("ROUTE_WARMUP", false),
		RouteWarmupConcurrency: p.integer("ROUTE_WARMUP_CONCURRENCY", 3),

		RequireTLS: p.boolean("REQUIRE_TLS", false),
	}

	switch cfg.RoutingProvider {
	case ProviderOpenRouteService, ProviderMapbox, ProviderNone:
	default:
		p.fail("ROUTING_PROVIDER", cfg.RoutingProvider, "want openrouteservice, mapbox or none")
	}
	if cfg.NotificationTTL <= 0 {
		p.fail("NOTIFICATION_TTL", cfg.NotificationTTL.String(), "must be positive")
	}
	if cfg.DonorMatchLimit < 1 {
		p.fail("DONOR_MATCH_LIMIT", strconv.Itoa(cfg.DonorMatchLimit), "must be at least 1")
	}
	if cfg.RouteWarmupConcurrency < 1 {
		p.fail("ROUTE_WARMUP_CONCURRENCY", strconv.Itoa(cfg.RouteWarmupConcurrency), "must be at least 1")
	}

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// RoutingEnabled reports whether a routing provider is configured.
func (c Config) RoutingEnabled() bool {
	return c.RoutingProvider != ProviderNone
}

type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) fail(key, value, reason string) {
	p.errs = append(p.errs, fmt.Errorf("%w: %s=%q: %s", ErrInvalidConfig, key, value, reason))
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) boolean(key string, def bool) bool {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, "not a boolean")
		return def
	}
	return b
}

func (p *parser) integer(key string, def int) int {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, "not an integer")
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, "not a number")
		return def
	}
	return f
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, "not a duration")
		return def
	}
	return d
}

func (p *parser) level(key string, def zerolog.Level) zerolog.Level {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(v))
	if err != nil {
		p.fail(key, v, "not a log level")
		return def
	}
	return lvl
}
