// Package config loads server configuration in three layers: built-in
// defaults, an optional YAML file, then environment variables with the
// DRIWET_ prefix (double underscore as the section separator, e.g.
// DRIWET_WEATHER__API_KEY).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/lucasmontegu/driwet-sub001/internal/lib/risk"
)

const envPrefix = "DRIWET_"

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig    `koanf:"server"`
	Cache    CacheConfig     `koanf:"cache"`
	Weather  WeatherConfig   `koanf:"weather"`
	Places   PlacesConfig    `koanf:"places"`
	Sampling SamplingConfig  `koanf:"sampling"`
	Risk     risk.Thresholds `koanf:"risk"`
	Refresh  RefreshConfig   `koanf:"refresh"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int           `koanf:"port"`
	CorsOrigins    []string      `koanf:"cors_origins"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// CacheConfig selects and tunes the geo-cell cache backend.
type CacheConfig struct {
	// Backend is "memory" or "postgres".
	Backend         string        `koanf:"backend"`
	PostgresURL     string        `koanf:"postgres_url"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// WeatherConfig holds weather provider settings and cache policy.
type WeatherConfig struct {
	APIKey        string        `koanf:"api_key"`
	BaseURL       string        `koanf:"base_url"`
	Timeout       time.Duration `koanf:"timeout"`
	TTL           time.Duration `koanf:"ttl"`
	AlertTTL      time.Duration `koanf:"alert_ttl"`
	AlertRadiusKm float64       `koanf:"alert_radius_km"`
	CellDecimals  int           `koanf:"cell_decimals"`
}

// PlacesConfig holds POI provider settings and cache policy. Place cells
// are coarser than weather cells and live for about a day.
type PlacesConfig struct {
	APIKey       string        `koanf:"api_key"`
	BaseURL      string        `koanf:"base_url"`
	Timeout      time.Duration `koanf:"timeout"`
	TTL          time.Duration `koanf:"ttl"`
	CellDecimals int           `koanf:"cell_decimals"`
	SearchLimit  int           `koanf:"search_limit"`
}

// SamplingConfig tunes route sampling.
type SamplingConfig struct {
	IntervalKm float64 `koanf:"interval_km"`
}

// RefreshConfig drives the adaptive polling policy and the background
// refresh of watched routes.
type RefreshConfig struct {
	FastInterval    time.Duration  `koanf:"fast_interval"`
	DefaultInterval time.Duration  `koanf:"default_interval"`
	WatchedRoutes   []WatchedRoute `koanf:"watched_routes"`
}

// WatchedRoute is a route the server re-analyzes in the background to
// keep its weather cells warm.
type WatchedRoute struct {
	ID          string      `koanf:"id"`
	Name        string      `koanf:"name"`
	Origin      Coordinates `koanf:"origin"`
	Destination Coordinates `koanf:"destination"`
	// Polyline optionally carries the route geometry as an encoded
	// polyline. Without it the route degrades to straight-line sampling.
	Polyline string `koanf:"polyline"`
}

// Coordinates is a lat/lng pair in config.
type Coordinates struct {
	Latitude  float64 `koanf:"latitude"`
	Longitude float64 `koanf:"longitude"`
}

// defaults returns the built-in configuration as a flat dotted-key map:
// quantization grid sizes, TTLs, poll cadences, and classifier thresholds.
func defaults() map[string]interface{} {
	m := map[string]interface{}{
		"server.port":            8080,
		"server.cors_origins":    []string{"*"},
		"server.request_timeout": 30 * time.Second,

		"cache.backend":          "memory",
		"cache.cleanup_interval": 10 * time.Minute,

		"weather.base_url":        "https://api.openweathermap.org",
		"weather.timeout":         15 * time.Second,
		"weather.ttl":             5 * time.Minute,
		"weather.alert_ttl":       5 * time.Minute,
		"weather.alert_radius_km": 25.0,
		"weather.cell_decimals":   2,

		"places.timeout":       15 * time.Second,
		"places.ttl":           24 * time.Hour,
		"places.cell_decimals": 1,
		"places.search_limit":  10,

		"sampling.interval_km": 20.0,

		"refresh.fast_interval":    3 * time.Minute,
		"refresh.default_interval": 15 * time.Minute,
	}

	t := risk.DefaultThresholds()
	m["risk.wind_moderate_ms"] = t.WindModerateMs
	m["risk.wind_high_ms"] = t.WindHighMs
	m["risk.wind_extreme_ms"] = t.WindExtremeMs
	m["risk.gust_moderate_ms"] = t.GustModerateMs
	m["risk.gust_high_ms"] = t.GustHighMs
	m["risk.gust_extreme_ms"] = t.GustExtremeMs
	m["risk.visibility_moderate_m"] = t.VisibilityModerateM
	m["risk.visibility_high_m"] = t.VisibilityHighM
	m["risk.visibility_extreme_m"] = t.VisibilityExtremeM
	m["risk.rain_moderate_mmh"] = t.RainModerateMmh
	m["risk.rain_high_mmh"] = t.RainHighMmh
	m["risk.rain_extreme_mmh"] = t.RainExtremeMmh
	m["risk.snow_moderate_mmh"] = t.SnowModerateMmh
	m["risk.snow_high_mmh"] = t.SnowHighMmh
	m["risk.snow_extreme_mmh"] = t.SnowExtremeMmh
	m["risk.hail_extreme_mmh"] = t.HailExtremeMmh

	return m
}

// Load builds the configuration: defaults, then the YAML file at path (if
// given), then DRIWET_ environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load config from environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the core cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535], got %d", c.Server.Port)
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "postgres" {
		return fmt.Errorf("cache.backend must be memory or postgres, got %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "postgres" && c.Cache.PostgresURL == "" {
		return fmt.Errorf("cache.postgres_url is required for the postgres backend")
	}
	if c.Sampling.IntervalKm <= 0 {
		return fmt.Errorf("sampling.interval_km must be positive, got %g", c.Sampling.IntervalKm)
	}
	if c.Weather.TTL <= 0 || c.Places.TTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.Refresh.FastInterval <= 0 || c.Refresh.DefaultInterval <= 0 {
		return fmt.Errorf("refresh intervals must be positive")
	}
	if c.Refresh.FastInterval > c.Refresh.DefaultInterval {
		return fmt.Errorf("refresh.fast_interval must not exceed refresh.default_interval")
	}
	return nil
}
