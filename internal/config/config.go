package config

import (
	"time"

	"github.com/feedlens/feedlens/internal/ailink"
)

// Config is the complete application configuration. It is loaded once at
// startup and passed by value into constructors; there is no mutable global
// configuration state.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Collector CollectorConfig `mapstructure:"collector"`
	AILink    ailink.Config   `mapstructure:"ailink"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
	Debug     DebugConfig     `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration for the status server.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// FeedConfig describes the upstream feed endpoint.
type FeedConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Token    string        `mapstructure:"token"`
	PageSize int           `mapstructure:"page_size"`
	Timeout  time.Duration `mapstructure:"timeout"`

	// Scope keys the persisted pacing state. Empty means the feed host.
	Scope string `mapstructure:"scope"`
}

// CollectorConfig holds collection-run defaults. Per-run flags override
// these; the rate profile itself comes from the built-in catalog.
type CollectorConfig struct {
	Profile   string `mapstructure:"profile"`
	MaxItems  int    `mapstructure:"max_items"`
	ChunkSize int    `mapstructure:"chunk_size"`

	// EmbedItems requests an embedding for each collected item so the ask
	// command can retrieve over them.
	EmbedItems bool `mapstructure:"embed_items"`

	BreakerThreshold   int           `mapstructure:"breaker_threshold"`
	BreakerResetWindow time.Duration `mapstructure:"breaker_reset_window"`
}

// LoggingConfig contains logging configuration.
// Valid profiles: SIMPLE (console, CLI tools), STRUCTURED (structured sinks,
// correlation IDs), ENTERPRISE (multiple sinks, policy enforcement).
type LoggingConfig struct {
	// Level controls the minimum log level.
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level.
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format).
	// Metrics are also available at the main HTTP port in JSON format.
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration.
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled controls whether pprof endpoints are exposed.
	// WARNING: Only enable in development/staging environments
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}
