package ailink

import "time"

// Config defines provider configuration for AILink.
//
// This is intentionally self-contained so it can later be extracted as a
// standalone library configuration subtree.
type Config struct {
	DefaultProvider string        `mapstructure:"default_provider"`
	DefaultTimeout  time.Duration `mapstructure:"default_timeout"`

	// Providers is a set of provider instances keyed by a user-defined id
	// (slug). Each instance declares its underlying driver via AIProvider.
	Providers map[string]ProviderInstanceConfig `mapstructure:"providers"`

	// Routing maps a role ("answer", "embed") to a provider id.
	Routing map[string]string `mapstructure:"routing"`
}

// ProviderInstanceConfig defines a configured provider instance
// (e.g. "feedlens-openai").
type ProviderInstanceConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// AIProvider is the provider type/driver identifier (e.g. "openai").
	AIProvider string `mapstructure:"ai_provider"`

	BaseURL string            `mapstructure:"base_url"`
	Models  map[string]string `mapstructure:"models"`
	Roles   []string          `mapstructure:"roles"`

	Credentials []CredentialConfig `mapstructure:"credentials"`
}

// CredentialConfig is a single credential for a provider instance.
//
// Multiple credentials enable key rotation and per-key rate limit handling.
type CredentialConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Label    string `mapstructure:"label"`
	APIKey   string `mapstructure:"api_key"`
	Priority int    `mapstructure:"priority"`
}
