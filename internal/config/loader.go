// Package config provides configuration management for Feedlens: defaults,
// an optional YAML file discovered via XDG paths, and environment variable
// overrides with the FEEDLENS_ prefix. The loaded value is passed into
// constructors; nothing here is mutated after Load returns.
package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/feedlens/feedlens/internal/appid"
)

// Load builds the application configuration. cfgFile, when non-empty, names
// an explicit config file and missing-file errors become fatal; otherwise
// the XDG config paths are searched and absence is fine.
func Load(ctx context.Context, cfgFile string) (*Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	_ = ctx // reserved for future remote config sources

	identity := appid.Get()

	v := viper.New()
	setDefaults(v)

	if strings.TrimSpace(cfgFile) != "" {
		v.SetConfigFile(cfgFile)
	} else {
		for _, path := range gfconfig.GetAppConfigPaths(identity.ConfigName) {
			v.AddConfigPath(filepath.Dir(path))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(identity.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		explicit := strings.TrimSpace(cfgFile) != ""
		if explicit || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := decode(v.AllSettings())
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	return cfg, nil
}

func decode(settings map[string]any) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("create config decoder: %w", err)
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	v.SetDefault("feed.base_url", "")
	v.SetDefault("feed.token", "")
	v.SetDefault("feed.page_size", 50)
	v.SetDefault("feed.timeout", "30s")
	v.SetDefault("feed.scope", "")

	v.SetDefault("collector.profile", "conservative")
	v.SetDefault("collector.max_items", 100)
	v.SetDefault("collector.chunk_size", 50)
	v.SetDefault("collector.embed_items", false)
	v.SetDefault("collector.breaker_threshold", 3)
	v.SetDefault("collector.breaker_reset_window", "10m")

	v.SetDefault("ailink.default_provider", "")
	v.SetDefault("ailink.default_timeout", "60s")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("health.enabled", true)
	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.pprof_enabled", false)
}

// appNamesForPaths returns the config and binary names from app identity.
func appNamesForPaths() (configName string, binaryName string) {
	identity := appid.Get()
	return identity.ConfigName, identity.BinaryName
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configName, _ := appNamesForPaths()
	configDir := gfconfig.GetAppConfigDir(configName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	configName, _ := appNamesForPaths()
	return gfconfig.GetAppDataDir(configName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	configName, binaryName := appNamesForPaths()
	dataDir := gfconfig.GetAppDataDir(configName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + binaryName + ".db"
	}
	return filepath.Join(dataDir, binaryName+".db")
}
