package config

import "github.com/spf13/viper"

// CacheConfig holds configuration for the local artifact cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Config holds all runtime configuration for a pulsar invocation.
// Values are populated from .pulsar.yaml, PULSAR_* env vars, and CLI flags.
type Config struct {
	BuildRoot string      `mapstructure:"build_root"`
	WorkDir   string      `mapstructure:"work_dir"`
	Strategy  string      `mapstructure:"strategy"`
	Workers   int         `mapstructure:"workers"`
	Telemetry string      `mapstructure:"telemetry"`
	Verbose   bool        `mapstructure:"verbose"`
	Cache     CacheConfig `mapstructure:"cache"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() Config {
	viper.SetDefault("build_root", ".")
	viper.SetDefault("work_dir", ".pulsar")
	viper.SetDefault("strategy", "isolated")
	viper.SetDefault("workers", 4)
	viper.SetDefault("telemetry", "")
	viper.SetDefault("verbose", false)
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.path", ".pulsar/cache.db")

	var cfg Config
	_ = viper.Unmarshal(&cfg)
	return cfg
}
