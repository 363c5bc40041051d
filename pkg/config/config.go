// Package config loads stepflow settings from a YAML file and STEPFLOW_*
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/petrijr/stepflow/pkg/api"
)

// EnvPrefix is prepended to every environment variable, e.g.
// STEPFLOW_STORE_DRIVER or STEPFLOW_RETRY_DELAY.
const EnvPrefix = "STEPFLOW"

// Config holds the configuration for an embedding application.
type Config struct {
	Retry Retry `mapstructure:"retry"`
	Store Store `mapstructure:"store"`
	Queue Queue `mapstructure:"queue"`
	Log   Log   `mapstructure:"log"`
}

// Retry holds the workflow-wide dependency check defaults.
type Retry struct {
	Attempts int           `mapstructure:"attempts"`
	Delay    time.Duration `mapstructure:"delay"`
}

// RetryConfig converts r for use with stepflow.WithRetry.
func (r Retry) RetryConfig() api.RetryConfig {
	return api.RetryConfig{Attempts: r.Attempts, Delay: r.Delay}
}

// Store selects the record store backend.
type Store struct {
	Driver     string        `mapstructure:"driver"`
	DSN        string        `mapstructure:"dsn"`
	Prefix     string        `mapstructure:"prefix"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	Retention  time.Duration `mapstructure:"retention"`
}

// Queue selects the task queue used for background runs. The fields mean
// the same as in Store; Capacity bounds the in-memory queue.
type Queue struct {
	Driver     string `mapstructure:"driver"`
	DSN        string `mapstructure:"dsn"`
	Prefix     string `mapstructure:"prefix"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
	Capacity   int    `mapstructure:"capacity"`
	Workers    int    `mapstructure:"workers"`
}

// Log configures the engine logger.
type Log struct {
	Level   string `mapstructure:"level"`
	Backend string `mapstructure:"backend"` // slog or zap
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("retry.attempts", api.DefaultAttempts)
	v.SetDefault("retry.delay", api.DefaultDelay)
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.prefix", "stepflow:")
	v.SetDefault("store.database", "stepflow")
	v.SetDefault("store.collection", "records")
	v.SetDefault("store.retention", time.Duration(0))
	v.SetDefault("queue.driver", "memory")
	v.SetDefault("queue.dsn", "")
	v.SetDefault("queue.prefix", "stepflow:")
	v.SetDefault("queue.database", "stepflow")
	v.SetDefault("queue.collection", "run_tasks")
	v.SetDefault("queue.capacity", 1024)
	v.SetDefault("queue.workers", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.backend", "slog")
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		// Defaults are static and always decode.
		panic(err)
	}
	return cfg
}

// Load reads path (YAML, JSON or TOML by extension) when it is not empty,
// then applies environment overrides.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	cfg.Queue.Driver = strings.ToLower(strings.TrimSpace(cfg.Queue.Driver))
	cfg.Log.Backend = strings.ToLower(strings.TrimSpace(cfg.Log.Backend))
	return &cfg, nil
}
