// Package config loads the lms-cache configuration from file, environment
// and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/lms-tenant-cache/pkg/cache"
	"github.com/Sternrassler/lms-tenant-cache/pkg/logging"
	"github.com/Sternrassler/lms-tenant-cache/pkg/warmup"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. LMS_CACHE_REDIS_ADDR.
const EnvPrefix = "LMS_CACHE"

// Config is the complete service configuration.
type Config struct {
	Backend  string         `mapstructure:"backend" validate:"oneof=redis memory"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Breaker  BreakerConfig  `mapstructure:"breaker"`
	Database DatabaseConfig `mapstructure:"database"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Log      LogConfig      `mapstructure:"log"`
	Warmup   WarmupConfig   `mapstructure:"warmup"`
}

// RedisConfig locates the Redis server used by the redis backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0,max=15"`
}

// CacheConfig configures the store. Namespace must not be empty: flushing
// the namespace would otherwise empty the whole database.
type CacheConfig struct {
	Namespace   string        `mapstructure:"namespace" validate:"required"`
	OpTimeout   time.Duration `mapstructure:"op_timeout" validate:"gt=0"`
	BulkTimeout time.Duration `mapstructure:"bulk_timeout" validate:"gt=0"`
	LoadTimeout time.Duration `mapstructure:"load_timeout" validate:"gt=0"`
	Coalesce    bool          `mapstructure:"coalesce"`
}

// BreakerConfig configures the circuit breaker in front of the backend.
type BreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      uint32        `mapstructure:"max_requests" validate:"min=1"`
	Interval         time.Duration `mapstructure:"interval" validate:"gte=0"`
	Timeout          time.Duration `mapstructure:"timeout" validate:"gt=0"`
	FailureThreshold float64       `mapstructure:"failure_threshold" validate:"gt=0,lte=1"`
	MinRequests      uint32        `mapstructure:"min_requests" validate:"min=1"`
}

// DatabaseConfig selects the LMS database the loaders read from.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	DSN    string `mapstructure:"dsn" validate:"required"`
}

// HTTPConfig configures the admin API listener.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// LogConfig configures logging. File enables rotation through lumberjack.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Pretty bool   `mapstructure:"pretty"`
	File   string `mapstructure:"file"`
}

// WarmupConfig sizes the warm-up worker pool.
type WarmupConfig struct {
	Workers     int           `mapstructure:"workers" validate:"min=1,max=64"`
	ItemTimeout time.Duration `mapstructure:"item_timeout" validate:"gt=0"`
}

// Load reads the configuration. path names an explicit config file; when
// empty, lms-cache.yaml is looked up in /etc/lms-cache/, $HOME/.lms-cache
// and the working directory, and a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("lms-cache")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/lms-cache/")
		v.AddConfigPath("$HOME/.lms-cache")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; using defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	store := cache.DefaultConfig()
	runner := warmup.DefaultConfig()

	v.SetDefault("backend", "redis")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.namespace", store.Namespace)
	v.SetDefault("cache.op_timeout", store.OpTimeout)
	v.SetDefault("cache.bulk_timeout", store.BulkTimeout)
	v.SetDefault("cache.load_timeout", store.LoadTimeout)
	v.SetDefault("cache.coalesce", store.Coalesce)
	v.SetDefault("breaker.enabled", store.Breaker.Enabled)
	v.SetDefault("breaker.max_requests", store.Breaker.MaxRequests)
	v.SetDefault("breaker.interval", store.Breaker.Interval)
	v.SetDefault("breaker.timeout", store.Breaker.Timeout)
	v.SetDefault("breaker.failure_threshold", store.Breaker.FailureThreshold)
	v.SetDefault("breaker.min_requests", store.Breaker.MinRequests)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:lms.db?cache=shared")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.file", "")
	v.SetDefault("warmup.workers", runner.Workers)
	v.SetDefault("warmup.item_timeout", runner.ItemTimeout)
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Backend == "redis" && c.Redis.Addr == "" {
		return errors.New("invalid config: redis.addr is required for the redis backend")
	}
	return nil
}

// StoreConfig converts the cache and breaker sections.
func (c *Config) StoreConfig() cache.Config {
	return cache.Config{
		Namespace:   c.Cache.Namespace,
		OpTimeout:   c.Cache.OpTimeout,
		BulkTimeout: c.Cache.BulkTimeout,
		LoadTimeout: c.Cache.LoadTimeout,
		Coalesce:    c.Cache.Coalesce,
		Breaker: cache.BreakerConfig{
			Enabled:          c.Breaker.Enabled,
			MaxRequests:      c.Breaker.MaxRequests,
			Interval:         c.Breaker.Interval,
			Timeout:          c.Breaker.Timeout,
			FailureThreshold: c.Breaker.FailureThreshold,
			MinRequests:      c.Breaker.MinRequests,
		},
	}
}

// LoggingConfig converts the log section.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	cfg.File.Path = c.Log.File
	return cfg
}

// RunnerConfig converts the warmup section.
func (c *Config) RunnerConfig() warmup.Config {
	return warmup.Config{Workers: c.Warmup.Workers, ItemTimeout: c.Warmup.ItemTimeout}
}
