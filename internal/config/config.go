// Package config provides configuration loading for the scheduler daemon.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/logger"
)

// Defaults applied when neither environment variables nor the config
// file provide a value.
const (
	DefaultAPIHost  = "0.0.0.0"
	DefaultAPIPort  = 8080
	DefaultDBPort   = 5432
	DefaultDBName   = "market_data"
	DefaultWorkers  = 8
	DefaultTimeout  = 300 * time.Second
	DefaultTickRate = time.Second

	DefaultRateLimitCalls  = 10
	DefaultRateLimitPeriod = 60 * time.Second
)

// Config is the full daemon configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	API       APIConfig       `mapstructure:"api"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Collector CollectorConfig `mapstructure:"collector"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logger    logger.Config   `mapstructure:"logger"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Workers      int           `mapstructure:"workers"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Address returns the host:port listen address.
func (c APIConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SchedulerConfig holds scheduler loop settings.
type SchedulerConfig struct {
	// TickInterval is the loop granularity; at most one second.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// WorkerPoolSize bounds concurrent job executions.
	WorkerPoolSize int `mapstructure:"worker_pool_size"`
	// ShutdownGrace bounds the wait for in-flight workers on stop.
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
	// Timezone is the IANA zone used for cron evaluation.
	Timezone string `mapstructure:"timezone"`
	// MaxRetries and RetryDelay seed per-job retry defaults.
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// CollectorConfig holds upstream collector settings.
type CollectorConfig struct {
	// Timeout bounds a single collector call.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimitCalls/RateLimitPeriod seed every collector's limiter.
	RateLimitCalls  int           `mapstructure:"rate_limit_calls"`
	RateLimitPeriod time.Duration `mapstructure:"rate_limit_period"`

	FredAPIKey        string `mapstructure:"fred_api_key"`
	CoinbaseAPIKey    string `mapstructure:"coinbase_api_key"`
	CoinbaseAPISecret string `mapstructure:"coinbase_api_secret"`
}

// RedisConfig holds the optional Redis event mirror settings. Empty
// Addr disables the mirror.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// Load builds a Config from viper (env vars, optional config file,
// defaults). Call after viper has been initialized by the CLI.
func Load() (*Config, error) {
	setDefaults()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks required fields and bounds.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Scheduler.TickInterval > time.Second {
		return fmt.Errorf("scheduler.tick_interval must be <= 1s, got %v", c.Scheduler.TickInterval)
	}
	if c.Scheduler.WorkerPoolSize <= 0 {
		return fmt.Errorf("scheduler.worker_pool_size must be positive, got %d", c.Scheduler.WorkerPoolSize)
	}
	if c.Collector.RateLimitCalls <= 0 {
		return fmt.Errorf("collector.rate_limit_calls must be positive, got %d", c.Collector.RateLimitCalls)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("invalid scheduler.timezone %q: %w", c.Scheduler.Timezone, err)
	}
	return nil
}

// Location returns the scheduler's time.Location.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// setDefaults registers default values with viper.
func setDefaults() {
	viper.SetDefault("database.port", DefaultDBPort)
	viper.SetDefault("database.name", DefaultDBName)
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("api.host", DefaultAPIHost)
	viper.SetDefault("api.port", DefaultAPIPort)
	viper.SetDefault("api.workers", DefaultWorkers)
	viper.SetDefault("api.read_timeout", "15s")
	viper.SetDefault("api.write_timeout", "30s")

	viper.SetDefault("scheduler.tick_interval", DefaultTickRate.String())
	viper.SetDefault("scheduler.worker_pool_size", DefaultWorkers)
	viper.SetDefault("scheduler.shutdown_grace", "30s")
	viper.SetDefault("scheduler.timezone", "UTC")
	viper.SetDefault("scheduler.max_retries", 3)
	viper.SetDefault("scheduler.retry_delay", "60s")

	viper.SetDefault("collector.timeout", DefaultTimeout.String())
	viper.SetDefault("collector.rate_limit_calls", DefaultRateLimitCalls)
	viper.SetDefault("collector.rate_limit_period", DefaultRateLimitPeriod.String())

	viper.SetDefault("redis.channel", "scheduler:events")

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.encoding", "json")
}
