// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/ChatSift/Social/pkg/logger"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration.
type Config struct {
	App           AppConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Discord       DiscordConfig
	Leveling      LevelingConfig
	HTTP          HTTPConfig
	Observability ObservabilityConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string      `env:"APP_NAME" envDefault:"leveler"`
	Environment Environment `env:"APP_ENV" envDefault:"development"`
	Debug       bool        `env:"APP_DEBUG" envDefault:"false"`
	Version     string      `env:"APP_VERSION" envDefault:"dev"`

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// StartupMaxAttempts bounds the dial attempts for Postgres and Redis.
	StartupMaxAttempts int `env:"STARTUP_MAX_ATTEMPTS" envDefault:"5"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL      string `env:"DATABASE_URL"`
	MaxConns int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns int32  `env:"DB_MIN_CONNS" envDefault:"2"`
}

// RedisConfig holds the eligibility store settings.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`

	// Disabled switches to the in-process store. Development only.
	Disabled bool `env:"REDIS_DISABLED" envDefault:"false"`
}

// DiscordConfig holds the bot credentials.
type DiscordConfig struct {
	Token string `env:"DISCORD_TOKEN"`
}

// LevelingConfig tunes the leveling core.
type LevelingConfig struct {
	SettingsCacheSize int           `env:"SETTINGS_CACHE_SIZE" envDefault:"1024"`
	SettingsCacheTTL  time.Duration `env:"SETTINGS_CACHE_TTL" envDefault:"30s"`
}

// HTTPConfig holds the health endpoint settings.
type HTTPConfig struct {
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`
}

// ObservabilityConfig holds logging and tracing settings.
type ObservabilityConfig struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// TracingEndpoint is the OTLP/HTTP endpoint. Empty disables tracing.
	TracingEndpoint    string  `env:"TRACING_ENDPOINT"`
	TracingSampleRatio float64 `env:"TRACING_SAMPLE_RATIO" envDefault:"1"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom loads configuration from the given variables instead of the
// process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return load(env.Options{Environment: vars})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	switch c.App.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		errs = append(errs, fmt.Sprintf("APP_ENV must be development, staging or production (got %q)", c.App.Environment))
	}

	if c.App.ShutdownTimeout <= 0 {
		errs = append(errs, "APP_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.App.StartupMaxAttempts < 1 {
		errs = append(errs, "STARTUP_MAX_ATTEMPTS must be >= 1")
	}
	if c.Database.MinConns < 0 || c.Database.MaxConns < 1 || c.Database.MinConns > c.Database.MaxConns {
		errs = append(errs, "DB_MIN_CONNS/DB_MAX_CONNS must satisfy 0 <= min <= max, max >= 1")
	}
	if c.Redis.Disabled && c.IsProduction() {
		errs = append(errs, "REDIS_DISABLED is not allowed in production")
	}
	if c.Leveling.SettingsCacheSize < 1 {
		errs = append(errs, "SETTINGS_CACHE_SIZE must be >= 1")
	}
	if c.Leveling.SettingsCacheTTL < 0 {
		errs = append(errs, "SETTINGS_CACHE_TTL cannot be negative")
	}
	if r := c.Observability.TracingSampleRatio; r < 0 || r > 1 {
		errs = append(errs, "TRACING_SAMPLE_RATIO must be within [0, 1]")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// RequireDatabase reports a missing DATABASE_URL.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// RequireDiscord reports a missing DISCORD_TOKEN.
func (c *Config) RequireDiscord() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("DISCORD_TOKEN is required")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// StrictAssertions reports whether failed debug assertions should fail the
// call chain instead of being logged.
func (c *Config) StrictAssertions() bool {
	return !c.IsProduction()
}

// LogLevel returns the effective log level. APP_DEBUG forces debug.
func (c *Config) LogLevel() slog.Level {
	if c.App.Debug {
		return slog.LevelDebug
	}
	return logger.ParseLevel(c.Observability.LogLevel)
}
