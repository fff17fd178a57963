package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field maps 1:1 to an env var.
type Config struct {
	// Terminal
	Env        string `mapstructure:"APP_ENV"` // development | production
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	LocationID int    `mapstructure:"LOCATION_ID"`
	TerminalID string `mapstructure:"TERMINAL_ID"`

	// Backend (system of record)
	BackendURL     string        `mapstructure:"BACKEND_URL"`
	BackendTimeout time.Duration `mapstructure:"BACKEND_TIMEOUT"`
	DeviceSecret   string        `mapstructure:"DEVICE_SECRET"`
	DeviceTokenTTL time.Duration `mapstructure:"DEVICE_TOKEN_TTL"`

	// Circuit breaker around the backend
	CBFailureThreshold int           `mapstructure:"CB_FAILURE_THRESHOLD"`
	CBSuccessThreshold int           `mapstructure:"CB_SUCCESS_THRESHOLD"`
	CBOpenTimeout      time.Duration `mapstructure:"CB_OPEN_TIMEOUT"`

	// Local Z-report archive. Empty disables postgres and keeps the archive in memory.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// Redis cache for the last closed session. Empty disables the cache.
	RedisURL           string        `mapstructure:"REDIS_URL"`
	LastClosedCacheTTL time.Duration `mapstructure:"LAST_CLOSED_CACHE_TTL"`

	// Business rules
	Timezone              string        `mapstructure:"TIMEZONE"`
	BusinessDayCutoffHour int           `mapstructure:"BUSINESS_DAY_CUTOFF_HOUR"`
	SearchDebounce        time.Duration `mapstructure:"SEARCH_DEBOUNCE"`
	SimilarityThreshold   float64       `mapstructure:"SIMILARITY_THRESHOLD"`
}

// Load reads configuration from environment variables (and optional .env file).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOCATION_ID", 0)
	v.SetDefault("TERMINAL_ID", "terminal-1")
	v.SetDefault("BACKEND_URL", "http://localhost:8000")
	v.SetDefault("BACKEND_TIMEOUT", 15*time.Second)
	v.SetDefault("DEVICE_SECRET", "")
	v.SetDefault("DEVICE_TOKEN_TTL", 5*time.Minute)
	v.SetDefault("CB_FAILURE_THRESHOLD", 5)
	v.SetDefault("CB_SUCCESS_THRESHOLD", 2)
	v.SetDefault("CB_OPEN_TIMEOUT", 30*time.Second)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("LAST_CLOSED_CACHE_TTL", 24*time.Hour)
	v.SetDefault("TIMEZONE", "Local")
	v.SetDefault("BUSINESS_DAY_CUTOFF_HOUR", 0)
	v.SetDefault("SEARCH_DEBOUNCE", 300*time.Millisecond)
	v.SetDefault("SIMILARITY_THRESHOLD", 0.75)

	// Optional .env file for local development; a missing file is not an error.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Location resolves the configured time zone used for business-day math.
// An unknown zone falls back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
