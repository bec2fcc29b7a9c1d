// Package config assembles the ingestion run configuration from the
// environment. The database target is either a single DATABASE_URL override
// or the individual POSTGRES_* variables with fixed defaults, matching the
// conventions of the companion query API.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/geopop/ingest/pkg/geoperrors"
)

// Config holds the database target and connection-retry settings.
type Config struct {
	// DatabaseURL, when set, overrides the individual POSTGRES_* fields.
	DatabaseURL string

	User     string
	Password string
	Host     string
	Port     int
	Database string

	// ConnectAttempts is the maximum number of connection attempts.
	ConnectAttempts int
	// ConnectBackoff is the fixed wait between attempts.
	ConnectBackoff time.Duration
	// ConnectTimeout bounds each individual attempt.
	ConnectTimeout time.Duration
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	for _, key := range []string{"DATABASE_URL", "POSTGRES_USER", "POSTGRES_PASSWORD",
		"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_DB",
		"INGEST_CONNECT_ATTEMPTS", "INGEST_CONNECT_BACKOFF", "INGEST_CONNECT_TIMEOUT"} {
		if err := v.BindEnv(key); err != nil {
			return nil, geoperrors.Wrap(err, geoperrors.ErrorTypeConfig, "failed to bind environment variable")
		}
	}

	v.SetDefault("POSTGRES_USER", "geopop")
	v.SetDefault("POSTGRES_PASSWORD", "geopop")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_DB", "geopop")
	v.SetDefault("INGEST_CONNECT_ATTEMPTS", 30)
	v.SetDefault("INGEST_CONNECT_BACKOFF", "2s")
	v.SetDefault("INGEST_CONNECT_TIMEOUT", "5s")

	cfg := &Config{
		DatabaseURL:     v.GetString("DATABASE_URL"),
		User:            v.GetString("POSTGRES_USER"),
		Password:        v.GetString("POSTGRES_PASSWORD"),
		Host:            v.GetString("POSTGRES_HOST"),
		Port:            v.GetInt("POSTGRES_PORT"),
		Database:        v.GetString("POSTGRES_DB"),
		ConnectAttempts: v.GetInt("INGEST_CONNECT_ATTEMPTS"),
		ConnectBackoff:  v.GetDuration("INGEST_CONNECT_BACKOFF"),
		ConnectTimeout:  v.GetDuration("INGEST_CONNECT_TIMEOUT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that would make a run
// impossible.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		if c.Port <= 0 || c.Port > 65535 {
			return geoperrors.Newf(geoperrors.ErrorTypeConfig, "invalid POSTGRES_PORT %d", c.Port)
		}
		if c.Database == "" {
			return geoperrors.New(geoperrors.ErrorTypeConfig, "POSTGRES_DB must not be empty")
		}
	}
	if c.ConnectAttempts < 1 {
		return geoperrors.Newf(geoperrors.ErrorTypeConfig, "INGEST_CONNECT_ATTEMPTS must be at least 1, got %d", c.ConnectAttempts)
	}
	if c.ConnectBackoff < 0 {
		return geoperrors.New(geoperrors.ErrorTypeConfig, "INGEST_CONNECT_BACKOFF must not be negative")
	}
	if c.ConnectTimeout <= 0 {
		return geoperrors.New(geoperrors.ErrorTypeConfig, "INGEST_CONNECT_TIMEOUT must be positive")
	}
	return nil
}

// ConnString returns the connection string for the configured target.
func (c *Config) ConnString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

// Target returns a loggable description of the target without credentials.
func (c *Config) Target() string {
	if c.DatabaseURL != "" {
		return "DATABASE_URL"
	}
	return fmt.Sprintf("%s:%d/%s", c.Host, c.Port, c.Database)
}
