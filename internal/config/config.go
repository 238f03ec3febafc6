// Package config loads collector settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Environment variable names.
const (
	EnvAPIToken        = "RAILWAY_API_TOKEN"
	EnvCustomerID      = "RAILWAY_CUSTOMER_ID"
	EnvWorkspaceID     = "RAILWAY_WORKSPACE_ID"
	EnvEndpoint        = "RAILWAY_API_ENDPOINT"
	EnvDatabaseURL     = "DATABASE_URL"
	EnvClickhouseDSN   = "CLICKHOUSE_DSN"
	EnvCollectInterval = "COLLECT_INTERVAL"
	EnvMetricsAddr     = "METRICS_ADDR"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogFormat       = "LOG_FORMAT"
)

// Defaults.
const (
	DefaultCollectInterval = 12 * time.Hour
	DefaultMetricsAddr     = ":9090"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

// Config holds runtime settings for the collector and report commands.
type Config struct {
	APIToken    string
	CustomerID  string
	WorkspaceID string
	Endpoint    string // optional override of the upstream GraphQL endpoint

	DatabaseURL   string
	ClickhouseDSN string // optional analytics mirror

	CollectInterval time.Duration
	MetricsAddr     string

	LogLevel  string
	LogFormat string
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables that are already set are never overridden. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// FromEnv builds a Config from environment variables, applying defaults.
func FromEnv() (*Config, error) {
	cfg := &Config{
		APIToken:        os.Getenv(EnvAPIToken),
		CustomerID:      os.Getenv(EnvCustomerID),
		WorkspaceID:     os.Getenv(EnvWorkspaceID),
		Endpoint:        os.Getenv(EnvEndpoint),
		DatabaseURL:     os.Getenv(EnvDatabaseURL),
		ClickhouseDSN:   os.Getenv(EnvClickhouseDSN),
		CollectInterval: DefaultCollectInterval,
		MetricsAddr:     getEnv(EnvMetricsAddr, DefaultMetricsAddr),
		LogLevel:        getEnv(EnvLogLevel, DefaultLogLevel),
		LogFormat:       getEnv(EnvLogFormat, DefaultLogFormat),
	}

	if v := os.Getenv(EnvCollectInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", EnvCollectInterval, err)
		}
		cfg.CollectInterval = d
	}
	return cfg, nil
}

// ValidateDatabase reports a missing database URL.
// Read-only commands need nothing else.
func (c *Config) ValidateDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("missing required configuration: %s", EnvDatabaseURL)
	}
	return nil
}

// Validate reports every missing value a collection cycle needs in one error.
func (c *Config) Validate() error {
	return c.validate(true)
}

// ValidateUpstream is Validate without the database requirement, for runs
// against in-memory storage.
func (c *Config) ValidateUpstream() error {
	return c.validate(false)
}

func (c *Config) validate(needDatabase bool) error {
	var missing []string
	if c.APIToken == "" {
		missing = append(missing, EnvAPIToken)
	}
	if c.CustomerID == "" {
		missing = append(missing, EnvCustomerID)
	}
	if c.WorkspaceID == "" {
		missing = append(missing, EnvWorkspaceID)
	}
	if needDatabase && c.DatabaseURL == "" {
		missing = append(missing, EnvDatabaseURL)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.CollectInterval <= 0 {
		return fmt.Errorf("%s must be positive, got %s", EnvCollectInterval, c.CollectInterval)
	}
	return nil
}

// NewLogger returns a logrus logger configured from LogLevel and LogFormat.
func (c *Config) NewLogger() (*log.Logger, error) {
	logger := log.New()
	if err := ConfigureLogger(logger, c.LogLevel, c.LogFormat); err != nil {
		return nil, err
	}
	return logger, nil
}

// ConfigureLogger applies level and format ("text" or "json") to logger.
func ConfigureLogger(logger *log.Logger, level, format string) error {
	if level == "" {
		level = DefaultLogLevel
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse %s: %w", EnvLogLevel, err)
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "text":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("unsupported %s %q", EnvLogFormat, format)
	}
	logger.SetOutput(os.Stdout)
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
