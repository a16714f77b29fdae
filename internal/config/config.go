package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
)

// Config holds all configuration for the application.
type Config struct {
	// Sharding
	Shards    int // number of engine shards, each owned by one goroutine
	QueueSize int // pending requests buffered per shard

	// Queries
	SnapshotDepth int

	// Logging
	LogLevel  string
	LogPretty bool

	// Metrics, empty disables the HTTP endpoint
	MetricsAddr string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Shards:    getEnvInt("MATCHBOOK_SHARDS", 4),
		QueueSize: getEnvInt("MATCHBOOK_QUEUE_SIZE", 100),

		SnapshotDepth: getEnvInt("MATCHBOOK_SNAPSHOT_DEPTH", 5),

		LogLevel:  getEnv("MATCHBOOK_LOG_LEVEL", "info"),
		LogPretty: getEnvBool("MATCHBOOK_LOG_PRETTY", false),

		MetricsAddr: getEnv("MATCHBOOK_METRICS_ADDR", ""),
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Shards <= 0 {
		errs = append(errs, fmt.Errorf("shards must be positive, got %d", c.Shards))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("queue size must be positive, got %d", c.QueueSize))
	}
	if c.SnapshotDepth < 0 {
		errs = append(errs, fmt.Errorf("snapshot depth cannot be negative, got %d", c.SnapshotDepth))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	return errors.Join(errs...)
}

// Level returns the configured zerolog level, falling back to info.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// getEnv reads an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// getEnvInt reads an environment variable as int with a default value.
func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool reads an environment variable as bool with a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultValue
}
