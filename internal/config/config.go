// Package config loads runtime configuration from environment
// variables, with an optional .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration.
type Config struct {
	// XRPL
	Endpoints []string

	// Redis cache backend; empty addr selects the in-memory backend.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Postgres swap-record store (cmd/position). Empty disables it.
	PostgresDSN string

	// ClickHouse series archive. Empty disables archiving.
	ClickHouseDSN string

	// Cache sweeper
	SweepInterval time.Duration

	// Metrics listen address; empty disables the endpoint.
	MetricsAddr string
}

// Load reads configuration from the environment, after sourcing .env if
// one exists alongside the binary.
func Load() *Config {
	// Missing .env is the normal case in production.
	_ = godotenv.Load()

	return &Config{
		Endpoints: getEnvAsSlice("XRPL_ENDPOINTS", []string{
			"wss://xrplcluster.com",
			"wss://s1.ripple.com",
			"wss://s2.ripple.com",
		}, ","),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		PostgresDSN:   getEnv("POSTGRES_DSN", ""),
		ClickHouseDSN: getEnv("CLICKHOUSE_DSN", ""),

		SweepInterval: time.Duration(getEnvAsInt("CACHE_SWEEP_SECONDS", 300)) * time.Second,

		MetricsAddr: getEnv("METRICS_ADDR", ""),
	}
}

// Helper functions for parsing environment variables
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsSlice(key string, defaultVal []string, sep string) []string {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultVal
	}
	parts := strings.Split(valStr, sep)
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
