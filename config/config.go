// Package config loads process settings from the environment and the
// symbol × interval job list from a YAML file.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	DataDir       string

	// Indicator engine control endpoint
	EngineHTTPAddr string
	// Live engine indicators, "TYPE:PARAM,..."; empty means defaults
	IndicatorSpecs string

	// Binance endpoints
	BinanceBaseURL string
	BinanceWSURL   string
	HTTPTimeout    time.Duration

	LogLevel string

	// Rows per model input window
	SequenceLength int

	JobsFile string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/candles.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		DataDir:       getEnv("DATA_DIR", "data"),

		EngineHTTPAddr: getEnv("INDENGINE_HTTP_ADDR", ":9095"),
		IndicatorSpecs: getEnv("INDICATOR_CONFIGS", ""),

		BinanceBaseURL: getEnv("BINANCE_BASE_URL", "https://api.binance.us/api/v3"),
		BinanceWSURL:   getEnv("BINANCE_WS_URL", "wss://stream.binance.us:9443/stream"),
		HTTPTimeout:    getDuration("HTTP_TIMEOUT", 10*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		SequenceLength: getInt("SEQUENCE_LENGTH", 60),

		JobsFile: getEnv("JOBS_FILE", "jobs.yaml"),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[config] ignoring invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[config] ignoring invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
