// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingCredentials is returned by Validate when the TMB app id or key is unset.
var ErrMissingCredentials = errors.New("TMB_APP_ID and TMB_APP_KEY must be set")

// Config holds configuration shared by the gateway, the worker and the CLI.
type Config struct {
	// Service
	Port        string
	Environment string

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string

	// TMB
	TMBAppID      string
	TMBAppKey     string
	TMBBaseURL    string
	TMBTimeout    time.Duration
	TMBMaxRetries uint64

	// Telemetry
	OTelEnabled     bool
	OTLPEndpoint    string
	OTelSampleRatio float64

	// HTTP gateway
	CORSAllowedOrigins []string
	RequireTLS         bool

	// Worker
	ProbeInterval      time.Duration
	PubSubProjectID    string
	PubSubSubscription string
}

// Load reads configuration from environment variables. Files named in
// envFiles are loaded first when present; variables already set in the
// environment take precedence over them.
func Load(envFiles ...string) (Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", file, err)
		}
	}

	timeout, err := time.ParseDuration(getEnvOrDefault("TMB_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("parsing TMB_TIMEOUT: %w", err)
	}

	maxRetries, err := strconv.ParseUint(getEnvOrDefault("TMB_MAX_RETRIES", "0"), 10, 64)
	if err != nil {
		return Config{}, fmt.Errorf("parsing TMB_MAX_RETRIES: %w", err)
	}

	sampleRatio, err := strconv.ParseFloat(getEnvOrDefault("OTEL_SAMPLE_RATIO", "1"), 64)
	if err != nil {
		return Config{}, fmt.Errorf("parsing OTEL_SAMPLE_RATIO: %w", err)
	}

	probeInterval, err := time.ParseDuration(getEnvOrDefault("PROBE_INTERVAL", "1m"))
	if err != nil {
		return Config{}, fmt.Errorf("parsing PROBE_INTERVAL: %w", err)
	}

	return Config{
		Port:        getEnvOrDefault("APP_PORT", "8080"),
		Environment: getEnvOrDefault("APP_ENV", "development"),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		LogFile:   os.Getenv("LOG_FILE"),

		TMBAppID:      os.Getenv("TMB_APP_ID"),
		TMBAppKey:     os.Getenv("TMB_APP_KEY"),
		TMBBaseURL:    getEnvOrDefault("TMB_BASE_URL", "https://api.tmb.cat/v1"),
		TMBTimeout:    timeout,
		TMBMaxRetries: maxRetries,

		OTelEnabled:     os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint:    getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelSampleRatio: sampleRatio,

		CORSAllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		RequireTLS:         os.Getenv("REQUIRE_TLS") == "true",

		ProbeInterval:      probeInterval,
		PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSubscription: os.Getenv("PUBSUB_SUBSCRIPTION"),
	}, nil
}

// Validate reports configuration that would make every upstream call fail.
func (c Config) Validate() error {
	if c.TMBAppID == "" || c.TMBAppKey == "" {
		return ErrMissingCredentials
	}
	if c.TMBTimeout <= 0 {
		return fmt.Errorf("TMB_TIMEOUT must be positive, got %s", c.TMBTimeout)
	}
	return nil
}

// PubSubEnabled reports whether the worker should consume probe requests
// from Pub/Sub.
func (c Config) PubSubEnabled() bool {
	return c.PubSubProjectID != "" && c.PubSubSubscription != ""
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
