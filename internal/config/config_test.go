package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmbmaps/tmbmaps/internal/config"
)

var configKeys = []string{
	"APP_PORT", "APP_ENV", "LOG_LEVEL", "LOG_FORMAT", "LOG_FILE",
	"TMB_APP_ID", "TMB_APP_KEY", "TMB_BASE_URL", "TMB_TIMEOUT", "TMB_MAX_RETRIES",
	"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_SAMPLE_RATIO",
	"CORS_ALLOWED_ORIGINS", "REQUIRE_TLS",
	"PROBE_INTERVAL", "PUBSUB_PROJECT_ID", "PUBSUB_SUBSCRIPTION",
}

// clearEnv unsets every config key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Empty(t, cfg.LogFile)
	assert.Equal(t, "https://api.tmb.cat/v1", cfg.TMBBaseURL)
	assert.Equal(t, 10*time.Second, cfg.TMBTimeout)
	assert.Equal(t, uint64(0), cfg.TMBMaxRetries)
	assert.False(t, cfg.OTelEnabled)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.InDelta(t, 1.0, cfg.OTelSampleRatio, 0.0001)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.RequireTLS)
	assert.Equal(t, time.Minute, cfg.ProbeInterval)
	assert.False(t, cfg.PubSubEnabled())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_PORT", "9090")
	t.Setenv("APP_ENV", "production")
	t.Setenv("TMB_APP_ID", "id")
	t.Setenv("TMB_APP_KEY", "key")
	t.Setenv("TMB_TIMEOUT", "3s")
	t.Setenv("TMB_MAX_RETRIES", "2")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("REQUIRE_TLS", "true")
	t.Setenv("PROBE_INTERVAL", "5m")
	t.Setenv("PUBSUB_PROJECT_ID", "tmb-maps")
	t.Setenv("PUBSUB_SUBSCRIPTION", "probe-requests")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "id", cfg.TMBAppID)
	assert.Equal(t, "key", cfg.TMBAppKey)
	assert.Equal(t, 3*time.Second, cfg.TMBTimeout)
	assert.Equal(t, uint64(2), cfg.TMBMaxRetries)
	assert.True(t, cfg.OTelEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.RequireTLS)
	assert.Equal(t, 5*time.Minute, cfg.ProbeInterval)
	assert.Equal(t, "tmb-maps", cfg.PubSubProjectID)
	assert.True(t, cfg.PubSubEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"TMB_TIMEOUT", "soon"},
		{"TMB_MAX_RETRIES", "-1"},
		{"OTEL_SAMPLE_RATIO", "half"},
		{"PROBE_INTERVAL", "hourly"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := config.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("TMB_APP_KEY", "from-env")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TMB_APP_ID=from-file\nTMB_APP_KEY=file-key\n"), 0o600))

	cfg, err := config.Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.TMBAppID)
	// Real environment wins over the file
	assert.Equal(t, "from-env", cfg.TMBAppKey)
}

func TestValidate(t *testing.T) {
	valid := config.Config{TMBAppID: "id", TMBAppKey: "key", TMBTimeout: time.Second}
	assert.NoError(t, valid.Validate())

	missingKey := valid
	missingKey.TMBAppKey = ""
	assert.ErrorIs(t, missingKey.Validate(), config.ErrMissingCredentials)

	missingID := valid
	missingID.TMBAppID = ""
	assert.ErrorIs(t, missingID.Validate(), config.ErrMissingCredentials)

	badTimeout := valid
	badTimeout.TMBTimeout = 0
	assert.Error(t, badTimeout.Validate())
}
