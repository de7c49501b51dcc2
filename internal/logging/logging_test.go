package logging_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmbmaps/tmbmaps/internal/logging"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := logging.New(logging.Config{
		Output:  &buf,
		Service: "tmb-gateway",
		Version: "1.2.3",
	})
	require.NoError(t, err)
	defer closer.Close()

	log.Info().Str("operation", "GetBusStops").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "tmb-gateway", entry["service"])
	assert.Equal(t, "1.2.3", entry["version"])
	assert.Equal(t, "GetBusStops", entry["operation"])
	assert.Contains(t, entry, "time")
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := logging.New(logging.Config{Output: &buf, Level: "WARN"})
	require.NoError(t, err)

	log.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	log.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := logging.New(logging.Config{Output: &buf, Format: "console"})
	require.NoError(t, err)

	log.Info().Msg("human readable")

	assert.Contains(t, buf.String(), "human readable")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestNew_File(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "gateway.log")

	log, closer, err := logging.New(logging.Config{Output: &buf, File: path})
	require.NoError(t, err)

	log.Error().Msg("to both")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both")
	assert.Contains(t, buf.String(), "to both")
}

func TestNew_InvalidConfig(t *testing.T) {
	_, _, err := logging.New(logging.Config{Level: "loud"})
	assert.Error(t, err)

	_, _, err = logging.New(logging.Config{Format: "xml"})
	assert.Error(t, err)
}
