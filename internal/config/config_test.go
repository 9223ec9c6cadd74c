package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "ws://127.0.0.1:8089", cfg.ServerURL)
	assert.Equal(t, 50, cfg.HistoryLimit)
	assert.Equal(t, 1000, cfg.ReconnectDelayMs)
	assert.Equal(t, 30000, cfg.ReconnectMaxDelayMs)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotEmpty(t, cfg.StateDir)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().ServerURL, cfg.ServerURL)
}

func TestLoadOverridesOnlyProvidedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server_url":"wss://gw.example.com","auth_token":"secret"}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://gw.example.com", cfg.ServerURL)
	assert.Equal(t, "secret", cfg.AuthToken)
	// Untouched fields keep their defaults.
	assert.Equal(t, 50, cfg.HistoryLimit)
	assert.Equal(t, 1000, cfg.ReconnectDelayMs)
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadNormalizesBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"history_limit":-3,"reconnect_delay_ms":0,"reconnect_max_delay_ms":10}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.HistoryLimit)
	assert.Equal(t, 1000, cfg.ReconnectDelayMs)
	assert.Equal(t, 30000, cfg.ReconnectMaxDelayMs)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.ServerURL = "wss://agent.internal"
	cfg.HistoryLimit = 20
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "wss://agent.internal", loaded.ServerURL)
	assert.Equal(t, 20, loaded.HistoryLimit)
}
