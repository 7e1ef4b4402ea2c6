package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGlobalConfig(t *testing.T) {
	cfg := DefaultGlobalConfig()
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8765, cfg.Server.Port)
}

func TestGlobalConfigExplicitPaths(t *testing.T) {
	cfg := DefaultGlobalConfig()
	cfg.Storage.LogDir = "/tmp/launcher-logs"
	cfg.Storage.DatabasePath = "/tmp/launcher.db"
	cfg.Services.ManifestPath = "/tmp/services.toml"

	logDir, err := cfg.LogDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/launcher-logs", logDir)

	dbPath, err := cfg.DatabasePath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/launcher.db", dbPath)

	manifest, err := cfg.ManifestPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/services.toml", manifest)
}

func TestGlobalConfigXDGFallbacks(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg := DefaultGlobalConfig()

	logDir, err := cfg.LogDir()
	require.NoError(t, err)
	assert.Contains(t, logDir, "pixsim-launcher")

	manifest, err := cfg.ManifestPath()
	require.NoError(t, err)
	assert.Contains(t, manifest, "services.toml")
}
