package xdg

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDirRespectsXDGEnv(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "pixsim-launcher"), dir)
}

func TestDataDirRespectsXDGEnv(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_DATA_HOME", base)

	dir, err := DataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "pixsim-launcher"), dir)
}

func TestLogsDirUnderStateDir(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_STATE_HOME", base)

	dir, err := LogsDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "pixsim-launcher", "logs"), dir)
}

func TestConfigDirHomeFallback(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "pixsim-launcher"), dir)
}
