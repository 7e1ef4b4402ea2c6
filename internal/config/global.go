package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/Sakenfor/pixsim7-sub008/internal/constants"
	"github.com/Sakenfor/pixsim7-sub008/internal/xdg"
)

// GlobalConfig represents the launcher's own configuration
type GlobalConfig struct {
	Server   ServerConfig   `toml:"server"`
	Storage  StorageConfig  `toml:"storage"`
	Services ServicesConfig `toml:"services"`
}

type ServerConfig struct {
	Host string `toml:"host"` // Bind address (default localhost)
	Port int    `toml:"port"` // API server port (default 8765)
}

type StorageConfig struct {
	LogDir       string `toml:"log_dir"`       // Service log file location
	DatabasePath string `toml:"database_path"` // Event history database
}

type ServicesConfig struct {
	ManifestPath string `toml:"manifest_path"` // Location of services.toml
}

// DefaultGlobalConfig returns the default global configuration
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		Server: ServerConfig{
			Host: "localhost",
			Port: constants.DefaultServerPort,
		},
	}
}

// ConfigFilePath returns the path of the global config file
func ConfigFilePath() (string, error) {
	configDir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// LoadGlobalConfig loads the global configuration, falling back to defaults
// when no config file exists.
func LoadGlobalConfig() (*GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	path, err := ConfigFilePath()
	if err != nil {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the global configuration to the XDG config directory
func (c *GlobalConfig) Save() error {
	path, err := ConfigFilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, constants.FilePermissions)
}

// LogDir resolves the log directory, falling back to the XDG state dir.
func (c *GlobalConfig) LogDir() (string, error) {
	if c.Storage.LogDir != "" {
		return c.Storage.LogDir, nil
	}
	return xdg.LogsDir()
}

// ManifestPath resolves the services manifest path, falling back to the XDG
// config dir.
func (c *GlobalConfig) ManifestPath() (string, error) {
	if c.Services.ManifestPath != "" {
		return c.Services.ManifestPath, nil
	}
	configDir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "services.toml"), nil
}

// DatabasePath resolves the event history database path, falling back to the
// XDG data dir.
func (c *GlobalConfig) DatabasePath() (string, error) {
	if c.Storage.DatabasePath != "" {
		return c.Storage.DatabasePath, nil
	}
	dataDir, err := xdg.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "launcher.db"), nil
}
