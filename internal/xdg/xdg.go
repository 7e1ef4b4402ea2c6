// Package xdg provides XDG Base Directory Specification compliant paths
package xdg

import (
	"os"
	"path/filepath"
)

const appDir = "pixsim-launcher"

// ConfigDir returns the XDG config directory for the launcher
// Priority: XDG_CONFIG_HOME > ~/.config/pixsim-launcher
func ConfigDir() (string, error) {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, appDir), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", appDir), nil
}

// DataDir returns the XDG data directory for the launcher
// Priority: XDG_DATA_HOME > ~/.local/share/pixsim-launcher
func DataDir() (string, error) {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, appDir), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".local", "share", appDir), nil
}

// StateDir returns the XDG state directory for the launcher, the default
// home of service log files.
// Priority: XDG_STATE_HOME > ~/.local/state/pixsim-launcher
func StateDir() (string, error) {
	if xdgState := os.Getenv("XDG_STATE_HOME"); xdgState != "" {
		return filepath.Join(xdgState, appDir), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".local", "state", appDir), nil
}

// LogsDir returns the default directory for service log files.
func LogsDir() (string, error) {
	stateDir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(stateDir, "logs"), nil
}
