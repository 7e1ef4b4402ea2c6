package config

import (
	"time"

	"github.com/Sakenfor/pixsim7-sub008/internal/constants"
)

// ProcessManagerConfig configures the process manager. Construct once,
// immutable after the manager starts.
type ProcessManagerConfig struct {
	// LogDir is where per-service log files are written.
	LogDir string

	// GracefulTimeout is how long to wait after a termination signal
	// before escalating to a forceful kill.
	GracefulTimeout time.Duration

	// KillRetryAttempts and KillRetryDelay bound the forceful-kill loop.
	KillRetryAttempts int
	KillRetryDelay    time.Duration

	// WindowsCreateNoWindow suppresses console windows on Windows.
	WindowsCreateNoWindow bool

	// UnixUseProcessGroups starts spawned services in their own process
	// group so children are reclaimed on stop.
	UnixUseProcessGroups bool
}

// DefaultProcessManagerConfig returns the documented defaults.
func DefaultProcessManagerConfig(logDir string) ProcessManagerConfig {
	return ProcessManagerConfig{
		LogDir:                logDir,
		GracefulTimeout:       constants.DefaultGracefulTimeout,
		KillRetryAttempts:     constants.DefaultKillRetryAttempts,
		KillRetryDelay:        constants.DefaultKillRetryDelay,
		WindowsCreateNoWindow: true,
		UnixUseProcessGroups:  true,
	}
}

// HealthManagerConfig configures the health manager.
type HealthManagerConfig struct {
	// BaseInterval is the probing cadence while a service is not yet
	// continuously stable.
	BaseInterval time.Duration

	// AdaptiveEnabled switches between the three-tier cadence and a flat
	// BaseInterval cadence.
	AdaptiveEnabled bool

	// StartupInterval applies immediately after a service reaches RUNNING.
	StartupInterval time.Duration

	// StableInterval applies once a service has been continuously healthy
	// for StableDuration.
	StableInterval time.Duration
	StableDuration time.Duration

	// HTTPTimeout and TCPTimeout bound individual probes.
	HTTPTimeout time.Duration
	TCPTimeout  time.Duration

	// FailureThreshold is the number of consecutive failures required
	// before HEALTHY flips to UNHEALTHY.
	FailureThreshold int

	// VerboseEvents additionally publishes check_started/check_completed
	// events for every probe attempt.
	VerboseEvents bool
}

// DefaultHealthManagerConfig returns the documented defaults.
func DefaultHealthManagerConfig() HealthManagerConfig {
	return HealthManagerConfig{
		BaseInterval:     constants.DefaultHealthBaseInterval,
		AdaptiveEnabled:  true,
		StartupInterval:  constants.DefaultHealthStartupInterval,
		StableInterval:   constants.DefaultHealthStableInterval,
		StableDuration:   constants.DefaultHealthStableDuration,
		HTTPTimeout:      constants.DefaultHTTPProbeTimeout,
		TCPTimeout:       constants.DefaultTCPProbeTimeout,
		FailureThreshold: constants.DefaultFailureThreshold,
	}
}

// LogCallback is invoked for every retained log line. It must not be
// assumed panic-free; the log manager isolates it.
type LogCallback func(key, line, stream string)

// LogManagerConfig configures the log manager.
type LogManagerConfig struct {
	// LogDir is where per-service log files live.
	LogDir string

	// MaxLogLines caps the per-service in-memory buffer.
	MaxLogLines int

	// MonitorInterval is the tail polling cadence; MonitorEnabled gates
	// the background loop entirely.
	MonitorInterval time.Duration
	MonitorEnabled  bool

	// Callback receives every retained line.
	Callback LogCallback

	// PersistLogs appends in-process lines to the on-disk file.
	PersistLogs bool
}

// DefaultLogManagerConfig returns the documented defaults.
func DefaultLogManagerConfig(logDir string) LogManagerConfig {
	return LogManagerConfig{
		LogDir:          logDir,
		MaxLogLines:     constants.DefaultMaxLogLines,
		MonitorInterval: constants.DefaultLogMonitorInterval,
		MonitorEnabled:  true,
		PersistLogs:     true,
	}
}
