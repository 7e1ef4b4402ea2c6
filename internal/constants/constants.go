// Package constants defines application-wide constants to avoid magic numbers
package constants

import "time"

// Network and Port Constants
const (
	// DefaultServerPort is the default port for the launcher API server
	DefaultServerPort = 8765
)

// File System Permissions
const (
	// DirPermissions is the standard directory permissions for launcher directories
	DirPermissions = 0755

	// FilePermissions is the standard file permissions for launcher files
	FilePermissions = 0644
)

// Process Management
const (
	// DefaultGracefulTimeout is how long a graceful stop waits before escalating
	DefaultGracefulTimeout = 5 * time.Second

	// DefaultKillRetryAttempts is the number of forceful kill attempts
	DefaultKillRetryAttempts = 3

	// DefaultKillRetryDelay is the delay between forceful kill attempts
	DefaultKillRetryDelay = 500 * time.Millisecond
)

// Health Monitoring
const (
	// DefaultHealthBaseInterval is the probing cadence for unstable services
	DefaultHealthBaseInterval = 2 * time.Second

	// DefaultHealthStartupInterval is the probing cadence right after a service starts
	DefaultHealthStartupInterval = 500 * time.Millisecond

	// DefaultHealthStableInterval is the probing cadence for continuously healthy services
	DefaultHealthStableInterval = 5 * time.Second

	// DefaultHealthStableDuration is how long a service must stay healthy to be stable
	DefaultHealthStableDuration = 300 * time.Second

	// DefaultHTTPProbeTimeout is the timeout for HTTP health probes
	DefaultHTTPProbeTimeout = 800 * time.Millisecond

	// DefaultTCPProbeTimeout is the timeout for TCP health probes
	DefaultTCPProbeTimeout = 500 * time.Millisecond

	// DefaultFailureThreshold is the consecutive failures required before unhealthy
	DefaultFailureThreshold = 5
)

// Log Management
const (
	// DefaultMaxLogLines is the per-service in-memory log buffer cap
	DefaultMaxLogLines = 5000

	// DefaultLogMonitorInterval is the log file tail polling cadence
	DefaultLogMonitorInterval = 500 * time.Millisecond

	// DefaultLogTailLines is the default number of log lines to display
	DefaultLogTailLines = 100
)

// HTTP Configuration
const (
	// DefaultServerReadTimeout is the default server read timeout
	DefaultServerReadTimeout = 10 * time.Second

	// DefaultServerWriteTimeout is the default server write timeout
	DefaultServerWriteTimeout = 10 * time.Second

	// DefaultServerShutdownTimeout is the default server graceful shutdown timeout
	DefaultServerShutdownTimeout = 30 * time.Second
)

// Database Configuration
const (
	// DefaultMaxOpenConnections is the default maximum number of database connections
	DefaultMaxOpenConnections = 25

	// DefaultMaxIdleConnections is the default maximum number of idle database connections
	DefaultMaxIdleConnections = 5

	// DefaultEventHistoryLimit is the default page size for event history queries
	DefaultEventHistoryLimit = 100
)
