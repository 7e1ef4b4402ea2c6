// Package state holds the mutable per-service runtime state shared by the
// process, health and log managers. Ownership is partitioned by field group:
// status and pids are written only by the process manager, health only by
// the health manager, the log buffer only by the log manager. The lock here
// makes individual reads and writes safe; the partition keeps the managers
// from racing each other on the same fields.
package state

import (
	"sync"

	"github.com/Sakenfor/pixsim7-sub008/internal/config"
)

// Status is the process-lifecycle status of a service.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusFailed   Status = "failed"
)

// Health is the reachability status of a service, independent of whether
// the launcher spawned it.
type Health string

const (
	HealthUnknown   Health = "unknown"
	HealthStarting  Health = "starting"
	HealthHealthy   Health = "healthy"
	HealthUnhealthy Health = "unhealthy"
	HealthStopped   Health = "stopped"
)

// ServiceState is the mutable runtime state for one service definition.
// Exactly one instance exists per definition key for the supervisor's
// lifetime.
type ServiceState struct {
	mu  sync.RWMutex
	key string

	// Owned by the process manager
	status        Status
	pid           int
	detectedPID   int
	external      bool
	lastError     string
	toolAvailable bool
	toolMessage   string

	// Owned by the health manager
	health Health

	// Owned by the log manager
	logLines []string
}

// Snapshot is an immutable copy of a ServiceState for readers.
type Snapshot struct {
	Key           string `json:"key"`
	Status        Status `json:"status"`
	Health        Health `json:"health"`
	PID           int    `json:"pid,omitempty"`
	DetectedPID   int    `json:"detected_pid,omitempty"`
	External      bool   `json:"external,omitempty"`
	LastError     string `json:"last_error,omitempty"`
	ToolAvailable bool   `json:"tool_available"`
	ToolMessage   string `json:"tool_message,omitempty"`
	LogLineCount  int    `json:"log_line_count"`
}

func newServiceState(key string) *ServiceState {
	return &ServiceState{
		key:           key,
		status:        StatusStopped,
		health:        HealthUnknown,
		toolAvailable: true,
	}
}

// Key returns the service key.
func (s *ServiceState) Key() string { return s.key }

// Status returns the current lifecycle status.
func (s *ServiceState) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SetStatus records a lifecycle transition. Process manager only.
func (s *ServiceState) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// PID returns the spawned process ID, 0 if none.
func (s *ServiceState) PID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pid
}

// SetPID records the spawned process ID. Process manager only.
func (s *ServiceState) SetPID(pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pid = pid
}

// SetDetected records an externally started instance. Process manager only.
func (s *ServiceState) SetDetected(pid int, external bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detectedPID = pid
	s.external = external
}

// LastError returns the most recent failure text.
func (s *ServiceState) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// SetLastError records failure text. Written by the process manager on
// spawn/stop failures and by the log manager on error-marked lines.
func (s *ServiceState) SetLastError(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = text
}

// SetToolAvailability records whether the declared required tool resolves.
// Process manager only.
func (s *ServiceState) SetToolAvailability(available bool, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolAvailable = available
	s.toolMessage = message
}

// Health returns the current health status.
func (s *ServiceState) Health() Health {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.health
}

// SetHealth records a health transition. Health manager only.
func (s *ServiceState) SetHealth(health Health) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health = health
}

// AppendLog appends a formatted line to the bounded buffer, evicting the
// oldest lines beyond maxLines. Log manager only.
func (s *ServiceState) AppendLog(line string, maxLines int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logLines = append(s.logLines, line)
	if maxLines > 0 && len(s.logLines) > maxLines {
		s.logLines = append([]string(nil), s.logLines[len(s.logLines)-maxLines:]...)
	}
}

// Logs returns a copy of the buffered lines, oldest first.
func (s *ServiceState) Logs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.logLines...)
}

// ClearLogs empties the buffer. Log manager only.
func (s *ServiceState) ClearLogs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logLines = nil
}

// Snapshot returns a copy of the current state for readers.
func (s *ServiceState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Key:           s.key,
		Status:        s.status,
		Health:        s.health,
		PID:           s.pid,
		DetectedPID:   s.detectedPID,
		External:      s.external,
		LastError:     s.lastError,
		ToolAvailable: s.toolAvailable,
		ToolMessage:   s.toolMessage,
		LogLineCount:  len(s.logLines),
	}
}

// Registry holds exactly one ServiceState per definition key.
type Registry struct {
	keys   []string
	states map[string]*ServiceState
}

// NewRegistry creates one state per definition, preserving definition order.
func NewRegistry(defs []*config.ServiceDefinition) *Registry {
	r := &Registry{states: make(map[string]*ServiceState, len(defs))}
	for _, def := range defs {
		if _, exists := r.states[def.Key]; exists {
			continue
		}
		r.keys = append(r.keys, def.Key)
		r.states[def.Key] = newServiceState(def.Key)
	}
	return r
}

// Get returns the state for a key.
func (r *Registry) Get(key string) (*ServiceState, bool) {
	s, ok := r.states[key]
	return s, ok
}

// Keys returns the service keys in definition order.
func (r *Registry) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Snapshots returns copies of every state in definition order.
func (r *Registry) Snapshots() []Snapshot {
	snapshots := make([]Snapshot, 0, len(r.keys))
	for _, key := range r.keys {
		snapshots = append(snapshots, r.states[key].Snapshot())
	}
	return snapshots
}
