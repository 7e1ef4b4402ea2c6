// Package process implements the launcher's process manager: lifecycle
// state for every service, spawning, graceful stop with kill escalation,
// tool resolution and external-instance detection.
package process

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/Sakenfor/pixsim7-sub008/internal/config"
	"github.com/Sakenfor/pixsim7-sub008/internal/constants"
	"github.com/Sakenfor/pixsim7-sub008/internal/errors"
	"github.com/Sakenfor/pixsim7-sub008/internal/events"
	"github.com/Sakenfor/pixsim7-sub008/internal/logger"
	"github.com/Sakenfor/pixsim7-sub008/internal/state"
)

// detectProbeTimeout bounds the TCP probe used for external-instance
// detection at startup.
const detectProbeTimeout = 250 * time.Millisecond

// proc tracks one spawned service process until it exits.
type proc struct {
	cmd     *exec.Cmd
	logFile *os.File
	done    chan struct{} // closed once Wait returned
	waitErr error         // valid after done is closed
}

// Manager owns lifecycle state (status, pid, last error) for every service.
// Operations are synchronous on the caller's goroutine and serialized per
// service key, so at most one spawn or stop is in flight per service.
type Manager struct {
	cfg      config.ProcessManagerConfig
	defs     map[string]*config.ServiceDefinition
	order    []string
	registry *state.Registry
	bus      *events.Bus

	mu    sync.Mutex
	procs map[string]*proc
	locks map[string]*sync.Mutex
}

// New creates a process manager for the given definitions.
func New(cfg config.ProcessManagerConfig, defs []*config.ServiceDefinition, registry *state.Registry, bus *events.Bus) *Manager {
	m := &Manager{
		cfg:      cfg,
		defs:     make(map[string]*config.ServiceDefinition, len(defs)),
		registry: registry,
		bus:      bus,
		procs:    make(map[string]*proc),
		locks:    make(map[string]*sync.Mutex, len(defs)),
	}
	for _, def := range defs {
		m.defs[def.Key] = def
		m.order = append(m.order, def.Key)
		m.locks[def.Key] = &sync.Mutex{}
	}
	return m
}

// keyLock returns the per-service mutex serializing lifecycle operations.
func (m *Manager) keyLock(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lk, ok := m.locks[key]
	if !ok {
		lk = &sync.Mutex{}
		m.locks[key] = lk
	}
	return lk
}

// logFilePath returns the per-service log file the child's output is routed
// to; the log manager tails the same file.
func (m *Manager) logFilePath(key string) string {
	return filepath.Join(m.cfg.LogDir, key+".log")
}

// Start starts a service. Starting an already-RUNNING service is a no-op
// success. A declared required tool that cannot be resolved fails fast
// without spawning. Spawn failures are returned synchronously and never
// auto-retried.
func (m *Manager) Start(ctx context.Context, key string) error {
	def, ok := m.defs[key]
	if !ok {
		return errors.ServiceNotFound(key)
	}
	st, _ := m.registry.Get(key)

	lk := m.keyLock(key)
	lk.Lock()
	defer lk.Unlock()

	if st.Status() == state.StatusRunning {
		return nil
	}

	if def.RequiredTool != "" {
		if _, err := exec.LookPath(def.RequiredTool); err != nil {
			msg := fmt.Sprintf("required tool %q not found on PATH", def.RequiredTool)
			st.SetToolAvailability(false, msg)
			st.SetLastError(msg)
			st.SetStatus(state.StatusFailed)
			m.publish(events.ProcessFailed, key, map[string]interface{}{"error": msg})
			return errors.ToolUnavailable(key, def.RequiredTool)
		}
		st.SetToolAvailability(true, "")
	}

	st.SetStatus(state.StatusStarting)
	m.publish(events.ProcessStarting, key, nil)

	if def.Lifecycle != nil {
		if err := def.Lifecycle.Start(ctx); err != nil {
			st.SetLastError(err.Error())
			st.SetStatus(state.StatusFailed)
			m.publish(events.ProcessFailed, key, map[string]interface{}{"error": err.Error()})
			return errors.ServiceStartFailed(key, err)
		}
		st.SetStatus(state.StatusRunning)
		m.publish(events.ProcessStarted, key, nil)
		return nil
	}

	if err := m.spawn(def, st); err != nil {
		st.SetLastError(err.Error())
		st.SetStatus(state.StatusFailed)
		m.publish(events.ProcessFailed, key, map[string]interface{}{"error": err.Error()})
		return errors.ServiceStartFailed(key, err)
	}

	st.SetStatus(state.StatusRunning)
	m.publish(events.ProcessStarted, key, map[string]interface{}{"pid": st.PID()})
	return nil
}

// spawn launches the service program with stdout/stderr routed to its log
// file. Caller holds the key lock.
func (m *Manager) spawn(def *config.ServiceDefinition, st *state.ServiceState) error {
	if err := os.MkdirAll(m.cfg.LogDir, constants.DirPermissions); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logFile, err := os.OpenFile(m.logFilePath(def.Key), os.O_APPEND|os.O_CREATE|os.O_WRONLY, constants.FilePermissions)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	cmd := exec.Command(def.Program, def.Args...)
	cmd.Dir = def.Dir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if len(def.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range def.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}
	applySysProcAttr(cmd, m.cfg)

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("failed to spawn %s: %w", def.Program, err)
	}

	p := &proc{cmd: cmd, logFile: logFile, done: make(chan struct{})}
	m.mu.Lock()
	m.procs[def.Key] = p
	m.mu.Unlock()

	st.SetPID(cmd.Process.Pid)

	go m.reap(def.Key, p)

	logger.WithFields(logger.Fields{
		"service": def.Key,
		"pid":     cmd.Process.Pid,
		"program": def.Program,
	}).Info("Service started")
	return nil
}

// reap waits for the child to exit and records abnormal exits. A service
// that dies while RUNNING goes to FAILED; exits observed during a stop are
// the stop path's business.
func (m *Manager) reap(key string, p *proc) {
	p.waitErr = p.cmd.Wait()
	p.logFile.Close()
	close(p.done)

	lk := m.keyLock(key)
	lk.Lock()
	defer lk.Unlock()

	m.mu.Lock()
	if m.procs[key] == p {
		delete(m.procs, key)
	}
	m.mu.Unlock()

	st, ok := m.registry.Get(key)
	if !ok || st.Status() != state.StatusRunning {
		return
	}

	msg := "process exited unexpectedly"
	if p.waitErr != nil {
		msg = fmt.Sprintf("process exited unexpectedly: %v", p.waitErr)
	}
	st.SetLastError(msg)
	st.SetPID(0)
	st.SetStatus(state.StatusFailed)
	m.publish(events.ProcessFailed, key, map[string]interface{}{"error": msg})
	logger.WithField("service", key).Warn(msg)
}

// Stop stops a service. Stopping an already-STOPPED service is a no-op
// success. Graceful stops signal, wait, then escalate to bounded forceful
// kills; exhausted retries still force STOPPED so the launcher is never
// stuck believing a dead-looking service is alive.
func (m *Manager) Stop(ctx context.Context, key string, graceful bool) error {
	def, ok := m.defs[key]
	if !ok {
		return errors.ServiceNotFound(key)
	}
	st, _ := m.registry.Get(key)

	lk := m.keyLock(key)
	lk.Lock()
	defer lk.Unlock()

	if st.Status() == state.StatusStopped {
		return nil
	}

	st.SetStatus(state.StatusStopping)
	m.publish(events.ProcessStopping, key, nil)

	if def.Lifecycle != nil {
		err := def.Lifecycle.Stop(ctx, graceful)
		st.SetStatus(state.StatusStopped)
		if err != nil {
			st.SetLastError(err.Error())
			m.publish(events.ProcessStopped, key, map[string]interface{}{"error": err.Error()})
			return errors.ServiceStopFailed(key, err)
		}
		m.publish(events.ProcessStopped, key, nil)
		return nil
	}

	m.mu.Lock()
	p := m.procs[key]
	m.mu.Unlock()

	if p == nil {
		// Nothing we spawned is alive (failed earlier, or external).
		st.SetPID(0)
		st.SetStatus(state.StatusStopped)
		m.publish(events.ProcessStopped, key, nil)
		return nil
	}

	exited := false
	if graceful {
		if err := terminateProcess(p.cmd, m.cfg); err != nil {
			logger.WithError(err).WithField("service", key).Debug("Termination signal failed")
		}
		select {
		case <-p.done:
			exited = true
		case <-time.After(m.cfg.GracefulTimeout):
		}
	}

	if !exited {
		for attempt := 1; attempt <= m.cfg.KillRetryAttempts; attempt++ {
			if err := killProcess(p.cmd, m.cfg); err != nil {
				logger.WithError(err).WithFields(logger.Fields{
					"service": key,
					"attempt": attempt,
				}).Debug("Kill attempt failed")
			}
			select {
			case <-p.done:
				exited = true
			case <-time.After(m.cfg.KillRetryDelay):
			}
			if exited {
				break
			}
		}
	}

	st.SetPID(0)
	st.SetStatus(state.StatusStopped)

	if !exited {
		msg := fmt.Sprintf("process did not exit after %d kill attempts", m.cfg.KillRetryAttempts)
		st.SetLastError(msg)
		m.publish(events.ProcessStopped, key, map[string]interface{}{"forced": true, "error": msg})
		return errors.ServiceStopFailed(key, fmt.Errorf("%s", msg))
	}

	m.publish(events.ProcessStopped, key, nil)
	logger.WithField("service", key).Info("Service stopped")
	return nil
}

// Restart stops then starts a service. If the stop fails, the restart fails
// without attempting the start.
func (m *Manager) Restart(ctx context.Context, key string) error {
	if err := m.Stop(ctx, key, true); err != nil {
		return fmt.Errorf("restart aborted, stop failed: %w", err)
	}
	return m.Start(ctx, key)
}

// State returns a read-only snapshot of one service. Never blocks on I/O.
func (m *Manager) State(key string) (state.Snapshot, error) {
	st, ok := m.registry.Get(key)
	if !ok {
		return state.Snapshot{}, errors.ServiceNotFound(key)
	}
	return st.Snapshot(), nil
}

// AllStates returns snapshots of every service in definition order.
func (m *Manager) AllStates() []state.Snapshot {
	return m.registry.Snapshots()
}

// IsRunning reports whether a service's status is RUNNING.
func (m *Manager) IsRunning(key string) bool {
	st, ok := m.registry.Get(key)
	return ok && st.Status() == state.StatusRunning
}

// CheckToolAvailability re-resolves the declared required tool and updates
// the tool-availability fields only.
func (m *Manager) CheckToolAvailability(key string) (bool, error) {
	def, ok := m.defs[key]
	if !ok {
		return false, errors.ServiceNotFound(key)
	}
	st, _ := m.registry.Get(key)

	if def.RequiredTool == "" {
		st.SetToolAvailability(true, "")
		return true, nil
	}

	if _, err := exec.LookPath(def.RequiredTool); err != nil {
		msg := fmt.Sprintf("required tool %q not found on PATH", def.RequiredTool)
		st.SetToolAvailability(false, msg)
		return false, nil
	}
	st.SetToolAvailability(true, "")
	return true, nil
}

// DetectExternal probes the url of every stopped service for an instance
// already bound to it, letting the launcher coexist with externally started
// instances. Reachability is recorded on the detected fields, separate from
// the spawned pid.
func (m *Manager) DetectExternal(ctx context.Context) {
	for _, key := range m.order {
		def := m.defs[key]
		st, ok := m.registry.Get(key)
		if !ok || def.URL == "" || st.Status() != state.StatusStopped {
			continue
		}

		addr, err := urlHostPort(def.URL)
		if err != nil {
			continue
		}
		dialer := net.Dialer{Timeout: detectProbeTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			continue
		}
		conn.Close()

		st.SetDetected(0, true)
		m.publish(events.ProcessDetected, key, map[string]interface{}{"url": def.URL})
		logger.WithFields(logger.Fields{"service": key, "url": def.URL}).Info("Detected externally running instance")
	}
}

// Cleanup stops every running service, dependents before dependencies.
func (m *Manager) Cleanup(ctx context.Context) {
	for i := len(m.order) - 1; i >= 0; i-- {
		key := m.order[i]
		if !m.IsRunning(key) {
			continue
		}
		if err := m.Stop(ctx, key, true); err != nil {
			logger.WithError(err).WithField("service", key).Warn("Cleanup stop failed")
		}
	}
}

func (m *Manager) publish(eventType, key string, data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["service_key"] = key
	m.bus.Publish(events.New(eventType, "process-manager", data))
}
