package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Sakenfor/pixsim7-sub008/internal/config"
	"github.com/Sakenfor/pixsim7-sub008/internal/errors"
	"github.com/Sakenfor/pixsim7-sub008/internal/events"
	"github.com/Sakenfor/pixsim7-sub008/internal/logger"
	"github.com/Sakenfor/pixsim7-sub008/internal/state"
)

// stopJoinTimeout bounds how long Stop waits for the polling loop.
const stopJoinTimeout = 2 * time.Second

// track carries per-service scheduling state for the adaptive cadence.
type track struct {
	consecFails  int
	healthySince time.Time
	lastCheck    time.Time
}

// Manager owns health state for every service. One background loop wakes at
// the startup cadence and probes the services whose adaptive interval has
// elapsed; probes for different services run in parallel so one slow
// service never delays another's check. Probe errors count toward the
// failure threshold and never escape the manager.
type Manager struct {
	cfg      config.HealthManagerConfig
	defs     map[string]*config.ServiceDefinition
	order    []string
	registry *state.Registry
	bus      *events.Bus

	mu     sync.Mutex
	tracks map[string]*track

	loopMu  sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New creates a health manager for the given definitions.
func New(cfg config.HealthManagerConfig, defs []*config.ServiceDefinition, registry *state.Registry, bus *events.Bus) *Manager {
	m := &Manager{
		cfg:      cfg,
		defs:     make(map[string]*config.ServiceDefinition, len(defs)),
		registry: registry,
		bus:      bus,
		tracks:   make(map[string]*track, len(defs)),
	}
	for _, def := range defs {
		m.defs[def.Key] = def
		m.order = append(m.order, def.Key)
		m.tracks[def.Key] = &track{}
	}
	return m
}

// Start launches the background polling loop. Idempotent.
func (m *Manager) Start() {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	if m.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	go m.loop(ctx, m.done)
	logger.Debug("Health monitoring started")
}

// Stop cancels the polling loop and waits briefly for it to finish. No new
// probes begin after cancellation is observed.
func (m *Manager) Stop() {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	if !m.running {
		return
	}

	m.cancel()
	select {
	case <-m.done:
	case <-time.After(stopJoinTimeout):
		logger.Warn("Health loop did not stop in time")
	}
	m.running = false
}

// IsRunning reports whether the polling loop is active.
func (m *Manager) IsRunning() bool {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	return m.running
}

// HealthOf returns the current health of a service.
func (m *Manager) HealthOf(key string) (state.Health, error) {
	st, ok := m.registry.Get(key)
	if !ok {
		return state.HealthUnknown, errors.ServiceNotFound(key)
	}
	return st.Health(), nil
}

func (m *Manager) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	// The loop wakes at the finest cadence; per-service intervals decide
	// which services are actually due each wake.
	tick := m.cfg.StartupInterval
	if !m.cfg.AdaptiveEnabled || tick <= 0 {
		tick = m.cfg.BaseInterval
	}
	if tick <= 0 {
		tick = time.Second
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkDue(ctx)
		}
	}
}

// checkDue probes every service whose interval has elapsed, in parallel.
func (m *Manager) checkDue(ctx context.Context) {
	now := time.Now()
	due := make([]string, 0, len(m.order))

	m.mu.Lock()
	for _, key := range m.order {
		tr := m.tracks[key]
		if now.Sub(tr.lastCheck) >= m.intervalFor(key, tr) {
			tr.lastCheck = now
			due = append(due, key)
		}
	}
	m.mu.Unlock()

	if len(due) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, key := range due {
		key := key
		g.Go(func() error {
			m.CheckService(gctx, key)
			return nil
		})
	}
	_ = g.Wait()
}

// intervalFor selects the probing cadence for a service. Caller holds m.mu.
func (m *Manager) intervalFor(key string, tr *track) time.Duration {
	if !m.cfg.AdaptiveEnabled {
		return m.cfg.BaseInterval
	}

	st, ok := m.registry.Get(key)
	if !ok {
		return m.cfg.BaseInterval
	}

	switch st.Health() {
	case state.HealthStarting:
		return m.cfg.StartupInterval
	case state.HealthHealthy:
		if !tr.healthySince.IsZero() && time.Since(tr.healthySince) >= m.cfg.StableDuration {
			return m.cfg.StableInterval
		}
	}
	return m.cfg.BaseInterval
}

// CheckService runs one health check for a service and applies the
// transition rules. Safe to call concurrently for different services.
func (m *Manager) CheckService(ctx context.Context, key string) {
	def, ok := m.defs[key]
	if !ok {
		return
	}
	st, ok := m.registry.Get(key)
	if !ok {
		return
	}

	// Health is a property of reachability, but a service the process
	// manager reports as not RUNNING is never probed.
	if st.Status() != state.StatusRunning {
		m.setHealth(st, key, healthForStatus(st.Status()))
		m.resetTrack(key)
		return
	}

	// First probe after RUNNING: the service is warming up.
	if st.Health() != state.HealthHealthy && st.Health() != state.HealthUnhealthy && st.Health() != state.HealthStarting {
		m.setHealth(st, key, state.HealthStarting)
	}

	probe, ok := probeFor(def, m.cfg)
	if !ok {
		// Nothing to probe; a running service with no endpoints is
		// reported healthy on liveness alone.
		m.recordSuccess(st, key)
		return
	}

	if m.cfg.VerboseEvents {
		m.bus.Publish(events.New(events.HealthCheckStarted, "health-manager",
			map[string]interface{}{"service_key": key}))
	}

	err := probe(ctx)

	if m.cfg.VerboseEvents {
		data := map[string]interface{}{"service_key": key, "success": err == nil}
		if err != nil {
			data["error"] = err.Error()
		}
		m.bus.Publish(events.New(events.HealthCheckCompleted, "health-manager", data))
	}

	if err != nil {
		m.recordFailure(st, def, key, err)
	} else {
		m.recordSuccess(st, key)
	}
}

// recordSuccess flips any non-healthy state to HEALTHY immediately: fail
// slow, recover fast.
func (m *Manager) recordSuccess(st *state.ServiceState, key string) {
	m.mu.Lock()
	tr := m.tracks[key]
	tr.consecFails = 0
	if tr.healthySince.IsZero() {
		tr.healthySince = time.Now()
	}
	m.mu.Unlock()

	m.setHealth(st, key, state.HealthHealthy)
}

// recordFailure counts a probe failure toward the debounce threshold.
func (m *Manager) recordFailure(st *state.ServiceState, def *config.ServiceDefinition, key string, err error) {
	m.mu.Lock()
	tr := m.tracks[key]
	tr.consecFails++
	tr.healthySince = time.Time{}
	fails := tr.consecFails
	m.mu.Unlock()

	switch st.Health() {
	case state.HealthHealthy:
		if fails >= m.cfg.FailureThreshold {
			logger.WithFields(logger.Fields{
				"service":  key,
				"failures": fails,
				"error":    err.Error(),
			}).Warn("Service became unhealthy")
			m.setHealth(st, key, state.HealthUnhealthy)
		}
	case state.HealthStarting:
		grace := def.HealthGraceAttempts
		if grace <= 0 {
			grace = m.cfg.FailureThreshold
		}
		if fails > grace {
			m.setHealth(st, key, state.HealthUnhealthy)
		}
	}
}

// setHealth applies a transition and publishes health.update when the value
// actually changed.
func (m *Manager) setHealth(st *state.ServiceState, key string, health state.Health) {
	previous := st.Health()
	if previous == health {
		return
	}
	st.SetHealth(health)
	m.bus.Publish(events.New(events.HealthUpdate, "health-manager", map[string]interface{}{
		"service_key": key,
		"health":      string(health),
		"previous":    string(previous),
	}))
}

func (m *Manager) resetTrack(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tr := m.tracks[key]
	tr.consecFails = 0
	tr.healthySince = time.Time{}
}

// healthForStatus maps non-running lifecycle statuses to health values.
func healthForStatus(status state.Status) state.Health {
	switch status {
	case state.StatusStarting:
		return state.HealthStarting
	case state.StatusStopped, state.StatusStopping, state.StatusFailed:
		return state.HealthStopped
	default:
		return state.HealthUnknown
	}
}
