//go:build !windows

package process

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sakenfor/pixsim7-sub008/internal/config"
	"github.com/Sakenfor/pixsim7-sub008/internal/events"
	"github.com/Sakenfor/pixsim7-sub008/internal/state"
)

func testConfig(t *testing.T) config.ProcessManagerConfig {
	t.Helper()
	cfg := config.DefaultProcessManagerConfig(t.TempDir())
	// Keep stop escalation fast under test.
	cfg.GracefulTimeout = 300 * time.Millisecond
	cfg.KillRetryDelay = 100 * time.Millisecond
	return cfg
}

func newTestManager(t *testing.T, defs ...*config.ServiceDefinition) (*Manager, *state.Registry, *events.Bus) {
	t.Helper()
	registry := state.NewRegistry(defs)
	bus := events.NewBus()
	m := New(testConfig(t), defs, registry, bus)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		m.Cleanup(ctx)
	})
	return m, registry, bus
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func recordEvents(bus *events.Bus, pattern string) *eventRecorder {
	r := &eventRecorder{}
	bus.Subscribe(pattern, func(e events.Event) {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
	})
	return r
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func TestStartAndStop(t *testing.T) {
	def := &config.ServiceDefinition{Key: "backend", Program: "sleep", Args: []string{"30"}}
	m, registry, bus := newTestManager(t, def)
	rec := recordEvents(bus, "process.*")

	require.NoError(t, m.Start(context.Background(), "backend"))

	st, _ := registry.Get("backend")
	assert.Equal(t, state.StatusRunning, st.Status())
	assert.NotZero(t, st.PID())
	assert.True(t, m.IsRunning("backend"))

	require.NoError(t, m.Stop(context.Background(), "backend", true))
	assert.Equal(t, state.StatusStopped, st.Status())
	assert.Zero(t, st.PID())
	assert.False(t, m.IsRunning("backend"))

	assert.Equal(t, []string{
		events.ProcessStarting,
		events.ProcessStarted,
		events.ProcessStopping,
		events.ProcessStopped,
	}, rec.types())
}

func TestStartIdempotentWhileRunning(t *testing.T) {
	def := &config.ServiceDefinition{Key: "backend", Program: "sleep", Args: []string{"30"}}
	m, registry, bus := newTestManager(t, def)

	require.NoError(t, m.Start(context.Background(), "backend"))
	st, _ := registry.Get("backend")
	pid := st.PID()

	rec := recordEvents(bus, "process.*")
	require.NoError(t, m.Start(context.Background(), "backend"))
	assert.Equal(t, pid, st.PID(), "second start must not respawn")
	assert.Empty(t, rec.types(), "no events for a no-op start")
}

func TestStopIdempotentWhileStopped(t *testing.T) {
	def := &config.ServiceDefinition{Key: "backend", Program: "sleep", Args: []string{"30"}}
	m, _, bus := newTestManager(t, def)

	rec := recordEvents(bus, "process.*")
	require.NoError(t, m.Stop(context.Background(), "backend", true))
	assert.Empty(t, rec.types(), "no events for a no-op stop")
}

func TestStartUnknownService(t *testing.T) {
	m, _, _ := newTestManager(t)
	assert.Error(t, m.Start(context.Background(), "missing"))
	assert.Error(t, m.Stop(context.Background(), "missing", true))
}

func TestStartSpawnFailure(t *testing.T) {
	def := &config.ServiceDefinition{Key: "backend", Program: "/nonexistent/program"}
	m, registry, bus := newTestManager(t, def)
	rec := recordEvents(bus, events.ProcessFailed)

	err := m.Start(context.Background(), "backend")
	require.Error(t, err)

	st, _ := registry.Get("backend")
	assert.Equal(t, state.StatusFailed, st.Status())
	assert.NotEmpty(t, st.LastError())
	require.Len(t, rec.types(), 1)
}

func TestStartToolUnavailableFailsFast(t *testing.T) {
	def := &config.ServiceDefinition{
		Key:          "backend",
		Program:      "sleep",
		Args:         []string{"30"},
		RequiredTool: "definitely-not-a-real-tool-xyz",
	}
	m, registry, _ := newTestManager(t, def)

	err := m.Start(context.Background(), "backend")
	require.Error(t, err)

	st, _ := registry.Get("backend")
	snap := st.Snapshot()
	assert.Equal(t, state.StatusFailed, snap.Status)
	assert.False(t, snap.ToolAvailable)
	assert.Contains(t, snap.ToolMessage, "definitely-not-a-real-tool-xyz")
	assert.Zero(t, snap.PID, "nothing was spawned")
}

func TestCheckToolAvailability(t *testing.T) {
	defs := []*config.ServiceDefinition{
		{Key: "plain", Program: "sleep", Args: []string{"30"}},
		{Key: "tooled", Program: "sleep", Args: []string{"30"}, RequiredTool: "sh"},
		{Key: "broken", Program: "sleep", Args: []string{"30"}, RequiredTool: "definitely-not-a-real-tool-xyz"},
	}
	m, registry, _ := newTestManager(t, defs...)

	ok, err := m.CheckToolAvailability("plain")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.CheckToolAvailability("tooled")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.CheckToolAvailability("broken")
	require.NoError(t, err)
	assert.False(t, ok)

	st, _ := registry.Get("broken")
	assert.Equal(t, state.StatusStopped, st.Status(), "tool check never changes status")

	_, err = m.CheckToolAvailability("missing")
	assert.Error(t, err)
}

func TestReapMarksUnexpectedExitFailed(t *testing.T) {
	def := &config.ServiceDefinition{Key: "backend", Program: "sh", Args: []string{"-c", "exit 3"}}
	m, registry, bus := newTestManager(t, def)
	rec := recordEvents(bus, events.ProcessFailed)

	require.NoError(t, m.Start(context.Background(), "backend"))

	st, _ := registry.Get("backend")
	require.Eventually(t, func() bool {
		return st.Status() == state.StatusFailed
	}, 5*time.Second, 20*time.Millisecond)

	assert.Contains(t, st.LastError(), "exited unexpectedly")
	assert.Zero(t, st.PID())
	require.Eventually(t, func() bool {
		return len(rec.types()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestStopEscalatesToKill(t *testing.T) {
	// The child ignores the termination signal, so the stop has to go
	// through the forceful-kill path.
	def := &config.ServiceDefinition{
		Key:     "stubborn",
		Program: "sh",
		Args:    []string{"-c", `trap "" TERM; while :; do sleep 0.2; done`},
	}
	m, registry, bus := newTestManager(t, def)
	rec := recordEvents(bus, events.ProcessStopped)

	require.NoError(t, m.Start(context.Background(), "stubborn"))

	start := time.Now()
	require.NoError(t, m.Stop(context.Background(), "stubborn", true))
	elapsed := time.Since(start)

	st, _ := registry.Get("stubborn")
	assert.Equal(t, state.StatusStopped, st.Status())
	assert.Zero(t, st.PID())
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond, "graceful window elapsed first")
	require.Len(t, rec.types(), 1)
}

func TestStopNonGracefulKillsImmediately(t *testing.T) {
	def := &config.ServiceDefinition{Key: "backend", Program: "sleep", Args: []string{"30"}}
	m, registry, _ := newTestManager(t, def)

	require.NoError(t, m.Start(context.Background(), "backend"))

	start := time.Now()
	require.NoError(t, m.Stop(context.Background(), "backend", false))
	assert.Less(t, time.Since(start), 300*time.Millisecond, "skips the graceful window")

	st, _ := registry.Get("backend")
	assert.Equal(t, state.StatusStopped, st.Status())
}

func TestRestart(t *testing.T) {
	def := &config.ServiceDefinition{Key: "backend", Program: "sleep", Args: []string{"30"}}
	m, registry, _ := newTestManager(t, def)

	require.NoError(t, m.Start(context.Background(), "backend"))
	st, _ := registry.Get("backend")
	firstPID := st.PID()

	require.NoError(t, m.Restart(context.Background(), "backend"))
	assert.Equal(t, state.StatusRunning, st.Status())
	assert.NotZero(t, st.PID())
	assert.NotEqual(t, firstPID, st.PID())
}

type fakeLifecycle struct {
	mu       sync.Mutex
	started  int
	stopped  int
	startErr error
	stopErr  error
}

func (f *fakeLifecycle) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	return f.startErr
}

func (f *fakeLifecycle) Stop(ctx context.Context, graceful bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return f.stopErr
}

func (f *fakeLifecycle) CheckHealth(ctx context.Context) error { return nil }

func TestLifecycleDelegation(t *testing.T) {
	hook := &fakeLifecycle{}
	def := &config.ServiceDefinition{Key: "db", Kind: config.KindDetached, Lifecycle: hook}
	m, registry, _ := newTestManager(t, def)

	require.NoError(t, m.Start(context.Background(), "db"))
	st, _ := registry.Get("db")
	assert.Equal(t, state.StatusRunning, st.Status())
	assert.Zero(t, st.PID(), "detached services have no spawned pid")

	require.NoError(t, m.Stop(context.Background(), "db", true))
	assert.Equal(t, state.StatusStopped, st.Status())

	hook.mu.Lock()
	assert.Equal(t, 1, hook.started)
	assert.Equal(t, 1, hook.stopped)
	hook.mu.Unlock()
}

func TestLifecycleStopFailureForcesStopped(t *testing.T) {
	hook := &fakeLifecycle{stopErr: errors.New("compose stop failed")}
	def := &config.ServiceDefinition{Key: "db", Kind: config.KindDetached, Lifecycle: hook}
	m, registry, _ := newTestManager(t, def)

	require.NoError(t, m.Start(context.Background(), "db"))
	err := m.Stop(context.Background(), "db", true)
	require.Error(t, err)

	st, _ := registry.Get("db")
	assert.Equal(t, state.StatusStopped, st.Status(), "status is forced to stopped even on failure")
	assert.Contains(t, st.LastError(), "compose stop failed")
}

func TestDetectExternal(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	defs := []*config.ServiceDefinition{
		{Key: "reachable", Program: "sleep", Args: []string{"30"}, URL: "http://" + ln.Addr().String()},
		{Key: "unreachable", Program: "sleep", Args: []string{"30"}, URL: "http://127.0.0.1:1"},
		{Key: "nourl", Program: "sleep", Args: []string{"30"}},
	}
	m, registry, bus := newTestManager(t, defs...)
	rec := recordEvents(bus, events.ProcessDetected)

	m.DetectExternal(context.Background())

	reachable, _ := registry.Get("reachable")
	assert.True(t, reachable.Snapshot().External)
	assert.Equal(t, state.StatusStopped, reachable.Status(), "detection never changes status")

	unreachable, _ := registry.Get("unreachable")
	assert.False(t, unreachable.Snapshot().External)

	require.Len(t, rec.types(), 1)
}

func TestCleanupStopsInReverseOrder(t *testing.T) {
	defs := []*config.ServiceDefinition{
		{Key: "db", Program: "sleep", Args: []string{"30"}},
		{Key: "backend", Program: "sleep", Args: []string{"30"}},
	}
	m, registry, bus := newTestManager(t, defs...)

	require.NoError(t, m.Start(context.Background(), "db"))
	require.NoError(t, m.Start(context.Background(), "backend"))

	var mu sync.Mutex
	var stopped []string
	bus.Subscribe(events.ProcessStopped, func(e events.Event) {
		mu.Lock()
		stopped = append(stopped, e.ServiceKey())
		mu.Unlock()
	})

	m.Cleanup(context.Background())

	db, _ := registry.Get("db")
	backend, _ := registry.Get("backend")
	assert.Equal(t, state.StatusStopped, db.Status())
	assert.Equal(t, state.StatusStopped, backend.Status())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"backend", "db"}, stopped, "dependents stop before dependencies")
}

func TestStateSnapshots(t *testing.T) {
	defs := []*config.ServiceDefinition{
		{Key: "db", Program: "sleep", Args: []string{"30"}},
		{Key: "backend", Program: "sleep", Args: []string{"30"}},
	}
	m, _, _ := newTestManager(t, defs...)

	snap, err := m.State("db")
	require.NoError(t, err)
	assert.Equal(t, "db", snap.Key)
	assert.Equal(t, state.StatusStopped, snap.Status)

	_, err = m.State("missing")
	assert.Error(t, err)

	all := m.AllStates()
	require.Len(t, all, 2)
	assert.Equal(t, "db", all[0].Key)
	assert.Equal(t, "backend", all[1].Key)
}
