//go:build !windows

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sakenfor/pixsim7-sub008/internal/config"
	"github.com/Sakenfor/pixsim7-sub008/internal/db"
	"github.com/Sakenfor/pixsim7-sub008/internal/events"
	"github.com/Sakenfor/pixsim7-sub008/internal/health"
	"github.com/Sakenfor/pixsim7-sub008/internal/logs"
	"github.com/Sakenfor/pixsim7-sub008/internal/process"
	"github.com/Sakenfor/pixsim7-sub008/internal/state"
)

func newTestServer(t *testing.T, withHistory bool) *Server {
	t.Helper()

	defs := []*config.ServiceDefinition{
		{Key: "backend", Title: "API Backend", Program: "sleep", Args: []string{"30"}},
		{Key: "worker", Program: "sleep", Args: []string{"30"}},
	}
	registry := state.NewRegistry(defs)
	bus := events.NewBus()

	logDir := t.TempDir()
	pmCfg := config.DefaultProcessManagerConfig(logDir)
	pmCfg.GracefulTimeout = 300 * time.Millisecond
	pmCfg.KillRetryDelay = 100 * time.Millisecond
	pm := process.New(pmCfg, defs, registry, bus)
	t.Cleanup(func() { pm.Cleanup(context.Background()) })

	hm := health.New(config.DefaultHealthManagerConfig(), defs, registry, bus)
	lm := logs.New(config.DefaultLogManagerConfig(logDir), registry, bus)

	deps := Deps{Process: pm, Health: hm, Logs: lm, Bus: bus}
	if withHistory {
		database, err := db.New(db.DefaultConfig(filepath.Join(t.TempDir(), "launcher.db")))
		require.NoError(t, err)
		t.Cleanup(func() { database.Close() })
		deps.History = db.NewEventRepository(database)
	}

	return New(DefaultConfig(), deps)
}

func doRequest(s *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHandleStatus(t *testing.T) {
	s := newTestServer(t, false)

	rec := doRequest(s, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Services)
	assert.Zero(t, resp.Running)
}

func TestHandleListServices(t *testing.T) {
	s := newTestServer(t, false)

	rec := doRequest(s, http.MethodGet, "/api/services")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ServicesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Services, 2)
	assert.Equal(t, "backend", resp.Services[0].Key)
}

func TestHandleGetService(t *testing.T) {
	s := newTestServer(t, false)

	rec := doRequest(s, http.MethodGet, "/api/services/backend")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap state.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "backend", snap.Key)
	assert.Equal(t, state.StatusStopped, snap.Status)

	rec = doRequest(s, http.MethodGet, "/api/services/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleStartStopRestart(t *testing.T) {
	s := newTestServer(t, false)

	rec := doRequest(s, http.MethodPost, "/api/services/backend/start")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap state.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, state.StatusRunning, snap.Status)
	assert.NotZero(t, snap.PID)
	firstPID := snap.PID

	rec = doRequest(s, http.MethodPost, "/api/services/backend/restart")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, state.StatusRunning, snap.Status)
	assert.NotEqual(t, firstPID, snap.PID)

	rec = doRequest(s, http.MethodPost, "/api/services/backend/stop")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, state.StatusStopped, snap.Status)

	rec = doRequest(s, http.MethodPost, "/api/services/missing/start")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleToolCheck(t *testing.T) {
	s := newTestServer(t, false)

	rec := doRequest(s, http.MethodPost, "/api/services/backend/tool-check")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap state.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.True(t, snap.ToolAvailable)
}

func TestHandleGetLogs(t *testing.T) {
	s := newTestServer(t, false)

	s.deps.Logs.Append("backend", "INFO: listening", "out")
	s.deps.Logs.Append("backend", "connection lost", "stderr")

	rec := doRequest(s, http.MethodGet, "/api/services/backend/logs")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LogsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "backend", resp.Service)
	assert.Len(t, resp.Lines, 2)

	rec = doRequest(s, http.MethodGet, "/api/services/backend/logs?level=ERROR")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Lines, 1)
	assert.Contains(t, resp.Lines[0], "connection lost")

	rec = doRequest(s, http.MethodGet, "/api/services/backend/logs?max_lines=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/services/missing/logs")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleClearLogs(t *testing.T) {
	s := newTestServer(t, false)

	s.deps.Logs.Append("backend", "something", "out")

	rec := doRequest(s, http.MethodDelete, "/api/services/backend/logs")
	require.Equal(t, http.StatusNoContent, rec.Code)

	lines, err := s.deps.Logs.GetLogs("backend", "", "", 0)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestHandleEventHistory(t *testing.T) {
	s := newTestServer(t, true)

	event := events.New(events.ProcessStarted, "process-manager",
		map[string]interface{}{"service_key": "backend"})
	require.NoError(t, s.deps.History.Record(context.Background(), event))

	rec := doRequest(s, http.MethodGet, "/api/events")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp EventsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 1)
	assert.Equal(t, events.ProcessStarted, resp.Events[0].EventType)

	rec = doRequest(s, http.MethodGet, "/api/events?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleEventHistoryDisabled(t *testing.T) {
	s := newTestServer(t, false)

	rec := doRequest(s, http.MethodGet, "/api/events")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleBusStats(t *testing.T) {
	s := newTestServer(t, false)

	s.deps.Bus.Publish(events.New(events.ProcessStarting, "test", nil))

	rec := doRequest(s, http.MethodGet, "/api/bus/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats events.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, uint64(1), stats.EventCount)
}
