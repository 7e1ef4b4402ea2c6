package logs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Sakenfor/pixsim7-sub008/internal/config"
	"github.com/Sakenfor/pixsim7-sub008/internal/constants"
	"github.com/Sakenfor/pixsim7-sub008/internal/errors"
	"github.com/Sakenfor/pixsim7-sub008/internal/events"
	"github.com/Sakenfor/pixsim7-sub008/internal/logger"
	"github.com/Sakenfor/pixsim7-sub008/internal/state"
)

// maxBackfillBytes caps how much of an existing log file is read at startup.
const maxBackfillBytes = 1 << 20

// stopJoinTimeout bounds how long StopMonitoring waits for the poll loop.
const stopJoinTimeout = 2 * time.Second

// Manager owns per-service log history. It tails on-disk log files from a
// single background loop and accepts in-process lines via Append. The public
// surface never returns I/O errors; a failed read or write leaves the buffer
// at its last known-good content.
type Manager struct {
	cfg      config.LogManagerConfig
	registry *state.Registry
	bus      *events.Bus

	mu        sync.Mutex
	positions map[string]int64

	loopMu     sync.Mutex
	cancel     context.CancelFunc
	done       chan struct{}
	monitoring bool
}

// New creates a log manager, backfills buffers from existing log files and
// records each file's length as the initial tail position.
func New(cfg config.LogManagerConfig, registry *state.Registry, bus *events.Bus) *Manager {
	if cfg.MaxLogLines <= 0 {
		cfg.MaxLogLines = constants.DefaultMaxLogLines
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = constants.DefaultLogMonitorInterval
	}

	m := &Manager{
		cfg:       cfg,
		registry:  registry,
		bus:       bus,
		positions: make(map[string]int64),
	}

	if err := os.MkdirAll(cfg.LogDir, constants.DirPermissions); err != nil {
		logger.WithError(err).WithField("dir", cfg.LogDir).Warn("Failed to create log directory")
	}

	for _, key := range registry.Keys() {
		m.backfill(key)
	}
	return m
}

// LogFilePath returns the on-disk log file for a service.
func (m *Manager) LogFilePath(key string) string {
	return filepath.Join(m.cfg.LogDir, key+".log")
}

// backfill loads the tail of an existing log file into the buffer and
// positions the tailer at the end of the file.
func (m *Manager) backfill(key string) {
	st, ok := m.registry.Get(key)
	if !ok {
		return
	}

	path := m.LogFilePath(key)
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	offset := int64(0)
	if info.Size() > maxBackfillBytes {
		offset = info.Size() - maxBackfillBytes
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		cleaned := CleanLine(line)
		if cleaned == "" {
			continue
		}
		st.AppendLog(cleaned, m.cfg.MaxLogLines)
	}

	m.mu.Lock()
	m.positions[key] = info.Size()
	m.mu.Unlock()
}

// Append records an in-process log line for a service: the line is cleaned,
// prefixed with a timestamp and stream tag (OUT/ERR), retained in the
// bounded buffer and appended to the on-disk file. Lines that clean to
// empty are discarded.
func (m *Manager) Append(key, line, stream string) {
	st, ok := m.registry.Get(key)
	if !ok {
		return
	}

	cleaned := CleanLine(line)
	if cleaned == "" {
		return
	}

	tag := "OUT"
	if strings.EqualFold(stream, "err") || strings.EqualFold(stream, "stderr") {
		tag = "ERR"
	}
	formatted := fmt.Sprintf("%s [%s] %s", time.Now().Format("15:04:05"), tag, cleaned)

	st.AppendLog(formatted, m.cfg.MaxLogLines)

	if tag == "ERR" || isErrorLine(cleaned) {
		st.SetLastError(cleaned)
		m.publishError(key, cleaned)
	}

	if m.cfg.PersistLogs {
		m.persist(key, formatted)
	}

	m.invokeCallback(key, formatted, tag)
}

// persist appends one line to the service's log file and advances the tail
// position past it so the poll loop does not re-ingest our own write.
func (m *Manager) persist(key, line string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.OpenFile(m.LogFilePath(key), os.O_APPEND|os.O_CREATE|os.O_WRONLY, constants.FilePermissions)
	if err != nil {
		return
	}
	defer file.Close()

	n, err := file.WriteString(line + "\n")
	if err != nil {
		return
	}
	m.positions[key] += int64(n)
}

// invokeCallback runs the configured callback, never letting it panic out.
func (m *Manager) invokeCallback(key, line, stream string) {
	if m.cfg.Callback == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logger.Fields{"service": key, "panic": r}).Error("Log callback panicked")
		}
	}()
	m.cfg.Callback(key, line, stream)
}

// StartMonitoring launches the tail polling loop. Idempotent.
func (m *Manager) StartMonitoring() {
	if !m.cfg.MonitorEnabled {
		return
	}

	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	if m.monitoring {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.monitoring = true

	go m.monitorLoop(ctx, m.done)
	logger.WithField("interval", m.cfg.MonitorInterval.String()).Debug("Log monitoring started")
}

// StopMonitoring cancels the polling loop and waits briefly for it to
// finish. No new file reads begin after cancellation is observed.
func (m *Manager) StopMonitoring() {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	if !m.monitoring {
		return
	}

	m.cancel()
	select {
	case <-m.done:
	case <-time.After(stopJoinTimeout):
		logger.Warn("Log monitor loop did not stop in time")
	}
	m.monitoring = false
}

// IsMonitoring reports whether the polling loop is running.
func (m *Manager) IsMonitoring() bool {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	return m.monitoring
}

func (m *Manager) monitorLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pollOnce()
		}
	}
}

// pollOnce tails every service's log file. A failure on one file never
// blocks the others in the same cycle.
func (m *Manager) pollOnce() {
	for _, key := range m.registry.Keys() {
		if err := m.pollService(key); err != nil {
			logger.WithError(err).WithField("service", key).Debug("Log poll failed")
		}
	}
}

func (m *Manager) pollService(key string) error {
	st, ok := m.registry.Get(key)
	if !ok {
		return nil
	}

	path := m.LogFilePath(key)
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}

	m.mu.Lock()
	pos := m.positions[key]
	m.mu.Unlock()

	size := info.Size()
	if size == pos {
		return nil
	}
	if size < pos {
		// File was truncated behind our back; restart from the top.
		m.mu.Lock()
		m.positions[key] = 0
		m.mu.Unlock()
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.Seek(pos, io.SeekStart); err != nil {
		return err
	}
	data, err := io.ReadAll(io.LimitReader(file, size-pos))
	if err != nil {
		return err
	}

	// Only consume complete lines; a partial trailing line stays for the
	// next cycle.
	consumed := int64(len(data))
	text := string(data)
	if !strings.HasSuffix(text, "\n") {
		if idx := strings.LastIndexByte(text, '\n'); idx >= 0 {
			consumed = int64(idx + 1)
			text = text[:idx+1]
		} else {
			return nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		cleaned := CleanLine(line)
		if cleaned == "" {
			continue
		}

		entry := cleaned
		if !isPrefixed(cleaned) {
			entry = fmt.Sprintf("%s [OUT] %s", time.Now().Format("15:04:05"), cleaned)
		}
		st.AppendLog(entry, m.cfg.MaxLogLines)

		if isErrorLine(cleaned) {
			st.SetLastError(cleaned)
			m.publishError(key, cleaned)
		}
		m.invokeCallback(key, entry, "OUT")
	}

	// An in-process Append may have advanced the position while we were
	// reading; its write sits past the region we consumed, so add our
	// delta instead of overwriting.
	m.mu.Lock()
	if m.positions[key] == pos {
		m.positions[key] = pos + consumed
	} else {
		m.positions[key] += consumed
	}
	m.mu.Unlock()
	return nil
}

// publishError announces an error-marked log line on the bus.
func (m *Manager) publishError(key, line string) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(events.New(events.LogError, "log-manager", map[string]interface{}{
		"service_key": key,
		"line":        line,
	}))
}

// GetLogs returns buffered lines for a service, optionally filtered by a
// case-insensitive substring and a level (ERROR/WARNING/DEBUG/INFO/CRITICAL),
// truncated to the last maxLines when positive. Pure read.
func (m *Manager) GetLogs(key, filterText, filterLevel string, maxLines int) ([]string, error) {
	st, ok := m.registry.Get(key)
	if !ok {
		return nil, errors.ServiceNotFound(key)
	}

	lines := st.Logs()

	if filterText != "" || filterLevel != "" {
		needle := strings.ToLower(filterText)
		filtered := make([]string, 0, len(lines))
		for _, line := range lines {
			if needle != "" && !strings.Contains(strings.ToLower(line), needle) {
				continue
			}
			if filterLevel != "" && !matchesLevel(line, filterLevel) {
				continue
			}
			filtered = append(filtered, line)
		}
		lines = filtered
	}

	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return lines, nil
}

// ClearLogs empties a service's buffer, resets its tail position and
// truncates the on-disk file. I/O failures are swallowed.
func (m *Manager) ClearLogs(key string) error {
	st, ok := m.registry.Get(key)
	if !ok {
		return errors.ServiceNotFound(key)
	}

	st.ClearLogs()

	m.mu.Lock()
	m.positions[key] = 0
	m.mu.Unlock()

	if err := os.Truncate(m.LogFilePath(key), 0); err != nil && !os.IsNotExist(err) {
		logger.WithError(err).WithField("service", key).Debug("Failed to truncate log file")
	}
	return nil
}

// ClearAllLogs clears every service's logs.
func (m *Manager) ClearAllLogs() {
	for _, key := range m.registry.Keys() {
		_ = m.ClearLogs(key)
	}
}
