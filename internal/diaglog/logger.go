// Package diaglog persists log entries to an optional diagnostics file.
// Manager implements log.Handler so it can sit beside the terminal handler.
package diaglog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
)

// Manager writes optional diagnostic logs to a persistent file.
type Manager struct {
	path    string
	mu      sync.Mutex
	enabled bool
	level   log.Level
	file    *os.File
}

// New creates a diagnostics logger writing to path when enabled.
func New(path string) *Manager {
	return &Manager{
		path:  strings.TrimSpace(path),
		level: log.InfoLevel,
	}
}

// Configure updates runtime logging controls.
func (m *Manager) Configure(enabled bool, levelRaw string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.level = parseLevel(levelRaw)
	m.enabled = enabled
	if !enabled {
		if m.file != nil {
			_ = m.file.Close()
			m.file = nil
		}
		return nil
	}
	return m.ensureFileLocked()
}

// Close closes the diagnostics file descriptor.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	return err
}

// Enabled returns whether diagnostics logging is currently enabled.
func (m *Manager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Path returns the diagnostics file location.
func (m *Manager) Path() string {
	return m.path
}

// HandleLog implements log.Handler. Write failures are dropped so logging
// never fails the caller.
func (m *Manager) HandleLog(e *log.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled || e.Level < m.level {
		return nil
	}
	if err := m.ensureFileLocked(); err != nil || m.file == nil {
		return nil
	}
	_, _ = m.file.WriteString(formatEntry(e))
	return nil
}

func formatEntry(e *log.Entry) string {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", ts.UTC().Format(time.RFC3339), strings.ToUpper(e.Level.String()), e.Message)

	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, " %s=%v", name, e.Fields[name])
	}
	b.WriteByte('\n')
	return b.String()
}

func (m *Manager) ensureFileLocked() error {
	if m.path == "" {
		return nil
	}
	if m.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return err
	}
	file, err := os.OpenFile(m.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	m.file = file
	return nil
}

func parseLevel(raw string) log.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
