// Package signal delivers out-of-band cancel requests to running
// orchestrations via files in the .workforce/signals directory. The CLI
// writes a cancel file; the orchestrator checks for it at wave
// boundaries so in-flight tasks always finish.
package signal

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const cancelPrefix = "cancel-"

// Manager watches the signals directory for cancel files.
type Manager struct {
	dir string

	mu        sync.RWMutex
	cancelled map[string]bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewManager creates a signal manager rooted at the given project
// directory. The watcher is best-effort: when it cannot be started the
// manager falls back to stat checks on every query.
func NewManager(projectRoot string) (*Manager, error) {
	dir := filepath.Join(projectRoot, ".workforce", "signals")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	m := &Manager{
		dir:       dir,
		cancelled: make(map[string]bool),
		done:      make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return m, nil
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return m, nil
	}
	m.watcher = watcher
	go m.watch()

	return m, nil
}

// watch records cancel files as they appear.
func (m *Manager) watch() {
	for {
		select {
		case <-m.done:
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			base := filepath.Base(event.Name)
			if runID, ok := strings.CutPrefix(base, cancelPrefix); ok {
				m.mu.Lock()
				m.cancelled[runID] = true
				m.mu.Unlock()
			}
		case <-m.watcher.Errors:
			// Keep watching.
		}
	}
}

// Cancelled reports whether a cancel signal exists for the run. The
// file is also checked directly in case the watcher missed the event.
func (m *Manager) Cancelled(runID string) bool {
	if _, err := os.Stat(m.cancelPath(runID)); err == nil {
		m.mu.Lock()
		m.cancelled[runID] = true
		m.mu.Unlock()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cancelled[runID]
}

// RequestCancel writes the cancel file for a run. Safe to call from a
// different process than the one executing the run.
func (m *Manager) RequestCancel(runID string) error {
	return os.WriteFile(m.cancelPath(runID), []byte(time.Now().UTC().Format(time.RFC3339)), 0644)
}

// Clear removes the cancel file and forgets the cached signal.
func (m *Manager) Clear(runID string) {
	m.mu.Lock()
	delete(m.cancelled, runID)
	m.mu.Unlock()
	os.Remove(m.cancelPath(runID))
}

// Dir returns the signals directory path.
func (m *Manager) Dir() string {
	return m.dir
}

func (m *Manager) cancelPath(runID string) string {
	return filepath.Join(m.dir, cancelPrefix+runID)
}

// Close shuts down the watcher.
func (m *Manager) Close() {
	close(m.done)
	if m.watcher != nil {
		m.watcher.Close()
	}
}
