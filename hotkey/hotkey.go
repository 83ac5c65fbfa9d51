// Package hotkey registers the global shortcut that toggles listening.
package hotkey

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	hook "github.com/robotn/gohook"
)

// DefaultChord is used when the config carries no hotkey.
const DefaultChord = "ctrl+shift+g"

// ErrAlreadyStarted is returned when Start is called on a running manager.
var ErrAlreadyStarted = errors.New("hotkey manager already started")

// Manager owns the OS-level keyboard hook. Only one manager may run per
// process; gohook's hook is global.
type Manager struct {
	keys     []string
	onToggle func()

	mu      sync.Mutex
	running bool
	status  func(granted bool)
}

// NewManager creates a manager firing onToggle for the given chord, e.g.
// "ctrl+shift+g". An empty chord falls back to DefaultChord.
func NewManager(chord string, onToggle func()) *Manager {
	if chord == "" {
		chord = DefaultChord
	}
	return &Manager{
		keys:     parseChord(chord),
		onToggle: onToggle,
	}
}

// SetStatusCallback registers a callback reporting whether the OS granted
// the input-monitoring permission the hook needs.
func (m *Manager) SetStatusCallback(fn func(granted bool)) {
	m.mu.Lock()
	m.status = fn
	m.mu.Unlock()
}

// Start installs the keyboard hook and begins dispatching.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.running = true
	status := m.status
	m.mu.Unlock()

	hook.Register(hook.KeyDown, m.keys, func(e hook.Event) {
		// Never block the hook's dispatch loop.
		go m.onToggle()
	})

	events := hook.Start()
	if status != nil {
		status(true)
	}
	slog.Info("global hotkey registered", "keys", strings.Join(m.keys, "+"))

	go func() {
		<-hook.Process(events)
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()
	return nil
}

// Stop removes the keyboard hook. Safe to call when not running.
func (m *Manager) Stop() {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	if running {
		hook.End()
	}
}

// IsRunning reports whether the hook is installed.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func parseChord(chord string) []string {
	parts := strings.Split(strings.ToLower(chord), "+")
	keys := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keys = append(keys, p)
		}
	}
	return keys
}
