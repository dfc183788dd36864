package timelinemodule

import (
	"fmt"
	"os"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// ReloadListener is notified after the current timeline has been replaced
type ReloadListener func(*Timeline)

// Manager owns the currently loaded timeline. Loads are atomic: a failed load
// leaves the previous timeline in place, and a successful load replaces it
// wholesale and notifies registered listeners.
type Manager struct {
	logger       hclog.Logger
	manifestPath string

	mu        sync.RWMutex
	current   *Timeline
	listeners []ReloadListener
}

// NewManager creates a timeline manager. manifestPath may be empty when
// manifests are only pushed over the API.
func NewManager(logger hclog.Logger, manifestPath string) *Manager {
	return &Manager{
		logger:       logger.Named("timeline"),
		manifestPath: manifestPath,
		current:      &Timeline{},
	}
}

// OnReload registers a listener invoked after every successful load
func (m *Manager) OnReload(listener ReloadListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, listener)
}

// Current returns the active timeline. Never nil.
func (m *Manager) Current() *Timeline {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Load validates the manifest document and swaps in the resulting timeline
func (m *Manager) Load(data []byte) (*Timeline, error) {
	timeline, err := Load(data)
	if err != nil {
		m.logger.Warn("manifest rejected, keeping previous timeline", "error", err)
		return nil, err
	}
	m.swap(timeline)
	return timeline, nil
}

// Reload re-reads the configured manifest file
func (m *Manager) Reload() (*Timeline, error) {
	if m.manifestPath == "" {
		return nil, fmt.Errorf("no manifest path configured")
	}
	data, err := os.ReadFile(m.manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", m.manifestPath, err)
	}
	return m.Load(data)
}

func (m *Manager) swap(timeline *Timeline) {
	m.mu.Lock()
	m.current = timeline
	listeners := make([]ReloadListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	m.logger.Info("timeline loaded",
		"title", timeline.Title,
		"clips", len(timeline.Items),
		"total_duration", timeline.TotalDuration)

	for _, listener := range listeners {
		listener(timeline)
	}
}
