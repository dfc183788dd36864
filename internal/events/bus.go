// Package events provides a small in-process pub/sub bus used to fan
// playback-state changes and export progress out to API clients.
package events

import (
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// EventType classifies bus events
type EventType string

const (
	EventPlaybackState  EventType = "playback.state"
	EventTimelineLoaded EventType = "timeline.loaded"
	EventExportProgress EventType = "export.progress"
	EventExportDone     EventType = "export.done"
)

// Event is a single bus message
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Bus is a non-blocking broadcast bus. Slow subscribers lose events rather
// than stalling publishers; every payload is also observable via the API, so
// a dropped event only delays a client by one update.
type Bus struct {
	logger hclog.Logger

	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
}

// NewBus creates an event bus
func NewBus(logger hclog.Logger) *Bus {
	return &Bus{
		logger:      logger.Named("events"),
		subscribers: make(map[int]chan Event),
	}
}

// Subscribe registers a subscriber. The returned cancel function must be
// called to release the subscription.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if existing, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(existing)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish broadcasts an event to all subscribers without blocking
func (b *Bus) Publish(eventType EventType, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.logger.Debug("dropping event for slow subscriber", "subscriber", id, "type", eventType)
		}
	}
}
