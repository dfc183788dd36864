// Package playbackmodule implements the real-time preview path: the playback
// clock state machine, the frame scheduler that drives the compositor, and
// the HTTP/websocket control surface for transport commands.
package playbackmodule

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"

	"storyreel/internal/compositor"
	"storyreel/internal/events"
	"storyreel/internal/modules/timelinemodule"
)

// PlaybackState is the state snapshot served to API clients
type PlaybackState struct {
	Clock ClockState `json:"clock"`
	Title string     `json:"title,omitempty"`
	Error string     `json:"error,omitempty"`
}

// Manager wires the clock, scheduler and compositor together and exposes the
// transport control surface. The clock is an owned object handed to the
// scheduler by reference, never package-level state.
type Manager struct {
	logger     hclog.Logger
	bus        *events.Bus
	timelines  *timelinemodule.Manager
	compositor *compositor.Compositor
	clock      *Clock
	scheduler  *Scheduler
}

// NewManager creates the playback manager and registers for timeline reloads
func NewManager(logger hclog.Logger, bus *events.Bus, timelines *timelinemodule.Manager, comp *compositor.Compositor, tickInterval time.Duration) *Manager {
	log := logger.Named("playback")
	clock := NewClock(timelines.Current().TotalDuration)

	m := &Manager{
		logger:     log,
		bus:        bus,
		timelines:  timelines,
		compositor: comp,
		clock:      clock,
		scheduler:  NewScheduler(log, clock, comp, tickInterval),
	}

	comp.SetTimeline(timelines.Current())
	timelines.OnReload(m.handleTimelineReload)
	return m
}

// Start launches the preview scheduler loop
func (m *Manager) Start(ctx context.Context) {
	go m.scheduler.Run(ctx)
}

// Play starts playback
func (m *Manager) Play() {
	m.clock.Play()
	m.publishState()
}

// Pause pauses playback. This is also how preview playback is cancelled;
// there is no separate cancellation protocol for the preview path.
func (m *Manager) Pause() {
	m.clock.Pause()
	m.publishState()
}

// Seek moves the clock to t, clamped into the timeline
func (m *Manager) Seek(t float64) {
	m.clock.Seek(t)
	m.publishState()
}

// State returns the playback snapshot, including any preview decode error
// from the most recent scheduler tick
func (m *Manager) State() PlaybackState {
	state := PlaybackState{
		Clock: m.clock.Snapshot(),
		Title: m.timelines.Current().Title,
	}
	if err := m.scheduler.LastError(); err != nil {
		state.Error = err.Error()
	}
	return state
}

// Compositor exposes the compositor for frame capture endpoints
func (m *Manager) Compositor() *compositor.Compositor {
	return m.compositor
}

func (m *Manager) handleTimelineReload(timeline *timelinemodule.Timeline) {
	m.compositor.SetTimeline(timeline)
	m.clock.Reset(timeline.TotalDuration)
	m.logger.Info("playback rebound to new timeline", "total_duration", timeline.TotalDuration)

	m.bus.Publish(events.EventTimelineLoaded, map[string]interface{}{
		"title":          timeline.Title,
		"clips":          len(timeline.Items),
		"total_duration": timeline.TotalDuration,
	})
	m.publishState()
}

func (m *Manager) publishState() {
	snapshot := m.clock.Snapshot()
	m.bus.Publish(events.EventPlaybackState, map[string]interface{}{
		"state":        string(snapshot.State),
		"current_time": snapshot.CurrentTime,
		"pending_seek": snapshot.PendingSeek,
	})
}
