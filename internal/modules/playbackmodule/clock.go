package playbackmodule

import (
	"sync"
	"time"
)

// State is the transport state of the playback clock
type State string

const (
	StateStopped State = "stopped"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

// Bounds for trusting the decoder-reported position over accumulated
// wall-clock delta. A reported position older than the staleness window, or
// further from the candidate than the drift threshold, is ignored for that
// tick and the delta-accumulated time wins.
const (
	authoritativeStaleness = 400 * time.Millisecond
	authoritativeDrift     = 0.75 // seconds
)

// AuthoritativeSample carries the compositor's decoder-reported position
type AuthoritativeSample struct {
	Time       float64
	ReportedAt time.Time
	OK         bool
}

// ClockState is a read-only snapshot of the clock
type ClockState struct {
	State         State   `json:"state"`
	CurrentTime   float64 `json:"current_time"`
	TotalDuration float64 `json:"total_duration"`
	PendingSeek   bool    `json:"pending_seek"`
}

// Clock holds the transport state for the preview path. All playback state
// mutations go through its methods; the scheduler, compositor and exporter
// only ever read it.
type Clock struct {
	mu            sync.Mutex
	state         State
	currentTime   float64
	totalDuration float64
	pendingSeek   bool
}

// NewClock creates a stopped clock for a timeline of the given duration
func NewClock(totalDuration float64) *Clock {
	return &Clock{
		state:         StateStopped,
		totalDuration: totalDuration,
	}
}

// Reset rebinds the clock to a new timeline duration and returns it to the
// stopped state at time zero
func (c *Clock) Reset(totalDuration float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateStopped
	c.currentTime = 0
	c.totalDuration = totalDuration
	c.pendingSeek = false
}

// Play transitions to playing. No-op while already playing, when the timeline
// is empty, or when the clock sits at the very end of the timeline.
func (c *Clock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StatePlaying || c.totalDuration <= 0 {
		return
	}
	if c.currentTime >= c.totalDuration {
		return
	}
	c.state = StatePlaying
}

// Pause transitions playing to paused; no-op otherwise
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePlaying {
		return
	}
	c.state = StatePaused
}

// Seek clamps t into [0, totalDuration], moves the clock there and raises the
// pending-seek flag, which the compositor consumes exactly once on its next
// update
func (c *Clock) Seek(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t < 0 {
		t = 0
	}
	if t > c.totalDuration {
		t = c.totalDuration
	}
	c.currentTime = t
	c.pendingSeek = true
}

// Tick advances the clock by dt seconds of wall time. Only effective while
// playing. When the compositor supplies a fresh decoder-reported position
// within the drift bound, that position takes precedence over the
// delta-accumulated candidate; the two time sources do not advance at
// identical rates and the decoder is the ground truth for what is actually
// on screen. Reaching the end of the timeline clamps and auto-pauses.
func (c *Clock) Tick(dt float64, authoritative AuthoritativeSample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePlaying {
		return
	}

	candidate := c.currentTime + dt
	if authoritative.OK &&
		time.Since(authoritative.ReportedAt) <= authoritativeStaleness &&
		absSeconds(authoritative.Time-candidate) <= authoritativeDrift {
		candidate = authoritative.Time
	}

	if candidate >= c.totalDuration {
		c.currentTime = c.totalDuration
		c.state = StatePaused
		return
	}
	c.currentTime = candidate
}

// PendingSeek reports whether a seek is waiting to be consumed
func (c *Clock) PendingSeek() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingSeek
}

// ClearPendingSeek marks the pending seek as consumed
func (c *Clock) ClearPendingSeek() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingSeek = false
}

// Snapshot returns the current clock state
func (c *Clock) Snapshot() ClockState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ClockState{
		State:         c.state,
		CurrentTime:   c.currentTime,
		TotalDuration: c.totalDuration,
		PendingSeek:   c.pendingSeek,
	}
}

func absSeconds(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
