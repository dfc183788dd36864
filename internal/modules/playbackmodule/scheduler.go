package playbackmodule

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// FrameRenderer is the slice of the compositor the scheduler drives
type FrameRenderer interface {
	Update(ctx context.Context, tm float64, playing, consumeSeek bool) error
	AuthoritativeTime() (tm float64, reportedAt time.Time, ok bool)
}

// Scheduler drives the clock and the compositor once per display refresh
// interval. Each tick reads the elapsed wall-clock delta, reconciles it with
// the compositor's decoder-reported position through Clock.Tick, updates the
// compositor and clears the pending-seek flag. A tick never blocks on
// anything but the compositor update itself.
type Scheduler struct {
	logger   hclog.Logger
	clock    *Clock
	renderer FrameRenderer
	interval time.Duration

	mu        sync.Mutex
	lastError error
}

// NewScheduler creates a preview scheduler ticking at the given interval
func NewScheduler(logger hclog.Logger, clock *Clock, renderer FrameRenderer, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Second / 60
	}
	return &Scheduler{
		logger:   logger.Named("scheduler"),
		clock:    clock,
		renderer: renderer,
		interval: interval,
	}
}

// Run ticks until the context is cancelled. Pausing playback does not stop
// the loop; a paused tick is close to free and keeps seek-while-paused
// responsive.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("preview scheduler started", "interval", s.interval)

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("preview scheduler stopped")
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			s.tick(ctx, dt)
		}
	}
}

// tick performs one scheduler iteration
func (s *Scheduler) tick(ctx context.Context, dt float64) {
	authTime, reportedAt, ok := s.renderer.AuthoritativeTime()
	s.clock.Tick(dt, AuthoritativeSample{Time: authTime, ReportedAt: reportedAt, OK: ok})

	snapshot := s.clock.Snapshot()
	consumeSeek := s.clock.PendingSeek()

	err := s.renderer.Update(ctx, snapshot.CurrentTime, snapshot.State == StatePlaying, consumeSeek)
	if consumeSeek {
		s.clock.ClearPendingSeek()
	}

	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()

	if err != nil {
		// Decode trouble is recoverable in preview: log, surface the error
		// state, keep the loop alive.
		s.logger.Warn("preview update failed", "time", snapshot.CurrentTime, "error", err)
	}
}

// LastError returns the error from the most recent tick, nil when the last
// tick rendered cleanly
func (s *Scheduler) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}
