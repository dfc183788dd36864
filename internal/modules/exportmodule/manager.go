package exportmodule

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"storyreel/internal/events"
	"storyreel/internal/modules/timelinemodule"
)

// RendererFactory builds a fresh renderer bound to the timeline being
// exported. Each job gets its own renderer so an export never contends with
// the live preview for the surface or the active decode resource.
type RendererFactory func(timeline *timelinemodule.Timeline) Renderer

// EncoderFactory builds an encoder for the given frame rate
type EncoderFactory func(fps int) Encoder

// Job is the in-memory state of one export run. The encoded buffer is held
// here until downloaded; it is never written to disk.
type Job struct {
	ID          string    `json:"id"`
	Title       string    `json:"title,omitempty"`
	Status      Status    `json:"status"`
	Progress    float64   `json:"progress"`
	FramesDone  int       `json:"frames_done"`
	TotalFrames int       `json:"total_frames"`
	FPS         int       `json:"fps"`
	Error       string    `json:"error,omitempty"`
	StartTime   time.Time `json:"start_time"`

	buffer []byte
	cancel context.CancelFunc
}

// Manager orchestrates export jobs: one job at a time, cooperative
// cancellation, progress fan-out over the event bus, lifecycle records in the
// session store.
type Manager struct {
	logger      hclog.Logger
	bus         *events.Bus
	store       *SessionStore
	timelines   *timelinemodule.Manager
	exporter    *Exporter
	newRenderer RendererFactory
	newEncoder  EncoderFactory

	defaultFPS   int
	frameTimeout time.Duration

	mu     sync.Mutex
	jobs   map[string]*Job
	active string
}

// NewManager creates the export manager
func NewManager(logger hclog.Logger, bus *events.Bus, store *SessionStore, timelines *timelinemodule.Manager, newRenderer RendererFactory, newEncoder EncoderFactory, defaultFPS int, frameTimeout time.Duration) *Manager {
	log := logger.Named("export")
	if defaultFPS <= 0 {
		defaultFPS = 30
	}
	return &Manager{
		logger:       log,
		bus:          bus,
		store:        store,
		timelines:    timelines,
		exporter:     NewExporter(log),
		newRenderer:  newRenderer,
		newEncoder:   newEncoder,
		defaultFPS:   defaultFPS,
		frameTimeout: frameTimeout,
		jobs:         make(map[string]*Job),
	}
}

// StartExport launches an export of the current timeline. Only one job may
// run at a time; a second start while one is running is rejected.
func (m *Manager) StartExport(fps int) (*Job, error) {
	if fps <= 0 {
		fps = m.defaultFPS
	}
	timeline := m.timelines.Current()
	totalFrames := int(math.Ceil(timeline.TotalDuration * float64(fps)))

	m.mu.Lock()
	if m.active != "" {
		activeID := m.active
		m.mu.Unlock()
		return nil, fmt.Errorf("export %s already in progress", activeID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:          uuid.New().String(),
		Title:       timeline.Title,
		Status:      StatusRunning,
		TotalFrames: totalFrames,
		FPS:         fps,
		StartTime:   time.Now(),
		cancel:      cancel,
	}
	m.jobs[job.ID] = job
	m.active = job.ID
	m.mu.Unlock()

	if _, err := m.store.CreateSession(job.ID, job.Title, fps, totalFrames); err != nil {
		m.logger.Warn("failed to record export session", "session_id", job.ID, "error", err)
	}

	go m.run(ctx, job, timeline)
	return m.snapshot(job.ID), nil
}

func (m *Manager) run(ctx context.Context, job *Job, timeline *timelinemodule.Timeline) {
	renderer := m.newRenderer(timeline)
	encoder := m.newEncoder(job.FPS)

	lastPercent := -1
	opts := Options{
		FPS:          job.FPS,
		FrameTimeout: m.frameTimeout,
		OnProgress: func(progress float64) {
			m.mu.Lock()
			job.Progress = progress
			job.FramesDone++
			framesDone := job.FramesDone
			m.mu.Unlock()

			m.bus.Publish(events.EventExportProgress, map[string]interface{}{
				"session_id": job.ID,
				"progress":   progress,
				"frame":      framesDone,
				"total":      job.TotalFrames,
			})

			// The store only needs coarse progress; one write per percent.
			if percent := int(progress * 100); percent != lastPercent {
				lastPercent = percent
				if err := m.store.UpdateProgress(job.ID, framesDone, progress); err != nil {
					m.logger.Warn("failed to record export progress", "session_id", job.ID, "error", err)
				}
			}
		},
	}

	buffer, err := m.exporter.Export(ctx, timeline, renderer, encoder, opts)
	m.finish(job, buffer, err)
}

// finish moves the job to its terminal state exactly once
func (m *Manager) finish(job *Job, buffer []byte, err error) {
	m.mu.Lock()
	if job.Status.Terminal() {
		m.mu.Unlock()
		return
	}
	switch {
	case err == nil:
		job.Status = StatusCompleted
		job.Progress = 1.0
		job.buffer = buffer
	case err == ErrCancelled:
		job.Status = StatusCancelled
	default:
		job.Status = StatusFailed
		job.Error = err.Error()
	}
	if m.active == job.ID {
		m.active = ""
	}
	status := job.Status
	m.mu.Unlock()

	switch status {
	case StatusCompleted:
		if storeErr := m.store.CompleteSession(job.ID, int64(len(buffer))); storeErr != nil {
			m.logger.Warn("failed to record export completion", "session_id", job.ID, "error", storeErr)
		}
	case StatusCancelled:
		if storeErr := m.store.CancelSession(job.ID); storeErr != nil {
			m.logger.Warn("failed to record export cancellation", "session_id", job.ID, "error", storeErr)
		}
	case StatusFailed:
		if storeErr := m.store.FailSession(job.ID, err); storeErr != nil {
			m.logger.Warn("failed to record export failure", "session_id", job.ID, "error", storeErr)
		}
	}

	m.bus.Publish(events.EventExportDone, map[string]interface{}{
		"session_id": job.ID,
		"status":     string(status),
	})
}

// Cancel requests cooperative cancellation of a running job
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("export %s not found", id)
	}
	if job.Status.Terminal() {
		m.mu.Unlock()
		return fmt.Errorf("export %s already %s", id, job.Status)
	}
	cancel := job.cancel
	m.mu.Unlock()

	cancel()
	return nil
}

// GetJob returns a snapshot of a job's state
func (m *Manager) GetJob(id string) (*Job, error) {
	job := m.snapshot(id)
	if job == nil {
		return nil, fmt.Errorf("export %s not found", id)
	}
	return job, nil
}

// Buffer returns the finished artifact and its download filename. Only
// completed jobs have one.
func (m *Manager) Buffer(id string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, "", fmt.Errorf("export %s not found", id)
	}
	if job.Status != StatusCompleted {
		return nil, "", fmt.Errorf("export %s is %s, no artifact available", id, job.Status)
	}
	return job.buffer, downloadFilename(job.Title, job.StartTime), nil
}

func (m *Manager) snapshot(id string) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil
	}
	copied := *job
	copied.buffer = nil
	copied.cancel = nil
	return &copied
}

// downloadFilename derives the artifact name from the manifest title and the
// job start time
func downloadFilename(title string, start time.Time) string {
	name := strings.TrimSpace(strings.ToLower(title))
	if name == "" {
		name = "export"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('-')
		}
	}
	return fmt.Sprintf("%s-%s.mp4", b.String(), start.Format("20060102-150405"))
}
