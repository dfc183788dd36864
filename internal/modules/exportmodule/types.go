package exportmodule

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
)

// Status is the lifecycle state of an export job. The terminal states are
// final and reported exactly once.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Renderer is the slice of the compositor the exporter drives. The exporter
// owns its renderer for the duration of the job and destroys it on every exit
// path.
type Renderer interface {
	Update(ctx context.Context, tm float64, playing, consumeSeek bool) error
	Snapshot() *image.RGBA
	OpenResources() int
	Destroy()
}

// Encoder consumes captured frames incrementally and produces the finished
// video buffer on flush
type Encoder interface {
	Start(ctx context.Context) error
	WriteFrame(frame *image.RGBA) error
	Flush() ([]byte, error)
	Abort()
}

// Options configures one export run
type Options struct {
	FPS          int
	FrameTimeout time.Duration
	OnProgress   func(float64)
}

// ErrCancelled is returned when an export is cancelled mid-run. No partial
// buffer accompanies it.
var ErrCancelled = errors.New("export cancelled")

// TimeoutError indicates a per-frame seek did not settle within the bound
type TimeoutError struct {
	Frame   int
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("export frame %d did not settle within %s", e.Frame, e.Timeout)
}

// EncoderError indicates the encoder failed to start, accept a frame, or
// flush
type EncoderError struct {
	Op    string
	Cause error
}

func (e *EncoderError) Error() string {
	return fmt.Sprintf("encoder %s failed: %v", e.Op, e.Cause)
}

func (e *EncoderError) Unwrap() error {
	return e.Cause
}
