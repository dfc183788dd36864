// Package exportmodule renders a timeline offline, frame by frame at a fixed
// rate, into an encoded MP4 buffer. Export is self-paced: it advances only
// when each frame's seek has settled, so the result is frame-accurate and
// independent of both wall-clock and decode throughput.
package exportmodule

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/hashicorp/go-hclog"

	"storyreel/internal/modules/timelinemodule"
)

// defaultFrameTimeout bounds each frame's seek-settle wait so one stalled
// clip cannot hang an export beyond its own window
const defaultFrameTimeout = 10 * time.Second

// Exporter runs the deterministic offline render loop
type Exporter struct {
	logger hclog.Logger
}

// NewExporter creates an exporter
func NewExporter(logger hclog.Logger) *Exporter {
	return &Exporter{logger: logger.Named("exporter")}
}

// Export samples the timeline at frameIndex/fps for every frame, captures the
// rendered surface and feeds it to the encoder, then flushes the encoder into
// the finished buffer. Progress is reported once per completed frame, strictly
// increasing, reaching exactly 1.0 on success.
//
// The renderer is destroyed on every exit path: success, failure and
// cancellation. Cancellation is cooperative, checked at each iteration
// boundary, and yields ErrCancelled with no partial buffer.
func (e *Exporter) Export(ctx context.Context, timeline *timelinemodule.Timeline, renderer Renderer, encoder Encoder, opts Options) ([]byte, error) {
	defer renderer.Destroy()

	if timeline.Empty() {
		e.logger.Info("empty timeline, nothing to export")
		return nil, nil
	}

	fps := opts.FPS
	if fps <= 0 {
		fps = 30
	}
	frameTimeout := opts.FrameTimeout
	if frameTimeout <= 0 {
		frameTimeout = defaultFrameTimeout
	}

	totalFrames := int(math.Ceil(timeline.TotalDuration * float64(fps)))
	e.logger.Info("export started",
		"total_duration", timeline.TotalDuration,
		"fps", fps,
		"total_frames", totalFrames)

	if err := encoder.Start(ctx); err != nil {
		return nil, &EncoderError{Op: "start", Cause: err}
	}

	for frameIndex := 0; frameIndex < totalFrames; frameIndex++ {
		select {
		case <-ctx.Done():
			encoder.Abort()
			e.logger.Info("export cancelled", "frame", frameIndex, "total_frames", totalFrames)
			return nil, ErrCancelled
		default:
		}

		sampleTime := float64(frameIndex) / float64(fps)

		// Exact, seek-style positioning: export never rides continuous
		// playback drift.
		frameCtx, cancel := context.WithTimeout(ctx, frameTimeout)
		err := renderer.Update(frameCtx, sampleTime, false, true)
		cancel()
		if err != nil {
			encoder.Abort()
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil, ErrCancelled
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, &TimeoutError{Frame: frameIndex, Timeout: frameTimeout}
			}
			// Decode failures are fatal during export; a silently skipped
			// clip would corrupt the artifact.
			return nil, err
		}

		if err := encoder.WriteFrame(renderer.Snapshot()); err != nil {
			encoder.Abort()
			return nil, &EncoderError{Op: "write", Cause: err}
		}

		if opts.OnProgress != nil {
			opts.OnProgress(float64(frameIndex+1) / float64(totalFrames))
		}
	}

	buffer, err := encoder.Flush()
	if err != nil {
		return nil, &EncoderError{Op: "flush", Cause: err}
	}

	e.logger.Info("export completed", "frames", totalFrames, "bytes", len(buffer))
	return buffer, nil
}
