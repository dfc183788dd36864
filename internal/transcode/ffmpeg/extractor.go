package ffmpeg

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"storyreel/internal/compositor"
)

// minLazyStep is the smallest offset movement that triggers an actual decode
// during continuous (non-exact) playback advancement. Preview ticks arrive at
// display rate but clips rarely need more than ~15 decoded frames per second
// on the monitoring surface; exact seeks always decode.
const minLazyStep = 1.0 / 15.0

// Extractor opens ffmpeg-backed decode resources that extract single frames
// at requested offsets. It implements compositor.Decoder.
type Extractor struct {
	logger hclog.Logger
	runner CommandRunner
	width  int
	height int
}

// NewExtractor creates a frame extractor producing frames at the surface size
func NewExtractor(logger hclog.Logger, width, height int) *Extractor {
	return NewExtractorWithRunner(logger, &DefaultCommandRunner{}, width, height)
}

// NewExtractorWithRunner creates an extractor with a custom command runner
// (for testing)
func NewExtractorWithRunner(logger hclog.Logger, runner CommandRunner, width, height int) *Extractor {
	return &Extractor{
		logger: logger.Named("extractor"),
		runner: runner,
		width:  width,
		height: height,
	}
}

// Open probes the source and returns a decode resource for it. A source that
// ffprobe cannot read fails here rather than on the first seek, so the
// compositor can attribute the failure to the clip that owns it.
func (e *Extractor) Open(ctx context.Context, source string) (compositor.DecodeResource, error) {
	out, err := e.runner.Output(ctx, ffprobePath(),
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		source)
	if err != nil {
		return nil, fmt.Errorf("probe failed: %w", err)
	}
	if _, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64); err != nil {
		return nil, fmt.Errorf("probe returned no duration for %s", source)
	}

	e.logger.Debug("opened decode resource", "source", source)
	return &clipStream{extractor: e, source: source}, nil
}

// clipStream is one open decode resource. Frames are pulled on demand with a
// short ffmpeg invocation per decode; no child process is held between seeks.
type clipStream struct {
	extractor *Extractor
	source    string

	mu         sync.Mutex
	frame      *image.RGBA
	position   float64
	reportedAt time.Time
	decoded    bool
	closed     bool
}

// Seek decodes the frame at offset. Non-exact seeks skip the decode while the
// requested offset stays within one lazy step of the last decoded frame,
// which keeps preview ticks cheap; the reported position then lags real time
// and the clock's drift correction absorbs the difference.
func (s *clipStream) Seek(ctx context.Context, offset float64, exact bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("decode resource for %s is closed", s.source)
	}
	if !exact && s.decoded && offset >= s.position && offset-s.position < minLazyStep {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if offset < 0 {
		offset = 0
	}

	e := s.extractor
	out, err := e.runner.Output(ctx, ffmpegPath(),
		"-ss", strconv.FormatFloat(offset, 'f', 6, 64),
		"-i", s.source,
		"-frames:v", "1",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", e.width, e.height),
		"pipe:1")
	if err != nil {
		return err
	}

	expected := e.width * e.height * 4
	if len(out) < expected {
		// Seeking past the last frame makes ffmpeg exit cleanly with no
		// output; keep the previous frame in that case.
		if len(out) == 0 {
			return nil
		}
		return fmt.Errorf("short frame from %s: got %d bytes, want %d", s.source, len(out), expected)
	}

	frame := &image.RGBA{
		Pix:    out[:expected],
		Stride: 4 * e.width,
		Rect:   image.Rect(0, 0, e.width, e.height),
	}

	s.mu.Lock()
	s.frame = frame
	s.position = offset
	s.reportedAt = time.Now()
	s.decoded = true
	s.mu.Unlock()
	return nil
}

// Frame returns the most recently decoded frame
func (s *clipStream) Frame() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// Position returns the offset of the last decoded frame
func (s *clipStream) Position() (float64, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.decoded {
		return 0, time.Time{}, false
	}
	return s.position, s.reportedAt, true
}

// Close releases the resource. Safe to call more than once.
func (s *clipStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.frame = nil
	return nil
}
