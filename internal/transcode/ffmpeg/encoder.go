package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"

	"github.com/hashicorp/go-hclog"
)

// BufferEncoder feeds raw RGBA frames to a single long-lived ffmpeg process
// and collects a fragmented MP4 in memory. Fragmented output means ffmpeg
// never needs to seek backwards in its output, so the whole artifact can be
// streamed into a buffer.
type BufferEncoder struct {
	logger hclog.Logger
	width  int
	height int
	fps    int

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  bytes.Buffer
	stderr  bytes.Buffer
	started bool
	frames  int
}

// NewBufferEncoder creates an encoder for the given frame geometry and rate
func NewBufferEncoder(logger hclog.Logger, width, height, fps int) *BufferEncoder {
	return &BufferEncoder{
		logger: logger.Named("encoder"),
		width:  width,
		height: height,
		fps:    fps,
	}
}

// Start launches the ffmpeg process. Must be called before the first frame.
func (e *BufferEncoder) Start(ctx context.Context) error {
	if e.started {
		return fmt.Errorf("encoder already started")
	}

	args := []string{
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", e.width, e.height),
		"-r", fmt.Sprintf("%d", e.fps),
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-movflags", "frag_keyframe+empty_moov",
		"-f", "mp4",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, ffmpegPath(), args...)
	cmd.Stdout = &e.stdout
	cmd.Stderr = &e.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create encoder stdin: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start encoder: %w", err)
	}

	e.cmd = cmd
	e.stdin = stdin
	e.started = true
	e.logger.Info("encoder started", "size", fmt.Sprintf("%dx%d", e.width, e.height), "fps", e.fps)
	return nil
}

// WriteFrame feeds one captured frame to the encoder. Frames must arrive in
// strictly increasing presentation order; the encoder assigns timestamps from
// the configured rate.
func (e *BufferEncoder) WriteFrame(frame *image.RGBA) error {
	if !e.started {
		return fmt.Errorf("encoder not started")
	}
	expected := e.width * e.height * 4
	if len(frame.Pix) != expected {
		return fmt.Errorf("frame size mismatch: got %d bytes, want %d", len(frame.Pix), expected)
	}
	if _, err := e.stdin.Write(frame.Pix); err != nil {
		return fmt.Errorf("failed to write frame %d: %w: %s", e.frames, err, tailLines(e.stderr.String(), 3))
	}
	e.frames++
	return nil
}

// Flush closes the input stream, waits for ffmpeg to finalize the container
// and returns the complete MP4 buffer
func (e *BufferEncoder) Flush() ([]byte, error) {
	if !e.started {
		return nil, fmt.Errorf("encoder not started")
	}

	if err := e.stdin.Close(); err != nil {
		return nil, fmt.Errorf("failed to close encoder input: %w", err)
	}
	if err := e.cmd.Wait(); err != nil {
		return nil, fmt.Errorf("encoder failed: %w: %s", err, tailLines(e.stderr.String(), 3))
	}

	e.logger.Info("encoder flushed", "frames", e.frames, "bytes", e.stdout.Len())
	return e.stdout.Bytes(), nil
}

// Abort kills the encoder process and discards any buffered output. Used on
// export failure and cancellation.
func (e *BufferEncoder) Abort() {
	if !e.started {
		return
	}
	_ = e.stdin.Close()
	if e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
	}
	_ = e.cmd.Wait()
	e.stdout.Reset()
}
