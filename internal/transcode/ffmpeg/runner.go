// Package ffmpeg drives ffmpeg/ffprobe child processes for frame extraction
// and incremental MP4 encoding. All binary frame data moves over stdout/stdin
// pipes; nothing is staged on disk.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CommandRunner executes a command and returns its stdout (enables mocking in
// tests). Stderr is folded into the returned error on failure.
type CommandRunner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// DefaultCommandRunner implements CommandRunner using os/exec
type DefaultCommandRunner struct{}

// Output executes a command and captures stdout
func (r *DefaultCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s failed: %w: %s", name, err, tailLines(stderr.String(), 3))
	}
	return stdout.Bytes(), nil
}

// ffmpegPath resolves the ffmpeg binary, honoring FFMPEG_PATH
func ffmpegPath() string {
	if custom := os.Getenv("FFMPEG_PATH"); custom != "" {
		return custom
	}
	return "ffmpeg"
}

// ffprobePath resolves the ffprobe binary, honoring FFPROBE_PATH
func ffprobePath() string {
	if custom := os.Getenv("FFPROBE_PATH"); custom != "" {
		return custom
	}
	return "ffprobe"
}

// tailLines keeps the last n non-empty lines of ffmpeg's stderr, which is
// where the actionable message lives
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			kept = append([]string{line}, kept...)
		}
	}
	return strings.Join(kept, " | ")
}
