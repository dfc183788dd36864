// Package compositor renders the visible frame for a timeline instant by
// managing per-clip decode resources and the shared render surface. It is
// driven by the preview scheduler in real time and by the exporter offline;
// neither touches the surface or the decode handles directly.
package compositor

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"storyreel/internal/modules/timelinemodule"
)

// Compositor owns the render surface and the decode resources for the clips
// that currently own the requested time. At most one video resource is active
// at any instant; resources for clips that are no longer current are released
// on the next update.
type Compositor struct {
	logger  hclog.Logger
	decoder Decoder
	surface *Surface

	mu          sync.Mutex
	timeline    *timelinemodule.Timeline
	resources   map[int]DecodeResource
	activeVideo int
	lastPlaying bool
	destroyed   bool
}

// New creates a compositor rendering onto a fresh surface
func New(logger hclog.Logger, decoder Decoder, width, height int) *Compositor {
	return &Compositor{
		logger:      logger.Named("compositor"),
		decoder:     decoder,
		surface:     NewSurface(width, height),
		resources:   make(map[int]DecodeResource),
		activeVideo: -1,
	}
}

// SetTimeline swaps the timeline the compositor renders. Every held decode
// resource is released; the next update opens resources for the new clips.
func (c *Compositor) SetTimeline(timeline *timelinemodule.Timeline) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}
	c.releaseAllLocked()
	c.timeline = timeline
	c.surface.Clear()
}

// Update positions decode resources for the clips owning tm and renders the
// frame. When consumeSeek is set the positioning is an exact jump: resources
// re-buffer to the target offset and Update only returns once the frame has
// settled (bounded by ctx).
func (c *Compositor) Update(ctx context.Context, tm float64, playing, consumeSeek bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return nil
	}
	c.lastPlaying = playing

	video, overlays := c.timeline.ItemAt(tm)

	current := make(map[int]*timelinemodule.Item, 1+len(overlays))
	if video != nil {
		current[video.Index] = video
	}
	for _, overlay := range overlays {
		current[overlay.Index] = overlay
	}

	// Release resources whose clips are no longer the time-owner.
	for index, resource := range c.resources {
		if _, ok := current[index]; ok {
			continue
		}
		if err := resource.Close(); err != nil {
			c.logger.Warn("failed to release decode resource", "clip", index, "error", err)
		}
		delete(c.resources, index)
	}
	if video == nil {
		c.activeVideo = -1
	} else {
		c.activeVideo = video.Index
	}

	var firstErr error
	position := func(item *timelinemodule.Item) {
		resource, ok := c.resources[item.Index]
		if !ok {
			opened, err := c.decoder.Open(ctx, item.Source)
			if err != nil {
				if firstErr == nil {
					firstErr = newDecodeError(item.Source, "open", err)
				}
				return
			}
			c.resources[item.Index] = opened
			resource = opened
		}
		if err := resource.Seek(ctx, tm-item.StartTime, consumeSeek); err != nil {
			if firstErr == nil {
				firstErr = newDecodeError(item.Source, "seek", err)
			}
		}
	}

	if video != nil {
		position(video)
	}
	for _, overlay := range overlays {
		position(overlay)
	}

	// Render what we have. When nothing owns the time (e.g. paused at the
	// very end) the surface keeps its last frame.
	if video != nil {
		c.surface.Clear()
		if resource, ok := c.resources[video.Index]; ok {
			c.surface.DrawFrame(resource.Frame())
		}
		for _, overlay := range overlays {
			if resource, ok := c.resources[overlay.Index]; ok {
				c.surface.DrawOverlay(resource.Frame(), overlay.Opacity)
			}
		}
	}

	return firstErr
}

// AuthoritativeTime returns the active video resource's own reported position
// mapped into timeline time. ok is false when no resource is active, the
// resource has not decoded yet, or the compositor is not in playing mode —
// the clock then falls back to accumulated wall-clock delta.
func (c *Compositor) AuthoritativeTime() (tm float64, reportedAt time.Time, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed || !c.lastPlaying || c.activeVideo < 0 {
		return 0, time.Time{}, false
	}
	resource, found := c.resources[c.activeVideo]
	if !found {
		return 0, time.Time{}, false
	}
	offset, reportedAt, ok := resource.Position()
	if !ok {
		return 0, time.Time{}, false
	}
	video := &c.timeline.Items[c.activeVideo]
	return video.StartTime + offset, reportedAt, true
}

// Snapshot returns a copy of the current surface pixels
func (c *Compositor) Snapshot() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surface.Snapshot()
}

// OpenResources reports how many decode resources are currently held. Used by
// the status endpoint and by tests verifying release discipline.
func (c *Compositor) OpenResources() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.resources)
}

// Destroy releases every decode resource and detaches the timeline.
// Idempotent; safe from any state.
func (c *Compositor) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}
	c.releaseAllLocked()
	c.timeline = nil
	c.destroyed = true
}

func (c *Compositor) releaseAllLocked() {
	for index, resource := range c.resources {
		if err := resource.Close(); err != nil {
			c.logger.Warn("failed to release decode resource", "clip", index, "error", err)
		}
		delete(c.resources, index)
	}
	c.activeVideo = -1
}
