package timelinemodule

import (
	"encoding/json"
	"fmt"
)

// LoadError indicates a malformed manifest. The previously loaded timeline
// stays in place when a load fails with this error.
type LoadError struct {
	Index  int
	Reason string
	Cause  error
}

func (e *LoadError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("invalid manifest: clip %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("invalid manifest: %s", e.Reason)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

func newLoadError(index int, reason string) *LoadError {
	return &LoadError{Index: index, Reason: reason}
}

// Load parses and validates a manifest document and computes the timeline
// layout. Video clips are laid out back to back; each clip's StartTime is the
// cumulative duration of the video clips before it. Overlay clips keep their
// declared start (default 0) and never extend the total duration.
//
// An empty clip list yields a well-formed empty timeline with TotalDuration 0,
// on which playback and export are no-ops.
func Load(data []byte) (*Timeline, error) {
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, &LoadError{Index: -1, Reason: "not a valid JSON manifest", Cause: err}
	}
	return Build(manifest)
}

// Build computes the layout for an already-parsed manifest
func Build(manifest Manifest) (*Timeline, error) {
	timeline := &Timeline{
		Title: manifest.Title,
		Items: make([]Item, 0, len(manifest.Clips)),
	}

	cursor := 0.0
	for i, clip := range manifest.Clips {
		if err := validateClip(i, clip); err != nil {
			return nil, err
		}

		item := Item{
			Index:    i,
			Kind:     clip.Kind,
			Source:   clip.Source,
			Duration: clip.Duration,
			Opacity:  1.0,
		}

		switch clip.Kind {
		case ClipVideo:
			item.StartTime = cursor
			cursor += clip.Duration
		case ClipOverlay:
			if clip.Start != nil {
				item.StartTime = *clip.Start
			}
			if clip.Opacity != nil {
				item.Opacity = *clip.Opacity
			}
		}

		timeline.Items = append(timeline.Items, item)
	}

	// Overlay clips do not extend the timeline; the total is the length of
	// the primary video track.
	timeline.TotalDuration = cursor

	return timeline, nil
}

func validateClip(index int, clip ManifestClip) error {
	switch clip.Kind {
	case ClipVideo, ClipOverlay:
	default:
		return newLoadError(index, fmt.Sprintf("unknown kind %q", clip.Kind))
	}
	if clip.Source == "" {
		return newLoadError(index, "missing source")
	}
	if clip.Duration <= 0 {
		return newLoadError(index, fmt.Sprintf("duration must be positive, got %v", clip.Duration))
	}
	if clip.Kind == ClipOverlay {
		if clip.Start != nil && *clip.Start < 0 {
			return newLoadError(index, "overlay start must not be negative")
		}
		if clip.Opacity != nil && (*clip.Opacity <= 0 || *clip.Opacity > 1) {
			return newLoadError(index, "overlay opacity must be in (0, 1]")
		}
	} else {
		if clip.Start != nil {
			return newLoadError(index, "start is only valid for overlay clips")
		}
	}
	return nil
}
