package timelinemodule

// ClipKind identifies how a clip participates in the timeline layout
type ClipKind string

const (
	// ClipVideo clips form the primary track and consume timeline length
	ClipVideo ClipKind = "video"
	// ClipOverlay clips are layered above the active video clip and are
	// positioned independently
	ClipOverlay ClipKind = "overlay"
)

// ManifestClip is one entry of the manifest produced by the upstream
// generation pipeline
type ManifestClip struct {
	Kind     ClipKind `json:"kind"`
	Source   string   `json:"source"`
	Duration float64  `json:"duration"`
	Start    *float64 `json:"start,omitempty"`
	Opacity  *float64 `json:"opacity,omitempty"`
}

// Manifest is the input descriptor consumed by the timeline loader
type Manifest struct {
	Title string         `json:"title,omitempty"`
	Clips []ManifestClip `json:"clips"`
}

// Item is a clip annotated with its derived layout
type Item struct {
	Index     int      `json:"index"`
	Kind      ClipKind `json:"kind"`
	Source    string   `json:"source"`
	Duration  float64  `json:"duration"`
	StartTime float64  `json:"start_time"`
	Opacity   float64  `json:"opacity"`
}

// Timeline is the immutable laid-out sequence of clips. It is rebuilt
// wholesale on every load; callers never mutate it in place.
type Timeline struct {
	Title         string  `json:"title,omitempty"`
	Items         []Item  `json:"items"`
	TotalDuration float64 `json:"total_duration"`
}

// Empty reports whether the timeline has no playable content
func (t *Timeline) Empty() bool {
	return t == nil || t.TotalDuration <= 0
}

// ItemAt returns the video item whose interval [StartTime, StartTime+Duration)
// contains tm, plus any overlay items overlapping tm, in draw order. A tie at
// an exact boundary resolves to the later clip. The returned video item is nil
// when tm falls outside every video interval.
func (t *Timeline) ItemAt(tm float64) (video *Item, overlays []*Item) {
	if t == nil {
		return nil, nil
	}
	for i := range t.Items {
		item := &t.Items[i]
		if tm < item.StartTime || tm >= item.StartTime+item.Duration {
			continue
		}
		switch item.Kind {
		case ClipVideo:
			// Half-open intervals from a cumulative layout cannot overlap,
			// so the first hit is the owner.
			if video == nil {
				video = item
			}
		case ClipOverlay:
			overlays = append(overlays, item)
		}
	}
	return video, overlays
}
