package compositor

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyreel/internal/modules/timelinemodule"
)

type seekCall struct {
	offset float64
	exact  bool
}

type fakeResource struct {
	source string
	frame  *image.RGBA
	seeks  []seekCall
	closed bool

	pos        float64
	reportedAt time.Time
	decoded    bool

	seekErr error
}

func (r *fakeResource) Seek(_ context.Context, offset float64, exact bool) error {
	r.seeks = append(r.seeks, seekCall{offset: offset, exact: exact})
	if r.seekErr != nil {
		return r.seekErr
	}
	r.pos = offset
	r.reportedAt = time.Now()
	r.decoded = true
	return nil
}

func (r *fakeResource) Frame() *image.RGBA { return r.frame }

func (r *fakeResource) Position() (float64, time.Time, bool) {
	return r.pos, r.reportedAt, r.decoded
}

func (r *fakeResource) Close() error {
	r.closed = true
	return nil
}

type fakeDecoder struct {
	opened    map[string]*fakeResource
	openCount int
	fillWith  map[string]color.RGBA
	failOpen  map[string]error
	width     int
	height    int
}

func newFakeDecoder() *fakeDecoder {
	return &fakeDecoder{
		opened:   make(map[string]*fakeResource),
		fillWith: make(map[string]color.RGBA),
		failOpen: make(map[string]error),
		width:    4,
		height:   4,
	}
}

func (d *fakeDecoder) Open(_ context.Context, source string) (DecodeResource, error) {
	if err := d.failOpen[source]; err != nil {
		return nil, err
	}
	d.openCount++
	frame := image.NewRGBA(image.Rect(0, 0, d.width, d.height))
	if fill, ok := d.fillWith[source]; ok {
		for i := 0; i < len(frame.Pix); i += 4 {
			frame.Pix[i] = fill.R
			frame.Pix[i+1] = fill.G
			frame.Pix[i+2] = fill.B
			frame.Pix[i+3] = fill.A
		}
	}
	resource := &fakeResource{source: source, frame: frame}
	d.opened[source] = resource
	return resource, nil
}

func buildTimeline(t *testing.T, clips []timelinemodule.ManifestClip) *timelinemodule.Timeline {
	t.Helper()
	timeline, err := timelinemodule.Build(timelinemodule.Manifest{Clips: clips})
	require.NoError(t, err)
	return timeline
}

func twoClipTimeline(t *testing.T) *timelinemodule.Timeline {
	return buildTimeline(t, []timelinemodule.ManifestClip{
		{Kind: timelinemodule.ClipVideo, Source: "a.mp4", Duration: 5},
		{Kind: timelinemodule.ClipVideo, Source: "b.mp4", Duration: 3},
	})
}

func newTestCompositor(decoder Decoder) *Compositor {
	return New(hclog.NewNullLogger(), decoder, 4, 4)
}

func TestUpdateOpensResourceForOwningClip(t *testing.T) {
	decoder := newFakeDecoder()
	comp := newTestCompositor(decoder)
	comp.SetTimeline(twoClipTimeline(t))

	require.NoError(t, comp.Update(context.Background(), 1.0, false, false))

	assert.Equal(t, 1, comp.OpenResources())
	resource := decoder.opened["a.mp4"]
	require.NotNil(t, resource)
	require.Len(t, resource.seeks, 1)
	assert.InDelta(t, 1.0, resource.seeks[0].offset, 1e-9)
	assert.False(t, resource.seeks[0].exact)
}

func TestUpdateSwitchesResourceAtClipBoundary(t *testing.T) {
	decoder := newFakeDecoder()
	comp := newTestCompositor(decoder)
	comp.SetTimeline(twoClipTimeline(t))

	require.NoError(t, comp.Update(context.Background(), 4.9, false, false))
	require.NoError(t, comp.Update(context.Background(), 6.0, false, false))

	assert.Equal(t, 1, comp.OpenResources())
	assert.True(t, decoder.opened["a.mp4"].closed)

	second := decoder.opened["b.mp4"]
	require.NotNil(t, second)
	assert.False(t, second.closed)
	// Local offset within the second clip: 6.0 - 5.0.
	assert.InDelta(t, 1.0, second.seeks[0].offset, 1e-9)
}

func TestUpdateBoundaryTimeBelongsToLaterClip(t *testing.T) {
	decoder := newFakeDecoder()
	comp := newTestCompositor(decoder)
	comp.SetTimeline(twoClipTimeline(t))

	require.NoError(t, comp.Update(context.Background(), 5.0, false, false))

	assert.Nil(t, decoder.opened["a.mp4"])
	require.NotNil(t, decoder.opened["b.mp4"])
	assert.InDelta(t, 0.0, decoder.opened["b.mp4"].seeks[0].offset, 1e-9)
}

func TestUpdatePassesExactSeekThrough(t *testing.T) {
	decoder := newFakeDecoder()
	comp := newTestCompositor(decoder)
	comp.SetTimeline(twoClipTimeline(t))

	require.NoError(t, comp.Update(context.Background(), 2.0, false, true))
	assert.True(t, decoder.opened["a.mp4"].seeks[0].exact)

	require.NoError(t, comp.Update(context.Background(), 2.1, false, false))
	assert.False(t, decoder.opened["a.mp4"].seeks[1].exact)
}

func TestUpdateHoldsOverlayAndVideoResources(t *testing.T) {
	start := 1.0
	timeline := buildTimeline(t, []timelinemodule.ManifestClip{
		{Kind: timelinemodule.ClipVideo, Source: "a.mp4", Duration: 5},
		{Kind: timelinemodule.ClipOverlay, Source: "title.mp4", Duration: 2, Start: &start},
	})
	decoder := newFakeDecoder()
	comp := newTestCompositor(decoder)
	comp.SetTimeline(timeline)

	require.NoError(t, comp.Update(context.Background(), 1.5, false, false))
	assert.Equal(t, 2, comp.OpenResources())
	overlay := decoder.opened["title.mp4"]
	require.NotNil(t, overlay)
	assert.InDelta(t, 0.5, overlay.seeks[0].offset, 1e-9)

	// Past the overlay window only the video resource survives.
	require.NoError(t, comp.Update(context.Background(), 3.5, false, false))
	assert.Equal(t, 1, comp.OpenResources())
	assert.True(t, overlay.closed)
}

func TestUpdateCompositesOverlayAboveVideo(t *testing.T) {
	start := 0.0
	timeline := buildTimeline(t, []timelinemodule.ManifestClip{
		{Kind: timelinemodule.ClipVideo, Source: "a.mp4", Duration: 5},
		{Kind: timelinemodule.ClipOverlay, Source: "title.mp4", Duration: 2, Start: &start},
	})
	decoder := newFakeDecoder()
	decoder.fillWith["a.mp4"] = color.RGBA{R: 0xff, A: 0xff}
	decoder.fillWith["title.mp4"] = color.RGBA{G: 0xff, A: 0xff}
	comp := newTestCompositor(decoder)
	comp.SetTimeline(timeline)

	require.NoError(t, comp.Update(context.Background(), 0.5, false, false))

	snap := comp.Snapshot()
	r, g, _, _ := snap.At(1, 1).RGBA()
	assert.Zero(t, r>>8)
	assert.Equal(t, uint32(0xff), g>>8)
}

func TestUpdateOpenFailureReturnsDecodeError(t *testing.T) {
	decoder := newFakeDecoder()
	cause := errors.New("no such file")
	decoder.failOpen["a.mp4"] = cause
	comp := newTestCompositor(decoder)
	comp.SetTimeline(twoClipTimeline(t))

	err := comp.Update(context.Background(), 1.0, false, false)
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "a.mp4", decodeErr.Source)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 0, comp.OpenResources())
}

func TestUpdatePastEndKeepsLastFrame(t *testing.T) {
	decoder := newFakeDecoder()
	decoder.fillWith["b.mp4"] = color.RGBA{B: 0xff, A: 0xff}
	comp := newTestCompositor(decoder)
	comp.SetTimeline(twoClipTimeline(t))

	require.NoError(t, comp.Update(context.Background(), 7.9, false, false))
	require.NoError(t, comp.Update(context.Background(), 8.0, false, false))

	// No clip owns t=8.0; the surface keeps the last rendered frame.
	snap := comp.Snapshot()
	_, _, b, _ := snap.At(1, 1).RGBA()
	assert.Equal(t, uint32(0xff), b>>8)
	assert.Equal(t, 0, comp.OpenResources())
}

func TestSetTimelineReleasesResources(t *testing.T) {
	decoder := newFakeDecoder()
	comp := newTestCompositor(decoder)
	comp.SetTimeline(twoClipTimeline(t))

	require.NoError(t, comp.Update(context.Background(), 1.0, false, false))
	require.Equal(t, 1, comp.OpenResources())

	comp.SetTimeline(twoClipTimeline(t))
	assert.Equal(t, 0, comp.OpenResources())
	assert.True(t, decoder.opened["a.mp4"].closed)
}

func TestAuthoritativeTimeMapsToTimeline(t *testing.T) {
	decoder := newFakeDecoder()
	comp := newTestCompositor(decoder)
	comp.SetTimeline(twoClipTimeline(t))

	// Not playing yet: no authoritative sample.
	require.NoError(t, comp.Update(context.Background(), 6.0, false, false))
	_, _, ok := comp.AuthoritativeTime()
	assert.False(t, ok)

	require.NoError(t, comp.Update(context.Background(), 6.0, true, false))
	tm, reportedAt, ok := comp.AuthoritativeTime()
	require.True(t, ok)
	// Clip-local offset 1.0 inside the second clip maps back to 5.0 + 1.0.
	assert.InDelta(t, 6.0, tm, 1e-9)
	assert.WithinDuration(t, time.Now(), reportedAt, time.Second)
}

func TestDestroyReleasesEverythingAndIsIdempotent(t *testing.T) {
	decoder := newFakeDecoder()
	comp := newTestCompositor(decoder)
	comp.SetTimeline(twoClipTimeline(t))
	require.NoError(t, comp.Update(context.Background(), 1.0, false, false))

	comp.Destroy()
	assert.Equal(t, 0, comp.OpenResources())
	assert.True(t, decoder.opened["a.mp4"].closed)

	comp.Destroy()

	// Calls after destroy are safe no-ops.
	assert.NoError(t, comp.Update(context.Background(), 1.0, true, false))
	assert.Equal(t, 0, comp.OpenResources())
	_, _, ok := comp.AuthoritativeTime()
	assert.False(t, ok)
}
