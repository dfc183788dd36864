package compositor

import (
	"image"
	"image/color"
	"image/draw"
)

// Surface is the in-memory render target shared by preview and export. It is
// mutated in place, so access is serialized by the owning Compositor.
type Surface struct {
	img *image.RGBA
}

// NewSurface allocates a render surface of the given dimensions
func NewSurface(width, height int) *Surface {
	return &Surface{
		img: image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

// Bounds returns the surface rectangle
func (s *Surface) Bounds() image.Rectangle {
	return s.img.Bounds()
}

// Clear fills the surface with black
func (s *Surface) Clear() {
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
}

// DrawFrame draws a decoded frame onto the surface, replacing what was there
func (s *Surface) DrawFrame(frame *image.RGBA) {
	if frame == nil {
		return
	}
	draw.Draw(s.img, s.img.Bounds(), frame, frame.Bounds().Min, draw.Src)
}

// DrawOverlay composites a frame above the current content with the given
// opacity in (0, 1]
func (s *Surface) DrawOverlay(frame *image.RGBA, opacity float64) {
	if frame == nil {
		return
	}
	if opacity >= 1 {
		draw.Draw(s.img, s.img.Bounds(), frame, frame.Bounds().Min, draw.Over)
		return
	}
	alpha := uint8(opacity * 0xff)
	mask := image.NewUniform(color.Alpha{A: alpha})
	draw.DrawMask(s.img, s.img.Bounds(), frame, frame.Bounds().Min, mask, image.Point{}, draw.Over)
}

// Snapshot returns a copy of the current pixels, safe to hand to an encoder
// while the surface keeps being mutated
func (s *Surface) Snapshot() *image.RGBA {
	out := image.NewRGBA(s.img.Bounds())
	copy(out.Pix, s.img.Pix)
	return out
}
