package compositor

import (
	"context"
	"image"
	"time"
)

// Decoder opens decode resources for clip sources. The production
// implementation shells out to ffmpeg; tests substitute a fake.
type Decoder interface {
	Open(ctx context.Context, source string) (DecodeResource, error)
}

// DecodeResource is an open, seekable media stream for one clip. It is owned
// exclusively by the Compositor, which releases it as soon as its clip stops
// being the time-owner.
type DecodeResource interface {
	// Seek positions the resource at offset seconds into the clip. When
	// exact is set the resource must re-buffer to the precise target and
	// only return once the frame for that offset has settled; otherwise it
	// may advance lazily, skipping decodes that would not change the
	// visible frame. Blocks until settled or ctx is done.
	Seek(ctx context.Context, offset float64, exact bool) error

	// Frame returns the most recently decoded frame, or nil before the
	// first successful seek.
	Frame() *image.RGBA

	// Position returns the decoder's own reported clip offset and the time
	// it was reported. ok is false before any frame has been decoded.
	Position() (offset float64, reportedAt time.Time, ok bool)

	// Close releases the resource. Safe to call more than once.
	Close() error
}
