// Package render turns published frames into the pixel buffer the UI draws.
package render

import (
	"image"
	"time"

	"github.com/intothevoid/calibcam/pkg/frame"
	"github.com/intothevoid/calibcam/pkg/latest"
)

// FallbackFPS is assumed when a device reports no usable frame rate.
const FallbackFPS = 30.0

// Bridge copies the newest frame into one reusable RGBA buffer.
// Pull is meant to be called from a single UI goroutine.
type Bridge struct {
	sub *latest.Slot[frame.Frame]
	buf *image.RGBA

	rendered   uint64
	mismatched uint64
}

// New allocates the display buffer for a width x height camera.
func New(sub *latest.Slot[frame.Frame], width, height int) *Bridge {
	return &Bridge{
		sub: sub,
		buf: image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

// Pull never blocks. It returns the display buffer and whether it was
// updated by this call; without a new frame the previous image is returned
// unchanged (blank before the first frame).
func (b *Bridge) Pull() (*image.RGBA, bool) {
	f, ok := b.sub.TryRecv()
	if !ok {
		return b.buf, false
	}

	bounds := b.buf.Bounds()
	if f.Format != frame.FormatRGBA || f.Width != bounds.Dx() || f.Height != bounds.Dy() {
		b.mismatched++
		return b.buf, false
	}

	copy(b.buf.Pix, f.Pix)
	b.rendered++
	return b.buf, true
}

// Rendered counts frames copied into the buffer.
func (b *Bridge) Rendered() uint64 { return b.rendered }

// Mismatched counts frames skipped because of size or format.
func (b *Bridge) Mismatched() uint64 { return b.mismatched }

// Dropped counts frames overwritten before a tick picked them up.
func (b *Bridge) Dropped() uint64 { return b.sub.Drops() }

// TickInterval returns the UI refresh period for a camera running at fps,
// polling margin frames per second faster so a new frame is rarely missed.
func TickInterval(fps, margin float64) time.Duration {
	if fps <= 0 {
		fps = FallbackFPS
	}
	if margin < 0 {
		margin = 0
	}
	return time.Duration(float64(time.Second) / (fps + margin))
}
