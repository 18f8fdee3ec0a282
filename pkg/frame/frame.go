package frame

import (
	"time"

	"github.com/pkg/errors"
)

// Format describes the byte layout of a frame's pixels.
type Format int8

const (
	FormatUnknown Format = iota
	FormatGray           // 1 byte per pixel
	FormatBGR            // 3 bytes per pixel, OpenCV native order
	FormatBGRA           // 4 bytes per pixel
	FormatRGBA           // 4 bytes per pixel, display order
)

// ErrEmpty is returned by a source that produced no pixels for a read.
// Capture treats it as a skipped iteration rather than a device failure.
var ErrEmpty = errors.New("frame is empty")

// Channels returns the number of bytes per pixel for the format.
func (f Format) Channels() int {
	switch f {
	case FormatGray:
		return 1
	case FormatBGR:
		return 3
	case FormatBGRA, FormatRGBA:
		return 4
	}
	return 0
}

func (f Format) String() string {
	switch f {
	case FormatGray:
		return "gray"
	case FormatBGR:
		return "bgr"
	case FormatBGRA:
		return "bgra"
	case FormatRGBA:
		return "rgba"
	}
	return "unknown"
}

// FormatForChannels maps an OpenCV channel count to a native format.
func FormatForChannels(n int) Format {
	switch n {
	case 1:
		return FormatGray
	case 3:
		return FormatBGR
	case 4:
		return FormatBGRA
	}
	return FormatUnknown
}

// Frame is one captured image. A Frame is never modified after it has been
// created, so it may be handed between goroutines without copying.
type Frame struct {
	Width     int
	Height    int
	Format    Format
	Pix       []byte
	Seq       uint64
	Timestamp time.Time
}

// New validates that pix holds exactly width*height pixels of the given format.
func New(width, height int, format Format, pix []byte) (Frame, error) {
	f := Frame{Width: width, Height: height, Format: format, Pix: pix}
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Validate checks the frame's dimensions against its buffer length.
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return errors.Errorf("invalid frame size %dx%d", f.Width, f.Height)
	}
	ch := f.Format.Channels()
	if ch == 0 {
		return errors.Errorf("unsupported pixel format %s", f.Format)
	}
	if want := f.Width * f.Height * ch; len(f.Pix) != want {
		return errors.Errorf("frame buffer is %d bytes, want %d for %dx%d %s",
			len(f.Pix), want, f.Width, f.Height, f.Format)
	}
	return nil
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool {
	return len(f.Pix) == 0
}
