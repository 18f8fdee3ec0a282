package camera

import (
	"github.com/intothevoid/calibcam/pkg/frame"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// DefaultCodec is the FourCC used for the archive when none is configured.
const DefaultCodec = "mp4v"

// VideoSink appends raw frames to a video file.
type VideoSink struct {
	path   string
	width  int
	height int
	writer *gocv.VideoWriter
}

// OpenSink creates the archive file. The writer is always colour, so gray
// and four-channel frames are converted to BGR before writing.
func OpenSink(path, codec string, fps float64, width, height int) (*VideoSink, error) {
	if codec == "" {
		codec = DefaultCodec
	}
	if len(codec) != 4 {
		return nil, errors.Errorf("codec %q is not a FourCC", codec)
	}
	if width <= 0 || height <= 0 || fps <= 0 {
		return nil, errors.Errorf("invalid sink geometry %dx%d@%.1f", width, height, fps)
	}

	w, err := gocv.VideoWriterFile(path, codec, fps, width, height, true)
	if err != nil {
		return nil, errors.Wrapf(err, "open video writer %s", path)
	}
	if !w.IsOpened() {
		w.Close()
		return nil, errors.Errorf("video writer %s did not open", path)
	}
	return &VideoSink{path: path, width: width, height: height, writer: w}, nil
}

// Write encodes one frame. Frames of a different size are rejected since the
// container is fixed-size.
func (s *VideoSink) Write(f frame.Frame) error {
	if f.Width != s.width || f.Height != s.height {
		return errors.Errorf("frame %dx%d does not match sink %dx%d", f.Width, f.Height, s.width, s.height)
	}
	m, err := bgrMat(f)
	if err != nil {
		return err
	}
	defer m.Close()
	return errors.Wrap(s.writer.Write(m), "write frame")
}

func (s *VideoSink) Close() error {
	return s.writer.Close()
}

// bgrMat copies a frame into a three-channel BGR matrix.
func bgrMat(f frame.Frame) (gocv.Mat, error) {
	if err := f.Validate(); err != nil {
		return gocv.NewMat(), err
	}

	var (
		mt   gocv.MatType
		code gocv.ColorConversionCode
		conv = true
	)
	switch f.Format {
	case frame.FormatBGR:
		mt, conv = gocv.MatTypeCV8UC3, false
	case frame.FormatGray:
		mt, code = gocv.MatTypeCV8UC1, gocv.ColorGrayToBGR
	case frame.FormatBGRA:
		mt, code = gocv.MatTypeCV8UC4, gocv.ColorBGRAToBGR
	case frame.FormatRGBA:
		mt, code = gocv.MatTypeCV8UC4, gocv.ColorRGBAToBGR
	default:
		return gocv.NewMat(), errors.Errorf("unsupported format %v", f.Format)
	}

	src, err := gocv.NewMatFromBytes(f.Height, f.Width, mt, f.Pix)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "wrap frame")
	}
	defer src.Close()
	if !conv {
		// src may share f.Pix.
		return src.Clone(), nil
	}

	dst := gocv.NewMat()
	gocv.CvtColor(src, &dst, code)
	return dst, nil
}
