package camera

import (
	"sync"

	"github.com/intothevoid/calibcam/pkg/capture"
	"github.com/intothevoid/calibcam/pkg/frame"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Resolution is the capture size to request from the device. Zero keeps
// the device's native size.
type Resolution struct {
	Width  int
	Height int
}

// VideoStream manages the webcam connection
type VideoStream struct {
	deviceID int
	webcam   *gocv.VideoCapture
	frame    *gocv.Mat // Keep a reusable matrix to save memory
	props    capture.Properties

	closeOnce sync.Once
}

// Open initializes the camera and records what it reports.
func Open(id int, want Resolution) (*VideoStream, error) {
	cam, err := gocv.VideoCaptureDevice(id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open device %d", id)
	}
	if !cam.IsOpened() {
		cam.Close()
		return nil, errors.Errorf("device %d is not available", id)
	}

	if want.Width > 0 && want.Height > 0 {
		cam.Set(gocv.VideoCaptureFrameWidth, float64(want.Width))
		cam.Set(gocv.VideoCaptureFrameHeight, float64(want.Height))
	}

	mat := gocv.NewMat()
	return &VideoStream{
		deviceID: id,
		webcam:   cam,
		frame:    &mat,
		props: capture.Properties{
			Width:  int(cam.Get(gocv.VideoCaptureFrameWidth)),
			Height: int(cam.Get(gocv.VideoCaptureFrameHeight)),
			FPS:    cam.Get(gocv.VideoCaptureFPS),
		},
	}, nil
}

// Properties returns the size and nominal rate the device reported on open.
// FPS may be zero or negative for devices that don't know it.
func (vs *VideoStream) Properties() capture.Properties {
	return vs.props
}

// Read blocks for the next frame. The returned frame owns its pixels, so the
// reusable matrix can be overwritten by the following read.
func (vs *VideoStream) Read() (frame.Frame, error) {
	if !vs.webcam.Read(vs.frame) {
		return frame.Frame{}, errors.Errorf("cannot read frame from device %d", vs.deviceID)
	}
	if vs.frame.Empty() {
		return frame.Frame{}, frame.ErrEmpty
	}
	return frameFromMat(*vs.frame)
}

func (vs *VideoStream) Close() error {
	var err error
	vs.closeOnce.Do(func() {
		err = vs.webcam.Close()
		vs.frame.Close()
	})
	return err
}

func frameFromMat(m gocv.Mat) (frame.Frame, error) {
	switch m.Type() {
	case gocv.MatTypeCV8UC1, gocv.MatTypeCV8UC3, gocv.MatTypeCV8UC4:
	default:
		return frame.Frame{}, errors.Errorf("unsupported frame type %v", m.Type())
	}
	return frame.New(m.Cols(), m.Rows(), frame.FormatForChannels(m.Channels()), m.ToBytes())
}
