package ui

import (
	"image"
	"testing"

	"fyne.io/fyne/v2/test"
	"github.com/intothevoid/calibcam/pkg/calib"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultRequest() calib.Request {
	return calib.Request{
		Kind: calib.Chessboard,
		Params: calib.Params{
			Rows: 6, Cols: 9, SquareSize: 1, MarkerLength: 1, SeparationX: 0.2, SeparationY: 0.2,
		},
	}
}

func TestPanelDefaults(t *testing.T) {
	test.NewTempApp(t)
	p := NewPanel(defaultRequest())

	assert.Equal(t, "chessboard", p.variant.Selected)
	assert.Equal(t, "6", p.rows.Text)
	assert.Equal(t, "9", p.cols.Text)
	assert.Equal(t, "Idle", p.status.Text)
	assert.True(t, p.locX.Disabled(), "marker spacing only applies to marker boards")
	assert.True(t, p.cancel.Disabled())

	req, err := p.Request()
	require.NoError(t, err)
	assert.Equal(t, defaultRequest(), req)
}

func TestPanelStartEmitsTypedRequest(t *testing.T) {
	test.NewTempApp(t)
	p := NewPanel(defaultRequest())

	var got []calib.Request
	p.OnStart = func(r calib.Request) (string, error) {
		got = append(got, r)
		return "id", nil
	}

	p.variant.SetSelected("marker-board")
	assert.False(t, p.locX.Disabled())
	p.rows.SetText("4")
	p.cols.SetText("5")
	p.locX.SetText("0.5")
	p.locY.SetText("0.25")
	test.Tap(p.start)

	require.Len(t, got, 1)
	assert.Equal(t, calib.MarkerBoard, got[0].Kind)
	assert.Equal(t, 4, got[0].Params.Rows)
	assert.Equal(t, 5, got[0].Params.Cols)
	assert.Equal(t, 0.5, got[0].Params.SeparationX)
	assert.Equal(t, 0.25, got[0].Params.SeparationY)
	assert.Equal(t, 1.0, got[0].Params.MarkerLength)

	assert.True(t, p.start.Disabled())
	assert.False(t, p.cancel.Disabled())
}

func TestPanelRejectsBadInput(t *testing.T) {
	test.NewTempApp(t)
	p := NewPanel(defaultRequest())
	called := false
	p.OnStart = func(calib.Request) (string, error) {
		called = true
		return "", nil
	}

	p.rows.SetText("six")
	test.Tap(p.start)
	assert.False(t, called)
	assert.Contains(t, p.status.Text, "rows must be a whole number")
	assert.False(t, p.start.Disabled())
}

func TestPanelShowsStartError(t *testing.T) {
	test.NewTempApp(t)
	p := NewPanel(defaultRequest())
	p.OnStart = func(calib.Request) (string, error) {
		return "", errors.Wrap(calib.ErrBusy, "start")
	}

	test.Tap(p.start)
	assert.Contains(t, p.status.Text, "Cannot start")
	assert.False(t, p.start.Disabled())
}

func TestPanelFollowsStatus(t *testing.T) {
	test.NewTempApp(t)
	p := NewPanel(defaultRequest())
	cancelled := 0
	p.OnCancel = func() { cancelled++ }

	p.SetStatus(calib.Status{State: calib.Capturing, Samples: 3, Required: 10})
	assert.Equal(t, "Captured frames: 3/10", p.status.Text)
	assert.True(t, p.start.Disabled())
	assert.False(t, p.cancel.Disabled())

	test.Tap(p.cancel)
	assert.Equal(t, 1, cancelled)

	p.SetStatus(calib.Status{State: calib.Solving, Samples: 10, Required: 10})
	assert.True(t, p.cancel.Disabled())

	p.SetStatus(calib.Status{State: calib.Completed, Result: &calib.Result{RMS: 0.5}})
	assert.Equal(t, "Calibration complete (RMS 0.500)", p.status.Text)
	assert.False(t, p.start.Disabled())
}

func TestPanelHalt(t *testing.T) {
	test.NewTempApp(t)
	p := NewPanel(defaultRequest())

	p.Halt("Camera error: device lost")
	p.SetStatus(calib.Status{State: calib.Cancelled})

	assert.Equal(t, "Camera error: device lost", p.status.Text)
	assert.True(t, p.start.Disabled())
	assert.True(t, p.variant.Disabled())
}

func TestVideoDisplay(t *testing.T) {
	test.NewTempApp(t)
	v := NewVideoDisplay(64, 48)
	w := test.NewWindow(v)
	defer w.Close()

	assert.Equal(t, float32(64), v.MinSize().Width)

	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	v.UpdateFrame(img)
	assert.Same(t, img, v.image.Image)
}
