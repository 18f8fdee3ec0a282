package calib

import (
	"image"
	"sync"

	"github.com/intothevoid/calibcam/pkg/frame"
	"github.com/pkg/errors"
)

// patternFrame builds a 1x1 frame the fake detector accepts when valid is
// true. The sequence number shifts the detected points so samples differ.
func patternFrame(seq uint64, valid bool) frame.Frame {
	v := byte(0)
	if valid {
		v = 1
	}
	return frame.Frame{Width: 1, Height: 1, Format: frame.FormatRGBA, Pix: []byte{v, 0, 0, 255}, Seq: seq}
}

// fakeVariant detects a chessboard in any frame whose first byte is 1 and
// reports the reference grid scaled by 10 and shifted by the frame's Seq.
type fakeVariant struct {
	mu    sync.Mutex
	calls int
}

func (v *fakeVariant) Kind() Kind { return Chessboard }

func (v *fakeVariant) Target(p Params) (Target, error) {
	return ChessboardTarget(p.Rows, p.Cols, 1)
}

func (v *fakeVariant) Detect(f frame.Frame, t Target) ([]Point2, bool) {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()

	if f.Pix[0] != 1 {
		return nil, false
	}
	shift := float64(f.Seq)
	pts := make([]Point2, 0, t.Len())
	for _, p := range t.Points() {
		pts = append(pts, Point2{X: p.X*10 + shift, Y: p.Y*10 + shift})
	}
	return pts, true
}

func (v *fakeVariant) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

type fakeSolver struct {
	mu      sync.Mutex
	calls   int
	samples int
	size    image.Point
	fail    bool
	release chan struct{} // optional; Solve blocks until closed
}

func (s *fakeSolver) Solve(set *SampleSet, size image.Point, c Criteria) (Result, error) {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.samples = set.Len()
	s.size = size

	if s.fail {
		return Result{}, errors.Wrap(ErrSolve, "points are degenerate")
	}
	return Result{
		CameraMatrix: [3][3]float64{{800, 0, 320}, {0, 800, 240}, {0, 0, 1}},
		Distortion:   []float64{0.1, -0.05, 0, 0, 0.01},
		RMS:          0.25,
	}, nil
}

func (s *fakeSolver) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *fakeSolver) Samples() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples
}

// shiftRefiner moves every point by a fixed offset.
type shiftRefiner struct {
	dx   float64
	fail bool
}

func (r shiftRefiner) Refine(f frame.Frame, pts []Point2, w Window, c Criteria) ([]Point2, error) {
	if r.fail {
		return nil, errors.New("did not converge")
	}
	out := make([]Point2, len(pts))
	for i, p := range pts {
		out[i] = Point2{X: p.X + r.dx, Y: p.Y}
	}
	return out, nil
}
