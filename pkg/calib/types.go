// Package calib implements the calibration-sample capture state machine and
// the controller that runs one session at a time next to live capture.
//
// Pixel work is delegated to three collaborators: a Detector that finds the
// target in a frame, an optional Refiner for sub-pixel accuracy, and a Solver
// that fits the camera intrinsics once enough samples are collected.
package calib

import (
	"image"
	"strings"

	"github.com/intothevoid/calibcam/pkg/frame"
	"github.com/pkg/errors"
)

// Point2 is an image coordinate in pixels.
type Point2 struct {
	X, Y float64
}

// Point3 is a target coordinate in target units.
type Point3 struct {
	X, Y, Z float64
}

// Kind selects the calibration target variant.
type Kind int8

const (
	Chessboard Kind = iota
	CircleGrid
	MarkerBoard
)

var kindNames = map[Kind]string{
	Chessboard:  "chessboard",
	CircleGrid:  "circle-grid",
	MarkerBoard: "marker-board",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseKind accepts a variant name or its index ("0", "1", "2").
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if s == n || (len(s) == 1 && s[0] == byte('0'+k)) {
			return k, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownVariant, "%q", s)
}

// Params are the start parameters of a session. Variants read only the
// fields that apply to them.
type Params struct {
	Rows         int
	Cols         int
	SquareSize   float64
	MarkerLength float64
	SeparationX  float64
	SeparationY  float64
}

// Criteria stops an iterative optimisation.
type Criteria struct {
	MaxIter int
	Epsilon float64
}

// DefaultCriteria matches 30 iterations or a 0.1 change.
func DefaultCriteria() Criteria {
	return Criteria{MaxIter: 30, Epsilon: 0.1}
}

// Window is the sub-pixel search window around each point. Size is the
// half-size, so the searched area is (2*Size.X+1) x (2*Size.Y+1).
type Window struct {
	Size     image.Point
	ZeroZone image.Point
}

// DefaultWindow has half-size 11 (a 23x23 search) and no dead zone.
func DefaultWindow() Window {
	return Window{Size: image.Pt(11, 11), ZeroZone: image.Pt(-1, -1)}
}

// Result is the fitted camera model.
type Result struct {
	CameraMatrix [3][3]float64
	Distortion   []float64
	RMS          float64
}

// Detector finds a target's features in a frame. Points come back in the
// same order as the target's reference points. Detect must be deterministic.
type Detector interface {
	Detect(f frame.Frame, t Target) ([]Point2, bool)
}

// Refiner improves detected points to sub-pixel accuracy, preserving count
// and order.
type Refiner interface {
	Refine(f frame.Frame, pts []Point2, w Window, c Criteria) ([]Point2, error)
}

// Solver fits intrinsics and distortion to a complete sample set.
type Solver interface {
	Solve(s *SampleSet, size image.Point, c Criteria) (Result, error)
}

// Variant is one kind of calibration target: its geometry and its detector.
type Variant interface {
	Detector
	Kind() Kind
	Target(p Params) (Target, error)
}

var (
	// ErrBusy rejects a start request while a session is alive.
	ErrBusy = errors.New("calibration already running")

	// ErrUnknownVariant rejects a start request for an unregistered kind.
	ErrUnknownVariant = errors.New("unknown calibration type")

	// ErrInvalidTarget rejects target dimensions that cannot be calibrated.
	ErrInvalidTarget = errors.New("invalid calibration target")

	// ErrSolve marks a solver failure; sessions end Failed.
	ErrSolve = errors.New("calibration solve failed")
)
