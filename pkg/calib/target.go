package calib

import "github.com/pkg/errors"

// Target is the physical pattern's geometry. It is immutable once built.
type Target struct {
	kind   Kind
	rows   int
	cols   int
	points []Point3
}

func (t Target) Kind() Kind { return t.kind }
func (t Target) Rows() int  { return t.rows }
func (t Target) Cols() int  { return t.cols }

// Len is the number of reference points a detection must produce.
func (t Target) Len() int { return len(t.points) }

// Points returns a copy of the reference points.
func (t Target) Points() []Point3 {
	out := make([]Point3, len(t.points))
	copy(out, t.points)
	return out
}

// ChessboardTarget describes the inner corners of a chessboard: rows x cols
// intersections, row-major, on the z = 0 plane.
func ChessboardTarget(rows, cols int, square float64) (Target, error) {
	if rows < 2 || cols < 2 {
		return Target{}, errors.Wrapf(ErrInvalidTarget, "chessboard needs at least 2x2 corners, got %dx%d", rows, cols)
	}
	if square <= 0 {
		return Target{}, errors.Wrapf(ErrInvalidTarget, "square size %v", square)
	}
	return Target{kind: Chessboard, rows: rows, cols: cols, points: grid(rows, cols, square)}, nil
}

// CircleGridTarget describes a symmetric grid of circle centres.
func CircleGridTarget(rows, cols int, spacing float64) (Target, error) {
	if rows < 2 || cols < 2 {
		return Target{}, errors.Wrapf(ErrInvalidTarget, "circle grid needs at least 2x2 circles, got %dx%d", rows, cols)
	}
	if spacing <= 0 {
		return Target{}, errors.Wrapf(ErrInvalidTarget, "circle spacing %v", spacing)
	}
	return Target{kind: CircleGrid, rows: rows, cols: cols, points: grid(rows, cols, spacing)}, nil
}

// MarkerBoardTarget describes a rows x cols board of square fiducial markers.
// Marker id r*cols+c sits in row r, column c; each contributes its four
// corners clockwise from top-left, in id order.
func MarkerBoardTarget(rows, cols int, length, sepX, sepY float64) (Target, error) {
	if rows < 1 || cols < 1 || rows*cols < 2 {
		return Target{}, errors.Wrapf(ErrInvalidTarget, "marker board needs at least 2 markers, got %dx%d", rows, cols)
	}
	if length <= 0 || sepX < 0 || sepY < 0 {
		return Target{}, errors.Wrapf(ErrInvalidTarget, "marker length %v, separation %v,%v", length, sepX, sepY)
	}

	points := make([]Point3, 0, rows*cols*4)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x := float64(c) * (length + sepX)
			y := float64(r) * (length + sepY)
			points = append(points,
				Point3{X: x, Y: y},
				Point3{X: x + length, Y: y},
				Point3{X: x + length, Y: y + length},
				Point3{X: x, Y: y + length},
			)
		}
	}
	return Target{kind: MarkerBoard, rows: rows, cols: cols, points: points}, nil
}

func grid(rows, cols int, step float64) []Point3 {
	points := make([]Point3, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			points = append(points, Point3{X: float64(c) * step, Y: float64(r) * step})
		}
	}
	return points
}
