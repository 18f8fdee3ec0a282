package vision

import (
	"image"

	"github.com/intothevoid/calibcam/pkg/calib"
	"github.com/intothevoid/calibcam/pkg/frame"
	"gocv.io/x/gocv"
)

// ChessboardVariant finds the inner corners of a chessboard.
type ChessboardVariant struct{}

func (ChessboardVariant) Kind() calib.Kind { return calib.Chessboard }

func (ChessboardVariant) Target(p calib.Params) (calib.Target, error) {
	return calib.ChessboardTarget(p.Rows, p.Cols, squareOrUnit(p.SquareSize))
}

// Detect returns the corners row by row, matching the target's order.
func (ChessboardVariant) Detect(f frame.Frame, t calib.Target) ([]calib.Point2, bool) {
	// 1. Greyscale
	grey, err := GrayMat(f)
	if err != nil {
		return nil, false
	}
	defer grey.Close()

	// 2. Corner search; OpenCV's pattern size is (columns, rows)
	corners := gocv.NewMat()
	defer corners.Close()
	found := gocv.FindChessboardCorners(grey, image.Pt(t.Cols(), t.Rows()), &corners,
		gocv.CalibCBAdaptiveThresh|gocv.CalibCBNormalizeImage)
	if !found || corners.Empty() {
		return nil, false
	}

	pts := pointsFromMat(corners)
	return pts, len(pts) == t.Len()
}

func squareOrUnit(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v
}
