package vision

import (
	"github.com/intothevoid/calibcam/pkg/calib"
	"github.com/intothevoid/calibcam/pkg/frame"
	"gocv.io/x/gocv"
)

// CircleGridVariant finds a symmetric grid of dark circles on a light
// background using blob detection.
type CircleGridVariant struct{}

func (CircleGridVariant) Kind() calib.Kind { return calib.CircleGrid }

func (CircleGridVariant) Target(p calib.Params) (calib.Target, error) {
	return calib.CircleGridTarget(p.Rows, p.Cols, squareOrUnit(p.SquareSize))
}

// Detect succeeds only when exactly rows*cols blobs are found and they can
// be split into rows.
func (CircleGridVariant) Detect(f frame.Frame, t calib.Target) ([]calib.Point2, bool) {
	grey, err := GrayMat(f)
	if err != nil {
		return nil, false
	}
	defer grey.Close()

	detector := gocv.NewSimpleBlobDetector()
	defer detector.Close()

	keypoints := detector.Detect(grey)
	if len(keypoints) != t.Len() {
		return nil, false
	}

	centres := make([]calib.Point2, len(keypoints))
	for i, kp := range keypoints {
		centres[i] = calib.Point2{X: kp.X, Y: kp.Y}
	}
	return OrderGrid(centres, t.Rows(), t.Cols())
}
