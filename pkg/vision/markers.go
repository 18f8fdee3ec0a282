package vision

import (
	"strings"

	"github.com/intothevoid/calibcam/pkg/calib"
	"github.com/intothevoid/calibcam/pkg/frame"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var dictionaries = map[string]gocv.ArucoPredefinedDictionaryType{
	"4x4_50":   gocv.ArucoDict4x4_50,
	"4x4_100":  gocv.ArucoDict4x4_100,
	"5x5_50":   gocv.ArucoDict5x5_50,
	"5x5_100":  gocv.ArucoDict5x5_100,
	"6x6_50":   gocv.ArucoDict6x6_50,
	"6x6_250":  gocv.ArucoDict6x6_250,
	"original": gocv.ArucoDictArucoOriginal,
}

// MarkerBoardVariant finds a board of ArUco markers whose ids run 0..n-1 in
// row-major order.
type MarkerBoardVariant struct {
	dict gocv.ArucoPredefinedDictionaryType
}

// NewMarkerBoardVariant selects the marker dictionary by name, e.g. "6x6_250".
func NewMarkerBoardVariant(dictionary string) (*MarkerBoardVariant, error) {
	d, ok := dictionaries[strings.ToLower(dictionary)]
	if !ok {
		return nil, errors.Errorf("unknown marker dictionary %q", dictionary)
	}
	return &MarkerBoardVariant{dict: d}, nil
}

func (*MarkerBoardVariant) Kind() calib.Kind { return calib.MarkerBoard }

func (*MarkerBoardVariant) Target(p calib.Params) (calib.Target, error) {
	return calib.MarkerBoardTarget(p.Rows, p.Cols, squareOrUnit(p.MarkerLength), p.SeparationX, p.SeparationY)
}

// Detect requires every marker of the board to be visible.
func (v *MarkerBoardVariant) Detect(f frame.Frame, t calib.Target) ([]calib.Point2, bool) {
	grey, err := GrayMat(f)
	if err != nil {
		return nil, false
	}
	defer grey.Close()

	detector := gocv.NewArucoDetectorWithParams(gocv.GetPredefinedDictionary(v.dict), gocv.NewArucoDetectorParameters())
	defer detector.Close()

	found, ids, _ := detector.DetectMarkers(grey)
	if len(ids) < t.Rows()*t.Cols() {
		return nil, false
	}

	corners := make([][]calib.Point2, len(found))
	for i, c := range found {
		corners[i] = fromPoint2f(c)
	}
	return OrderMarkers(ids, corners, t.Rows()*t.Cols())
}
