package vision

import (
	"github.com/intothevoid/calibcam/pkg/calib"
	"github.com/intothevoid/calibcam/pkg/frame"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// SubPixRefiner moves detected corners to the local intensity saddle point.
type SubPixRefiner struct{}

func (SubPixRefiner) Refine(f frame.Frame, pts []calib.Point2, w calib.Window, c calib.Criteria) ([]calib.Point2, error) {
	if len(pts) == 0 {
		return nil, errors.New("no points to refine")
	}

	grey, err := GrayMat(f)
	if err != nil {
		return nil, errors.Wrap(err, "refine")
	}
	defer grey.Close()

	corners, err := matFromPoints(pts)
	if err != nil {
		return nil, errors.Wrap(err, "refine")
	}
	defer corners.Close()

	criteria := gocv.NewTermCriteria(gocv.Count|gocv.EPS, c.MaxIter, c.Epsilon)
	gocv.CornerSubPix(grey, &corners, w.Size, w.ZeroZone, criteria)

	refined := pointsFromMat(corners)
	if len(refined) != len(pts) {
		return nil, errors.Errorf("refine returned %d points, want %d", len(refined), len(pts))
	}
	return refined, nil
}
