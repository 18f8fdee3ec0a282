package vision

import (
	"image"
	"math"

	"github.com/intothevoid/calibcam/pkg/calib"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// MinViews is the fewest samples the solver will attempt to calibrate from.
const MinViews = 3

// Solver fits a pinhole model with radial/tangential distortion.
type Solver struct{}

// Solve runs OpenCV's calibrateCamera over every sample. gocv exposes no
// termination criteria for it, so OpenCV's defaults apply.
func (Solver) Solve(s *calib.SampleSet, size image.Point, _ calib.Criteria) (calib.Result, error) {
	return solve(s.ObjectPoints(), s.ImagePoints(), size)
}

func solve(object [][]calib.Point3, imagePts [][]calib.Point2, size image.Point) (calib.Result, error) {
	if len(imagePts) < MinViews || len(object) != len(imagePts) {
		return calib.Result{}, errors.Wrapf(calib.ErrSolve, "need at least %d samples, have %d", MinViews, len(imagePts))
	}
	if size.X <= 0 || size.Y <= 0 {
		return calib.Result{}, errors.Wrapf(calib.ErrSolve, "invalid image size %v", size)
	}

	objectPoints := gocv.NewPoints3fVector()
	defer objectPoints.Close()
	for _, pts := range object {
		if len(pts) < 4 {
			return calib.Result{}, errors.Wrapf(calib.ErrSolve, "sample has only %d points", len(pts))
		}
		v := gocv.NewPoint3fVectorFromPoints(toPoint3f(pts))
		objectPoints.Append(v)
		v.Close()
	}

	imagePoints := gocv.NewPoints2fVector()
	defer imagePoints.Close()
	for _, pts := range imagePts {
		v := gocv.NewPoint2fVectorFromPoints(toPoint2f(pts))
		imagePoints.Append(v)
		v.Close()
	}

	cameraMatrix := gocv.NewMat()
	defer cameraMatrix.Close()
	distCoeffs := gocv.NewMat()
	defer distCoeffs.Close()
	rvecs := gocv.NewMat()
	defer rvecs.Close()
	tvecs := gocv.NewMat()
	defer tvecs.Close()

	rms := gocv.CalibrateCamera(objectPoints, imagePoints, size,
		&cameraMatrix, &distCoeffs, &rvecs, &tvecs, gocv.CalibFlag(0))

	res, err := resultFromMats(cameraMatrix, distCoeffs, rms)
	if err != nil {
		return calib.Result{}, errors.Wrap(calib.ErrSolve, err.Error())
	}
	return res, nil
}

func resultFromMats(cameraMatrix, distCoeffs gocv.Mat, rms float64) (calib.Result, error) {
	if cameraMatrix.Rows() != 3 || cameraMatrix.Cols() != 3 {
		return calib.Result{}, errors.Errorf("camera matrix is %dx%d", cameraMatrix.Rows(), cameraMatrix.Cols())
	}
	if math.IsNaN(rms) || math.IsInf(rms, 0) {
		return calib.Result{}, errors.New("did not converge")
	}

	k := gocv.NewMat()
	defer k.Close()
	cameraMatrix.ConvertTo(&k, gocv.MatTypeCV64F)

	var res calib.Result
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			v := k.GetDoubleAt(r, c)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return calib.Result{}, errors.New("camera matrix is not finite")
			}
			res.CameraMatrix[r][c] = v
		}
	}
	if res.CameraMatrix[0][0] <= 0 || res.CameraMatrix[1][1] <= 0 {
		return calib.Result{}, errors.New("degenerate focal length")
	}

	d := gocv.NewMat()
	defer d.Close()
	distCoeffs.ConvertTo(&d, gocv.MatTypeCV64F)
	for i := 0; i < d.Total(); i++ {
		if d.Rows() == 1 {
			res.Distortion = append(res.Distortion, d.GetDoubleAt(0, i))
		} else {
			res.Distortion = append(res.Distortion, d.GetDoubleAt(i, 0))
		}
	}

	res.RMS = rms
	return res, nil
}
