package vision

import (
	"encoding/binary"
	"math"

	"github.com/intothevoid/calibcam/pkg/calib"
	"github.com/intothevoid/calibcam/pkg/frame"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// GrayMat wraps a frame's pixels in a Mat and converts them to one channel.
// The caller closes the returned Mat.
func GrayMat(f frame.Frame) (gocv.Mat, error) {
	if err := f.Validate(); err != nil {
		return gocv.NewMat(), err
	}

	var (
		mt   gocv.MatType
		code gocv.ColorConversionCode
	)
	switch f.Format {
	case frame.FormatRGBA:
		mt, code = gocv.MatTypeCV8UC4, gocv.ColorRGBAToGray
	case frame.FormatBGRA:
		mt, code = gocv.MatTypeCV8UC4, gocv.ColorBGRAToGray
	case frame.FormatBGR:
		mt, code = gocv.MatTypeCV8UC3, gocv.ColorBGRToGray
	case frame.FormatGray:
		return gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC1, f.Pix)
	default:
		return gocv.NewMat(), errors.Errorf("unsupported format %s", f.Format)
	}

	src, err := gocv.NewMatFromBytes(f.Height, f.Width, mt, f.Pix)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "wrap frame")
	}
	defer src.Close()

	grey := gocv.NewMat()
	gocv.CvtColor(src, &grey, code)
	if grey.Empty() {
		grey.Close()
		return gocv.NewMat(), errors.New("grey conversion produced an empty mat")
	}
	return grey, nil
}

// pointsFromMat reads an Nx1 two-channel float Mat (OpenCV's point list).
func pointsFromMat(m gocv.Mat) []calib.Point2 {
	n := m.Rows() * m.Cols()
	pts := make([]calib.Point2, 0, n)
	for i := 0; i < m.Rows(); i++ {
		for j := 0; j < m.Cols(); j++ {
			v := m.GetVecfAt(i, j)
			pts = append(pts, calib.Point2{X: float64(v[0]), Y: float64(v[1])})
		}
	}
	return pts
}

// matFromPoints builds the Nx1 CV_32FC2 Mat OpenCV expects for point lists.
func matFromPoints(pts []calib.Point2) (gocv.Mat, error) {
	buf := make([]byte, len(pts)*8)
	for i, p := range pts {
		binary.LittleEndian.PutUint32(buf[i*8:], math.Float32bits(float32(p.X)))
		binary.LittleEndian.PutUint32(buf[i*8+4:], math.Float32bits(float32(p.Y)))
	}
	return gocv.NewMatFromBytes(len(pts), 1, gocv.MatTypeCV32FC2, buf)
}

func toPoint2f(pts []calib.Point2) []gocv.Point2f {
	out := make([]gocv.Point2f, len(pts))
	for i, p := range pts {
		out[i] = gocv.Point2f{X: float32(p.X), Y: float32(p.Y)}
	}
	return out
}

func toPoint3f(pts []calib.Point3) []gocv.Point3f {
	out := make([]gocv.Point3f, len(pts))
	for i, p := range pts {
		out[i] = gocv.Point3f{X: float32(p.X), Y: float32(p.Y), Z: float32(p.Z)}
	}
	return out
}

func fromPoint2f(pts []gocv.Point2f) []calib.Point2 {
	out := make([]calib.Point2, len(pts))
	for i, p := range pts {
		out[i] = calib.Point2{X: float64(p.X), Y: float64(p.Y)}
	}
	return out
}
