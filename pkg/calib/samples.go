package calib

import (
	"math"

	"github.com/pkg/errors"
)

// SampleSet is the ordered list of accepted observations. Object and image
// points always have the same length; both only grow through add.
type SampleSet struct {
	object    [][]Point3
	image     [][]Point2
	centroids []Point2
}

// Len is the number of accepted samples.
func (s *SampleSet) Len() int { return len(s.image) }

// ObjectPoints returns a copy of the reference points per sample.
func (s *SampleSet) ObjectPoints() [][]Point3 {
	out := make([][]Point3, len(s.object))
	for i, pts := range s.object {
		out[i] = append([]Point3(nil), pts...)
	}
	return out
}

// ImagePoints returns a copy of the detected points per sample.
func (s *SampleSet) ImagePoints() [][]Point2 {
	out := make([][]Point2, len(s.image))
	for i, pts := range s.image {
		out[i] = append([]Point2(nil), pts...)
	}
	return out
}

func (s *SampleSet) add(obj []Point3, img []Point2) error {
	if len(obj) == 0 || len(obj) != len(img) {
		return errors.Errorf("sample has %d reference and %d image points", len(obj), len(img))
	}
	s.object = append(s.object, obj)
	s.image = append(s.image, img)
	s.centroids = append(s.centroids, centroid(img))
	return nil
}

func (s *SampleSet) reset() {
	s.object = nil
	s.image = nil
	s.centroids = nil
}

// near reports whether c lies within radius of an accepted sample's centroid.
func (s *SampleSet) near(c Point2, radius float64) bool {
	for _, o := range s.centroids {
		if math.Hypot(c.X-o.X, c.Y-o.Y) < radius {
			return true
		}
	}
	return false
}

func centroid(pts []Point2) Point2 {
	var c Point2
	for _, p := range pts {
		c.X += p.X
		c.Y += p.Y
	}
	n := float64(len(pts))
	return Point2{X: c.X / n, Y: c.Y / n}
}
