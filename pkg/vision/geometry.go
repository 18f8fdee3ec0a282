package vision

import (
	"math"
	"sort"

	"github.com/intothevoid/calibcam/pkg/calib"
)

// OrderGrid arranges rows*cols unordered points into row-major order:
// top row first, each row left to right. It reports false when the count is
// wrong or when the rows overlap vertically (grid too rotated to split).
func OrderGrid(pts []calib.Point2, rows, cols int) ([]calib.Point2, bool) {
	if rows <= 0 || cols <= 0 || len(pts) != rows*cols {
		return nil, false
	}

	sorted := make([]calib.Point2, len(pts))
	copy(sorted, pts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y < sorted[j].Y })

	out := make([]calib.Point2, 0, len(pts))
	prevMaxY := math.Inf(-1)
	for r := 0; r < rows; r++ {
		row := sorted[r*cols : (r+1)*cols]
		sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })

		// Every point of this row must sit below the previous row.
		minY := math.Inf(1)
		maxY := math.Inf(-1)
		for _, p := range row {
			minY = math.Min(minY, p.Y)
			maxY = math.Max(maxY, p.Y)
		}
		if minY <= prevMaxY {
			return nil, false
		}
		prevMaxY = maxY
		out = append(out, row...)
	}
	return out, true
}

// OrderMarkers flattens detected marker corners into id order 0..count-1,
// four corners per marker. All markers must be present exactly once.
func OrderMarkers(ids []int, corners [][]calib.Point2, count int) ([]calib.Point2, bool) {
	if len(ids) != len(corners) {
		return nil, false
	}

	byID := make(map[int][]calib.Point2, len(ids))
	for i, id := range ids {
		if id < 0 || id >= count || len(corners[i]) != 4 {
			continue
		}
		if _, dup := byID[id]; dup {
			return nil, false
		}
		byID[id] = corners[i]
	}
	if len(byID) != count {
		return nil, false
	}

	out := make([]calib.Point2, 0, count*4)
	for id := 0; id < count; id++ {
		out = append(out, byID[id]...)
	}
	return out, true
}
