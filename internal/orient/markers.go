package orient

import (
	"fmt"
	"image"

	"omr-grader/internal/config"
	"omr-grader/pkg/geometry"

	"gocv.io/x/gocv"
)

// Quadrant identifies one quarter of an image relative to its center.
type Quadrant int

const (
	TopLeft Quadrant = iota
	TopRight
	BottomLeft
	BottomRight
)

func (q Quadrant) String() string {
	switch q {
	case TopLeft:
		return "TL"
	case TopRight:
		return "TR"
	case BottomLeft:
		return "BL"
	case BottomRight:
		return "BR"
	default:
		return "?"
	}
}

// QuadrantCounts holds the number of fiducial centroids found per quadrant.
type QuadrantCounts [4]int

// Occupied returns how many quadrants hold at least one centroid.
func (c QuadrantCounts) Occupied() int {
	n := 0
	for _, v := range c {
		if v > 0 {
			n++
		}
	}
	return n
}

func (c QuadrantCounts) String() string {
	return fmt.Sprintf("TL=%d TR=%d BL=%d BR=%d",
		c[TopLeft], c[TopRight], c[BottomLeft], c[BottomRight])
}

// Classify returns the quadrant of p in a width x height image.
func Classify(p geometry.Point2D, width, height int) Quadrant {
	cx := float64(width) / 2
	cy := float64(height) / 2
	if p.X < cx {
		if p.Y < cy {
			return TopLeft
		}
		return BottomLeft
	}
	if p.Y < cy {
		return TopRight
	}
	return BottomRight
}

// Vote turns fiducial counts into a clockwise rotation. Fiducials are printed
// along the top edge of the reference sheet, so finding them at the bottom,
// right or left tells which way the capture is turned. The checks run in a
// fixed order and the first match wins. ok is false when fewer than
// minQuadrants quadrants hold a fiducial.
func Vote(c QuadrantCounts, minQuadrants int) (rotation int, ok bool) {
	if c.Occupied() < minQuadrants {
		return 0, false
	}
	switch {
	case c[BottomLeft]+c[BottomRight] >= 2:
		return 180, true
	case c[TopRight]+c[BottomRight] >= 2:
		return 270, true
	case c[TopLeft]+c[BottomLeft] >= 2:
		return 90, true
	default:
		return 0, true
	}
}

// MarkerVote orients sheets that carry printed corner fiducials.
type MarkerVote struct {
	Threshold    uint8   // luma at or below this is ink
	MinArea      float64 // px²
	MaxArea      float64 // px²
	MinQuadrants int
}

// Normalize implements Normalizer.
func (m MarkerVote) Normalize(src gocv.Mat) (gocv.Mat, Decision) {
	dec := Decision{Strategy: config.OrientMarkers}
	if src.Empty() {
		dec.Insufficient = true
		dec.Detail = "empty image"
		return src.Clone(), dec
	}

	gray := grayOf(src)
	defer gray.Close()

	counts := m.Count(gray)
	rotation, ok := Vote(counts, m.MinQuadrants)
	dec.Detail = counts.String()
	if !ok {
		dec.Insufficient = true
		return src.Clone(), dec
	}
	dec.Rotation = rotation
	return Rotate(src, rotation), dec
}

// Count binarizes gray, extracts external contours whose area lies in
// [MinArea, MaxArea] and tallies their centroids per quadrant.
func (m MarkerVote) Count(gray gocv.Mat) QuadrantCounts {
	var counts QuadrantCounts
	for _, c := range m.Centroids(gray) {
		counts[Classify(c, gray.Cols(), gray.Rows())]++
	}
	return counts
}

// Centroids returns the centroids of fiducial-sized dark blobs.
func (m MarkerVote) Centroids(gray gocv.Mat) []geometry.Point2D {
	bin := gocv.NewMat()
	defer bin.Close()
	gocv.Threshold(gray, &bin, float32(m.Threshold), 255, gocv.ThresholdBinaryInv)

	contours := gocv.FindContours(bin, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var centroids []geometry.Point2D
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area < m.MinArea || area > m.MaxArea {
			continue
		}
		centroids = append(centroids, geometry.PolygonCentroid(toFloat(contour.ToPoints())))
	}
	return centroids
}

func toFloat(pts []image.Point) []geometry.Point2D {
	out := make([]geometry.Point2D, len(pts))
	for i, p := range pts {
		out[i] = geometry.Point2D{X: float64(p.X), Y: float64(p.Y)}
	}
	return out
}
