// Package geometry provides basic geometric types used throughout the grader.
package geometry

import (
	"fmt"
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Round returns the nearest integer point.
func (p Point2D) Round() PointInt {
	return PointInt{X: int(math.Round(p.X)), Y: int(math.Round(p.Y))}
}

// PointInt represents a pixel coordinate.
type PointInt struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ToFloat converts to Point2D.
func (p PointInt) ToFloat() Point2D {
	return Point2D{X: float64(p.X), Y: float64(p.Y)}
}

func (p PointInt) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

// Chebyshev returns max(|dx|, |dy|) between two pixel coordinates.
func (p PointInt) Chebyshev(other PointInt) int {
	return max(abs(p.X-other.X), abs(p.Y-other.Y))
}

// Euclidean returns the straight-line distance between two pixel coordinates.
func (p PointInt) Euclidean(other PointInt) float64 {
	return p.ToFloat().Distance(other.ToFloat())
}

// In reports whether the point lies inside a width x height image.
func (p PointInt) In(width, height int) bool {
	return p.X >= 0 && p.X < width && p.Y >= 0 && p.Y < height
}

// Rotate maps a pixel of a width x height image to the same pixel after the
// image is turned by degrees clockwise (0, 90, 180 or 270). Other angles
// leave the point unchanged.
func (p PointInt) Rotate(degrees, width, height int) PointInt {
	switch degrees {
	case 90:
		return PointInt{X: height - 1 - p.Y, Y: p.X}
	case 180:
		return PointInt{X: width - 1 - p.X, Y: height - 1 - p.Y}
	case 270:
		return PointInt{X: p.Y, Y: width - 1 - p.X}
	default:
		return p
	}
}

// RectInt represents a rectangle with integer coordinates.
type RectInt struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether the rectangle has no area.
func (r RectInt) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Clip returns the part of r that lies inside a width x height image.
// The result is empty when r does not overlap the image at all.
func (r RectInt) Clip(width, height int) RectInt {
	x0 := max(r.X, 0)
	y0 := max(r.Y, 0)
	x1 := min(r.X+r.Width, width)
	y1 := min(r.Y+r.Height, height)
	if x1 <= x0 || y1 <= y0 {
		return RectInt{}
	}
	return RectInt{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Centroid computes the centroid (average position) of a set of points.
func Centroid(points []Point2D) Point2D {
	if len(points) == 0 {
		return Point2D{}
	}
	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	return Point2D{X: sumX / n, Y: sumY / n}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
