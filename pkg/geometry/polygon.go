package geometry

import "math"

// PolygonCentroid returns the area centroid of a closed polygon given by its
// vertices. Degenerate polygons (zero area) fall back to the vertex average.
func PolygonCentroid(polygon []Point2D) Point2D {
	n := len(polygon)
	if n < 3 {
		return Centroid(polygon)
	}

	var area2, cx, cy float64
	for i := 0; i < n; i++ {
		p := polygon[i]
		q := polygon[(i+1)%n]
		cross := p.X*q.Y - q.X*p.Y
		area2 += cross
		cx += (p.X + q.X) * cross
		cy += (p.Y + q.Y) * cross
	}
	if math.Abs(area2) < 1e-9 {
		return Centroid(polygon)
	}
	return Point2D{X: cx / (3 * area2), Y: cy / (3 * area2)}
}
