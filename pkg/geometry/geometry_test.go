package geometry

import (
	"math"
	"testing"
)

func TestChebyshev(t *testing.T) {
	cases := []struct {
		a, b PointInt
		want int
	}{
		{PointInt{100, 100}, PointInt{100, 100}, 0},
		{PointInt{100, 100}, PointInt{115, 100}, 15},
		{PointInt{100, 100}, PointInt{85, 116}, 16},
		{PointInt{102, 98}, PointInt{100, 100}, 2},
	}
	for _, c := range cases {
		if got := c.a.Chebyshev(c.b); got != c.want {
			t.Errorf("Chebyshev(%v, %v) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestRectClip(t *testing.T) {
	r := RectInt{X: -5, Y: 90, Width: 20, Height: 20}.Clip(100, 100)
	if r != (RectInt{X: 0, Y: 90, Width: 15, Height: 10}) {
		t.Fatalf("unexpected clip %+v", r)
	}
	if !(RectInt{X: 200, Y: 0, Width: 10, Height: 10}).Clip(100, 100).Empty() {
		t.Fatalf("expected empty clip for rect outside image")
	}
}

func TestPolygonCentroid(t *testing.T) {
	square := []Point2D{{10, 10}, {30, 10}, {30, 30}, {10, 30}}
	c := PolygonCentroid(square)
	if math.Abs(c.X-20) > 1e-9 || math.Abs(c.Y-20) > 1e-9 {
		t.Fatalf("centroid = %+v, want (20, 20)", c)
	}
}

func TestRotate(t *testing.T) {
	// 4x3 image, corner pixel (3, 0) is the top-right.
	p := PointInt{3, 0}
	cases := []struct {
		deg  int
		want PointInt
	}{
		{0, PointInt{3, 0}},
		{90, PointInt{2, 3}},  // bottom-right of the 3x4 result
		{180, PointInt{0, 2}}, // bottom-left
		{270, PointInt{0, 0}}, // top-left
		{45, PointInt{3, 0}},
	}
	for _, c := range cases {
		if got := p.Rotate(c.deg, 4, 3); got != c.want {
			t.Errorf("Rotate(%d) = %v, want %v", c.deg, got, c.want)
		}
	}

	// Four quarter turns return to the start; width and height swap each turn.
	q := PointInt{1, 2}
	w, h := 4, 3
	for i := 0; i < 4; i++ {
		q = q.Rotate(90, w, h)
		w, h = h, w
	}
	if q != (PointInt{1, 2}) {
		t.Fatalf("four quarter turns gave %v", q)
	}
}
