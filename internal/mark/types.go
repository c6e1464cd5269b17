// Package mark locates answer-bubble candidates on a sheet.
package mark

import (
	"omr-grader/pkg/geometry"
)

// Method indicates how a candidate was obtained.
type Method int

const (
	// MethodHough indicates detection via the Hough circle transform.
	MethodHough Method = iota
	// MethodManual indicates a point supplied by the capture UI.
	MethodManual
)

func (m Method) String() string {
	switch m {
	case MethodHough:
		return "Hough"
	case MethodManual:
		return "Manual"
	default:
		return "Unknown"
	}
}

// Candidate is a detected or registered bubble location. A zero Radius
// means the location was registered as a bare point.
type Candidate struct {
	Center geometry.PointInt `json:"center"`
	Radius int               `json:"radius,omitempty"`
	Method Method            `json:"method"`
}

// HasRadius reports whether the candidate carries a bubble radius.
func (c Candidate) HasRadius() bool {
	return c.Radius > 0
}

// Points returns the centers of cands in order.
func Points(cands []Candidate) []geometry.PointInt {
	pts := make([]geometry.PointInt, len(cands))
	for i, c := range cands {
		pts[i] = c.Center
	}
	return pts
}

// FromPoints turns externally captured click coordinates into candidates.
// Points beyond questionCount are discarded; order is preserved.
func FromPoints(points []geometry.PointInt, questionCount int) []Candidate {
	n := len(points)
	if questionCount >= 0 && n > questionCount {
		n = questionCount
	}
	cands := make([]Candidate, n)
	for i := 0; i < n; i++ {
		cands[i] = Candidate{Center: points[i], Method: MethodManual}
	}
	return cands
}
