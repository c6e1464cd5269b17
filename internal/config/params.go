package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"omr-grader/pkg/geometry"
)

// Orientation strategy names accepted by Params.Orientation.
const (
	OrientDarkness = "darkness"
	OrientMarkers  = "markers"
	OrientNone     = "none"
)

// Match metric names accepted by Params.MatchMetric.
const (
	MetricBox       = "box"
	MetricEuclidean = "euclidean"
)

// Params holds every tunable threshold of the grading pipeline.
// See DefaultParams for the values and what each one guards against.
type Params struct {
	// Orientation
	Orientation       string  `json:"orientation"`         // darkness | markers | none
	DarkPixelMax      uint8   `json:"dark_pixel_max"`      // pixels below this luma count as ink (half-darkness vote)
	MarkerThreshold   uint8   `json:"marker_threshold"`    // binarization level for fiducial contours
	MarkerMinArea     float64 `json:"marker_min_area"`     // px², smaller contours are noise
	MarkerMaxArea     float64 `json:"marker_max_area"`     // px², larger contours are blocks of print
	MarkerMinQuadrant int     `json:"marker_min_quadrant"` // occupied quadrants needed for any correction

	// Automatic circle detection
	BlurKernel   int     `json:"blur_kernel"`
	HoughDP      float64 `json:"hough_dp"`       // inverse ratio of accumulator resolution
	HoughMinDist float64 `json:"hough_min_dist"` // minimum distance between circle centers (px)
	HoughParam1  float64 `json:"hough_param1"`   // Canny high threshold
	HoughParam2  float64 `json:"hough_param2"`   // accumulator threshold
	MinRadius    int     `json:"min_radius"`
	MaxRadius    int     `json:"max_radius"`

	// Fill classification
	DiscFillMax    float64 `json:"disc_fill_max"`    // mean luma below this inside a known-radius disc means filled
	WindowFillMax  float64 `json:"window_fill_max"`  // mean luma below this inside the point-only window means filled
	WindowHalfSize int     `json:"window_half_size"` // half-width of the point-only sampling window

	// Matching
	MatchTolerance int    `json:"match_tolerance"` // px on each axis (box) or radius (euclidean)
	MatchMetric    string `json:"match_metric"`    // box | euclidean
	Alternatives   string `json:"alternatives"`    // one letter per alternative slot, row order
	RowTolerance   int    `json:"row_tolerance"`   // y spread tolerated inside one bubble row

	// Input preparation
	ResizeWidth int `json:"resize_width"` // 0 keeps the decoded size

	// Optional header region read by OCR, in normalized-image pixels.
	HeaderRegion geometry.RectInt `json:"header_region"`
}

// DefaultParams returns the thresholds tuned for printed A4/Letter answer
// sheets photographed or scanned at roughly 100 dpi.
func DefaultParams() Params {
	return Params{
		Orientation: OrientDarkness,

		// Solid ink only; paper texture and shadows stay above 50.
		DarkPixelMax: 50,

		// Fiducials are solid printed squares, slightly lighter cutoff than
		// the darkness vote so JPEG halos stay attached to the square.
		MarkerThreshold:   60,
		MarkerMinArea:     100,
		MarkerMaxArea:     5000,
		MarkerMinQuadrant: 2,

		BlurKernel:   5,
		HoughDP:      1.2,
		HoughMinDist: 20,
		HoughParam1:  50,
		HoughParam2:  30,
		MinRadius:    10,
		MaxRadius:    20,

		// Pencil coverage of a bubble is partial, so the disc cutoff sits
		// well above the solid-ink thresholds.
		DiscFillMax:    130,
		WindowFillMax:  127,
		WindowHalfSize: 10,

		MatchTolerance: 15,
		MatchMetric:    MetricBox,
		Alternatives:   "ABCDE",
		RowTolerance:   10,
	}
}

// WithOrientation returns a copy of params using the named orientation strategy.
func (p Params) WithOrientation(name string) Params {
	p.Orientation = strings.ToLower(strings.TrimSpace(name))
	return p
}

// WithRadiusRange returns a copy of params with a custom bubble radius band.
func (p Params) WithRadiusRange(minR, maxR int) Params {
	p.MinRadius = minR
	p.MaxRadius = maxR
	if p.MaxRadius < p.MinRadius {
		p.MaxRadius = p.MinRadius
	}
	// Neighbouring bubbles never overlap, so centers are at least one diameter apart.
	p.HoughMinDist = float64(max(10, p.MinRadius*2))
	return p
}

// WithTolerance returns a copy of params with a custom matching tolerance.
func (p Params) WithTolerance(px int, metric string) Params {
	p.MatchTolerance = px
	if metric != "" {
		p.MatchMetric = strings.ToLower(metric)
	}
	return p
}

// WithAlternatives returns a copy of params with a custom alternative set.
func (p Params) WithAlternatives(letters string) Params {
	p.Alternatives = strings.ToUpper(strings.TrimSpace(letters))
	return p
}

// Validate reports the first inconsistent setting.
func (p Params) Validate() error {
	switch p.Orientation {
	case OrientDarkness, OrientMarkers, OrientNone:
	default:
		return fmt.Errorf("unknown orientation strategy %q", p.Orientation)
	}
	switch p.MatchMetric {
	case MetricBox, MetricEuclidean:
	default:
		return fmt.Errorf("unknown match metric %q", p.MatchMetric)
	}
	if p.MinRadius <= 0 || p.MaxRadius < p.MinRadius {
		return fmt.Errorf("invalid radius range: min=%d, max=%d", p.MinRadius, p.MaxRadius)
	}
	if p.BlurKernel < 1 || p.BlurKernel%2 == 0 {
		return fmt.Errorf("blur kernel must be odd and positive, got %d", p.BlurKernel)
	}
	if p.MarkerMaxArea < p.MarkerMinArea {
		return fmt.Errorf("invalid marker area band [%.0f, %.0f]", p.MarkerMinArea, p.MarkerMaxArea)
	}
	if len(p.Alternatives) == 0 {
		return fmt.Errorf("alternative set is empty")
	}
	if p.MatchTolerance < 0 || p.WindowHalfSize < 0 || p.RowTolerance < 0 {
		return fmt.Errorf("tolerances must not be negative")
	}
	return nil
}

// LoadParams reads a JSON file and overlays it on DefaultParams.
// Fields missing from the file keep their defaults. An empty path returns
// the defaults unchanged.
func LoadParams(path string) (Params, error) {
	p := DefaultParams()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read params: %w", err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse params %s: %w", path, err)
	}
	p.Orientation = strings.ToLower(p.Orientation)
	p.MatchMetric = strings.ToLower(p.MatchMetric)
	p.Alternatives = strings.ToUpper(p.Alternatives)
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("params %s: %w", path, err)
	}
	return p, nil
}
