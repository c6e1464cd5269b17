// Package orient rotates captured answer sheets into the reference orientation.
//
// Both strategies are best-effort: when the evidence is too weak to decide,
// the image passes through unchanged and the Decision says so.
package orient

import (
	"fmt"

	"omr-grader/internal/config"

	"gocv.io/x/gocv"
)

// Decision describes what a Normalizer did to an image.
type Decision struct {
	Strategy     string // strategy name
	Rotation     int    // degrees clockwise applied: 0, 90, 180 or 270
	Insufficient bool   // evidence too weak, image passed through
	Detail       string // human-readable evidence summary
}

func (d Decision) String() string {
	if d.Insufficient {
		return fmt.Sprintf("%s: insufficient evidence (%s), unchanged", d.Strategy, d.Detail)
	}
	return fmt.Sprintf("%s: rotated %d° (%s)", d.Strategy, d.Rotation, d.Detail)
}

// Normalizer brings an image into the reference orientation. The returned
// Mat is always a new Mat owned by the caller, with the same channel depth
// as src and possibly swapped dimensions.
type Normalizer interface {
	Normalize(src gocv.Mat) (gocv.Mat, Decision)
}

// New returns the Normalizer selected by params.Orientation.
func New(params config.Params) (Normalizer, error) {
	switch params.Orientation {
	case config.OrientDarkness, "":
		return Darkness{DarkPixelMax: params.DarkPixelMax}, nil
	case config.OrientMarkers:
		return MarkerVote{
			Threshold:    params.MarkerThreshold,
			MinArea:      params.MarkerMinArea,
			MaxArea:      params.MarkerMaxArea,
			MinQuadrants: params.MarkerMinQuadrant,
		}, nil
	case config.OrientNone:
		return None{}, nil
	default:
		return nil, fmt.Errorf("unknown orientation strategy %q", params.Orientation)
	}
}

// None leaves every image as captured.
type None struct{}

// Normalize returns a copy of src.
func (None) Normalize(src gocv.Mat) (gocv.Mat, Decision) {
	return src.Clone(), Decision{Strategy: config.OrientNone, Detail: "disabled"}
}

// Rotate rotates an image clockwise by 0, 90, 180 or 270 degrees.
// Any other angle returns a copy.
func Rotate(img gocv.Mat, degrees int) gocv.Mat {
	dst := gocv.NewMat()

	switch ((degrees % 360) + 360) % 360 {
	case 90:
		gocv.Rotate(img, &dst, gocv.Rotate90Clockwise)
	case 180:
		gocv.Rotate(img, &dst, gocv.Rotate180Clockwise)
	case 270:
		gocv.Rotate(img, &dst, gocv.Rotate90CounterClockwise)
	default:
		img.CopyTo(&dst)
	}

	return dst
}

// grayOf returns a single-channel view of src for measurements.
func grayOf(src gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	switch src.Channels() {
	case 1:
		src.CopyTo(&dst)
	case 4:
		gocv.CvtColor(src, &dst, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(src, &dst, gocv.ColorBGRToGray)
	}
	return dst
}
