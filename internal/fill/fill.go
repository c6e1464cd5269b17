// Package fill decides whether an answer bubble has been marked.
package fill

import (
	"omr-grader/internal/config"
	"omr-grader/internal/mark"
	"omr-grader/pkg/geometry"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// State is the outcome of classifying one bubble.
type State int

const (
	Empty State = iota
	Filled
	// Undetermined means the sample region fell entirely outside the image.
	Undetermined
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Filled:
		return "filled"
	case Undetermined:
		return "undetermined"
	default:
		return "unknown"
	}
}

// Classify samples the bubble region of c on a grayscale image. Candidates
// with a radius are sampled over the disc of that radius and compared with
// DiscFillMax; point-only candidates are sampled over a square window of
// WindowHalfSize and compared with WindowFillMax.
func Classify(gray gocv.Mat, c mark.Candidate, params config.Params) State {
	mean, ok := MeanIntensity(gray, c, params.WindowHalfSize)
	return Decide(mean, ok, Threshold(c, params))
}

// ClassifyAll classifies every candidate in order.
func ClassifyAll(gray gocv.Mat, cands []mark.Candidate, params config.Params) []State {
	states := make([]State, len(cands))
	for i, c := range cands {
		states[i] = Classify(gray, c, params)
	}
	return states
}

// Threshold returns the mean-intensity cutoff that applies to c.
func Threshold(c mark.Candidate, params config.Params) float64 {
	if c.HasRadius() {
		return params.DiscFillMax
	}
	return params.WindowFillMax
}

// Decide maps a sampled mean to a State. A darker mean can only move the
// result toward Filled.
func Decide(mean float64, sampled bool, threshold float64) State {
	if !sampled {
		return Undetermined
	}
	if mean < threshold {
		return Filled
	}
	return Empty
}

// MeanIntensity returns the mean luma of the sample region of c, clipped to
// the image. ok is false when nothing of the region lies inside the image.
func MeanIntensity(gray gocv.Mat, c mark.Candidate, windowHalf int) (mean float64, ok bool) {
	var samples []float64
	if c.HasRadius() {
		samples = discSamples(gray, c.Center, c.Radius)
	} else {
		samples = windowSamples(gray, c.Center, windowHalf)
	}
	if len(samples) == 0 {
		return 0, false
	}
	return stat.Mean(samples, nil), true
}

func discSamples(gray gocv.Mat, center geometry.PointInt, r int) []float64 {
	rows, cols := gray.Rows(), gray.Cols()
	samples := make([]float64, 0, 4*r*r)
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy > r*r {
				continue
			}
			px, py := center.X+dx, center.Y+dy
			if px < 0 || px >= cols || py < 0 || py >= rows {
				continue
			}
			samples = append(samples, float64(gray.GetUCharAt(py, px)))
		}
	}
	return samples
}

func windowSamples(gray gocv.Mat, center geometry.PointInt, half int) []float64 {
	win := geometry.RectInt{
		X:      center.X - half,
		Y:      center.Y - half,
		Width:  2*half + 1,
		Height: 2*half + 1,
	}.Clip(gray.Cols(), gray.Rows())
	if win.Empty() {
		return nil
	}
	samples := make([]float64, 0, win.Width*win.Height)
	for y := win.Y; y < win.Y+win.Height; y++ {
		for x := win.X; x < win.X+win.Width; x++ {
			samples = append(samples, float64(gray.GetUCharAt(y, x)))
		}
	}
	return samples
}
