package mark

import (
	"image"
	"math"

	"omr-grader/internal/config"
	"omr-grader/pkg/geometry"

	"gocv.io/x/gocv"
)

// Detect finds circular bubbles on a grayscale sheet with the Hough
// gradient method. Every circle in the configured radius band becomes a
// candidate; the count is not bounded by the number of questions.
func Detect(gray gocv.Mat, params config.Params) []Candidate {
	if gray.Empty() {
		return nil
	}

	src := gray
	if gray.Channels() != 1 {
		src = gocv.NewMat()
		defer src.Close()
		gocv.CvtColor(gray, &src, gocv.ColorBGRToGray)
	}

	k := params.BlurKernel
	if k < 1 {
		k = 1
	}
	if k%2 == 0 {
		k++
	}
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(src, &blurred, image.Point{X: k, Y: k}, 0, 0, gocv.BorderDefault)

	circles := gocv.NewMat()
	defer circles.Close()
	gocv.HoughCirclesWithParams(blurred, &circles, gocv.HoughGradient,
		params.HoughDP, params.HoughMinDist,
		params.HoughParam1, params.HoughParam2,
		params.MinRadius, params.MaxRadius)

	if circles.Empty() || circles.Cols() == 0 {
		return nil
	}

	cands := make([]Candidate, 0, circles.Cols())
	for i := 0; i < circles.Cols(); i++ {
		x := float64(circles.GetFloatAt(0, i*3))
		y := float64(circles.GetFloatAt(0, i*3+1))
		r := int(math.Round(float64(circles.GetFloatAt(0, i*3+2))))
		if r < 1 {
			r = 1
		}
		cands = append(cands, Candidate{
			Center: geometry.Point2D{X: x, Y: y}.Round(),
			Radius: r,
			Method: MethodHough,
		})
	}
	return cands
}
