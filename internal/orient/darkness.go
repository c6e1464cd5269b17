package orient

import (
	"fmt"
	"image"

	"omr-grader/internal/config"

	"gocv.io/x/gocv"
)

// Darkness orients landscape-authored sheets. Portrait captures are turned
// 90° clockwise; a sheet whose lower half carries strictly more ink than its
// upper half is then turned 180°.
type Darkness struct {
	DarkPixelMax uint8 // pixels with luma below this count as ink
}

// Normalize implements Normalizer.
func (d Darkness) Normalize(src gocv.Mat) (gocv.Mat, Decision) {
	dec := Decision{Strategy: config.OrientDarkness}
	if src.Empty() {
		dec.Insufficient = true
		dec.Detail = "empty image"
		return src.Clone(), dec
	}

	gray := grayOf(src)
	defer gray.Close()

	if gray.Rows() > gray.Cols() {
		dec.Rotation = 90
		rotated := Rotate(gray, 90)
		gray.Close()
		gray = rotated
	}

	upper, lower := DarkHalves(gray, d.DarkPixelMax)
	if lower > upper {
		dec.Rotation = (dec.Rotation + 180) % 360
	}
	dec.Detail = fmt.Sprintf("dark upper=%d lower=%d", upper, lower)

	return Rotate(src, dec.Rotation), dec
}

// DarkHalves counts pixels darker than darkMax in the upper and lower halves
// of a grayscale image. The middle row of an odd-height image belongs to
// neither half, so a 180° turn swaps the two counts exactly.
func DarkHalves(gray gocv.Mat, darkMax uint8) (upper, lower int) {
	rows, cols := gray.Rows(), gray.Cols()
	if rows < 2 || cols == 0 {
		return 0, 0
	}

	// BinaryInv marks pixels <= thresh, so thresh = darkMax-1 keeps "< darkMax".
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(gray, &mask, float32(int(darkMax)-1), 255, gocv.ThresholdBinaryInv)

	half := rows / 2
	top := mask.Region(image.Rect(0, 0, cols, half))
	upper = gocv.CountNonZero(top)
	top.Close()
	bottom := mask.Region(image.Rect(0, rows-half, cols, rows))
	lower = gocv.CountNonZero(bottom)
	bottom.Close()
	return upper, lower
}
