// Package colorutil provides shared color utilities for annotating sheets.
package colorutil

import "image/color"

// Overlay colors used when drawing detections back onto a sheet.
var (
	Green  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	Red    = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	Yellow = color.RGBA{R: 255, G: 255, B: 0, A: 255}
)
