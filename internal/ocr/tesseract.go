// Package ocr reads the handwritten or printed header of an answer sheet
// (student name, ID) with Tesseract.
package ocr

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"omr-grader/pkg/geometry"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// IDChars restricts recognition to student-ID style text.
const IDChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ-/ "

// Engine provides header OCR using Tesseract. A gosseract client is not
// safe for concurrent use, so calls are serialized.
type Engine struct {
	mu      sync.Mutex
	client  *gosseract.Client
	idsOnly bool
}

// NewEngine creates a new OCR engine for the given Tesseract language.
func NewEngine(lang string) (*Engine, error) {
	if lang == "" {
		lang = "eng"
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage(lang); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	// Names and IDs are not dictionary words
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")

	return &Engine{client: client}, nil
}

// Close releases OCR resources.
func (e *Engine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// SetIDMode restricts recognition to IDChars and upper-cases the result.
func (e *Engine) SetIDMode(enabled bool) {
	e.mu.Lock()
	e.idsOnly = enabled
	e.mu.Unlock()
}

// whitelist returns the Tesseract character whitelist; empty allows all.
func (e *Engine) whitelist() string {
	if e.idsOnly {
		return IDChars
	}
	return ""
}

// ReadRegion performs OCR on a region of a grayscale sheet.
func (e *Engine) ReadRegion(gray gocv.Mat, bounds geometry.RectInt) (string, error) {
	if gray.Empty() {
		return "", fmt.Errorf("empty image")
	}
	r := bounds.Clip(gray.Cols(), gray.Rows())
	if r.Empty() {
		return "", fmt.Errorf("header region %+v outside %dx%d image", bounds, gray.Cols(), gray.Rows())
	}

	region := gray.Region(image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height))
	defer region.Close()

	processed := preprocess(region)
	defer processed.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, processed)
	if err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	e.mu.Lock()
	defer e.mu.Unlock()

	// PSM 7 = single text line
	if err := e.client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		return "", fmt.Errorf("failed to set PSM: %w", err)
	}
	if err := e.client.SetWhitelist(e.whitelist()); err != nil {
		return "", fmt.Errorf("failed to set whitelist: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return Clean(text, e.idsOnly), nil
}

// Clean collapses whitespace in recognized text.
func Clean(text string, upper bool) string {
	text = strings.Join(strings.Fields(text), " ")
	if upper {
		text = strings.ToUpper(text)
	}
	return text
}

// preprocess upscales a small grayscale region and binarizes it to dark
// text on a light background.
func preprocess(region gocv.Mat) gocv.Mat {
	h, w := region.Rows(), region.Cols()

	var scaled gocv.Mat
	if minDim := min(h, w); minDim < 60 {
		scale := 60.0 / float64(minDim)
		scaled = gocv.NewMat()
		gocv.Resize(region, &scaled, image.Point{}, scale, scale, gocv.InterpolationCubic)
	} else {
		scaled = region.Clone()
	}
	defer scaled.Close()

	binary := gocv.NewMat()
	gocv.Threshold(scaled, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	// Tesseract expects dark text on light paper
	if white := gocv.CountNonZero(binary); float64(white) < 0.5*float64(binary.Rows()*binary.Cols()) {
		gocv.BitwiseNot(binary, &binary)
	}
	return binary
}
