// Package sheet provides answer-sheet image decoding and OpenCV conversion.
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/tiff"
)

// ErrDecode is returned when the supplied bytes are not a decodable image.
var ErrDecode = errors.New("image could not be decoded")

// Decode decodes JPEG, PNG or TIFF bytes, applying EXIF orientation so phone
// photos arrive the way they were shot. When resizeWidth > 0 the image is
// scaled to that width, preserving aspect ratio.
func Decode(data []byte, resizeWidth int) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no data", ErrDecode)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	if resizeWidth > 0 && resizeWidth != b.Dx() {
		img = imaging.Resize(img, resizeWidth, 0, imaging.Lanczos)
	}
	return img, nil
}

// ReadFile reads a sheet image file after checking its extension. The bytes
// are decoded later by the pipeline.
func ReadFile(path string) ([]byte, error) {
	if !IsSupportedFormat(path) {
		return nil, fmt.Errorf("%w: unsupported image format %q", ErrDecode, filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return data, nil
}

// SupportedFormats returns the list of supported image extensions.
func SupportedFormats() []string {
	return []string{".png", ".jpg", ".jpeg", ".tiff", ".tif"}
}

// IsSupportedFormat checks if the given path has a supported image extension.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}
