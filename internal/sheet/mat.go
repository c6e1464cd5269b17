package sheet

import (
	"fmt"
	"image"
	"runtime"
	"sync"

	"gocv.io/x/gocv"
)

// ToMat converts a Go image to a BGR gocv.Mat (parallelized by row stripes).
func ToMat(img image.Image) gocv.Mat {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)

	numWorkers := runtime.NumCPU()
	rowsPerWorker := (height + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		startY := w * rowsPerWorker
		endY := min(startY+rowsPerWorker, height)
		if startY >= height {
			break
		}

		wg.Add(1)
		go func(yStart, yEnd int) {
			defer wg.Done()
			for y := yStart; y < yEnd; y++ {
				for x := 0; x < width; x++ {
					r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
					// OpenCV uses BGR order
					mat.SetUCharAt(y, x*3+0, uint8(b>>8))
					mat.SetUCharAt(y, x*3+1, uint8(g>>8))
					mat.SetUCharAt(y, x*3+2, uint8(r>>8))
				}
			}
		}(startY, endY)
	}
	wg.Wait()

	return mat
}

// Gray returns a single-channel copy of src. A source that is already
// single-channel is cloned.
func Gray(src gocv.Mat) gocv.Mat {
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

// ToImage converts a single-channel or BGR Mat back to a Go image.
func ToImage(mat gocv.Mat) (image.Image, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("empty mat")
	}
	h, w := mat.Rows(), mat.Cols()
	switch mat.Channels() {
	case 1:
		img := image.NewGray(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.Pix[y*img.Stride+x] = mat.GetUCharAt(y, x)
			}
		}
		return img, nil
	case 3:
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			row := y * img.Stride
			for x := 0; x < w; x++ {
				off := row + x*4
				img.Pix[off+0] = mat.GetUCharAt(y, x*3+2)
				img.Pix[off+1] = mat.GetUCharAt(y, x*3+1)
				img.Pix[off+2] = mat.GetUCharAt(y, x*3+0)
				img.Pix[off+3] = 255
			}
		}
		return img, nil
	default:
		return nil, fmt.Errorf("unsupported channel count %d", mat.Channels())
	}
}

// DecodeGray decodes image bytes straight into a grayscale Mat.
func DecodeGray(data []byte, resizeWidth int) (gocv.Mat, error) {
	img, err := Decode(data, resizeWidth)
	if err != nil {
		return gocv.NewMat(), err
	}
	bgr := ToMat(img)
	defer bgr.Close()
	return Gray(bgr), nil
}
