package sheet

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not an image"), 0)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	_, err = Decode(nil, 0)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode for empty input, got %v", err)
	}
}

func TestDecodeResize(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 200, 100))
	img, err := Decode(encodePNG(t, src), 100)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Fatalf("resized to %dx%d, want 100x50", b.Dx(), b.Dy())
	}
}

func TestMatRoundTripGray(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 8, 4))
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 7)
	}
	gray, err := DecodeGray(encodePNG(t, src), 0)
	if err != nil {
		t.Fatalf("DecodeGray: %v", err)
	}
	defer gray.Close()
	if gray.Rows() != 4 || gray.Cols() != 8 || gray.Channels() != 1 {
		t.Fatalf("unexpected mat shape %dx%dx%d", gray.Rows(), gray.Cols(), gray.Channels())
	}
	back, err := ToImage(gray)
	if err != nil {
		t.Fatalf("ToImage: %v", err)
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			want := src.GrayAt(x, y).Y
			got := back.At(x, y).(color.Gray).Y
			if d := int(got) - int(want); d > 1 || d < -1 {
				t.Fatalf("pixel (%d,%d) = %d, want %d", x, y, got, want)
			}
		}
	}
}

func TestIsSupportedFormat(t *testing.T) {
	for _, p := range []string{"a.PNG", "b.jpeg", "scan.tif"} {
		if !IsSupportedFormat(p) {
			t.Errorf("%s should be supported", p)
		}
	}
	if IsSupportedFormat("sheet.pdf") {
		t.Errorf("pdf should not be supported")
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	good := filepath.Join(dir, "sheet.PNG")
	if err := os.WriteFile(good, encodePNG(t, img), 0644); err != nil {
		t.Fatal(err)
	}
	data, err := ReadFile(good)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if _, err := Decode(data, 0); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if _, err := ReadFile(filepath.Join(dir, "notes.txt")); !errors.Is(err, ErrDecode) {
		t.Fatalf("unsupported extension: err = %v", err)
	}
	if _, err := ReadFile(filepath.Join(dir, "missing.jpg")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
