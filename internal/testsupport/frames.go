package testsupport

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

// SolidImage returns a w×h image filled with c.
func SolidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// SlideImage draws a light page with dark text bars. Different seeds give
// clearly different layouts; equal seeds give identical pixels.
func SlideImage(w, h, seed int) *image.RGBA {
	img := SolidImage(w, h, color.RGBA{240, 240, 240, 255})
	dark := color.RGBA{20, 20, 60, 255}
	for bar := 0; bar < 4; bar++ {
		top := h/8 + bar*h/5
		left := w / 10
		right := w/10 + ((seed+bar)*37%60+30)*w/100
		if seed%2 == 1 {
			left, right = w-right, w-left
		}
		for y := top; y < top+max(h/12, 1); y++ {
			for x := left; x < right; x++ {
				img.SetRGBA(x, y, dark)
			}
		}
	}
	return img
}

// EncodePNG encodes img as PNG.
func EncodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// WriteFrames saves one PNG per seed into dir as 0001.png, 0002.png, ...
// A negative seed writes an all-black frame.
func WriteFrames(t testing.TB, dir string, w, h int, seeds ...int) {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	for i, seed := range seeds {
		var img image.Image
		if seed < 0 {
			img = SolidImage(w, h, color.RGBA{A: 255})
		} else {
			img = SlideImage(w, h, seed)
		}
		path := filepath.Join(dir, fmt.Sprintf("%04d.png", i+1))
		if err := imaging.Save(img, path); err != nil {
			t.Fatalf("save %s: %v", path, err)
		}
	}
}
