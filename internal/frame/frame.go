package frame

import (
	"bytes"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// Frame is one captured RGBA image.
type Frame struct {
	Image      *image.RGBA
	CapturedAt time.Time
}

// New copies img into an RGBA frame anchored at the origin.
func New(img image.Image, capturedAt time.Time) *Frame {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return &Frame{Image: rgba, CapturedAt: capturedAt}
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Rect, img, bounds.Min, draw.Src)
	return &Frame{Image: rgba, CapturedAt: capturedAt}
}

func (f *Frame) Width() int {
	if f == nil || f.Image == nil {
		return 0
	}
	return f.Image.Rect.Dx()
}

func (f *Frame) Height() int {
	if f == nil || f.Image == nil {
		return 0
	}
	return f.Image.Rect.Dy()
}

// EncodePNG returns the full-resolution payload stored for a slide.
func (f *Frame) EncodePNG() ([]byte, error) {
	if f == nil || f.Image == nil {
		return nil, fmt.Errorf("encode frame: empty frame")
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, f.Image, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// Scale resamples img to width×height.
func Scale(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Rect, img, img.Bounds(), draw.Src, nil)
	return dst
}
