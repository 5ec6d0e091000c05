// Package thumbnail derives the low-cost JPEG previews stored beside every
// slide.
package thumbnail

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"
)

const dataURLPrefix = "data:image/jpeg;base64,"

// Options controls preview size and JPEG quality.
type Options struct {
	// MaxWidth bounds both sides of the preview.
	MaxWidth int
	// Quality is the JPEG quality in (0, 1].
	Quality float64
}

// DefaultOptions returns the stock preview settings.
func DefaultOptions() Options {
	return Options{MaxWidth: 200, Quality: 0.8}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.MaxWidth <= 0 {
		o.MaxWidth = d.MaxWidth
	}
	if o.Quality <= 0 || o.Quality > 1 {
		o.Quality = d.Quality
	}
	return o
}

// Thumbnail is an encoded preview.
type Thumbnail struct {
	DataURL string
	Width   int
	Height  int
}

// Dimensions scales width×height by min(max/width, max/height).
func Dimensions(width, height, maxSide int) (int, int) {
	if width <= 0 || height <= 0 || maxSide <= 0 {
		return 0, 0
	}
	ratio := min(float64(maxSide)/float64(width), float64(maxSide)/float64(height))
	return scaled(width, ratio), scaled(height, ratio)
}

// scaled truncates like a canvas dimension, absorbing float error.
func scaled(side int, ratio float64) int {
	return max(int(math.Floor(float64(side)*ratio+1e-9)), 1)
}

// FromImage resizes img and encodes it as a JPEG data URL.
func FromImage(img image.Image, opts Options) (Thumbnail, error) {
	if img == nil || img.Bounds().Empty() {
		return Thumbnail{}, errors.New("thumbnail: empty image")
	}
	opts = opts.normalized()
	b := img.Bounds()
	w, h := Dimensions(b.Dx(), b.Dy(), opts.MaxWidth)
	small := imaging.Resize(img, w, h, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, small, imaging.JPEG, imaging.JPEGQuality(int(opts.Quality*100))); err != nil {
		return Thumbnail{}, fmt.Errorf("encode thumbnail: %w", err)
	}
	return Thumbnail{
		DataURL: dataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:   w,
		Height:  h,
	}, nil
}

// FromPayload decodes a stored slide image and derives its preview.
func FromPayload(payload []byte, opts Options) (Thumbnail, error) {
	img, err := imaging.Decode(bytes.NewReader(payload))
	if err != nil {
		return Thumbnail{}, fmt.Errorf("decode slide image: %w", err)
	}
	return FromImage(img, opts)
}

// DecodeDataURL returns the JPEG bytes behind a preview data URL.
func DecodeDataURL(dataURL string) ([]byte, error) {
	encoded, ok := strings.CutPrefix(dataURL, dataURLPrefix)
	if !ok {
		return nil, errors.New("thumbnail: not a jpeg data url")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("thumbnail: %w", err)
	}
	return raw, nil
}
