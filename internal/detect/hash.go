package detect

import (
	"image"
	"math"
	"math/bits"

	"golang.org/x/image/draw"
)

// Hash is a perceptual signature.
type Hash uint32

const (
	hashGrid = 8
	hashBits = 32
)

// dctBasis[k][i] = cos((2i+1)kπ/16)
var dctBasis = func() [hashGrid][hashGrid]float64 {
	var basis [hashGrid][hashGrid]float64
	for k := range hashGrid {
		for i := range hashGrid {
			basis[k][i] = math.Cos(float64(2*i+1) * float64(k) * math.Pi / (2 * hashGrid))
		}
	}
	return basis
}()

// PerceptualHash downsamples img to 8×8 luminance, applies a 2-D DCT, and
// sets one bit for each of the first 32 AC coefficients that exceeds the mean
// of all 63 AC coefficients. The first AC coefficient is the most significant
// bit.
func PerceptualHash(img image.Image) Hash {
	if img == nil || img.Bounds().Empty() {
		return 0
	}
	small := image.NewRGBA(image.Rect(0, 0, hashGrid, hashGrid))
	draw.ApproxBiLinear.Scale(small, small.Rect, img, img.Bounds(), draw.Src, nil)

	var pixels [hashGrid * hashGrid]float64
	for y := range hashGrid {
		for x := range hashGrid {
			off := small.PixOffset(x, y)
			pixels[y*hashGrid+x] = float64(luma(small.Pix[off], small.Pix[off+1], small.Pix[off+2]))
		}
	}

	coeffs := dct(pixels)
	var acSum float64
	for _, c := range coeffs[1:] {
		acSum += c
	}
	avg := acSum / float64(len(coeffs)-1)

	var h Hash
	for i := 1; i <= hashBits; i++ {
		h <<= 1
		if coeffs[i] > avg {
			h |= 1
		}
	}
	return h
}

func dct(pixels [hashGrid * hashGrid]float64) [hashGrid * hashGrid]float64 {
	var out [hashGrid * hashGrid]float64
	for u := range hashGrid {
		for v := range hashGrid {
			var sum float64
			for x := range hashGrid {
				for y := range hashGrid {
					sum += pixels[y*hashGrid+x] * dctBasis[u][x] * dctBasis[v][y]
				}
			}
			cu, cv := 1.0, 1.0
			if u == 0 {
				cu = 1 / math.Sqrt2
			}
			if v == 0 {
				cv = 1 / math.Sqrt2
			}
			out[u*hashGrid+v] = 0.25 * cu * cv * sum
		}
	}
	return out
}

// Hamming returns the number of differing bits.
func Hamming(a, b Hash) int {
	return bits.OnesCount32(uint32(a ^ b))
}

// luma is the rounded Rec. 601 luminance.
func luma(r, g, b uint8) uint8 {
	return uint8(math.Round(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)))
}
