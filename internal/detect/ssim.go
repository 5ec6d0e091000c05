package detect

import (
	"errors"
	"image"
)

// ErrSizeMismatch is returned when frames have different dimensions.
var ErrSizeMismatch = errors.New("frame dimensions differ")

const (
	ssimC1 = (0.01 * 255) * (0.01 * 255)
	ssimC2 = (0.03 * 255) * (0.03 * 255)
)

// SSIM computes a single structural similarity score over the full frames
// using global luminance means, variances and covariance.
func SSIM(a, b image.Image) (float64, error) {
	if a == nil || b == nil {
		return 0, errors.New("ssim: nil frame")
	}
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return 0, ErrSizeMismatch
	}
	if ab.Empty() {
		return 0, errors.New("ssim: empty frame")
	}

	grayA := luminance(a)
	grayB := luminance(b)
	n := float64(len(grayA))

	var meanA, meanB float64
	for i := range grayA {
		meanA += float64(grayA[i])
		meanB += float64(grayB[i])
	}
	meanA /= n
	meanB /= n

	var varA, varB, cov float64
	for i := range grayA {
		da := float64(grayA[i]) - meanA
		db := float64(grayB[i]) - meanB
		varA += da * da
		varB += db * db
		cov += da * db
	}
	varA /= n
	varB /= n
	cov /= n

	num := (2*meanA*meanB + ssimC1) * (2*cov + ssimC2)
	den := (meanA*meanA + meanB*meanB + ssimC1) * (varA + varB + ssimC2)
	return num / den, nil
}

func luminance(img image.Image) []uint8 {
	b := img.Bounds()
	out := make([]uint8, 0, b.Dx()*b.Dy())
	if rgba, ok := img.(*image.RGBA); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			off := rgba.PixOffset(b.Min.X, y)
			for x := 0; x < b.Dx(); x++ {
				i := off + 4*x
				out = append(out, luma(rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2]))
			}
		}
		return out
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			out = append(out, luma(uint8(r>>8), uint8(g>>8), uint8(bl>>8)))
		}
	}
	return out
}
