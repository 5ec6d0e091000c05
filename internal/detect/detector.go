package detect

import (
	"errors"
	"image"
)

// Thresholds tune the two comparison tiers.
type Thresholds struct {
	// HammingLow is the largest distance treated as identical.
	HammingLow int
	// HammingHigh is the largest distance that still needs SSIM.
	HammingHigh int
	// SSIM is the similarity at or above which frames are unchanged.
	SSIM float64
}

// DefaultThresholds returns the stock tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{HammingLow: 0, HammingHigh: 5, SSIM: 0.999}
}

// Stage names the tier that produced a verdict.
type Stage string

const (
	StageNone     Stage = "none"
	StageHash     Stage = "hash"
	StageSSIM     Stage = "ssim"
	StageMismatch Stage = "size_mismatch"
)

// Verdict explains a comparison.
type Verdict struct {
	Changed    bool
	Stage      Stage
	Distance   int
	Similarity float64
}

// Detector compares frames with fixed thresholds.
type Detector struct {
	th Thresholds
}

// New returns a Detector using th.
func New(th Thresholds) *Detector {
	return &Detector{th: th}
}

// Thresholds returns the detector's tuning.
func (d *Detector) Thresholds() Thresholds { return d.th }

// IsChanged reports whether next shows a different slide from prev. A nil
// frame on either side is never a change.
func (d *Detector) IsChanged(prev, next image.Image) bool {
	return d.Compare(prev, next).Changed
}

// Compare runs the two-tier comparison and reports how it decided.
func (d *Detector) Compare(prev, next image.Image) Verdict {
	if prev == nil || next == nil {
		return Verdict{Stage: StageNone}
	}
	distance := Hamming(PerceptualHash(prev), PerceptualHash(next))
	switch {
	case distance > d.th.HammingHigh:
		return Verdict{Changed: true, Stage: StageHash, Distance: distance}
	case distance <= d.th.HammingLow:
		return Verdict{Changed: false, Stage: StageHash, Distance: distance}
	}

	similarity, err := SSIM(prev, next)
	if errors.Is(err, ErrSizeMismatch) {
		return Verdict{Changed: true, Stage: StageMismatch, Distance: distance}
	}
	if err != nil {
		return Verdict{Stage: StageNone, Distance: distance}
	}
	return Verdict{
		Changed:    similarity < d.th.SSIM,
		Stage:      StageSSIM,
		Distance:   distance,
		Similarity: similarity,
	}
}
