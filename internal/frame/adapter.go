package frame

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"math"
	"time"

	"slidekeeper/internal/device"
	"slidekeeper/internal/logging"
)

// Validity sampling constants. The fullscreen rules come from observed
// compositor behavior and are tunable.
const (
	ValiditySampleSize    = 100
	ValidityEarlyExit     = 5
	FullscreenSumPerPixel = 10
)

// Adapter captures frames from a Surface using the device's strategy.
type Adapter struct {
	profile device.Profile
	logger  *slog.Logger
	now     func() time.Time
}

// NewAdapter constructs an Adapter for profile.
func NewAdapter(profile device.Profile, logger *slog.Logger) *Adapter {
	return &Adapter{
		profile: profile,
		logger:  logging.NewComponentLogger(logger, "capture"),
		now:     time.Now,
	}
}

// SetClock overrides the timestamp source.
func (a *Adapter) SetClock(now func() time.Time) {
	if now != nil {
		a.now = now
	}
}

// CaptureFrame returns the surface's current frame. It returns nil with a nil
// error when the surface is not ready, when every fullscreen attempt fails on
// a known transient error, or when the captured buffer is rejected as empty.
// Other surface failures are returned as *CaptureError.
func (a *Adapter) CaptureFrame(ctx context.Context, surface Surface) (*Frame, error) {
	if surface == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if surface.ReadyState() < HaveCurrentData {
		return nil, nil
	}
	width, height := surface.Dimensions()
	if width <= 0 || height <= 0 {
		return nil, nil
	}

	if !surface.Fullscreen() {
		img, err := surface.Draw(ctx, width, height)
		if err != nil {
			return nil, &CaptureError{Kind: ClassifyError(err), Err: err}
		}
		return a.accept(img, false), nil
	}
	return a.captureWithStrategy(ctx, surface, width, height)
}

func (a *Adapter) captureWithStrategy(ctx context.Context, surface Surface, width, height int) (*Frame, error) {
	strategy := a.profile.Fullscreen
	attempts := max(strategy.RetryAttempts, 1)

	var lastErr error
	for attempt := range attempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w, h := width, height
		if len(strategy.FallbackSizes) > 0 {
			target := strategy.FallbackSizes[min(attempt, len(strategy.FallbackSizes)-1)]
			w, h = FallbackDimensions(width, height, target)
		}
		img, err := surface.Draw(ctx, w, h)
		if err != nil {
			kind := ClassifyError(err)
			if kind == KindUnknown {
				return nil, &CaptureError{Kind: kind, Fullscreen: true, Err: err}
			}
			lastErr = err
			a.logger.Debug("fullscreen capture attempt failed",
				logging.Int("attempt", attempt+1),
				logging.Int("attempts", attempts),
				logging.String("strategy", strategy.Name),
				logging.Error(err),
			)
			continue
		}
		if frame := a.accept(img, true); frame != nil {
			return frame, nil
		}
	}
	if lastErr != nil {
		a.logger.Debug("fullscreen capture exhausted",
			logging.String("strategy", strategy.Name),
			logging.Error(lastErr),
		)
	}
	return nil, nil
}

func (a *Adapter) accept(img image.Image, fullscreen bool) *Frame {
	if img == nil {
		return nil
	}
	frame := New(img, a.now())
	if !Valid(frame.Image, fullscreen, a.profile.Tier == device.TierIOS) {
		a.logger.Debug("captured frame rejected as blank",
			logging.Bool("fullscreen", fullscreen),
			logging.Int("width", frame.Width()),
			logging.Int("height", frame.Height()),
		)
		return nil
	}
	return frame
}

// FallbackDimensions fits the native size against target, keeping the aspect
// ratio on the wider axis and clamping to the target.
func FallbackDimensions(width, height int, target device.Size) (int, int) {
	if width <= 0 || height <= 0 || target.Width <= 0 || target.Height <= 0 {
		return target.Width, target.Height
	}
	videoRatio := float64(width) / float64(height)
	targetRatio := float64(target.Width) / float64(target.Height)

	var drawW, drawH float64
	if videoRatio > targetRatio {
		drawH = float64(target.Height)
		drawW = drawH * videoRatio
	} else {
		drawW = float64(target.Width)
		drawH = drawW / videoRatio
	}
	w := int(math.Min(drawW, float64(target.Width)))
	h := int(math.Min(drawH, float64(target.Height)))
	return max(w, 1), max(h, 1)
}

// Valid reports whether img carries usable content. The first
// ValiditySampleSize pixels are sampled. Outside fullscreen any non-black
// sample suffices. In fullscreen, faint content is accepted as well, and on
// iOS any non-zero channel sum is accepted.
func Valid(img *image.RGBA, fullscreen, ios bool) bool {
	if img == nil || img.Rect.Dx() == 0 || img.Rect.Dy() == 0 || len(img.Pix) == 0 {
		return false
	}
	sample := min(ValiditySampleSize, img.Rect.Dx()*img.Rect.Dy())

	nonZero, total := 0, 0
	for i := 0; i < sample; i++ {
		x := img.Rect.Min.X + i%img.Rect.Dx()
		y := img.Rect.Min.Y + i/img.Rect.Dx()
		off := img.PixOffset(x, y)
		r, g, b := int(img.Pix[off]), int(img.Pix[off+1]), int(img.Pix[off+2])
		total += r + g + b
		if r > 0 || g > 0 || b > 0 {
			nonZero++
			if nonZero > ValidityEarlyExit {
				break
			}
		}
	}

	if fullscreen {
		if ios {
			return total > 0 || nonZero > 0
		}
		return nonZero > 0 || total > sample*FullscreenSumPerPixel
	}
	return nonZero > 0
}

// IsTransient reports whether err is a CaptureError that should not reset
// verification.
func IsTransient(err error) bool {
	var ce *CaptureError
	return errors.As(err, &ce) && ce.Transient()
}
