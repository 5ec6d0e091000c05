package device

import (
	"regexp"
	"strings"
	"time"

	"slidekeeper/internal/config"
)

// Tier is a coarse device classification.
type Tier string

const (
	TierDesktop Tier = "desktop"
	TierMobile  Tier = "mobile"
	TierIOS     Tier = "ios"
)

// Size is a capture target resolution.
type Size struct {
	Width  int
	Height int
}

// CaptureStrategy controls how a fullscreen surface is captured.
type CaptureStrategy struct {
	Name          string
	RetryAttempts int
	// FallbackSizes are tried in order, one per attempt. The last entry is
	// reused once attempts outnumber sizes. Empty means native resolution.
	FallbackSizes []Size
}

// Profile holds the per-tier defaults.
type Profile struct {
	Tier                  Tier
	MaxMemorySlides       int
	CompressionQuality    float64
	CheckInterval         time.Duration
	ThumbnailMaxWidth     int
	MemoryPressurePercent float64
	Fullscreen            CaptureStrategy
}

const defaultMemoryPressurePercent = 70

// ProfileFor returns the built-in profile for tier. Unknown tiers get the
// desktop profile.
func ProfileFor(tier Tier) Profile {
	switch tier {
	case TierIOS:
		return Profile{
			Tier:                  TierIOS,
			MaxMemorySlides:       5,
			CompressionQuality:    0.7,
			CheckInterval:         3000 * time.Millisecond,
			ThumbnailMaxWidth:     150,
			MemoryPressurePercent: defaultMemoryPressurePercent,
			Fullscreen: CaptureStrategy{
				Name:          "aggressive-retry",
				RetryAttempts: 5,
				FallbackSizes: []Size{{1920, 1080}, {1280, 720}, {960, 540}, {640, 360}},
			},
		}
	case TierMobile:
		return Profile{
			Tier:                  TierMobile,
			MaxMemorySlides:       8,
			CompressionQuality:    0.8,
			CheckInterval:         2500 * time.Millisecond,
			ThumbnailMaxWidth:     180,
			MemoryPressurePercent: defaultMemoryPressurePercent,
			Fullscreen: CaptureStrategy{
				Name:          "conservative-retry",
				RetryAttempts: 3,
				FallbackSizes: []Size{{1920, 1080}, {1280, 720}},
			},
		}
	default:
		return Profile{
			Tier:                  TierDesktop,
			MaxMemorySlides:       15,
			CompressionQuality:    0.9,
			CheckInterval:         2000 * time.Millisecond,
			ThumbnailMaxWidth:     200,
			MemoryPressurePercent: defaultMemoryPressurePercent,
			Fullscreen: CaptureStrategy{
				Name:          "standard-retry",
				RetryAttempts: 2,
			},
		}
	}
}

var (
	iosAgent    = regexp.MustCompile(`iPad|iPhone|iPod`)
	mobileAgent = regexp.MustCompile(`(?i)Android|webOS|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini`)
)

// Classify maps a browser user agent onto a tier. An empty agent is desktop.
func Classify(userAgent string) Tier {
	switch {
	case iosAgent.MatchString(userAgent):
		return TierIOS
	case mobileAgent.MatchString(userAgent):
		return TierMobile
	default:
		return TierDesktop
	}
}

// Resolve selects the profile named by cfg and applies its overrides.
func Resolve(cfg *config.Config) Profile {
	if cfg == nil {
		return ProfileFor(TierDesktop)
	}
	var tier Tier
	switch strings.ToLower(strings.TrimSpace(cfg.Device.Tier)) {
	case config.TierDesktop:
		tier = TierDesktop
	case config.TierMobile:
		tier = TierMobile
	case config.TierIOS:
		tier = TierIOS
	default:
		tier = Classify(cfg.Device.UserAgent)
	}
	profile := ProfileFor(tier)
	if cfg.Extraction.CheckIntervalMS > 0 {
		profile.CheckInterval = time.Duration(cfg.Extraction.CheckIntervalMS) * time.Millisecond
	}
	if cfg.Cache.MaxEntries > 0 {
		profile.MaxMemorySlides = cfg.Cache.MaxEntries
	}
	if cfg.Cache.MemoryPressurePercent > 0 {
		profile.MemoryPressurePercent = cfg.Cache.MemoryPressurePercent
	}
	return profile
}
