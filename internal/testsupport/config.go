package testsupport

import (
	"path/filepath"
	"testing"

	"slidekeeper/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Device.Tier = config.TierDesktop
	cfgVal.Logging.Level = "debug"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithDeviceTier pins the device tier.
func WithDeviceTier(tier string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Device.Tier = tier
	}
}

// WithVerification sets double verification and its count.
func WithVerification(enabled bool, count int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Extraction.DoubleVerification = enabled
		b.cfg.Extraction.VerificationCount = count
	}
}

// WithCheckIntervalMS overrides the tick interval.
func WithCheckIntervalMS(ms int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Extraction.CheckIntervalMS = ms
	}
}
