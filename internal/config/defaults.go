package config

const (
	defaultDataDir               = "~/.local/share/slidekeeper"
	defaultLogDir                = "~/.local/share/slidekeeper/logs"
	defaultDeviceTier            = "auto"
	defaultVerificationCount     = 2
	defaultHammingLow            = 0
	defaultHammingHigh           = 5
	defaultSSIMThreshold         = 0.999
	defaultMemoryPressurePercent = 70
	defaultUTCOffsetHours        = 8
	defaultZoneSuffix            = "CST"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
)

// Device tiers accepted by [device] tier.
const (
	TierAuto    = "auto"
	TierDesktop = "desktop"
	TierMobile  = "mobile"
	TierIOS     = "ios"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Device: Device{
			Tier: defaultDeviceTier,
		},
		Extraction: Extraction{
			DoubleVerification: true,
			VerificationCount:  defaultVerificationCount,
		},
		Detection: Detection{
			HammingLow:    defaultHammingLow,
			HammingHigh:   defaultHammingHigh,
			SSIMThreshold: defaultSSIMThreshold,
		},
		Cache: Cache{
			MemoryPressurePercent: defaultMemoryPressurePercent,
		},
		Archive: Archive{
			UTCOffsetHours: defaultUTCOffsetHours,
			ZoneSuffix:     defaultZoneSuffix,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
