package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDevice(); err != nil {
		return err
	}
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDevice() error {
	switch c.Device.Tier {
	case TierAuto, TierDesktop, TierMobile, TierIOS:
		return nil
	default:
		return fmt.Errorf("device.tier: unsupported value %q (want auto, desktop, mobile, or ios)", c.Device.Tier)
	}
}

func (c *Config) validateExtraction() error {
	if c.Extraction.CheckIntervalMS < 0 {
		return errors.New("extraction.check_interval_ms must be zero (device default) or positive")
	}
	if c.Extraction.CheckIntervalMS > 0 && c.Extraction.CheckIntervalMS < 100 {
		return errors.New("extraction.check_interval_ms must be at least 100")
	}
	if c.Extraction.VerificationCount < 1 {
		return errors.New("extraction.verification_count must be at least 1")
	}
	return nil
}

func (c *Config) validateDetection() error {
	if c.Detection.HammingLow < 0 {
		return errors.New("detection.hamming_low must be >= 0")
	}
	if c.Detection.HammingHigh < c.Detection.HammingLow {
		return errors.New("detection.hamming_high must be >= detection.hamming_low")
	}
	if c.Detection.SSIMThreshold <= 0 || c.Detection.SSIMThreshold > 1 {
		return errors.New("detection.ssim_threshold must be in (0, 1]")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.MaxEntries < 0 {
		return errors.New("cache.max_entries must be zero (device default) or positive")
	}
	if c.Cache.MemoryPressurePercent <= 0 || c.Cache.MemoryPressurePercent > 100 {
		return errors.New("cache.memory_pressure_percent must be in (0, 100]")
	}
	return nil
}

func (c *Config) validateArchive() error {
	if c.Archive.UTCOffsetHours < -12 || c.Archive.UTCOffsetHours > 14 {
		return errors.New("archive.utc_offset_hours must be between -12 and 14")
	}
	return nil
}
