package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains storage directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Device selects the device tier used for capture, interval, and cache defaults.
type Device struct {
	// Tier is one of auto, desktop, mobile, ios.
	Tier string `toml:"tier"`
	// UserAgent is classified when Tier is auto. Empty means desktop.
	UserAgent string `toml:"user_agent"`
}

// Extraction contains the user-facing extraction settings.
type Extraction struct {
	// CheckIntervalMS is the tick interval. Zero uses the device default.
	CheckIntervalMS    int  `toml:"check_interval_ms"`
	DoubleVerification bool `toml:"double_verification"`
	VerificationCount  int  `toml:"verification_count"`
}

// Detection contains the change detector thresholds.
type Detection struct {
	HammingLow    int     `toml:"hamming_low"`
	HammingHigh   int     `toml:"hamming_high"`
	SSIMThreshold float64 `toml:"ssim_threshold"`
}

// Cache contains in-memory thumbnail cache settings.
type Cache struct {
	// MaxEntries overrides the device default when positive.
	MaxEntries int `toml:"max_entries"`
	// MemoryPressurePercent clears the cache when system memory use exceeds it.
	MemoryPressurePercent float64 `toml:"memory_pressure_percent"`
}

// Archive contains export naming settings.
type Archive struct {
	UTCOffsetHours int    `toml:"utc_offset_hours"`
	ZoneSuffix     string `toml:"zone_suffix"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for slidekeeper.
//
// Configuration sections by subsystem:
//   - Paths: database, metadata cache, and log directories
//   - Device: device tier selection
//   - Extraction: tick interval and double verification
//   - Detection: perceptual hash and SSIM thresholds
//   - Cache: thumbnail cache sizing and memory pressure threshold
//   - Archive: export file naming
//   - Logging: log format, level, and retention
type Config struct {
	Paths      Paths      `toml:"paths"`
	Device     Device     `toml:"device"`
	Extraction Extraction `toml:"extraction"`
	Detection  Detection  `toml:"detection"`
	Cache      Cache      `toml:"cache"`
	Archive    Archive    `toml:"archive"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/slidekeeper/config.toml")
}

// Load reads the configuration at path, or the first of the default and
// ./slidekeeper.toml that exists when path is empty. It returns the config,
// the file it resolved to and whether that file existed. A missing file
// yields defaults. Paths in the result are absolute.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := locate(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	err = toml.NewDecoder(file).DisallowUnknownFields().Decode(cfg)
	var strict *toml.StrictMissingError
	if errors.As(err, &strict) {
		return fmt.Errorf("parse config %s: unknown keys:\n%s", path, strict.String())
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// locate picks the config file. An explicit path is used even when it does
// not exist yet.
func locate(path string) (string, bool, error) {
	var candidates []string
	if strings.TrimSpace(path) != "" {
		candidates = []string{path}
	} else {
		candidates = []string{"~/.config/slidekeeper/config.toml", "slidekeeper.toml"}
	}

	var first string
	for _, candidate := range candidates {
		expanded, err := ExpandPath(candidate)
		if err != nil {
			return "", false, err
		}
		if first == "" {
			first = expanded
		}
		info, err := os.Stat(expanded)
		switch {
		case err == nil && !info.IsDir():
			return expanded, true, nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return "", false, fmt.Errorf("stat config: %w", err)
		}
	}
	return first, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "slides.db")
}

// MetadataCachePath returns the stream metadata cache location.
func (c *Config) MetadataCachePath() string {
	return filepath.Join(c.Paths.DataDir, "metadata.json")
}

// ExpandPath resolves a leading ~ to the home directory and returns an
// absolute, cleaned path. Empty input stays empty.
func ExpandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") || strings.HasPrefix(value, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = filepath.Join(home, value[1:])
	}
	absolute, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return absolute, nil
}

// CreateSample writes the commented sample configuration to path, creating
// parent directories.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
