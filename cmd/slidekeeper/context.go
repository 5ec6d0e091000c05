package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"slidekeeper/internal/archive"
	"slidekeeper/internal/config"
	"slidekeeper/internal/device"
	"slidekeeper/internal/logging"
	"slidekeeper/internal/messages"
	"slidekeeper/internal/metacache"
	"slidekeeper/internal/store"
	"slidekeeper/internal/thumbnail"
)

// languageKey is the metadata cache key holding the preferred UI language.
const languageKey = "language"

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureLogger builds the process logger and prunes old log files once.
func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		logging.CleanupOldLogs(logger, time.Now(), cfg.Logging.RetentionDays, logging.RetentionTarget{
			Dir:     cfg.Paths.LogDir,
			Pattern: "*.log",
			Exclude: []string{filepath.Join(cfg.Paths.LogDir, logging.LogFileName)},
		})
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) profile() device.Profile {
	cfg, _ := c.ensureConfig()
	return device.Resolve(cfg)
}

// openStore opens the slide database with previews sized for the device tier.
// Callers close the store.
func (c *commandContext) openStore() (*store.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	profile := device.Resolve(cfg)
	st, err := store.Open(cfg,
		store.WithLogger(logger),
		store.WithThumbnailOptions(thumbnail.Options{
			MaxWidth: profile.ThumbnailMaxWidth,
			Quality:  profile.CompressionQuality,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("open slide store: %w", err)
	}
	return st, nil
}

func (c *commandContext) withStore(fn func(*store.Store) error) error {
	st, err := c.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func (c *commandContext) metadataCache() (*metacache.Cache, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return metacache.New(cfg.MetadataCachePath(), logger), nil
}

func (c *commandContext) naming() archive.Naming {
	cfg, _ := c.ensureConfig()
	return archive.NamingFromConfig(cfg)
}

// localizer prefers the language stored in the metadata cache, then the
// process locale.
func (c *commandContext) localizer(ctx context.Context, meta *metacache.Cache) *messages.Localizer {
	var prefs []string
	if meta != nil {
		var lang string
		if ok, err := meta.Get(ctx, languageKey, &lang); err == nil && ok {
			prefs = append(prefs, lang)
		}
	}
	for _, env := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if value := os.Getenv(env); value != "" {
			prefs = append(prefs, value)
		}
	}
	return messages.Default().Localizer(prefs...)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func parseStreamArg(value string) (store.StreamID, error) {
	id, err := store.ParseStreamID(value)
	if err != nil {
		return "", fmt.Errorf("stream %q: %w", value, err)
	}
	return id, nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
