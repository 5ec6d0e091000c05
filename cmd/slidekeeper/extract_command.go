package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"slidekeeper/internal/archive"
	"slidekeeper/internal/config"
	"slidekeeper/internal/detect"
	"slidekeeper/internal/extractor"
	"slidekeeper/internal/frame"
	"slidekeeper/internal/logging"
	"slidekeeper/internal/messages"
	"slidekeeper/internal/metacache"
	"slidekeeper/internal/session"
	"slidekeeper/internal/store"
)

type extractOptions struct {
	stream     string
	frames     string
	interval   time.Duration
	noVerify   bool
	count      int
	restore    bool
	fullscreen bool
	output     string
}

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var opts extractOptions

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract slides from a recorded screen share",
		Long: `Replay a directory of PNG or JPEG frames (played in file name order, one
frame per tick) through change detection and save every stable slide.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, ctx, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.stream, "stream", "s", "", "Stream identifier")
	flags.StringVarP(&opts.frames, "frames", "f", "", "Directory of recorded frames")
	flags.DurationVar(&opts.interval, "interval", 0, "Check interval (overrides the stored setting)")
	flags.BoolVar(&opts.noVerify, "no-verify", false, "Commit changes without double verification")
	flags.IntVar(&opts.count, "count", 0, "Number of matching captures required to confirm a slide")
	flags.BoolVar(&opts.restore, "restore", false, "Restore previews from an interrupted run without asking")
	flags.BoolVar(&opts.fullscreen, "fullscreen", false, "Capture with the fullscreen strategy")
	flags.StringVarP(&opts.output, "output", "o", "", "Archive path used when slides could only be kept in memory")
	_ = cmd.MarkFlagRequired("stream")
	_ = cmd.MarkFlagRequired("frames")
	return cmd
}

func runExtract(cmd *cobra.Command, ctx *commandContext, opts extractOptions) error {
	id, err := parseStreamArg(opts.stream)
	if err != nil {
		return err
	}
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	lock := flock.New(filepath.Join(cfg.Paths.DataDir, "extract-"+lockName(id)+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire extraction lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("stream %s is already being extracted by another slidekeeper process", id)
	}
	defer func() { _ = lock.Unlock() }()

	surface, err := frame.OpenDir(opts.frames)
	if err != nil {
		return err
	}
	surface.SetFullscreen(opts.fullscreen)

	st, err := ctx.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	meta, err := ctx.metadataCache()
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	texts := ctx.localizer(runCtx, meta)
	rec := streamRecord(runCtx, meta, id, logger)
	out := cmd.OutOrStdout()
	profile := ctx.profile()

	ex := extractor.New(st, frame.NewAdapter(profile, logger), detect.New(thresholds(cfg)), profile, logger,
		extractor.WithTexts(texts),
		extractor.WithSettings(store.ExtractionSettings{
			CheckIntervalMS:          int(profile.CheckInterval / time.Millisecond),
			EnableDoubleVerification: cfg.Extraction.DoubleVerification,
			VerificationCount:        cfg.Extraction.VerificationCount,
		}),
		extractor.WithEvents(eventPrinter(out)),
	)

	result, err := ex.Load(runCtx, rec)
	if err != nil && !ex.Degraded() {
		fmt.Fprintln(cmd.ErrOrStderr(), texts.Get("session.restore_failed", nil))
	}
	if ex.Degraded() {
		fmt.Fprintln(cmd.ErrOrStderr(), texts.Get("slide.error_no_storage", nil))
	}

	settings := ex.ApplySettings(opts.patch(cmd))
	logger.Debug("extraction settings",
		logging.String(logging.FieldStreamID, string(id)),
		logging.Int("check_interval_ms", settings.CheckIntervalMS),
		logging.Bool("double_verification", settings.EnableDoubleVerification),
		logging.Int("verification_count", settings.VerificationCount),
	)

	if result.Offer != nil {
		if opts.restore || confirmRestore(cmd, texts, *result.Offer) {
			restored, err := ex.Session().Accept(runCtx, *result.Offer)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), texts.Get("session.restore_failed", nil))
			} else {
				fmt.Fprintln(out, texts.Get("session.restore_success", map[string]any{"count": restored}))
			}
		}
	}

	if err := ex.Start(runCtx, surface); err != nil {
		if errors.Is(err, extractor.ErrNoSurface) {
			return errors.New(texts.Get("slide.error_no_player", nil))
		}
		return fmt.Errorf("start extraction: %w", err)
	}
	interval := time.Duration(settings.CheckIntervalMS) * time.Millisecond
	waitForReplay(runCtx, surface, interval)
	ex.Stop(context.WithoutCancel(runCtx))
	ex.Wait()

	if ex.Degraded() {
		return writeMemoryArchive(cmd, ctx, texts, ex.MemorySlides(), opts.output)
	}
	count, err := ex.SlideCount(context.WithoutCancel(runCtx))
	if err != nil {
		return fmt.Errorf("count slides: %w", err)
	}
	fmt.Fprintln(out, texts.Get("slide.slides_captured", map[string]any{"count": count}))
	return runCtx.Err()
}

func (o extractOptions) patch(cmd *cobra.Command) extractor.SettingsPatch {
	var patch extractor.SettingsPatch
	flags := cmd.Flags()
	if flags.Changed("interval") {
		patch.CheckIntervalMS = int(o.interval / time.Millisecond)
	}
	if flags.Changed("no-verify") {
		enabled := !o.noVerify
		patch.EnableDoubleVerification = &enabled
	}
	if flags.Changed("count") {
		patch.VerificationCount = o.count
	}
	return patch
}

func thresholds(cfg *config.Config) detect.Thresholds {
	return detect.Thresholds{
		HammingLow:  cfg.Detection.HammingLow,
		HammingHigh: cfg.Detection.HammingHigh,
		SSIM:        cfg.Detection.SSIMThreshold,
	}
}

// lockName keeps stream ids usable as file names.
func lockName(id store.StreamID) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, string(id))
}

// streamRecord builds the record upserted on load from cached metadata.
func streamRecord(ctx context.Context, meta *metacache.Cache, id store.StreamID, logger *slog.Logger) store.StreamRecord {
	rec := store.StreamRecord{ID: id}
	cached, ok, err := meta.Stream(ctx, id)
	if err != nil {
		logging.WarnWithContext(logger, "stream metadata unavailable", "metadata_cache_unavailable",
			logging.String(logging.FieldStreamID, string(id)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stream is saved without title or schedule"),
		)
		return rec
	}
	if !ok {
		return rec
	}
	if cached.ID == "" {
		cached.ID = id
	}
	if full, err := cached.Record(); err == nil {
		rec = full
	}
	return rec
}

func confirmRestore(cmd *cobra.Command, texts messages.Lookup, offer session.RestoreOffer) bool {
	return confirm(cmd, messages.Get(texts, "slide.session_restore_message", map[string]any{"count": offer.SlideCount}))
}

// waitForReplay blocks until every recorded frame was drawn, then two more
// intervals so the tick holding the last frame completes.
func waitForReplay(ctx context.Context, surface *frame.DirSurface, interval time.Duration) {
	poll := min(interval, 100*time.Millisecond)
	ticker := time.NewTicker(max(poll, time.Millisecond))
	defer ticker.Stop()
	for surface.Remaining() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
	select {
	case <-ctx.Done():
	case <-time.After(max(2*interval, 20*time.Millisecond)):
	}
}

func eventPrinter(w io.Writer) func(extractor.Event) {
	var mu sync.Mutex
	return func(ev extractor.Event) {
		switch ev.Kind {
		case extractor.EventStarted, extractor.EventStopped:
			return
		}
		msg := ev.Message
		if msg == "" {
			if ev.Kind != extractor.EventReset {
				return
			}
			msg = messages.Text("slide.verification_failed", nil)
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(w, msg)
	}
}

// writeMemoryArchive saves slides that never reached the store.
func writeMemoryArchive(cmd *cobra.Command, ctx *commandContext, texts messages.Lookup, slides []extractor.MemorySlide, output string) error {
	if len(slides) == 0 {
		return errors.New(messages.Get(texts, "slide.error_no_slides", nil))
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, messages.Get(texts, "slide.packing", nil))

	naming := ctx.naming()
	entries := make([]archive.Entry, len(slides))
	for i, slide := range slides {
		entries[i] = archive.Entry{
			SlideID:    slide.Preview.SlideID,
			CapturedAt: slide.CapturedAt,
			Data:       slide.Image,
		}
	}
	naming.NameEntries(entries)

	if strings.TrimSpace(output) == "" {
		output = naming.ZipName(time.Now())
	}
	if err := writeArchiveFile(output, entries); err != nil {
		return fmt.Errorf("%s: %w", messages.Get(texts, "slide.error_pack_failed", nil), err)
	}
	fmt.Fprintln(out, messages.Get(texts, "slide.download_complete", nil), output)
	return nil
}

// writeArchiveFile writes entries to path through a temporary file.
func writeArchiveFile(path string, entries []archive.Entry) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".slides-*.zip")
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := archive.WriteZip(tmp, entries); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}
