package extractor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"slidekeeper/internal/frame"
	"slidekeeper/internal/logging"
	"slidekeeper/internal/memcache"
	"slidekeeper/internal/store"
	"slidekeeper/internal/thumbnail"
	"slidekeeper/internal/verify"
)

// EventKind classifies extraction events.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventStopped   EventKind = "stopped"
	EventVerifying EventKind = "verifying"
	EventRejected  EventKind = "rejected"
	EventCommitted EventKind = "committed"
	EventDegraded  EventKind = "degraded"
	EventReset     EventKind = "reset"
)

// Event is delivered to the WithEvents callback.
type Event struct {
	Kind     EventKind
	StreamID store.StreamID
	SlideID  string
	Index    int
	Count    int
	Target   int
	Message  string
	Err      error
}

// Start begins ticking against surface at the configured interval.
func (e *Extractor) Start(ctx context.Context, surface frame.Surface) error {
	if surface == nil {
		e.logger.Warn("extraction not started",
			logging.String(logging.FieldEventType, "surface_missing"),
			logging.String(logging.FieldErrorHint, e.text("slide.error_no_player", nil)),
		)
		return ErrNoSurface
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.running = true
	e.generation++
	e.runID = uuid.NewString()
	runCtx, cancel := context.WithCancel(logging.WithSessionID(logging.WithStreamID(ctx, string(e.streamID)), e.runID))
	e.surface = surface
	e.cancel = cancel
	e.loopDone = make(chan struct{})
	e.machine.Reset()
	e.message = e.text("slide.running", nil)
	interval := e.interval()
	streamID, runID, done, msg := e.streamID, e.runID, e.loopDone, e.message
	select {
	case <-e.reschedule:
	default:
	}
	e.mu.Unlock()

	e.logger.Info("extraction started",
		logging.String(logging.FieldStreamID, string(streamID)),
		logging.String(logging.FieldSessionID, runID),
		logging.Duration("interval", interval),
		logging.String(logging.FieldEventType, "extraction_started"),
	)
	e.persistSession(ctx)
	go e.loop(runCtx, interval, done)
	e.emit([]Event{{Kind: EventStarted, StreamID: streamID, Message: msg}})
	return nil
}

// Stop halts the ticker and discards any unconfirmed candidate. Commits
// decided before the call may still complete; use Wait to block on them.
func (e *Extractor) Stop(ctx context.Context) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.generation++
	cancel, done := e.cancel, e.loopDone
	e.cancel = nil
	e.surface = nil
	discarded := e.machine.Reset()
	e.message = e.text("slide.stopped", nil)
	streamID, runID, msg := e.streamID, e.runID, e.message
	e.mu.Unlock()

	cancel()
	<-done

	e.logger.Info("extraction stopped",
		logging.String(logging.FieldStreamID, string(streamID)),
		logging.String(logging.FieldSessionID, runID),
		logging.Bool("candidate_discarded", discarded),
		logging.String(logging.FieldEventType, "extraction_stopped"),
	)
	e.persistSession(ctx)
	e.emit([]Event{{Kind: EventStopped, StreamID: streamID, Message: msg}})
}

// Running reports whether a run is active.
func (e *Extractor) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Extractor) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case next := <-e.reschedule:
			ticker.Reset(next)
			e.logger.Debug("extraction rescheduled", logging.Duration("interval", next))
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick runs one capture and verification step. The loop calls it on every
// timer fire; tests call it directly for deterministic stepping. It does
// nothing while stopped.
func (e *Extractor) Tick(ctx context.Context) {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	gen, surface := e.generation, e.surface
	e.mu.Unlock()

	captured, err := e.capturer.CaptureFrame(ctx, surface)

	e.mu.Lock()
	if !e.running || e.generation != gen {
		// Stopped while capturing.
		e.mu.Unlock()
		return
	}
	events := e.observeLocked(ctx, gen, captured, err)
	e.mu.Unlock()
	e.emit(events)
}

// observeLocked advances the machine. e.mu must be held.
func (e *Extractor) observeLocked(ctx context.Context, gen uint64, captured *frame.Frame, err error) []Event {
	streamID := e.streamID
	if err != nil {
		if frame.IsTransient(err) {
			e.logger.Debug("transient capture failure", logging.Error(err))
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		if e.machine.Reset() {
			e.warnReset("capture failed during verification", err)
			return []Event{{Kind: EventReset, StreamID: streamID, Err: err}}
		}
		e.logger.Debug("capture failed", logging.Error(err))
		return nil
	}
	if captured == nil {
		if e.machine.FrameUnavailable() {
			e.warnReset("no frame available during verification", nil)
			return []Event{{Kind: EventReset, StreamID: streamID}}
		}
		return nil
	}

	decision := e.machine.Observe(captured)
	switch decision.Outcome {
	case verify.OutcomeVerifying:
		if decision.Count <= 1 {
			e.message = e.text("slide.change_detected", nil)
		} else {
			e.message = fmt.Sprintf("%s (%d/%d)", e.text("slide.verifying", nil), decision.Count, decision.Target)
		}
		return []Event{{Kind: EventVerifying, StreamID: streamID, Count: decision.Count, Target: decision.Target, Message: e.message}}
	case verify.OutcomeRejected:
		e.message = e.text("slide.verification_failed", nil)
		return []Event{{Kind: EventRejected, StreamID: streamID, Message: e.message}}
	case verify.OutcomeCommit:
		e.message = e.text("slide.running", nil)
		e.commits.Add(1)
		go e.commit(context.WithoutCancel(ctx), pendingCommit{
			gen:      gen,
			streamID: streamID,
			degraded: e.degraded,
			frame:    decision.Frame,
		})
	}
	return nil
}

func (e *Extractor) warnReset(msg string, err error) {
	attrs := []logging.Attr{
		logging.String(logging.FieldStreamID, string(e.streamID)),
		logging.String(logging.FieldErrorHint, "the slide will be picked up again once it is stable"),
		logging.String(logging.FieldImpact, "unconfirmed candidate discarded"),
	}
	if err != nil {
		attrs = append(attrs, logging.Error(err))
	}
	logging.WarnWithContext(e.logger, msg, "verification_reset", attrs...)
}

// pendingCommit is a slide the machine decided to keep. The stream it
// belongs to is fixed at decision time.
type pendingCommit struct {
	gen      uint64
	streamID store.StreamID
	degraded bool
	frame    *frame.Frame
}

// commit persists the slide, falling back to memory when the store fails.
func (e *Extractor) commit(ctx context.Context, c pendingCommit) {
	defer e.commits.Done()
	e.commitMu.Lock()
	defer e.commitMu.Unlock()

	f, streamID := c.frame, c.streamID
	e.mu.Lock()
	degraded := c.degraded || (e.degraded && e.streamID == streamID)
	e.mu.Unlock()

	payload, err := f.EncodePNG()
	if err != nil {
		e.logger.Error("failed to encode slide",
			logging.Error(err),
			logging.String(logging.FieldEventType, "slide_encode_failed"),
		)
		return
	}
	// One preview serves both the store and the in-memory cache.
	thumb, err := thumbnail.FromImage(f.Image, e.thumbs)
	if err != nil {
		e.logger.Warn("failed to derive slide preview", logging.Error(err))
	}

	if streamID == "" || degraded {
		e.emit([]Event{e.keepInMemory(streamID, f, payload, thumb)})
		return
	}

	count, err := e.store.CountSlides(ctx, streamID)
	if err == nil {
		index := count + 1
		var slideID string
		slideID, err = e.store.SaveSlide(ctx, streamID, store.SlideMeta{
			Title:      fmt.Sprintf("Slide %d", index),
			CapturedAt: f.CapturedAt,
			Width:      f.Width(),
			Height:     f.Height(),
			Preview:    thumb.DataURL,
		}, payload)
		if err == nil {
			e.session.Remember(memcache.Preview{SlideID: slideID, DataURL: thumb.DataURL, Index: index})
			e.persistSession(ctx)
			msg := e.text("slide.captured", map[string]any{"index": index})
			logging.WithContext(ctx, e.logger).Info("slide committed",
				logging.String(logging.FieldSlideID, slideID),
				logging.Int("index", index),
				logging.Int64("generation", int64(c.gen)),
				logging.String(logging.FieldEventType, "slide_committed"),
			)
			e.emit([]Event{{Kind: EventCommitted, StreamID: streamID, SlideID: slideID, Index: index, Message: msg}})
			return
		}
	}

	e.degrade(err, "save slide")
	e.emit([]Event{
		{Kind: EventDegraded, StreamID: streamID, Err: err, Message: e.text("slide.error_no_storage", nil)},
		e.keepInMemory(streamID, f, payload, thumb),
	})
}

// degrade switches to memory-only mode.
func (e *Extractor) degrade(err error, op string) {
	e.mu.Lock()
	already := e.degraded
	e.degraded = true
	e.message = e.text("slide.error_no_storage", nil)
	streamID := e.streamID
	e.mu.Unlock()
	if already {
		return
	}
	logging.ErrorWithContext(e.logger, "slide persistence failed, keeping slides in memory", "persistence_degraded",
		logging.String("operation", op),
		logging.String(logging.FieldStreamID, string(streamID)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check disk space and data_dir permissions"),
		logging.String(logging.FieldImpact, "slides from this run are lost when it ends unless exported"),
	)
}

func (e *Extractor) keepInMemory(streamID store.StreamID, f *frame.Frame, payload []byte, thumb thumbnail.Thumbnail) Event {
	e.mu.Lock()
	index := len(e.memory) + 1
	slide := MemorySlide{
		Title:      fmt.Sprintf("Slide %d", index),
		CapturedAt: f.CapturedAt,
		Width:      f.Width(),
		Height:     f.Height(),
		Image:      payload,
		Preview: memcache.Preview{
			SlideID: fmt.Sprintf("memory_%d", index),
			DataURL: thumb.DataURL,
			Index:   index,
		},
	}
	e.memory = append(e.memory, slide)
	e.mu.Unlock()

	e.session.Remember(slide.Preview)
	return Event{
		Kind:     EventCommitted,
		StreamID: streamID,
		SlideID:  slide.Preview.SlideID,
		Index:    index,
		Message:  e.text("slide.captured", map[string]any{"index": index}),
	}
}
