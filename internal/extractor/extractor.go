package extractor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"slidekeeper/internal/detect"
	"slidekeeper/internal/device"
	"slidekeeper/internal/frame"
	"slidekeeper/internal/logging"
	"slidekeeper/internal/memcache"
	"slidekeeper/internal/messages"
	"slidekeeper/internal/session"
	"slidekeeper/internal/store"
	"slidekeeper/internal/thumbnail"
	"slidekeeper/internal/verify"
)

var (
	// ErrAlreadyRunning is returned by Start and Load while a run is active.
	ErrAlreadyRunning = errors.New("extraction already running")
	// ErrNoSurface is returned by Start without a video surface.
	ErrNoSurface = errors.New("no video surface available")
)

// Store is the persistence surface the extractor depends on.
type Store interface {
	session.Store
	UpsertStream(ctx context.Context, rec store.StreamRecord) (store.StreamRecord, error)
	SaveSlide(ctx context.Context, streamID store.StreamID, meta store.SlideMeta, image []byte) (string, error)
	DeleteStreamSlides(ctx context.Context, streamID store.StreamID) (int, error)
}

// Capturer produces frames from a surface.
type Capturer interface {
	CaptureFrame(ctx context.Context, surface frame.Surface) (*frame.Frame, error)
}

// SettingsPatch carries a partial settings update. Non-positive numbers and
// a nil flag leave the current value alone.
type SettingsPatch struct {
	CheckIntervalMS          int
	EnableDoubleVerification *bool
	VerificationCount        int
}

// PatchFrom turns complete settings into a patch.
func PatchFrom(s store.ExtractionSettings) SettingsPatch {
	enabled := s.EnableDoubleVerification
	return SettingsPatch{
		CheckIntervalMS:          s.CheckIntervalMS,
		EnableDoubleVerification: &enabled,
		VerificationCount:        s.VerificationCount,
	}
}

// MemorySlide is a slide kept only in memory while persistence is degraded.
type MemorySlide struct {
	Title      string
	CapturedAt time.Time
	Width      int
	Height     int
	Image      []byte
	Preview    memcache.Preview
}

// Status is a point-in-time view of the extractor.
type Status struct {
	StreamID store.StreamID
	Running  bool
	State    verify.State
	Count    int
	Target   int
	Degraded bool
	Message  string
	RunID    string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTexts sets the status string lookup.
func WithTexts(texts messages.Lookup) Option {
	return func(e *Extractor) { e.texts = texts }
}

// WithEvents registers a callback for extraction events. It runs outside the
// extractor's locks, on the ticking goroutine for tick events, so it must
// not call Stop.
func WithEvents(fn func(Event)) Option {
	return func(e *Extractor) { e.onEvent = fn }
}

// WithSession replaces the default session controller.
func WithSession(ctrl *session.Controller) Option {
	return func(e *Extractor) { e.session = ctrl }
}

// WithMemoryProbe sets the probe used by the default preview cache.
func WithMemoryProbe(probe device.MemoryProbe) Option {
	return func(e *Extractor) { e.probe = probe }
}

// WithSettings sets the initial user settings.
func WithSettings(s store.ExtractionSettings) Option {
	return func(e *Extractor) { e.settings = s }
}

// Extractor drives extraction for one stream at a time.
type Extractor struct {
	store    Store
	capturer Capturer
	detector *detect.Detector
	profile  device.Profile
	logger   *slog.Logger
	texts    messages.Lookup
	onEvent  func(Event)
	session  *session.Controller
	probe    device.MemoryProbe
	thumbs   thumbnail.Options

	// tickMu serializes ticks so the machine sees one frame at a time.
	tickMu sync.Mutex
	// commitMu orders background writes so slide numbers stay sequential.
	commitMu sync.Mutex
	commits  sync.WaitGroup

	mu         sync.Mutex
	settings   store.ExtractionSettings
	machine    *verify.Machine
	streamID   store.StreamID
	surface    frame.Surface
	running    bool
	generation uint64
	runID      string
	cancel     context.CancelFunc
	loopDone   chan struct{}
	reschedule chan time.Duration
	degraded   bool
	memory     []MemorySlide
	message    string
}

// New builds an idle extractor. The profile supplies the default interval,
// preview sizing and cache capacity.
func New(st Store, capturer Capturer, detector *detect.Detector, profile device.Profile, logger *slog.Logger, opts ...Option) *Extractor {
	if detector == nil {
		detector = detect.New(detect.DefaultThresholds())
	}
	e := &Extractor{
		store:    st,
		capturer: capturer,
		detector: detector,
		profile:  profile,
		logger:   logging.NewComponentLogger(logger, "extractor"),
		probe:    device.SystemMemory(),
		thumbs: thumbnail.Options{
			MaxWidth: profile.ThumbnailMaxWidth,
			Quality:  profile.CompressionQuality,
		},
		settings: store.ExtractionSettings{
			CheckIntervalMS:          int(profile.CheckInterval / time.Millisecond),
			EnableDoubleVerification: true,
			VerificationCount:        2,
		},
		reschedule: make(chan time.Duration, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.settings.CheckIntervalMS <= 0 {
		e.settings.CheckIntervalMS = int(profile.CheckInterval / time.Millisecond)
	}
	if e.settings.VerificationCount <= 0 {
		e.settings.VerificationCount = 2
	}
	if e.session == nil {
		e.session = session.New(st, memcache.ForProfile(profile, e.probe, logger), logger)
	}
	e.machine = verify.NewMachine(e.detector, verifySettings(e.settings))
	e.message = e.text("slide.stopped", nil)
	return e
}

func verifySettings(s store.ExtractionSettings) verify.Settings {
	return verify.Settings{Enabled: s.EnableDoubleVerification, Count: s.VerificationCount}
}

func (e *Extractor) text(key string, args map[string]any) string {
	return messages.Get(e.texts, key, args)
}

// Load binds the extractor to a stream: the stream record is upserted, the
// stored session settings are applied and previews are restored or offered.
// A store failure leaves the extractor bound but degraded.
func (e *Extractor) Load(ctx context.Context, rec store.StreamRecord) (session.LoadResult, error) {
	id, err := store.NormalizeStreamID(rec.ID)
	if err != nil {
		return session.LoadResult{}, err
	}
	rec.ID = id

	if e.Running() {
		return session.LoadResult{}, ErrAlreadyRunning
	}
	// Slides decided for the previous stream land before it is unbound.
	e.Wait()

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return session.LoadResult{}, ErrAlreadyRunning
	}
	e.streamID = id
	e.degraded = false
	e.memory = nil
	e.machine.ClearBaseline()
	e.mu.Unlock()
	e.session.Forget()

	if _, err := e.store.UpsertStream(ctx, rec); err != nil {
		e.degrade(err, "save stream info")
		return session.LoadResult{}, err
	}
	result, err := e.session.Load(ctx, id)
	if err != nil {
		logging.WarnWithContext(e.logger, "session restore failed", "session_restore_failed",
			logging.String(logging.FieldStreamID, string(id)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run 'slidekeeper repair' if this repeats"),
			logging.String(logging.FieldImpact, "previous previews are not shown"),
		)
		return result, err
	}
	if result.Settings != nil {
		e.ApplySettings(PatchFrom(*result.Settings))
	}
	return result, nil
}

// StreamID returns the bound stream, empty when unbound.
func (e *Extractor) StreamID() store.StreamID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.streamID
}

// Session exposes the controller so callers can accept restore offers.
func (e *Extractor) Session() *session.Controller { return e.session }

// GetUserSettings returns the settings currently in effect.
func (e *Extractor) GetUserSettings() store.ExtractionSettings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// ApplySettings merges patch into the current settings. A running
// extraction picks up a new interval on its next tick and keeps its
// verification state unless verification was switched off.
func (e *Extractor) ApplySettings(patch SettingsPatch) store.ExtractionSettings {
	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.settings
	if patch.CheckIntervalMS > 0 {
		e.settings.CheckIntervalMS = patch.CheckIntervalMS
	}
	if patch.EnableDoubleVerification != nil {
		e.settings.EnableDoubleVerification = *patch.EnableDoubleVerification
	}
	if patch.VerificationCount > 0 {
		e.settings.VerificationCount = patch.VerificationCount
	}
	e.machine.Apply(verifySettings(e.settings))

	if e.running && e.settings.CheckIntervalMS != before.CheckIntervalMS {
		interval := e.interval()
		select {
		case <-e.reschedule:
		default:
		}
		e.reschedule <- interval
	}
	if e.settings != before {
		e.logger.Debug("extraction settings applied",
			logging.Int("check_interval_ms", e.settings.CheckIntervalMS),
			logging.Bool("double_verification", e.settings.EnableDoubleVerification),
			logging.Int("verification_count", e.settings.VerificationCount),
		)
	}
	return e.settings
}

func (e *Extractor) interval() time.Duration {
	return time.Duration(e.settings.CheckIntervalMS) * time.Millisecond
}

// Status reports the current state.
func (e *Extractor) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	count, target := e.machine.Progress()
	return Status{
		StreamID: e.streamID,
		Running:  e.running,
		State:    e.machine.State(),
		Count:    count,
		Target:   target,
		Degraded: e.degraded,
		Message:  e.message,
		RunID:    e.runID,
	}
}

// Degraded reports whether slides are only kept in memory.
func (e *Extractor) Degraded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.degraded
}

// MemorySlides returns slides held in memory while degraded.
func (e *Extractor) MemorySlides() []MemorySlide {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]MemorySlide(nil), e.memory...)
}

// Previews returns the cached previews.
func (e *Extractor) Previews() []memcache.Preview {
	return e.session.Previews()
}

// SlideCount returns the number of slides for the bound stream, counting
// memory-only slides while degraded.
func (e *Extractor) SlideCount(ctx context.Context) (int, error) {
	e.mu.Lock()
	id, degraded, inMemory := e.streamID, e.degraded, len(e.memory)
	e.mu.Unlock()
	if id == "" || degraded {
		return inMemory, nil
	}
	return e.store.CountSlides(ctx, id)
}

// ClearSlides deletes the bound stream's slides, drops the baseline so the
// next capture starts a fresh deck, and rewrites the session state.
func (e *Extractor) ClearSlides(ctx context.Context) (int, error) {
	e.Wait()

	e.mu.Lock()
	id, degraded := e.streamID, e.degraded
	removed := len(e.memory)
	e.memory = nil
	e.machine.ClearBaseline()
	e.mu.Unlock()
	e.session.Forget()

	if id != "" && !degraded {
		n, err := e.store.DeleteStreamSlides(ctx, id)
		if err != nil {
			e.logger.Error("failed to delete stream slides",
				logging.String(logging.FieldStreamID, string(id)),
				logging.Error(err),
				logging.String(logging.FieldEventType, "clear_slides_failed"),
			)
			return 0, err
		}
		removed = n
		e.persistSession(ctx)
	}
	e.setMessage(e.text("slide.slides_deleted", nil))
	return removed, nil
}

// Wait blocks until every background commit has finished.
func (e *Extractor) Wait() {
	e.commits.Wait()
}

func (e *Extractor) setMessage(msg string) {
	e.mu.Lock()
	e.message = msg
	e.mu.Unlock()
}

func (e *Extractor) emit(events []Event) {
	if e.onEvent == nil {
		return
	}
	for _, ev := range events {
		e.onEvent(ev)
	}
}

// persistSession writes the session record. Failures are logged only.
func (e *Extractor) persistSession(ctx context.Context) {
	e.mu.Lock()
	id, running, settings, degraded := e.streamID, e.running, e.settings, e.degraded
	e.mu.Unlock()
	if id == "" || degraded {
		return
	}
	if _, err := e.session.Persist(ctx, id, running, settings); err != nil {
		logging.WarnWithContext(e.logger, "failed to update session state", "session_persist_failed",
			logging.String(logging.FieldStreamID, string(id)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the data directory is writable"),
			logging.String(logging.FieldImpact, "reload recovery may be out of date"),
		)
	}
}
