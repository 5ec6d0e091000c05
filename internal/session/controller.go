package session

import (
	"context"
	"fmt"
	"log/slog"

	"slidekeeper/internal/logging"
	"slidekeeper/internal/memcache"
	"slidekeeper/internal/store"
)

// Store is the slice of the persistent store the controller needs.
type Store interface {
	GetSessionState(ctx context.Context, streamID store.StreamID) (store.SessionState, bool, error)
	GetOrSetSessionState(ctx context.Context, streamID store.StreamID, patch *store.SessionPatch) (store.SessionState, bool, error)
	GetThumbnailsForStream(ctx context.Context, streamID store.StreamID) ([]store.ThumbnailRecord, error)
	CountSlides(ctx context.Context, streamID store.StreamID) (int, error)
}

// RestoreOffer asks the user whether to restore previews from a run that
// was still extracting when it ended.
type RestoreOffer struct {
	StreamID   store.StreamID
	SlideCount int
}

// LoadResult describes what Load found for a stream.
type LoadResult struct {
	Found bool
	State store.SessionState
	// Settings are the stored extraction settings, nil when no session exists.
	Settings *store.ExtractionSettings
	// Offer is set when the previous run was active and left slides behind.
	// Previews are not restored until Accept is called.
	Offer *RestoreOffer
	// Restored counts previews loaded without asking.
	Restored int
}

// Controller coordinates session state and cached previews for the stream
// being extracted. It is not shared between concurrent extractions.
type Controller struct {
	store  Store
	cache  *memcache.Cache
	logger *slog.Logger
}

// New builds a controller. cache may be nil when previews are not kept.
func New(st Store, cache *memcache.Cache, logger *slog.Logger) *Controller {
	return &Controller{
		store:  st,
		cache:  cache,
		logger: logging.NewComponentLogger(logger, "session"),
	}
}

// Load reads the stored session for streamID.
func (c *Controller) Load(ctx context.Context, streamID store.StreamID) (LoadResult, error) {
	state, found, err := c.store.GetSessionState(ctx, streamID)
	if err != nil {
		return LoadResult{}, fmt.Errorf("load session: %w", err)
	}
	result := LoadResult{Found: found, State: state}
	if !found {
		return result, nil
	}
	settings := state.Settings
	result.Settings = &settings

	if state.IsExtracting {
		count, err := c.store.CountSlides(ctx, streamID)
		if err != nil {
			return result, fmt.Errorf("count slides: %w", err)
		}
		if count > 0 {
			result.Offer = &RestoreOffer{StreamID: streamID, SlideCount: count}
			c.logger.Info("previous extraction detected",
				logging.String(logging.FieldStreamID, string(streamID)),
				logging.Int("slides", count),
				logging.String(logging.FieldEventType, "restore_offered"),
			)
		}
		return result, nil
	}

	restored, err := c.RestorePreviews(ctx, streamID)
	if err != nil {
		return result, err
	}
	result.Restored = restored
	return result, nil
}

// Accept restores previews for an offer the user agreed to.
func (c *Controller) Accept(ctx context.Context, offer RestoreOffer) (int, error) {
	return c.RestorePreviews(ctx, offer.StreamID)
}

// RestorePreviews replaces the cached previews with the stream's stored
// thumbnails and returns how many thumbnails the stream has.
func (c *Controller) RestorePreviews(ctx context.Context, streamID store.StreamID) (int, error) {
	thumbs, err := c.store.GetThumbnailsForStream(ctx, streamID)
	if err != nil {
		return 0, fmt.Errorf("restore previews: %w", err)
	}
	if c.cache != nil {
		c.cache.Purge()
		for i, thumb := range thumbs {
			c.cache.Add(memcache.Preview{SlideID: thumb.SlideID, DataURL: thumb.DataURL, Index: i + 1})
		}
	}
	c.logger.Debug("previews restored",
		logging.String(logging.FieldStreamID, string(streamID)),
		logging.Int("slides", len(thumbs)),
	)
	return len(thumbs), nil
}

// Remember caches a freshly committed slide's preview.
func (c *Controller) Remember(p memcache.Preview) {
	if c.cache == nil {
		return
	}
	c.cache.Add(p)
}

// Forget drops every cached preview.
func (c *Controller) Forget() {
	if c.cache == nil {
		return
	}
	c.cache.Purge()
}

// Previews returns the cached previews, least recently used first.
func (c *Controller) Previews() []memcache.Preview {
	if c.cache == nil {
		return nil
	}
	return c.cache.Previews()
}

// Persist records whether extraction is running, the settings in effect and
// the stream's current slide count.
func (c *Controller) Persist(ctx context.Context, streamID store.StreamID, running bool, settings store.ExtractionSettings) (store.SessionState, error) {
	count, err := c.store.CountSlides(ctx, streamID)
	if err != nil {
		return store.SessionState{}, fmt.Errorf("count slides: %w", err)
	}
	state, _, err := c.store.GetOrSetSessionState(ctx, streamID, &store.SessionPatch{
		IsExtracting:      &running,
		Settings:          &settings,
		CurrentSlideCount: &count,
	})
	if err != nil {
		return store.SessionState{}, fmt.Errorf("persist session: %w", err)
	}
	return state, nil
}
