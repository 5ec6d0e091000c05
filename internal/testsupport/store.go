package testsupport

import (
	"context"
	"testing"
	"time"

	"slidekeeper/internal/config"
	"slidekeeper/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...store.Option) *store.Store {
	t.Helper()

	s, err := store.Open(cfg, opts...)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

// SaveSlide stores a generated slide image for streamID captured at at.
func SaveSlide(t testing.TB, s *store.Store, streamID store.StreamID, title string, at time.Time, seed int) string {
	t.Helper()

	img := SlideImage(64, 48, seed)
	id, err := s.SaveSlide(context.Background(), streamID, store.SlideMeta{
		Title:      title,
		CapturedAt: at,
		Width:      64,
		Height:     48,
	}, EncodePNG(t, img))
	if err != nil {
		t.Fatalf("store.SaveSlide: %v", err)
	}
	return id
}
