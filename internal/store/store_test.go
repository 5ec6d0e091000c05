package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"slidekeeper/internal/store"
	"slidekeeper/internal/testsupport"
)

// stepClock advances one second per call.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return testsupport.MustOpenStore(t, cfg, store.WithClock(newStepClock().Now))
}

func TestOpenReopensExistingDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	if _, err := first.UpsertStream(ctx, store.StreamRecord{ID: "42", Title: "Signals"}); err != nil {
		t.Fatalf("UpsertStream: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second := testsupport.MustOpenStore(t, cfg)
	rec, err := second.GetStream(ctx, "42")
	if err != nil {
		t.Fatalf("GetStream after reopen: %v", err)
	}
	if rec.Title != "Signals" {
		t.Fatalf("title = %q", rec.Title)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	if err := store.ExecRaw(s, "PRAGMA user_version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	s.Close()

	if _, err := store.Open(cfg); !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestNormalizeStreamID(t *testing.T) {
	tests := []struct {
		in      any
		want    store.StreamID
		wantErr bool
	}{
		{"abc", "abc", false},
		{"  42 ", "42", false},
		{42, "42", false},
		{int64(7), "7", false},
		{float64(12), "12", false},
		{store.StreamID("x"), "x", false},
		{"", "", true},
		{1.5, "", true},
		{[]int{1}, "", true},
	}
	for _, tt := range tests {
		got, err := store.NormalizeStreamID(tt.in)
		if tt.wantErr {
			if !errors.Is(err, store.ErrInvalidStreamID) {
				t.Fatalf("NormalizeStreamID(%v) err = %v, want ErrInvalidStreamID", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("NormalizeStreamID(%v) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestUpsertStreamMergesAndRefreshesAccess(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	first, err := s.UpsertStream(ctx, store.StreamRecord{ID: "s1", Title: "Algebra", Professor: "Li"})
	if err != nil {
		t.Fatalf("UpsertStream: %v", err)
	}
	second, err := s.UpsertStream(ctx, store.StreamRecord{ID: "s1", Subtitle: "Room 101"})
	if err != nil {
		t.Fatalf("UpsertStream: %v", err)
	}
	if second.Title != "Algebra" || second.Professor != "Li" || second.Subtitle != "Room 101" {
		t.Fatalf("merge lost fields: %+v", second)
	}
	if !second.LastAccessed.After(first.LastAccessed) {
		t.Fatalf("last accessed not refreshed: %v then %v", first.LastAccessed, second.LastAccessed)
	}
	if !second.FirstSaved.Equal(first.FirstSaved) {
		t.Fatalf("first saved changed: %v then %v", first.FirstSaved, second.FirstSaved)
	}
}

func TestGetStreamNotFound(t *testing.T) {
	s := openStore(t)
	if _, err := s.GetStream(context.Background(), "missing"); !errors.Is(err, store.ErrStreamNotFound) {
		t.Fatalf("expected ErrStreamNotFound, got %v", err)
	}
}

func TestSaveSlideWritesAllRecords(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	if _, err := s.UpsertStream(ctx, store.StreamRecord{ID: "s1"}); err != nil {
		t.Fatalf("UpsertStream: %v", err)
	}

	slideID := testsupport.SaveSlide(t, s, "s1", "Slide 1", time.Unix(100, 0), 1)

	rec, err := s.GetStream(ctx, "s1")
	if err != nil {
		t.Fatalf("GetStream: %v", err)
	}
	if rec.SlideCount != 1 {
		t.Fatalf("slide count = %d, want 1", rec.SlideCount)
	}
	thumbs, err := s.GetThumbnailsForStream(ctx, "s1")
	if err != nil {
		t.Fatalf("GetThumbnailsForStream: %v", err)
	}
	if len(thumbs) != 1 || thumbs[0].SlideID != slideID {
		t.Fatalf("thumbnails = %+v", thumbs)
	}
	image, err := s.GetSlideImage(ctx, slideID)
	if err != nil || len(image) == 0 {
		t.Fatalf("GetSlideImage = %d bytes, %v", len(image), err)
	}
	missing, err := s.GetSlideImage(ctx, "slide_nope")
	if err != nil || missing != nil {
		t.Fatalf("GetSlideImage(missing) = %v, %v", missing, err)
	}

	slide, err := s.GetSlide(ctx, slideID)
	if err != nil {
		t.Fatalf("GetSlide: %v", err)
	}
	if slide.StreamID != "s1" || slide.Title != "Slide 1" || !slide.CapturedAt.Equal(time.Unix(100, 0)) || slide.Image != nil {
		t.Fatalf("slide = %+v", slide)
	}
	if _, err := s.GetSlide(ctx, "slide_nope"); !errors.Is(err, store.ErrSlideNotFound) {
		t.Fatalf("GetSlide(missing) = %v", err)
	}
}

func TestSaveSlideKeepsCallerPreview(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	payload := testsupport.EncodePNG(t, testsupport.SlideImage(32, 24, 3))
	const preview = "data:image/jpeg;base64,/9j/AA=="

	if _, err := s.SaveSlide(ctx, "s1", store.SlideMeta{Title: "Slide 1", Preview: preview}, payload); err != nil {
		t.Fatalf("SaveSlide: %v", err)
	}
	thumbs, err := s.GetThumbnailsForStream(ctx, "s1")
	if err != nil {
		t.Fatalf("GetThumbnailsForStream: %v", err)
	}
	if len(thumbs) != 1 || thumbs[0].DataURL != preview {
		t.Fatalf("thumbnails = %+v, want the supplied preview", thumbs)
	}
}

func TestSaveSlideCreatesUnknownStream(t *testing.T) {
	s := openStore(t)
	testsupport.SaveSlide(t, s, "fresh", "Slide 1", time.Unix(5, 0), 2)
	rec, err := s.GetStream(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("GetStream: %v", err)
	}
	if rec.SlideCount != 1 || rec.FirstSaved.IsZero() {
		t.Fatalf("unexpected stream %+v", rec)
	}
}

func TestSaveSlideIsAtomic(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	if _, err := s.UpsertStream(ctx, store.StreamRecord{ID: "s1"}); err != nil {
		t.Fatalf("UpsertStream: %v", err)
	}
	testsupport.SaveSlide(t, s, "s1", "Slide 1", time.Unix(1, 0), 1)

	boom := errors.New("disk yanked")
	store.FailAfterSlideInsert(s, boom)
	_, err := s.SaveSlide(ctx, "s1", store.SlideMeta{Title: "Slide 2", CapturedAt: time.Unix(2, 0)},
		testsupport.EncodePNG(t, testsupport.SlideImage(32, 24, 2)))
	if !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	store.FailAfterSlideInsert(s, nil)

	slides, err := s.GetSlidesForStream(ctx, "s1", false)
	if err != nil {
		t.Fatalf("GetSlidesForStream: %v", err)
	}
	thumbs, err := s.GetThumbnailsForStream(ctx, "s1")
	if err != nil {
		t.Fatalf("GetThumbnailsForStream: %v", err)
	}
	rec, err := s.GetStream(ctx, "s1")
	if err != nil {
		t.Fatalf("GetStream: %v", err)
	}
	if len(slides) != 1 || len(thumbs) != 1 || rec.SlideCount != 1 {
		t.Fatalf("partial write visible: slides=%d thumbs=%d count=%d", len(slides), len(thumbs), rec.SlideCount)
	}
}

func TestThumbnailsOrderedByCaptureTime(t *testing.T) {
	s := openStore(t)
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	offsets := []time.Duration{30 * time.Second, 0, 10 * time.Second, 10 * time.Second, 5 * time.Second}
	for i, off := range offsets {
		testsupport.SaveSlide(t, s, "s1", "x", base.Add(off), i)
	}

	thumbs, err := s.GetThumbnailsForStream(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetThumbnailsForStream: %v", err)
	}
	if len(thumbs) != len(offsets) {
		t.Fatalf("got %d thumbnails", len(thumbs))
	}
	for i := 1; i < len(thumbs); i++ {
		if thumbs[i].CapturedAt.Before(thumbs[i-1].CapturedAt) {
			t.Fatalf("thumbnail %d out of order: %v before %v", i, thumbs[i].CapturedAt, thumbs[i-1].CapturedAt)
		}
	}
}

func TestDeleteStreamSlidesKeepsStream(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	testsupport.SaveSlide(t, s, "s1", "a", time.Unix(1, 0), 1)
	testsupport.SaveSlide(t, s, "s1", "b", time.Unix(2, 0), 2)
	testsupport.SaveSlide(t, s, "s2", "c", time.Unix(3, 0), 3)
	extracting := true
	if _, _, err := s.GetOrSetSessionState(ctx, "s1", &store.SessionPatch{IsExtracting: &extracting}); err != nil {
		t.Fatalf("GetOrSetSessionState: %v", err)
	}

	removed, err := s.DeleteStreamSlides(ctx, "s1")
	if err != nil {
		t.Fatalf("DeleteStreamSlides: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	rec, err := s.GetStream(ctx, "s1")
	if err != nil {
		t.Fatalf("stream should survive: %v", err)
	}
	if rec.SlideCount != 0 {
		t.Fatalf("slide count = %d", rec.SlideCount)
	}
	if thumbs, _ := s.GetThumbnailsForStream(ctx, "s1"); len(thumbs) != 0 {
		t.Fatalf("thumbnails left: %d", len(thumbs))
	}
	if _, found, _ := s.GetSessionState(ctx, "s1"); !found {
		t.Fatal("session state should survive")
	}
	if n, _ := s.CountSlides(ctx, "s2"); n != 1 {
		t.Fatalf("other stream touched: %d slides", n)
	}
}

func TestDeleteStreamCascades(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	testsupport.SaveSlide(t, s, "s1", "a", time.Unix(1, 0), 1)
	count := 1
	if _, _, err := s.GetOrSetSessionState(ctx, "s1", &store.SessionPatch{CurrentSlideCount: &count}); err != nil {
		t.Fatalf("GetOrSetSessionState: %v", err)
	}

	if err := s.DeleteStream(ctx, "s1"); err != nil {
		t.Fatalf("DeleteStream: %v", err)
	}
	thumbs, err := s.GetThumbnailsForStream(ctx, "s1")
	if err != nil || len(thumbs) != 0 {
		t.Fatalf("thumbnails after delete = %d, %v", len(thumbs), err)
	}
	if _, found, err := s.GetSessionState(ctx, "s1"); err != nil || found {
		t.Fatalf("session after delete found=%v err=%v", found, err)
	}
	if _, err := s.GetStream(ctx, "s1"); !errors.Is(err, store.ErrStreamNotFound) {
		t.Fatalf("stream after delete: %v", err)
	}
	if err := s.DeleteStream(ctx, "s1"); err != nil {
		t.Fatalf("second DeleteStream: %v", err)
	}
}

func TestDeleteSlide(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	id := testsupport.SaveSlide(t, s, "s1", "a", time.Unix(1, 0), 1)
	testsupport.SaveSlide(t, s, "s1", "b", time.Unix(2, 0), 2)

	if err := s.DeleteSlide(ctx, id); err != nil {
		t.Fatalf("DeleteSlide: %v", err)
	}
	rec, _ := s.GetStream(ctx, "s1")
	if rec.SlideCount != 1 {
		t.Fatalf("slide count = %d", rec.SlideCount)
	}
	if err := s.DeleteSlide(ctx, id); !errors.Is(err, store.ErrSlideNotFound) {
		t.Fatalf("expected ErrSlideNotFound, got %v", err)
	}
}

func TestRepairSlideCountsIsIdempotent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	testsupport.SaveSlide(t, s, "s1", "a", time.Unix(1, 0), 1)
	testsupport.SaveSlide(t, s, "s1", "b", time.Unix(2, 0), 2)
	if _, err := s.UpsertStream(ctx, store.StreamRecord{ID: "s2"}); err != nil {
		t.Fatalf("UpsertStream: %v", err)
	}
	if err := store.ExecRaw(s, "UPDATE streams SET slide_count = 9 WHERE id = 's1'"); err != nil {
		t.Fatalf("corrupt count: %v", err)
	}
	if err := store.ExecRaw(s, "UPDATE streams SET slide_count = 3 WHERE id = 's2'"); err != nil {
		t.Fatalf("corrupt count: %v", err)
	}

	fixed, err := s.RepairSlideCounts(ctx)
	if err != nil {
		t.Fatalf("RepairSlideCounts: %v", err)
	}
	if fixed != 2 {
		t.Fatalf("fixed = %d, want 2", fixed)
	}
	snapshot := func() map[store.StreamID]int {
		streams, err := s.ListStreams(ctx)
		if err != nil {
			t.Fatalf("ListStreams: %v", err)
		}
		out := map[store.StreamID]int{}
		for _, rec := range streams {
			out[rec.ID] = rec.SlideCount
		}
		return out
	}
	once := snapshot()
	again, err := s.RepairSlideCounts(ctx)
	if err != nil || again != 0 {
		t.Fatalf("second repair = %d, %v", again, err)
	}
	twice := snapshot()
	if once["s1"] != 2 || once["s2"] != 0 || twice["s1"] != once["s1"] || twice["s2"] != once["s2"] {
		t.Fatalf("counts once=%v twice=%v", once, twice)
	}
}

func TestListStreamsWithSlides(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	if _, err := s.UpsertStream(ctx, store.StreamRecord{ID: "empty"}); err != nil {
		t.Fatalf("UpsertStream: %v", err)
	}
	testsupport.SaveSlide(t, s, "older", "a", time.Unix(1, 0), 1)
	testsupport.SaveSlide(t, s, "newer", "b", time.Unix(2, 0), 2)
	testsupport.SaveSlide(t, s, "newer", "c", time.Unix(3, 0), 3)
	if err := store.ExecRaw(s, "UPDATE streams SET slide_count = 0 WHERE id = 'newer'"); err != nil {
		t.Fatalf("corrupt count: %v", err)
	}

	streams, err := s.ListStreamsWithSlides(ctx)
	if err != nil {
		t.Fatalf("ListStreamsWithSlides: %v", err)
	}
	if len(streams) != 2 {
		t.Fatalf("streams = %+v", streams)
	}
	if streams[0].ID != "newer" || streams[0].SlideCount != 2 {
		t.Fatalf("first stream = %+v", streams[0])
	}
	if streams[1].ID != "older" || streams[1].SlideCount != 1 {
		t.Fatalf("second stream = %+v", streams[1])
	}

	all, err := s.ListStreams(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("ListStreams = %d, %v", len(all), err)
	}
}

func TestSessionStatePatchMerges(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, found, err := s.GetSessionState(ctx, "s1")
	if err != nil || found {
		t.Fatalf("initial session found=%v err=%v", found, err)
	}

	extracting := true
	settings := store.ExtractionSettings{CheckIntervalMS: 2500, EnableDoubleVerification: true, VerificationCount: 3}
	if _, _, err := s.GetOrSetSessionState(ctx, "s1", &store.SessionPatch{IsExtracting: &extracting, Settings: &settings}); err != nil {
		t.Fatalf("patch: %v", err)
	}
	count := 4
	merged, found, err := s.GetOrSetSessionState(ctx, "s1", &store.SessionPatch{CurrentSlideCount: &count})
	if err != nil || !found {
		t.Fatalf("patch count found=%v err=%v", found, err)
	}
	if !merged.IsExtracting || merged.Settings != settings || merged.CurrentSlideCount != 4 {
		t.Fatalf("merged = %+v", merged)
	}

	read, found, err := s.GetSessionState(ctx, "s1")
	if err != nil || !found {
		t.Fatalf("read found=%v err=%v", found, err)
	}
	if read.Settings != settings || read.CurrentSlideCount != 4 || read.LastAccess.IsZero() {
		t.Fatalf("read = %+v", read)
	}
}

func TestClearAll(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	testsupport.SaveSlide(t, s, "s1", "a", time.Unix(1, 0), 1)
	extracting := false
	if _, _, err := s.GetOrSetSessionState(ctx, "s1", &store.SessionPatch{IsExtracting: &extracting}); err != nil {
		t.Fatalf("session: %v", err)
	}

	directive, err := s.ClearAll(ctx)
	if err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalSlides != 0 || stats.TotalStreams != 0 {
		t.Fatalf("stats after clear = %+v", stats)
	}
	if streams, _ := s.ListStreams(ctx); len(streams) != 0 {
		t.Fatalf("streams after clear = %d", len(streams))
	}
	if _, found, _ := s.GetSessionState(ctx, "s1"); found {
		t.Fatal("session survived ClearAll")
	}

	tests := map[string]bool{
		"stream_42":  true,
		"stream_abc": true,
		"language":   false,
		"hasVisited": false,
		"auth":       false,
		"theme":      false,
	}
	for key, want := range tests {
		if got := directive.ShouldPurge(key); got != want {
			t.Fatalf("ShouldPurge(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestStats(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	if _, err := s.UpsertStream(ctx, store.StreamRecord{ID: "empty"}); err != nil {
		t.Fatalf("UpsertStream: %v", err)
	}
	testsupport.SaveSlide(t, s, "s1", "a", time.Unix(1, 0), 1)
	testsupport.SaveSlide(t, s, "s1", "b", time.Unix(2, 0), 2)
	testsupport.SaveSlide(t, s, "s2", "c", time.Unix(3, 0), 3)

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	slides, _ := s.GetSlidesForStream(ctx, "s1", false)
	more, _ := s.GetSlidesForStream(ctx, "s2", false)
	var size int64
	for _, rec := range append(slides, more...) {
		size += rec.Size
	}
	if stats.TotalStreams != 2 || stats.TotalSlides != 3 || stats.TotalSize != size {
		t.Fatalf("stats = %+v, want 2 streams 3 slides %d bytes", stats, size)
	}
	if stats.FormattedSize != store.FormatFileSize(size) {
		t.Fatalf("formatted = %q", stats.FormattedSize)
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := map[int64]string{
		0:                 "0 Bytes",
		1:                 "1 Bytes",
		1023:              "1023 Bytes",
		1024:              "1 KB",
		1536:              "1.5 KB",
		1126:              "1.1 KB",
		1048576:           "1 MB",
		5 * 1024 * 1024:   "5 MB",
		1073741824:        "1 GB",
		3 * 1099511627776: "3072 GB",
	}
	for in, want := range tests {
		if got := store.FormatFileSize(in); got != want {
			t.Fatalf("FormatFileSize(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestCheckHealth(t *testing.T) {
	s := openStore(t)
	health, err := s.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.IntegrityCheck {
		t.Fatalf("health = %+v", health)
	}
	if health.SchemaVersion != 1 || len(health.MissingTables) != 0 {
		t.Fatalf("health = %+v", health)
	}
}
