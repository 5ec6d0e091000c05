package session_test

import (
	"context"
	"testing"
	"time"

	"slidekeeper/internal/memcache"
	"slidekeeper/internal/session"
	"slidekeeper/internal/store"
	"slidekeeper/internal/testsupport"
)

func setup(t *testing.T, capacity int) (*store.Store, *memcache.Cache, *session.Controller) {
	t.Helper()
	s := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	cache := memcache.New(capacity, nil, 70, nil)
	return s, cache, session.New(s, cache, nil)
}

func TestLoadWithoutSession(t *testing.T) {
	_, cache, ctrl := setup(t, 5)
	result, err := ctrl.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if result.Found || result.Settings != nil || result.Offer != nil || cache.Len() != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestLoadOffersRestoreAfterActiveRun(t *testing.T) {
	s, cache, ctrl := setup(t, 5)
	ctx := context.Background()
	testsupport.SaveSlide(t, s, "s1", "Slide 1", time.Unix(1, 0), 1)
	testsupport.SaveSlide(t, s, "s1", "Slide 2", time.Unix(2, 0), 2)
	settings := store.ExtractionSettings{CheckIntervalMS: 3000, EnableDoubleVerification: true, VerificationCount: 3}
	if _, err := ctrl.Persist(ctx, "s1", true, settings); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	for i := 0; i < 2; i++ {
		result, err := ctrl.Load(ctx, "s1")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if result.Offer == nil || result.Offer.SlideCount != 2 {
			t.Fatalf("load %d: offer = %+v", i, result.Offer)
		}
		if result.Settings == nil || *result.Settings != settings {
			t.Fatalf("settings = %+v", result.Settings)
		}
		if cache.Len() != 0 {
			t.Fatalf("previews restored before the offer was accepted")
		}
	}

	restored, err := ctrl.Accept(ctx, session.RestoreOffer{StreamID: "s1", SlideCount: 2})
	if err != nil || restored != 2 {
		t.Fatalf("Accept = %d, %v", restored, err)
	}
	previews := ctrl.Previews()
	if len(previews) != 2 || previews[0].Index != 1 || previews[1].Index != 2 {
		t.Fatalf("previews = %+v", previews)
	}
}

func TestLoadActiveRunWithoutSlidesOffersNothing(t *testing.T) {
	_, _, ctrl := setup(t, 5)
	ctx := context.Background()
	if _, err := ctrl.Persist(ctx, "s1", true, store.ExtractionSettings{}); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	result, err := ctrl.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !result.Found || result.Offer != nil {
		t.Fatalf("result = %+v", result)
	}
}

func TestLoadInactiveRunRestoresPreviews(t *testing.T) {
	s, cache, ctrl := setup(t, 2)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		testsupport.SaveSlide(t, s, "s1", "x", time.Unix(int64(i), 0), i)
	}
	if _, err := ctrl.Persist(ctx, "s1", false, store.ExtractionSettings{CheckIntervalMS: 2000}); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	result, err := ctrl.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if result.Offer != nil || result.Restored != 3 {
		t.Fatalf("result = %+v", result)
	}
	if cache.Len() != 2 {
		t.Fatalf("cache len = %d, want capacity 2", cache.Len())
	}
	previews := ctrl.Previews()
	if previews[0].Index != 2 || previews[1].Index != 3 {
		t.Fatalf("cache should hold the newest previews: %+v", previews)
	}
}

func TestPersistRecordsSlideCount(t *testing.T) {
	s, _, ctrl := setup(t, 5)
	ctx := context.Background()
	testsupport.SaveSlide(t, s, "s1", "x", time.Unix(1, 0), 1)

	state, err := ctrl.Persist(ctx, "s1", true, store.ExtractionSettings{VerificationCount: 2})
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if !state.IsExtracting || state.CurrentSlideCount != 1 || state.Settings.VerificationCount != 2 {
		t.Fatalf("state = %+v", state)
	}
}

func TestRememberAndForget(t *testing.T) {
	_, cache, ctrl := setup(t, 5)
	ctrl.Remember(memcache.Preview{SlideID: "a", Index: 1})
	ctrl.Remember(memcache.Preview{SlideID: "b", Index: 2})
	if cache.Len() != 2 {
		t.Fatalf("len = %d", cache.Len())
	}
	ctrl.Forget()
	if cache.Len() != 0 {
		t.Fatalf("len after forget = %d", cache.Len())
	}

	bare := session.New(nil, nil, nil)
	bare.Remember(memcache.Preview{SlideID: "x"})
	bare.Forget()
	if bare.Previews() != nil {
		t.Fatal("controller without cache should report no previews")
	}
}
