package archive_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"slidekeeper/internal/archive"
	"slidekeeper/internal/testsupport"
)

var slideName = regexp.MustCompile(`^slide_\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}(_\d+)?_CST\.png$`)

func TestNamingShiftsIntoZone(t *testing.T) {
	n := archive.DefaultNaming()
	at := time.Date(2026, 3, 2, 17, 5, 9, 500_000_000, time.UTC)
	if got := n.SlideFileName(at); got != "slide_2026-03-03T01-05-09_CST.png" {
		t.Fatalf("SlideFileName = %q", got)
	}
	if got := n.ZipName(at); got != "slides_2026-03-03T01-05-09_CST.zip" {
		t.Fatalf("ZipName = %q", got)
	}

	local := time.Date(2026, 3, 2, 9, 0, 0, 0, time.FixedZone("X", -5*3600))
	if got := n.SlideFileName(local); got != "slide_2026-03-02T22-00-00_CST.png" {
		t.Fatalf("non-UTC input = %q", got)
	}
}

func TestNamingFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Archive.UTCOffsetHours = 0
	cfg.Archive.ZoneSuffix = "UTC"
	n := archive.NamingFromConfig(cfg)
	if got := n.SlideFileName(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)); got != "slide_2026-01-01T00-00-00_UTC.png" {
		t.Fatalf("SlideFileName = %q", got)
	}
}

func TestExportThreeSlides(t *testing.T) {
	s := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	base := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)
	testsupport.SaveSlide(t, s, "s1", "Slide 1", base, 1)
	testsupport.SaveSlide(t, s, "s1", "Slide 2", base.Add(40*time.Second), 2)
	testsupport.SaveSlide(t, s, "s1", "Slide 3", base.Add(40*time.Second+300*time.Millisecond), 3)

	var buf bytes.Buffer
	n, err := archive.Export(context.Background(), s, "s1", archive.DefaultNaming(), &buf)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 3 {
		t.Fatalf("entries = %d, want 3", n)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	if len(zr.File) != 3 {
		t.Fatalf("zip has %d files", len(zr.File))
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		if !slideName.MatchString(f.Name) {
			t.Fatalf("name %q does not match pattern", f.Name)
		}
		if names[f.Name] {
			t.Fatalf("duplicate name %q", f.Name)
		}
		names[f.Name] = true

		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil || len(data) == 0 {
			t.Fatalf("read %s: %d bytes, %v", f.Name, len(data), err)
		}
	}
	want := []string{
		"slide_2026-03-02T09-00-00_CST.png",
		"slide_2026-03-02T09-00-40_CST.png",
		"slide_2026-03-02T09-00-40_2_CST.png",
	}
	for i, f := range zr.File {
		if f.Name != want[i] {
			t.Fatalf("file %d = %q, want %q", i, f.Name, want[i])
		}
	}
}

func TestEntriesWithoutSlides(t *testing.T) {
	s := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if _, err := archive.Entries(context.Background(), s, "empty", archive.DefaultNaming()); !errors.Is(err, archive.ErrNoSlides) {
		t.Fatalf("expected ErrNoSlides, got %v", err)
	}
}

func TestNameEntriesSuffixesSameSecond(t *testing.T) {
	at := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)
	entries := []archive.Entry{
		{CapturedAt: at},
		{CapturedAt: at.Add(300 * time.Millisecond)},
		{CapturedAt: at.Add(time.Second)},
		{CapturedAt: at.Add(900 * time.Millisecond)},
	}
	archive.DefaultNaming().NameEntries(entries)

	want := []string{
		"slide_2026-03-02T09-00-00_CST.png",
		"slide_2026-03-02T09-00-00_2_CST.png",
		"slide_2026-03-02T09-00-01_CST.png",
		"slide_2026-03-02T09-00-00_3_CST.png",
	}
	for i, entry := range entries {
		if entry.Name != want[i] {
			t.Fatalf("entry %d name = %q, want %q", i, entry.Name, want[i])
		}
	}
}
