package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"slidekeeper/internal/config"
	"slidekeeper/internal/store"
)

// ErrNoSlides is returned when a stream has nothing to export.
var ErrNoSlides = errors.New("no slides available for export")

const stampLayout = "2006-01-02T15:04:05"

// Naming controls how timestamps are rendered into file names.
type Naming struct {
	Offset time.Duration
	Zone   string
}

// DefaultNaming renders China Standard Time.
func DefaultNaming() Naming {
	return Naming{Offset: 8 * time.Hour, Zone: "CST"}
}

// NamingFromConfig reads the [archive] section.
func NamingFromConfig(cfg *config.Config) Naming {
	if cfg == nil {
		return DefaultNaming()
	}
	return Naming{
		Offset: time.Duration(cfg.Archive.UTCOffsetHours) * time.Hour,
		Zone:   cfg.Archive.ZoneSuffix,
	}
}

func (n Naming) stamp(t time.Time) string {
	return strings.ReplaceAll(t.UTC().Add(n.Offset).Format(stampLayout), ":", "-")
}

// SlideFileName names a single downloaded slide.
func (n Naming) SlideFileName(t time.Time) string {
	return "slide_" + n.stamp(t) + "_" + n.Zone + ".png"
}

// ZipName names an archive created at t.
func (n Naming) ZipName(t time.Time) string {
	return "slides_" + n.stamp(t) + "_" + n.Zone + ".zip"
}

// Entry is one file inside the archive.
type Entry struct {
	Name       string
	SlideID    string
	CapturedAt time.Time
	Data       []byte
}

// Source supplies slides with their payloads in capture order.
type Source interface {
	GetSlidesForStream(ctx context.Context, streamID store.StreamID, withImages bool) ([]store.SlideRecord, error)
}

// Entries returns the stream's slides as uniquely named archive entries in
// capture order.
func Entries(ctx context.Context, src Source, streamID store.StreamID, naming Naming) ([]Entry, error) {
	slides, err := src.GetSlidesForStream(ctx, streamID, true)
	if err != nil {
		return nil, fmt.Errorf("load slides: %w", err)
	}
	if len(slides) == 0 {
		return nil, ErrNoSlides
	}

	entries := make([]Entry, 0, len(slides))
	for _, slide := range slides {
		entries = append(entries, Entry{
			SlideID:    slide.ID,
			CapturedAt: slide.CapturedAt,
			Data:       slide.Image,
		})
	}
	naming.NameEntries(entries)
	return entries, nil
}

// NameEntries fills in Name for each entry in order. Slides captured in the
// same second get a numeric suffix starting at _2.
func (n Naming) NameEntries(entries []Entry) {
	seen := make(map[string]int, len(entries))
	for i := range entries {
		stamp := n.stamp(entries[i].CapturedAt)
		seen[stamp]++
		name := "slide_" + stamp
		if count := seen[stamp]; count > 1 {
			name += "_" + strconv.Itoa(count)
		}
		entries[i].Name = name + "_" + n.Zone + ".png"
	}
}

// WriteZip writes entries to w. PNG payloads are already compressed so they
// are stored as-is.
func WriteZip(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	for _, entry := range entries {
		header := &zip.FileHeader{
			Name:     entry.Name,
			Method:   zip.Store,
			Modified: entry.CapturedAt,
		}
		fw, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("create zip entry %s: %w", entry.Name, err)
		}
		if _, err := fw.Write(entry.Data); err != nil {
			return fmt.Errorf("write zip entry %s: %w", entry.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

// Export writes the stream's archive to w and returns the entry count.
func Export(ctx context.Context, src Source, streamID store.StreamID, naming Naming, w io.Writer) (int, error) {
	entries, err := Entries(ctx, src, streamID, naming)
	if err != nil {
		return 0, err
	}
	if err := WriteZip(w, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}
