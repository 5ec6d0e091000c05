package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StreamID is the canonical stream identifier. Numeric identifiers from
// upstream APIs are rendered in base 10 so 42 and "42" name the same stream.
type StreamID string

// NormalizeStreamID converts an identifier received from a collaborator into
// its canonical form.
func NormalizeStreamID(v any) (StreamID, error) {
	var raw string
	switch id := v.(type) {
	case StreamID:
		raw = string(id)
	case string:
		raw = id
	case int:
		raw = strconv.Itoa(id)
	case int64:
		raw = strconv.FormatInt(id, 10)
	case uint64:
		raw = strconv.FormatUint(id, 10)
	case float64:
		if id != float64(int64(id)) {
			return "", fmt.Errorf("%w: non-integer %v", ErrInvalidStreamID, id)
		}
		raw = strconv.FormatInt(int64(id), 10)
	case json.Number:
		raw = id.String()
	case fmt.Stringer:
		raw = id.String()
	default:
		return "", fmt.Errorf("%w: unsupported type %T", ErrInvalidStreamID, v)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidStreamID
	}
	return StreamID(raw), nil
}

// ParseStreamID is NormalizeStreamID for string input.
func ParseStreamID(s string) (StreamID, error) {
	return NormalizeStreamID(s)
}

func (id StreamID) String() string { return string(id) }

// Kind tags the four record collections.
type Kind int

const (
	KindStream Kind = iota
	KindSlide
	KindThumbnail
	KindSession
)

// AllKinds lists every collection, children before parents.
var AllKinds = []Kind{KindThumbnail, KindSlide, KindSession, KindStream}

func (k Kind) String() string {
	switch k {
	case KindStream:
		return "stream"
	case KindSlide:
		return "slide"
	case KindThumbnail:
		return "thumbnail"
	case KindSession:
		return "session"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// table returns the SQLite table backing k.
func (k Kind) table() string {
	switch k {
	case KindStream:
		return "streams"
	case KindSlide:
		return "slides"
	case KindThumbnail:
		return "thumbnails"
	case KindSession:
		return "sessions"
	default:
		panic(fmt.Sprintf("store: unknown record kind %d", int(k)))
	}
}

// streamColumn returns the column holding the owning stream id.
func (k Kind) streamColumn() string {
	switch k {
	case KindStream:
		return "id"
	case KindSlide, KindThumbnail, KindSession:
		return "stream_id"
	default:
		panic(fmt.Sprintf("store: unknown record kind %d", int(k)))
	}
}

// StreamRecord describes one course or live session.
type StreamRecord struct {
	ID            StreamID
	Title         string
	Subtitle      string
	Professor     string
	ScheduleStart time.Time
	ScheduleEnd   time.Time
	SlideCount    int
	FirstSaved    time.Time
	LastAccessed  time.Time
}

// SlideMeta is the caller-supplied part of a slide.
type SlideMeta struct {
	Title      string
	CapturedAt time.Time
	Width      int
	Height     int
	// Preview is a thumbnail data URL the caller already derived. When
	// empty, SaveSlide derives one from the payload.
	Preview string
}

// SlideRecord is one committed slide.
type SlideRecord struct {
	ID         string
	StreamID   StreamID
	Title      string
	CapturedAt time.Time
	Width      int
	Height     int
	Size       int64
	// Image is only populated by calls that load full payloads.
	Image []byte
}

// ThumbnailRecord is the preview stored beside a slide.
type ThumbnailRecord struct {
	SlideID    string
	StreamID   StreamID
	DataURL    string
	CapturedAt time.Time
}

// ExtractionSettings are the user-adjustable extraction values.
type ExtractionSettings struct {
	CheckIntervalMS          int  `json:"checkInterval"`
	EnableDoubleVerification bool `json:"enableDoubleVerification"`
	VerificationCount        int  `json:"verificationCount"`
}

// SessionState is the per-stream recovery record.
type SessionState struct {
	StreamID          StreamID
	LastAccess        time.Time
	IsExtracting      bool
	Settings          ExtractionSettings
	CurrentSlideCount int
}

// SessionPatch lists the fields to overwrite. Nil fields keep their value.
type SessionPatch struct {
	IsExtracting      *bool
	Settings          *ExtractionSettings
	CurrentSlideCount *int
}

// Stats summarizes storage use.
type Stats struct {
	TotalStreams  int
	TotalSlides   int
	TotalSize     int64
	FormattedSize string
}

// PurgeDirective tells the caller which external metadata cache keys to drop
// after ClearAll.
type PurgeDirective struct {
	KeyPrefix string
	Preserve  []string
}

// ShouldPurge reports whether key must be removed.
func (p PurgeDirective) ShouldPurge(key string) bool {
	for _, keep := range p.Preserve {
		if key == keep {
			return false
		}
	}
	return strings.HasPrefix(key, p.KeyPrefix)
}

// DatabaseHealth captures diagnostic information about the slide database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	MissingTables    []string
	IntegrityCheck   bool
	Error            string
}
