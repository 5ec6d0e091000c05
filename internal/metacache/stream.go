package metacache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"slidekeeper/internal/store"
)

// StreamMeta is the stream description cached by the listing client. On
// disk it keeps the listing API's shape: a numeric or string id (live_id as
// fallback), schedule_started_at/schedule_ended_at and the professor and
// section nested under session.
type StreamMeta struct {
	ID            store.StreamID
	Title         string
	Subtitle      string
	Professor     string
	Section       string
	ScheduleStart time.Time
	ScheduleEnd   time.Time
}

type wireStream struct {
	ID            any          `json:"id,omitempty"`
	LiveID        any          `json:"live_id,omitempty"`
	Title         string       `json:"title,omitempty"`
	Subtitle      string       `json:"subtitle,omitempty"`
	ScheduleStart string       `json:"schedule_started_at,omitempty"`
	ScheduleEnd   string       `json:"schedule_ended_at,omitempty"`
	Session       *wireSession `json:"session,omitempty"`
}

type wireSession struct {
	Professor         *wireProfessor `json:"professor,omitempty"`
	SectionGroupTitle string         `json:"section_group_title,omitempty"`
}

type wireProfessor struct {
	Name string `json:"name,omitempty"`
}

// scheduleLayouts are tried in order; the API has sent both.
var scheduleLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05"}

func parseSchedule(value string) time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range scheduleLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

func formatSchedule(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

// UnmarshalJSON decodes the listing API object. Unknown fields are ignored,
// an id that cannot be normalized is left empty and unparseable schedule
// times stay zero.
func (m *StreamMeta) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var w wireStream
	if err := dec.Decode(&w); err != nil {
		return fmt.Errorf("decode stream metadata: %w", err)
	}

	*m = StreamMeta{
		Title:         w.Title,
		Subtitle:      w.Subtitle,
		ScheduleStart: parseSchedule(w.ScheduleStart),
		ScheduleEnd:   parseSchedule(w.ScheduleEnd),
	}
	for _, raw := range []any{w.ID, w.LiveID} {
		if raw == nil {
			continue
		}
		if id, err := store.NormalizeStreamID(raw); err == nil {
			m.ID = id
			break
		}
	}
	if w.Session != nil {
		m.Section = w.Session.SectionGroupTitle
		if w.Session.Professor != nil {
			m.Professor = w.Session.Professor.Name
		}
	}
	return nil
}

// MarshalJSON writes the listing API shape.
func (m StreamMeta) MarshalJSON() ([]byte, error) {
	w := wireStream{
		Title:         m.Title,
		Subtitle:      m.Subtitle,
		ScheduleStart: formatSchedule(m.ScheduleStart),
		ScheduleEnd:   formatSchedule(m.ScheduleEnd),
	}
	if m.ID != "" {
		w.ID = string(m.ID)
	}
	if m.Professor != "" || m.Section != "" {
		w.Session = &wireSession{SectionGroupTitle: m.Section}
		if m.Professor != "" {
			w.Session.Professor = &wireProfessor{Name: m.Professor}
		}
	}
	return json.Marshal(w)
}

// Record converts the cached metadata into a store record. The location
// falls back to the section title.
func (m StreamMeta) Record() (store.StreamRecord, error) {
	id, err := store.NormalizeStreamID(m.ID)
	if err != nil {
		return store.StreamRecord{}, err
	}
	subtitle := m.Subtitle
	if subtitle == "" {
		subtitle = m.Section
	}
	return store.StreamRecord{
		ID:            id,
		Title:         m.Title,
		Subtitle:      subtitle,
		Professor:     m.Professor,
		ScheduleStart: m.ScheduleStart,
		ScheduleEnd:   m.ScheduleEnd,
	}, nil
}
