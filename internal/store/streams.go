package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"slidekeeper/internal/logging"
)

const streamColumns = "id, title, subtitle, professor, schedule_start, schedule_end, slide_count, first_saved, last_accessed"

func scanStream(scanner interface{ Scan(dest ...any) error }) (StreamRecord, error) {
	var (
		id            string
		title         sql.NullString
		subtitle      sql.NullString
		professor     sql.NullString
		scheduleStart sql.NullString
		scheduleEnd   sql.NullString
		slideCount    int
		firstSaved    sql.NullString
		lastAccessed  sql.NullString
	)
	if err := scanner.Scan(&id, &title, &subtitle, &professor, &scheduleStart, &scheduleEnd, &slideCount, &firstSaved, &lastAccessed); err != nil {
		return StreamRecord{}, err
	}
	return StreamRecord{
		ID:            StreamID(id),
		Title:         title.String,
		Subtitle:      subtitle.String,
		Professor:     professor.String,
		ScheduleStart: parseNullTime(scheduleStart),
		ScheduleEnd:   parseNullTime(scheduleEnd),
		SlideCount:    slideCount,
		FirstSaved:    parseNullTime(firstSaved),
		LastAccessed:  parseNullTime(lastAccessed),
	}, nil
}

// UpsertStream inserts rec or merges it into the existing row. Empty
// descriptive fields keep their stored value. The slide counter is never
// taken from rec and last-accessed is always refreshed.
func (s *Store) UpsertStream(ctx context.Context, rec StreamRecord) (StreamRecord, error) {
	id, err := NormalizeStreamID(rec.ID)
	if err != nil {
		return StreamRecord{}, err
	}
	now := formatTime(s.now())
	firstSaved := now
	if !rec.FirstSaved.IsZero() {
		firstSaved = formatTime(rec.FirstSaved)
	}

	var out StreamRecord
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO streams (id, title, subtitle, professor, schedule_start, schedule_end, slide_count, first_saved, last_accessed)
			VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = COALESCE(excluded.title, streams.title),
				subtitle = COALESCE(excluded.subtitle, streams.subtitle),
				professor = COALESCE(excluded.professor, streams.professor),
				schedule_start = COALESCE(excluded.schedule_start, streams.schedule_start),
				schedule_end = COALESCE(excluded.schedule_end, streams.schedule_end),
				last_accessed = excluded.last_accessed`,
			string(id),
			nullableString(rec.Title),
			nullableString(rec.Subtitle),
			nullableString(rec.Professor),
			nullableTime(rec.ScheduleStart),
			nullableTime(rec.ScheduleEnd),
			firstSaved,
			now,
		); err != nil {
			return fmt.Errorf("upsert stream: %w", err)
		}
		row := tx.QueryRowContext(ctx, "SELECT "+streamColumns+" FROM streams WHERE id = ?", string(id))
		out, err = scanStream(row)
		if err != nil {
			return fmt.Errorf("reload stream: %w", err)
		}
		return nil
	})
	if err != nil {
		return StreamRecord{}, err
	}
	return out, nil
}

// GetStream returns the stream or ErrStreamNotFound.
func (s *Store) GetStream(ctx context.Context, id StreamID) (StreamRecord, error) {
	id, err := NormalizeStreamID(id)
	if err != nil {
		return StreamRecord{}, err
	}
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+streamColumns+" FROM streams WHERE id = ?", string(id))
	rec, err := scanStream(row)
	if errors.Is(err, sql.ErrNoRows) {
		return StreamRecord{}, fmt.Errorf("%w: %s", ErrStreamNotFound, id)
	}
	if err != nil {
		return StreamRecord{}, fmt.Errorf("get stream: %w", err)
	}
	return rec, nil
}

// ListStreams returns every stream, most recently accessed first.
func (s *Store) ListStreams(ctx context.Context) ([]StreamRecord, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT "+streamColumns+" FROM streams")
	if err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}
	defer rows.Close()

	var streams []StreamRecord
	for rows.Next() {
		rec, err := scanStream(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stream: %w", err)
		}
		streams = append(streams, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortByRecency(streams)
	return streams, nil
}

// ListStreamsWithSlides returns streams that own at least one slide. Counts
// come from the slide rows rather than the stored counter.
func (s *Store) ListStreamsWithSlides(ctx context.Context) ([]StreamRecord, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `
		SELECT s.id, s.title, s.subtitle, s.professor, s.schedule_start, s.schedule_end,
		       COUNT(sl.id), s.first_saved, s.last_accessed
		FROM streams s
		JOIN slides sl ON sl.stream_id = s.id
		GROUP BY s.id
		HAVING COUNT(sl.id) > 0`)
	if err != nil {
		return nil, fmt.Errorf("list streams with slides: %w", err)
	}
	defer rows.Close()

	var streams []StreamRecord
	for rows.Next() {
		rec, err := scanStream(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stream: %w", err)
		}
		streams = append(streams, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortByRecency(streams)
	return streams, nil
}

func sortByRecency(streams []StreamRecord) {
	key := func(rec StreamRecord) int64 {
		if !rec.LastAccessed.IsZero() {
			return rec.LastAccessed.UnixNano()
		}
		if !rec.FirstSaved.IsZero() {
			return rec.FirstSaved.UnixNano()
		}
		return 0
	}
	sort.SliceStable(streams, func(i, j int) bool {
		return key(streams[i]) > key(streams[j])
	})
}

// DeleteStreamSlides removes every slide and thumbnail of a stream and resets
// its counter. The stream row and session state are kept.
func (s *Store) DeleteStreamSlides(ctx context.Context, id StreamID) (int, error) {
	id, err := NormalizeStreamID(id)
	if err != nil {
		return 0, err
	}
	var removed int
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM thumbnails WHERE stream_id = ?", string(id)); err != nil {
			return fmt.Errorf("delete thumbnails: %w", err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM slides WHERE stream_id = ?", string(id))
		if err != nil {
			return fmt.Errorf("delete slides: %w", err)
		}
		n, _ := res.RowsAffected()
		removed = int(n)
		if _, err := tx.ExecContext(ctx,
			"UPDATE streams SET slide_count = 0, last_accessed = ? WHERE id = ?",
			formatTime(s.now()), string(id),
		); err != nil {
			return fmt.Errorf("reset slide count: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("stream slides deleted",
		logging.String(logging.FieldStreamID, string(id)),
		logging.Int("slides", removed),
		logging.String(logging.FieldEventType, "stream_slides_deleted"),
	)
	return removed, nil
}

// DeleteStream removes a stream with all of its slides, thumbnails and
// session state. Deleting an unknown stream is not an error.
func (s *Store) DeleteStream(ctx context.Context, id StreamID) error {
	id, err := NormalizeStreamID(id)
	if err != nil {
		return err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		for _, kind := range AllKinds {
			query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", kind.table(), kind.streamColumn())
			if _, err := tx.ExecContext(ctx, query, string(id)); err != nil {
				return fmt.Errorf("delete %s records: %w", kind, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("stream deleted",
		logging.String(logging.FieldStreamID, string(id)),
		logging.String(logging.FieldEventType, "stream_deleted"),
	)
	return nil
}
