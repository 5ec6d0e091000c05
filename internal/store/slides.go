package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"slidekeeper/internal/logging"
	"slidekeeper/internal/thumbnail"
)

// newSlideID returns slide_<stream>_<unix ms>_<9 random chars>.
func newSlideID(stream StreamID, ms int64) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return "slide_" + string(stream) + "_" + strconv.FormatInt(ms, 10) + "_" + suffix
}

// SaveSlide atomically stores a slide, derives and stores its thumbnail, and
// bumps the owning stream's counter and access time. A stream row is created
// on the fly when the stream was never upserted. Either every write lands or
// none does.
func (s *Store) SaveSlide(ctx context.Context, streamID StreamID, meta SlideMeta, image []byte) (string, error) {
	id, err := NormalizeStreamID(streamID)
	if err != nil {
		return "", err
	}
	if len(image) == 0 {
		return "", errors.New("save slide: empty image payload")
	}
	preview := meta.Preview
	if preview == "" {
		thumb, err := thumbnail.FromPayload(image, s.thumbOpts)
		if err != nil {
			return "", fmt.Errorf("save slide: %w", err)
		}
		preview = thumb.DataURL
	}

	now := s.now()
	capturedAt := meta.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = now
	}
	capturedMS := unixMilli(capturedAt)
	slideID := newSlideID(id, unixMilli(now))
	nowText := formatTime(now)

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO streams (id, slide_count, first_saved, last_accessed)
			VALUES (?, 0, ?, ?)
			ON CONFLICT(id) DO NOTHING`,
			string(id), nowText, nowText,
		); err != nil {
			return fmt.Errorf("ensure stream: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO slides (id, stream_id, title, captured_at_ms, width, height, size, image)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			slideID, string(id), meta.Title, capturedMS, meta.Width, meta.Height, len(image), image,
		); err != nil {
			return fmt.Errorf("insert slide: %w", err)
		}
		if s.afterSlideInsert != nil {
			if err := s.afterSlideInsert(); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO thumbnails (slide_id, stream_id, data_url, captured_at_ms)
			VALUES (?, ?, ?, ?)`,
			slideID, string(id), preview, capturedMS,
		); err != nil {
			return fmt.Errorf("insert thumbnail: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE streams SET slide_count = slide_count + 1, last_accessed = ? WHERE id = ?",
			nowText, string(id),
		); err != nil {
			return fmt.Errorf("bump slide count: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	s.logger.Debug("slide saved",
		logging.String(logging.FieldStreamID, string(id)),
		logging.String(logging.FieldSlideID, slideID),
		logging.Int("bytes", len(image)),
	)
	return slideID, nil
}

// GetThumbnailsForStream returns previews ordered by capture time ascending.
func (s *Store) GetThumbnailsForStream(ctx context.Context, streamID StreamID) ([]ThumbnailRecord, error) {
	id, err := NormalizeStreamID(streamID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), `
		SELECT slide_id, stream_id, data_url, captured_at_ms
		FROM thumbnails
		WHERE stream_id = ?
		ORDER BY captured_at_ms ASC, rowid ASC`, string(id))
	if err != nil {
		return nil, fmt.Errorf("list thumbnails: %w", err)
	}
	defer rows.Close()

	var thumbs []ThumbnailRecord
	for rows.Next() {
		var (
			rec      ThumbnailRecord
			owner    string
			captured int64
		)
		if err := rows.Scan(&rec.SlideID, &owner, &rec.DataURL, &captured); err != nil {
			return nil, fmt.Errorf("scan thumbnail: %w", err)
		}
		rec.StreamID = StreamID(owner)
		rec.CapturedAt = fromUnixMilli(captured)
		thumbs = append(thumbs, rec)
	}
	return thumbs, rows.Err()
}

// GetSlideImage returns the full-resolution payload, or nil when the slide
// does not exist.
func (s *Store) GetSlideImage(ctx context.Context, slideID string) ([]byte, error) {
	var image []byte
	err := s.db.QueryRowContext(ensureContext(ctx), "SELECT image FROM slides WHERE id = ?", slideID).Scan(&image)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get slide image: %w", err)
	}
	return image, nil
}

// GetSlide returns one slide's metadata without its payload.
func (s *Store) GetSlide(ctx context.Context, slideID string) (SlideRecord, error) {
	var (
		rec      SlideRecord
		owner    string
		captured int64
	)
	err := s.db.QueryRowContext(ensureContext(ctx), `
		SELECT id, stream_id, title, captured_at_ms, width, height, size
		FROM slides
		WHERE id = ?`, slideID,
	).Scan(&rec.ID, &owner, &rec.Title, &captured, &rec.Width, &rec.Height, &rec.Size)
	if errors.Is(err, sql.ErrNoRows) {
		return SlideRecord{}, fmt.Errorf("%w: %s", ErrSlideNotFound, slideID)
	}
	if err != nil {
		return SlideRecord{}, fmt.Errorf("get slide: %w", err)
	}
	rec.StreamID = StreamID(owner)
	rec.CapturedAt = fromUnixMilli(captured)
	return rec, nil
}

// GetSlidesForStream returns slide metadata ordered by capture time. When
// withImages is set the payloads are loaded as well.
func (s *Store) GetSlidesForStream(ctx context.Context, streamID StreamID, withImages bool) ([]SlideRecord, error) {
	id, err := NormalizeStreamID(streamID)
	if err != nil {
		return nil, err
	}
	imageColumn := "NULL"
	if withImages {
		imageColumn = "image"
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), `
		SELECT id, stream_id, title, captured_at_ms, width, height, size, `+imageColumn+`
		FROM slides
		WHERE stream_id = ?
		ORDER BY captured_at_ms ASC, rowid ASC`, string(id))
	if err != nil {
		return nil, fmt.Errorf("list slides: %w", err)
	}
	defer rows.Close()

	var slides []SlideRecord
	for rows.Next() {
		var (
			rec      SlideRecord
			owner    string
			captured int64
		)
		if err := rows.Scan(&rec.ID, &owner, &rec.Title, &captured, &rec.Width, &rec.Height, &rec.Size, &rec.Image); err != nil {
			return nil, fmt.Errorf("scan slide: %w", err)
		}
		rec.StreamID = StreamID(owner)
		rec.CapturedAt = fromUnixMilli(captured)
		slides = append(slides, rec)
	}
	return slides, rows.Err()
}

// CountSlides returns the number of slide rows for a stream.
func (s *Store) CountSlides(ctx context.Context, streamID StreamID) (int, error) {
	id, err := NormalizeStreamID(streamID)
	if err != nil {
		return 0, err
	}
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT COUNT(1) FROM slides WHERE stream_id = ?", string(id),
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count slides: %w", err)
	}
	return count, nil
}

// DeleteSlide removes one slide with its thumbnail and decrements the
// owning stream's counter.
func (s *Store) DeleteSlide(ctx context.Context, slideID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var streamID string
		err := tx.QueryRowContext(ctx, "SELECT stream_id FROM slides WHERE id = ?", slideID).Scan(&streamID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrSlideNotFound, slideID)
		}
		if err != nil {
			return fmt.Errorf("lookup slide: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM thumbnails WHERE slide_id = ?", slideID); err != nil {
			return fmt.Errorf("delete thumbnail: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM slides WHERE id = ?", slideID); err != nil {
			return fmt.Errorf("delete slide: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE streams SET slide_count = MAX(slide_count - 1, 0), last_accessed = ? WHERE id = ?",
			formatTime(s.now()), streamID,
		); err != nil {
			return fmt.Errorf("decrement slide count: %w", err)
		}
		return nil
	})
}
