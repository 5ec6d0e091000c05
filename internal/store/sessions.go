package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// GetSessionState returns the stored session for a stream. found is false
// when none exists.
func (s *Store) GetSessionState(ctx context.Context, streamID StreamID) (SessionState, bool, error) {
	return s.GetOrSetSessionState(ctx, streamID, nil)
}

// GetOrSetSessionState reads the session for a stream and, when patch is
// non-nil, merges patch into it and writes the result with a fresh access
// time. Concurrent writers are last-writer-wins.
func (s *Store) GetOrSetSessionState(ctx context.Context, streamID StreamID, patch *SessionPatch) (SessionState, bool, error) {
	id, err := NormalizeStreamID(streamID)
	if err != nil {
		return SessionState{}, false, err
	}

	var (
		state SessionState
		found bool
	)
	load := func(q interface {
		QueryRowContext(context.Context, string, ...any) *sql.Row
	}) error {
		var (
			lastAccess   sql.NullString
			isExtracting int
			settingsJSON string
		)
		err := q.QueryRowContext(ctx, `
			SELECT last_access, is_extracting, settings_json, current_slide_count
			FROM sessions WHERE stream_id = ?`, string(id),
		).Scan(&lastAccess, &isExtracting, &settingsJSON, &state.CurrentSlideCount)
		if errors.Is(err, sql.ErrNoRows) {
			state = SessionState{StreamID: id}
			found = false
			return nil
		}
		if err != nil {
			return fmt.Errorf("read session: %w", err)
		}
		state.StreamID = id
		state.LastAccess = parseNullTime(lastAccess)
		state.IsExtracting = isExtracting != 0
		if settingsJSON != "" {
			if err := json.Unmarshal([]byte(settingsJSON), &state.Settings); err != nil {
				return fmt.Errorf("decode session settings: %w", err)
			}
		}
		found = true
		return nil
	}

	if patch == nil {
		if err := load(s.db); err != nil {
			return SessionState{}, false, err
		}
		return state, found, nil
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := load(tx); err != nil {
			return err
		}
		if patch.IsExtracting != nil {
			state.IsExtracting = *patch.IsExtracting
		}
		if patch.Settings != nil {
			state.Settings = *patch.Settings
		}
		if patch.CurrentSlideCount != nil {
			state.CurrentSlideCount = *patch.CurrentSlideCount
		}
		state.LastAccess = s.now().UTC()

		encoded, err := json.Marshal(state.Settings)
		if err != nil {
			return fmt.Errorf("encode session settings: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (stream_id, last_access, is_extracting, settings_json, current_slide_count)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(stream_id) DO UPDATE SET
				last_access = excluded.last_access,
				is_extracting = excluded.is_extracting,
				settings_json = excluded.settings_json,
				current_slide_count = excluded.current_slide_count`,
			string(id), formatTime(state.LastAccess), boolToInt(state.IsExtracting), string(encoded), state.CurrentSlideCount,
		); err != nil {
			return fmt.Errorf("write session: %w", err)
		}
		return nil
	})
	if err != nil {
		return SessionState{}, false, err
	}
	return state, true, nil
}
