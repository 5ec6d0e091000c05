package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"slidekeeper/internal/logging"
)

// MetadataKeyPrefix marks externally cached stream metadata entries.
const MetadataKeyPrefix = "stream_"

// PreservedMetadataKeys are user preferences that live beside the stream
// metadata cache and must survive ClearAll.
var PreservedMetadataKeys = []string{"language", "hasVisited", "token", "auth"}

// ClearAll wipes every collection in one transaction and returns the purge
// instructions for the external metadata cache.
func (s *Store) ClearAll(ctx context.Context) (PurgeDirective, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, kind := range AllKinds {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+kind.table()); err != nil {
				return fmt.Errorf("clear %s records: %w", kind, err)
			}
		}
		return nil
	})
	if err != nil {
		return PurgeDirective{}, err
	}
	s.logger.Info("all slide data cleared", logging.String(logging.FieldEventType, "store_cleared"))
	return PurgeDirective{
		KeyPrefix: MetadataKeyPrefix,
		Preserve:  append([]string(nil), PreservedMetadataKeys...),
	}, nil
}

// RepairSlideCounts recomputes every stream's counter from its slide rows and
// returns how many streams were corrected. Running it again returns zero.
func (s *Store) RepairSlideCounts(ctx context.Context) (int, error) {
	var fixed int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE streams
			SET slide_count = (SELECT COUNT(1) FROM slides WHERE slides.stream_id = streams.id)
			WHERE slide_count != (SELECT COUNT(1) FROM slides WHERE slides.stream_id = streams.id)`)
		if err != nil {
			return fmt.Errorf("repair slide counts: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("repair slide counts: %w", err)
		}
		fixed = int(n)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if fixed > 0 {
		s.logger.Info("slide counts repaired",
			logging.Int("streams", fixed),
			logging.String(logging.FieldEventType, "slide_counts_repaired"),
		)
	}
	return fixed, nil
}

// Stats reports totals across all streams that own slides.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT COUNT(DISTINCT stream_id), COUNT(1), COALESCE(SUM(size), 0) FROM slides",
	).Scan(&stats.TotalStreams, &stats.TotalSlides, &stats.TotalSize)
	if err != nil {
		return Stats{}, fmt.Errorf("storage stats: %w", err)
	}
	stats.FormattedSize = FormatFileSize(stats.TotalSize)
	return stats, nil
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders bytes in binary units with at most two decimals,
// dropping trailing zeros: 0 Bytes, 512 Bytes, 1.5 KB, 2 MB.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	value := float64(bytes)
	unit := 0
	for value >= 1024 && unit < len(sizeUnits)-1 {
		value /= 1024
		unit++
	}
	rounded := math.Round(value*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + sizeUnits[unit]
}

// CheckHealth returns diagnostic information about the slide database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("slide database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat slide database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("slide database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping slide database: %w", err)
	}
	health.DatabaseReadable = true

	version, err := readUserVersion(connCtx, s.db)
	if err != nil {
		health.Error = err.Error()
		return health, err
	}
	health.SchemaVersion = version

	for _, kind := range AllKinds {
		var name string
		err := s.db.QueryRowContext(connCtx,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", kind.table(),
		).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			health.MissingTables = append(health.MissingTables, kind.table())
			continue
		}
		if err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("query table info: %w", err)
		}
	}

	var integrity string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrity, "ok")
	return health, nil
}
