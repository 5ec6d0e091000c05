package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"slidekeeper/internal/config"
	"slidekeeper/internal/logging"
	"slidekeeper/internal/thumbnail"
)

// Store manages slide persistence backed by SQLite.
type Store struct {
	db        *sql.DB
	path      string
	logger    *slog.Logger
	thumbOpts thumbnail.Options
	now       func() time.Time

	// afterSlideInsert runs inside SaveSlide's transaction once the slide row
	// is written. A non-nil error aborts the transaction.
	afterSlideInsert func() error
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logging.NewComponentLogger(logger, "store") }
}

// WithThumbnailOptions sets preview size and quality.
func WithThumbnailOptions(opts thumbnail.Options) Option {
	return func(s *Store) { s.thumbOpts = opts }
}

// WithClock overrides the time source used for access timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// busyBackoff is the wait before each retry of a transaction that found the
// database locked.
var busyBackoff = []time.Duration{
	10 * time.Millisecond,
	20 * time.Millisecond,
	40 * time.Millisecond,
	80 * time.Millisecond,
	160 * time.Millisecond,
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// isBusy reports whether err is SQLITE_BUSY or SQLITE_LOCKED, including
// extended result codes.
func isBusy(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

// withTx runs fn in one transaction. The whole transaction is retried while
// SQLite reports the database busy.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	ctx = ensureContext(ctx)
	attempt := func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	}

	err := attempt()
	for _, wait := range busyBackoff {
		if !isBusy(err) {
			return err
		}
		s.logger.Debug("database busy, retrying", logging.Duration("wait", wait))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		err = attempt()
	}
	return err
}

// Open initializes or connects to the slide database under cfg's data dir.
func Open(cfg *config.Config, opts ...Option) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath(), opts...)
}

// OpenPath opens the database file at path.
func OpenPath(path string, opts ...Option) (*Store, error) {
	// Pragmas go in the DSN so every pooled connection enforces foreign keys.
	dsn := "file:" + path +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := &Store{
		db:        db,
		path:      path,
		logger:    logging.NewComponentLogger(nil, "store"),
		thumbOpts: thumbnail.DefaultOptions(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
