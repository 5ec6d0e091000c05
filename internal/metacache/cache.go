package metacache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"slidekeeper/internal/logging"
	"slidekeeper/internal/store"
)

// ErrLocked is returned when another process holds the cache lock past the
// wait budget.
var ErrLocked = errors.New("metadata cache is locked by another process")

const (
	lockRetryDelay = 25 * time.Millisecond
	lockWait       = 2 * time.Second
)

// StreamKey returns the cache key for a stream's metadata.
func StreamKey(id store.StreamID) string {
	return store.MetadataKeyPrefix + string(id)
}

// Cache is a JSON object on disk. Every operation rereads the file under the
// lock so concurrent processes observe each other's writes.
type Cache struct {
	path   string
	lock   *flock.Flock
	wait   time.Duration
	logger *slog.Logger
	mu     sync.Mutex
}

// New opens the cache at path. The file is created on first write.
func New(path string, logger *slog.Logger) *Cache {
	return &Cache{
		path:   path,
		lock:   flock.New(path + ".lock"),
		wait:   lockWait,
		logger: logging.NewComponentLogger(logger, "metacache"),
	}
}

func (c *Cache) Path() string { return c.path }

// Get decodes the value stored under key into out.
func (c *Cache) Get(ctx context.Context, key string, out any) (bool, error) {
	var raw json.RawMessage
	err := c.withLock(ctx, func(entries map[string]json.RawMessage) (bool, error) {
		raw = entries[key]
		return false, nil
	})
	if err != nil || raw == nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// Set stores value under key.
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("metadata key cannot be empty")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return c.withLock(ctx, func(entries map[string]json.RawMessage) (bool, error) {
		entries[key] = raw
		return true, nil
	})
}

// Delete removes key. Missing keys are ignored.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.withLock(ctx, func(entries map[string]json.RawMessage) (bool, error) {
		if _, ok := entries[key]; !ok {
			return false, nil
		}
		delete(entries, key)
		return true, nil
	})
}

// Keys returns every key in sorted order.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := c.withLock(ctx, func(entries map[string]json.RawMessage) (bool, error) {
		for key := range entries {
			keys = append(keys, key)
		}
		return false, nil
	})
	sort.Strings(keys)
	return keys, err
}

// PutStream caches stream metadata.
func (c *Cache) PutStream(ctx context.Context, meta StreamMeta) error {
	id, err := store.NormalizeStreamID(meta.ID)
	if err != nil {
		return err
	}
	meta.ID = id
	return c.Set(ctx, StreamKey(id), meta)
}

// Stream returns cached metadata for id.
func (c *Cache) Stream(ctx context.Context, id store.StreamID) (StreamMeta, bool, error) {
	var meta StreamMeta
	found, err := c.Get(ctx, StreamKey(id), &meta)
	return meta, found, err
}

// Apply removes every key the directive marks for purging and returns how
// many were removed.
func (c *Cache) Apply(ctx context.Context, directive store.PurgeDirective) (int, error) {
	var removed int
	err := c.withLock(ctx, func(entries map[string]json.RawMessage) (bool, error) {
		for key := range entries {
			if directive.ShouldPurge(key) {
				delete(entries, key)
				removed++
			}
		}
		return removed > 0, nil
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		c.logger.Info("stream metadata purged",
			logging.Int("keys", removed),
			logging.String(logging.FieldEventType, "metadata_purged"),
		)
	}
	return removed, nil
}

// withLock loads the file under the cross-process lock, runs fn, and saves
// when fn reports a change.
func (c *Cache) withLock(ctx context.Context, fn func(map[string]json.RawMessage) (bool, error)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	lockCtx, cancel := context.WithTimeout(ctx, c.wait)
	defer cancel()
	ok, err := c.lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("acquire cache lock: %w", err)
	}
	if !ok {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return ErrLocked
	}
	defer func() {
		if err := c.lock.Unlock(); err != nil {
			c.logger.Warn("failed to release metadata cache lock", logging.Error(err))
		}
	}()

	entries, err := c.load()
	if err != nil {
		return err
	}
	changed, err := fn(entries)
	if err != nil || !changed {
		return err
	}
	return c.save(entries)
}

func (c *Cache) load() (map[string]json.RawMessage, error) {
	entries := make(map[string]json.RawMessage)
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entries, nil
		}
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		c.logger.Warn("metadata cache unreadable, starting empty",
			logging.Error(err),
			logging.String(logging.FieldEventType, "metadata_cache_corrupt"),
			logging.String(logging.FieldErrorHint, "delete "+c.path+" if this repeats"),
			logging.String(logging.FieldImpact, "cached stream titles will be refetched"),
		)
		return make(map[string]json.RawMessage), nil
	}
	return entries, nil
}

// save writes the cache atomically via a temp file.
func (c *Cache) save(entries map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
