package memcache

import (
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"slidekeeper/internal/device"
	"slidekeeper/internal/logging"
)

// Preview is one cached thumbnail.
type Preview struct {
	SlideID string
	DataURL string
	// Index is the 1-based position of the slide within its stream.
	Index int
}

// Cache is safe for concurrent use.
type Cache struct {
	mu        sync.Mutex
	entries   *lru.Cache[string, Preview]
	capacity  int
	probe     device.MemoryProbe
	threshold float64
	logger    *slog.Logger
	evicted   int
	purges    int
}

// New builds a cache holding at most capacity previews. A nil probe
// disables pressure purging.
func New(capacity int, probe device.MemoryProbe, threshold float64, logger *slog.Logger) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	c := &Cache{
		capacity:  capacity,
		probe:     probe,
		threshold: threshold,
		logger:    logging.NewComponentLogger(logger, "memcache"),
	}
	// Size is positive so the constructor cannot fail.
	c.entries, _ = lru.NewWithEvict(capacity, func(string, Preview) { c.evicted++ })
	return c
}

// ForProfile sizes the cache from a device profile.
func ForProfile(profile device.Profile, probe device.MemoryProbe, logger *slog.Logger) *Cache {
	return New(profile.MaxMemorySlides, probe, profile.MemoryPressurePercent, logger)
}

// Add inserts or refreshes p and then enforces the memory policy. It reports
// whether the cache was purged because of memory pressure.
func (c *Cache) Add(p Preview) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(p.SlideID, p)
	return c.purgeIfPressureLocked()
}

// Get returns the preview and marks it recently used.
func (c *Cache) Get(slideID string) (Preview, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Get(slideID)
}

// Contains checks for slideID without touching recency.
func (c *Cache) Contains(slideID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Contains(slideID)
}

// Remove drops one preview.
func (c *Cache) Remove(slideID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(slideID)
}

// Previews returns the cached previews from least to most recently used.
func (c *Cache) Previews() []Preview {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Values()
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

func (c *Cache) Capacity() int { return c.capacity }

// Purge empties the cache.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeLocked()
}

// PurgeIfPressure empties the cache when memory usage is above threshold.
func (c *Cache) PurgeIfPressure() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeIfPressureLocked()
}

// Evictions returns how many previews were dropped for capacity.
func (c *Cache) Evictions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evicted
}

// PressurePurges returns how many times the cache was dropped for memory
// pressure.
func (c *Cache) PressurePurges() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purges
}

func (c *Cache) purgeIfPressureLocked() bool {
	if !device.IsMemoryUsageHigh(c.probe, c.threshold) {
		return false
	}
	dropped := c.entries.Len()
	c.purgeLocked()
	c.purges++
	c.logger.Info("memory usage high, cleared preview cache",
		logging.Int("previews", dropped),
		logging.Float64("threshold_percent", c.threshold),
		logging.String(logging.FieldEventType, "preview_cache_purged"),
	)
	return true
}

// purgeLocked clears entries without counting them as capacity evictions.
func (c *Cache) purgeLocked() {
	before := c.evicted
	c.entries.Purge()
	c.evicted = before
}
