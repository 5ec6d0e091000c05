package metacache

import "time"

// SetLockWait shortens the lock wait for tests.
func SetLockWait(c *Cache, d time.Duration) { c.wait = d }
