// Package memcache keeps a bounded, recency-ordered set of slide previews in
// memory.
//
// Capacity comes from the device profile. Adding past capacity evicts the
// least recently used preview, and the whole cache is dropped when the
// memory probe reports usage above the profile's pressure threshold.
package memcache
