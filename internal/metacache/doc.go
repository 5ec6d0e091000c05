// Package metacache is the file-backed key/value cache that sits beside the
// slide database.
//
// It holds stream metadata under "stream_<id>" keys alongside user
// preferences such as language. Writers take an exclusive file lock so the
// CLI and a running extraction never interleave writes. Store.ClearAll
// returns a purge directive that Apply uses to drop stream metadata while
// keeping preferences.
package metacache
