// Package store persists streams, slides, thumbnails and session state in
// SQLite.
//
// Every mutation runs inside its own transaction so overlapping extraction
// ticks never observe a slide without its thumbnail or a stream whose
// counter disagrees with a half-written save. Stream identifiers are
// canonicalized into StreamID at the API boundary and compared as strings
// everywhere below it.
//
// The schema version lives in PRAGMA user_version. Opening a database with a
// different version fails with ErrSchemaMismatch; there are no migrations.
package store
