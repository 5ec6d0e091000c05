package store

import "errors"

var (
	// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
	ErrSchemaMismatch = errors.New("schema version mismatch")
	// ErrStreamNotFound is returned when an operation names an unknown stream.
	ErrStreamNotFound = errors.New("stream not found")
	// ErrInvalidStreamID is returned for empty or unrepresentable identifiers.
	ErrInvalidStreamID = errors.New("invalid stream id")
	// ErrSlideNotFound is returned when a slide id is unknown.
	ErrSlideNotFound = errors.New("slide not found")
)
