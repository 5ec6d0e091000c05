// Package logging assembles the structured slog loggers used across
// slidekeeper.
//
// It owns the console and JSON handlers, resolves levels and output targets
// from configuration, and exposes context helpers so extraction and storage
// code can tag every line with the stream and slide it concerns. A no-op
// logger is provided for tests and for wiring code that has no logger yet.
package logging
