// Package main hosts the slidekeeper CLI.
//
// The Cobra command tree replays recorded screen shares through the
// extractor and exposes the slide store for listing, export and maintenance.
// Configuration, logging, the SQLite store and the metadata cache are
// resolved once per invocation by commandContext so subcommands only deal
// with their own flags and output.
//
// Keep this package thin: behavior belongs in the internal packages and is
// surfaced here through commands and flags.
package main
