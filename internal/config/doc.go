// Package config loads, normalizes, and validates slidekeeper configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SLIDEKEEPER_DATA_DIR. The Config type centralizes every knob the extractor
// and CLI need: storage locations, device tier selection, extraction and
// detection thresholds, cache sizing, archive naming, and logging.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
