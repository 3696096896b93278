// Package config loads, normalizes, and validates mvsync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the environment overrides the
// scheduled deployment relies on (VIDEO_ROOT, FRAGMENT_DELETE_ORPHANS). The
// Config type centralizes every knob the reconciler and CLI need so the root
// directory, fragment suffixes, and muxer binary are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical suffixes, and clear validation errors.
package config
