// Package services defines shared utilities consumed by the reconciler and
// its collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers and phase names for logging.
//   - Structured error markers plus the Wrap helper that separate fatal
//     configuration failures from per-item failures the run recovers from.
//
// Use these helpers when wiring new components so operational behaviour
// (error classification, observability) stays uniform across the pipeline.
package services
