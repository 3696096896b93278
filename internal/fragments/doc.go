// Package fragments discovers single-stream download fragments on disk and
// pairs video fragments with their audio counterparts.
//
// Scan builds an immutable Set from one full tree walk; Pair turns that set
// into one Outcome per base identity. Neither retains state across runs.
package fragments
