// Package reconcile drives one fragment reconciliation run over a video root.
//
// A run checks the root, scans and pairs fragments, merges each matched pair
// through a Merger, applies the orphan policy to unmatched fragments and
// reports the aggregate counts. Items are processed sequentially; only a
// configuration error aborts a run.
package reconcile
