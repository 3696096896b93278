// Package scheduler keeps reconcile runs against one video root from
// overlapping and re-invokes them on a fixed interval.
//
// Lock is an advisory file lock keyed by the root path; Watch is the
// periodic loop behind `mvsync watch`.
package scheduler
