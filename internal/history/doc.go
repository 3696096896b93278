// Package history persists one summary row per reconcile run in a SQLite
// database under the state directory. It is optional and never consulted when
// deciding what a run does; the filesystem remains the only source of truth
// for fragments.
package history
