// Package reconcilerun wires configuration, logging, locking and history
// around a single reconcile pass. Both `mvsync reconcile` and each tick of
// `mvsync watch` go through Run.
package reconcilerun
