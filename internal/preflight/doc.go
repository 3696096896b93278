// Package preflight provides readiness checks for the filesystem paths and
// external binaries mvsync depends on.
//
// The CLI "mvsync status" command renders every check; the run wiring uses
// CheckSystemDeps to snapshot the muxer before processing.
package preflight
