package preflight

import (
	"mvsync/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the filesystem checks for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Video root", cfg.Paths.VideoRoot),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	// State directory holds the run lock and optional history database.
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
