package reconcile

import (
	"time"

	"mvsync/internal/fragments"
)

// Action results recorded per outcome.
const (
	ResultMerged  = "merged"
	ResultFailed  = "failed"
	ResultKept    = "kept"
	ResultDeleted = "deleted"
	ResultPlanned = "planned"
)

// Action records what a run did, or would do in dry-run mode, for one base
// identity.
type Action struct {
	Outcome fragments.OutcomeKind
	Base    string
	Video   string
	Audio   string
	Output  string
	Result  string
	// ExitCode and ToolOutput are set for failed merges.
	ExitCode   int
	ToolOutput string
}

// Summary aggregates the counters of one run. It lives for a single
// invocation.
type Summary struct {
	RunID      string
	Root       string
	DryRun     bool
	Phase      Phase
	StartedAt  time.Time
	FinishedAt time.Time

	Merged         int
	Orphaned       int
	Failed         int
	OrphansDeleted int
	// DeleteFailures counts removals that failed after a merge or for an
	// orphan.
	DeleteFailures int
	// Duplicates counts fragments dropped by a later fragment with the same
	// base identity and kind.
	Duplicates int

	Actions []Action
}

// Duration returns the wall time of the run.
func (s Summary) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.FinishedAt.Before(s.StartedAt) {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Identities returns the number of distinct base identities processed.
func (s Summary) Identities() int {
	return len(s.Actions)
}
