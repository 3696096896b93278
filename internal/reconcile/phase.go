package reconcile

// Phase is a step of the run state machine:
// init -> scanning -> pairing -> processing -> reporting -> done, with
// init -> failed when the root check fails.
type Phase string

const (
	PhaseInit       Phase = "init"
	PhaseScanning   Phase = "scanning"
	PhasePairing    Phase = "pairing"
	PhaseProcessing Phase = "processing"
	PhaseReporting  Phase = "reporting"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)
