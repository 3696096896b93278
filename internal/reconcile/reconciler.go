package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"mvsync/internal/config"
	"mvsync/internal/fragments"
	"mvsync/internal/logging"
	"mvsync/internal/muxer"
	"mvsync/internal/services"
)

// Merger joins a video and an audio fragment into outputPath.
type Merger interface {
	Merge(ctx context.Context, videoPath, audioPath, outputPath string) (muxer.Result, error)
}

// Options control a single run.
type Options struct {
	Root               string
	Suffixes           fragments.Suffixes
	ContainerExtension string
	DeleteOrphans      bool
	// DryRun scans and pairs only; nothing is merged or deleted.
	DryRun bool
}

// OptionsFromConfig derives run options from application config.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		Root: cfg.Paths.VideoRoot,
		Suffixes: fragments.Suffixes{
			Video: cfg.Fragments.VideoSuffix,
			Audio: cfg.Fragments.AudioSuffix,
		},
		ContainerExtension: cfg.Fragments.ContainerExtension,
		DeleteOrphans:      cfg.Fragments.DeleteOrphans,
	}
}

// Reconciler executes runs against one video root.
type Reconciler struct {
	opts   Options
	merger Merger
	logger *slog.Logger
	remove func(string) error
	now    func() time.Time
}

// New constructs a reconciler.
func New(opts Options, merger Merger, logger *slog.Logger) *Reconciler {
	if opts.ContainerExtension == "" {
		opts.ContainerExtension = config.Default().Fragments.ContainerExtension
	}
	if opts.Suffixes == (fragments.Suffixes{}) {
		opts.Suffixes = fragments.DefaultSuffixes
	}
	return &Reconciler{
		opts:   opts,
		merger: merger,
		logger: logging.NewComponentLogger(logger, "reconcile"),
		remove: os.Remove,
		now:    time.Now,
	}
}

// run carries per-invocation state.
type run struct {
	*Reconciler
	ctx     context.Context
	logger  *slog.Logger
	summary Summary
}

// Run performs one reconciliation pass. The returned error is non-nil only
// for configuration failures, in which case nothing has been processed and
// nothing has been logged. Merge and deletion failures are reflected in the
// summary counters. A run is not interrupted by ctx cancellation once it has
// started processing.
func (r *Reconciler) Run(ctx context.Context) (Summary, error) {
	if r == nil || r.merger == nil {
		return Summary{Phase: PhaseFailed}, services.Wrap(services.ErrConfiguration, "reconcile", "init", "merger not configured", nil)
	}
	ctx = services.WithRoot(ctx, r.opts.Root)
	rs := &run{
		Reconciler: r,
		ctx:        ctx,
		summary: Summary{
			Root:      r.opts.Root,
			DryRun:    r.opts.DryRun,
			Phase:     PhaseInit,
			StartedAt: r.now(),
		},
	}
	rs.summary.RunID, _ = services.RunIDFromContext(ctx)

	if err := fragments.CheckRoot(r.opts.Root); err != nil {
		rs.summary.Phase = PhaseFailed
		rs.summary.FinishedAt = r.now()
		return rs.summary, err
	}

	rs.logger = logging.WithContext(ctx, r.logger)
	rs.logger.Info("fragment cleanup start",
		logging.Bool("delete_orphans", r.opts.DeleteOrphans),
		logging.Bool("dry_run", r.opts.DryRun),
		logging.String("video_suffix", r.opts.Suffixes.Video),
		logging.String("audio_suffix", r.opts.Suffixes.Audio),
	)

	rs.enter(PhaseScanning)
	set, err := fragments.Scan(r.opts.Root, r.opts.Suffixes)
	if err != nil {
		rs.enter(PhaseFailed)
		rs.summary.FinishedAt = r.now()
		logging.ErrorWithContext(rs.logger, "fragment scan failed", "scan_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions under the video root"),
		)
		return rs.summary, err
	}
	for _, dup := range set.Replaced {
		rs.summary.Duplicates++
		rs.logger.Debug("duplicate fragment replaced by later match",
			logging.String("path", dup.Path),
			logging.String("base", dup.Base),
			logging.String("kind", string(dup.Kind)),
		)
	}

	rs.enter(PhasePairing)
	outcomes := fragments.Pair(set)
	rs.logger.Debug("fragments paired",
		logging.Int("identities", len(outcomes)),
		logging.Int("video_fragments", len(set.VideoFragments())),
		logging.Int("audio_fragments", len(set.AudioFragments())),
	)

	rs.enter(PhaseProcessing)
	for _, outcome := range outcomes {
		switch outcome.Kind {
		case fragments.Matched:
			rs.merge(outcome)
		default:
			rs.orphan(outcome)
		}
	}

	rs.enter(PhaseReporting)
	rs.summary.FinishedAt = r.now()
	rs.logger.Info("reconcile run complete",
		logging.String(logging.FieldEventType, "reconcile_complete"),
		logging.Int("identities", rs.summary.Identities()),
		logging.Int("merged", rs.summary.Merged),
		logging.Int("orphaned", rs.summary.Orphaned),
		logging.Int("failed", rs.summary.Failed),
		logging.Int("orphans_deleted", rs.summary.OrphansDeleted),
		logging.Int("duplicates", rs.summary.Duplicates),
		logging.Bool("dry_run", rs.summary.DryRun),
		logging.Duration("duration", rs.summary.Duration()),
	)
	rs.enter(PhaseDone)
	return rs.summary, nil
}

func (rs *run) enter(phase Phase) {
	rs.summary.Phase = phase
	rs.logger.Debug("run phase", logging.String(logging.FieldPhase, string(phase)))
}

func (rs *run) merge(outcome fragments.Outcome) {
	video, audio := outcome.Video.Path, outcome.Audio.Path
	output := fragments.OutputPath(outcome.Base, rs.opts.ContainerExtension)
	action := Action{Outcome: outcome.Kind, Base: outcome.Base, Video: video, Audio: audio, Output: output}
	defer func() { rs.summary.Actions = append(rs.summary.Actions, action) }()

	if rs.opts.DryRun {
		action.Result = ResultPlanned
		rs.logger.Info("would merge fragments",
			logging.String("video", video),
			logging.String("audio", audio),
			logging.String("output", output),
		)
		return
	}

	rs.logger.Info("merging fragments",
		logging.String("video", video),
		logging.String("audio", audio),
		logging.String("output", output),
	)
	result, err := rs.merger.Merge(context.WithoutCancel(rs.ctx), video, audio, output)
	if err != nil {
		rs.summary.Failed++
		action.Result = ResultFailed
		action.ExitCode = result.ExitCode
		action.ToolOutput = result.Output
		logging.ErrorWithContext(rs.logger, "fragment merge failed", "merge_failed",
			logging.String("video", video),
			logging.String("audio", audio),
			logging.String("output", output),
			logging.Int("exit_code", result.ExitCode),
			logging.String("tool_output", result.Output),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fragments kept; the next run retries the merge"),
		)
		return
	}

	rs.summary.Merged++
	action.Result = ResultMerged
	removed := 0
	for _, source := range []string{video, audio} {
		if rs.delete(source, "merged") {
			removed++
		}
	}
	rs.logger.Info("merge complete, fragments removed",
		logging.String(logging.FieldEventType, "merge_complete"),
		logging.String("video", video),
		logging.String("audio", audio),
		logging.String("output", output),
		logging.Int("fragments_removed", removed),
	)
}

func (rs *run) orphan(outcome fragments.Outcome) {
	fragment, ok := outcome.Orphan()
	if !ok {
		return
	}
	rs.summary.Orphaned++
	action := Action{Outcome: outcome.Kind, Base: outcome.Base, Result: ResultKept}
	if fragment.Kind == fragments.KindVideo {
		action.Video = fragment.Path
	} else {
		action.Audio = fragment.Path
	}
	defer func() { rs.summary.Actions = append(rs.summary.Actions, action) }()

	deleting := rs.opts.DeleteOrphans && !rs.opts.DryRun
	impact := "fragment kept until its counterpart arrives"
	if deleting {
		impact = "fragment will be deleted"
	}
	logging.WarnWithContext(rs.logger, orphanMessage(fragment.Kind), "orphan_fragment",
		logging.String("path", fragment.Path),
		logging.String("kind", string(fragment.Kind)),
		logging.String("base", outcome.Base),
		logging.String(logging.FieldErrorHint, "counterpart fragment missing at scan time"),
		logging.String(logging.FieldImpact, impact),
	)

	switch {
	case rs.opts.DeleteOrphans && rs.opts.DryRun:
		action.Result = ResultPlanned
	case deleting:
		if rs.delete(fragment.Path, "orphan") {
			rs.summary.OrphansDeleted++
			action.Result = ResultDeleted
			rs.logger.Info("deleted orphan fragment",
				logging.String("path", fragment.Path),
				logging.String("kind", string(fragment.Kind)),
			)
		}
	}
}

// delete removes path, logging and counting failures. It never fails the run.
func (rs *run) delete(path, reason string) bool {
	if err := rs.remove(path); err != nil {
		rs.summary.DeleteFailures++
		wrapped := services.Wrap(services.ErrDeletion, "cleanup", "remove "+reason+" fragment", "", err)
		logging.WarnWithContext(rs.logger, "failed to remove fragment", "fragment_removal_failed",
			logging.String("path", path),
			logging.String("reason", reason),
			logging.Error(wrapped),
			logging.String(logging.FieldErrorHint, "check file permissions"),
			logging.String(logging.FieldImpact, "fragment left on disk"),
		)
		return false
	}
	return true
}

func orphanMessage(kind fragments.StreamKind) string {
	switch kind {
	case fragments.KindVideo:
		return "video-only fragment (no matching audio)"
	case fragments.KindAudio:
		return "audio-only fragment (no matching video)"
	default:
		return fmt.Sprintf("unmatched %s fragment", kind)
	}
}
