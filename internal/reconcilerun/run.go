package reconcilerun

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"mvsync/internal/config"
	"mvsync/internal/fragments"
	"mvsync/internal/history"
	"mvsync/internal/logging"
	"mvsync/internal/muxer"
	"mvsync/internal/preflight"
	"mvsync/internal/reconcile"
	"mvsync/internal/scheduler"
	"mvsync/internal/services"
)

// Options configures one reconcile invocation.
type Options struct {
	LogLevel    string
	Development bool
	// Diagnostic tees debug-level JSON into <log_dir>/debug.
	Diagnostic bool
	DryRun     bool
	// NoLock skips the per-root run lock.
	NoLock bool
	// Quiet writes the run log to its file only.
	Quiet bool
}

// stampFormat names per-run log files.
const stampFormat = "20060102T150405.000Z"

// Run executes a single reconcile pass with its own log file, run id and
// lock. A missing video root is reported before any log output is produced.
func Run(ctx context.Context, cfg *config.Config, opts Options) (reconcile.Summary, error) {
	return run(ctx, cfg, opts, nil)
}

// merger is overridden by tests.
func run(ctx context.Context, cfg *config.Config, opts Options, merger reconcile.Merger) (reconcile.Summary, error) {
	if cfg == nil {
		return reconcile.Summary{}, fmt.Errorf("config is required")
	}
	root := cfg.Paths.VideoRoot
	if err := fragments.CheckRoot(root); err != nil {
		return reconcile.Summary{Root: root, Phase: reconcile.PhaseFailed}, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return reconcile.Summary{Root: root, Phase: reconcile.PhaseFailed},
			services.Wrap(services.ErrConfiguration, "run", "ensure directories", "", err)
	}

	var lock *scheduler.Lock
	if !opts.NoLock {
		lock = scheduler.NewLock(cfg.Paths.StateDir, root)
		if err := lock.TryAcquire(); err != nil {
			return reconcile.Summary{Root: root, Phase: reconcile.PhaseFailed}, err
		}
	}

	runID := uuid.NewString()
	stamp := time.Now().UTC().Format(stampFormat)
	logPath := logging.RunLogPath(cfg.Paths.LogDir, stamp)

	logger, closer, err := openRunLogger(cfg, opts, logPath, stamp)
	if err != nil {
		if lock != nil {
			releaseLock(logging.NewNop(), lock)
		}
		return reconcile.Summary{Root: root, Phase: reconcile.PhaseFailed}, err
	}
	defer closer.Close()
	if lock != nil {
		defer releaseLock(logger, lock)
	}

	if err := logging.UpdateCurrentPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.CurrentLogName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "mvsync-*.log", Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: filepath.Join(cfg.Paths.LogDir, "debug"), Pattern: "mvsync-*.log"},
	)

	ctx = services.WithRunID(ctx, runID)
	logDependencySnapshot(ctx, logger, cfg)

	if merger == nil {
		merger = muxer.New(cfg.MuxerBinary(), logger)
	}
	runOpts := reconcile.OptionsFromConfig(cfg)
	runOpts.DryRun = opts.DryRun
	summary, runErr := reconcile.New(runOpts, merger, logger).Run(ctx)

	if cfg.History.Enabled {
		recordHistory(ctx, logger, cfg, summary, runErr)
	}
	return summary, runErr
}

func openRunLogger(cfg *config.Config, opts Options, logPath, stamp string) (*slog.Logger, io.Closer, error) {
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	outputs := []string{"stdout", logPath}
	if opts.Quiet {
		outputs = []string{logPath}
	}
	logger, closer, err := logging.Open(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
		Development: opts.Development,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	if !opts.Diagnostic {
		return logger, closer, nil
	}

	debugDir := filepath.Join(cfg.Paths.LogDir, "debug")
	debugLogPath := logging.RunLogPath(debugDir, stamp)
	debugLogger, debugCloser, debugErr := logging.Open(logging.Options{
		Level:       "debug",
		Format:      "json",
		OutputPaths: []string{debugLogPath},
		Development: true,
	})
	if debugErr != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to initialize debug logger: %v\n", debugErr)
		return logger, closer, nil
	}
	logger = logging.TeeLogger(logger, debugLogger.Handler())
	if err := logging.UpdateCurrentPointer(debugDir, debugLogPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update debug/%s link: %v\n", logging.CurrentLogName, err)
	}
	logger.Info("diagnostic mode enabled",
		logging.String(logging.FieldEventType, "diagnostic_mode_enabled"),
		logging.String("debug_log_path", debugLogPath),
	)
	return logger, closers{closer, debugCloser}, nil
}

type closers []io.Closer

func (c closers) Close() error {
	var first error
	for _, cl := range c {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("config_video_root", cfg.Paths.VideoRoot),
		logging.String("log_dir", cfg.Paths.LogDir),
		logging.Bool("history_enabled", cfg.History.Enabled),
	}
	for _, status := range preflight.CheckSystemDeps(ctx, cfg) {
		attrs = append(attrs,
			logging.String("muxer_binary", status.Command),
			logging.Bool("muxer_available", status.Available),
			logging.String("muxer_detail", status.Detail),
		)
	}
	logging.WithContext(ctx, logger).Debug("dependency snapshot", logging.Args(attrs...)...)
}

func recordHistory(ctx context.Context, logger *slog.Logger, cfg *config.Config, summary reconcile.Summary, runErr error) {
	store, err := history.Open(cfg)
	if err != nil {
		logging.WarnWithContext(logger, "run history unavailable", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions or delete the history database"),
			logging.String(logging.FieldImpact, "this run is not recorded"),
		)
		return
	}
	defer store.Close()

	ctx = context.WithoutCancel(ctx)
	if _, err := store.Record(ctx, ToHistory(summary, runErr)); err != nil {
		logging.WarnWithContext(logger, "failed to record run history", "history_record_failed",
			logging.Error(err),
			logging.String("history_path", store.Path()),
			logging.String(logging.FieldImpact, "this run is not recorded"),
		)
	}

	if cfg.Logging.RetentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -cfg.Logging.RetentionDays)
	pruned, err := store.Prune(ctx, cutoff)
	if err != nil {
		logging.WarnWithContext(logger, "failed to prune run history", "history_prune_failed",
			logging.Error(err),
			logging.String("history_path", store.Path()),
			logging.String(logging.FieldImpact, "older runs stay in the history database"),
		)
		return
	}
	if pruned > 0 {
		logger.Debug("pruned run history",
			logging.Int64("removed", pruned),
			logging.Int("retention_days", cfg.Logging.RetentionDays),
		)
	}
}

type runLock interface {
	Release() error
	Path() string
}

// releaseLock drops the run lock, logging rather than returning a failure.
func releaseLock(logger *slog.Logger, lock runLock) {
	if err := lock.Release(); err != nil {
		logging.WarnWithContext(logger, "failed to release run lock", "lock_release_failed",
			logging.Error(err),
			logging.String("lock_path", lock.Path()),
			logging.String(logging.FieldImpact, "the lock is dropped when this process exits"),
		)
	}
}

// ToHistory converts a run summary into its persisted form.
func ToHistory(summary reconcile.Summary, runErr error) history.Run {
	run := history.Run{
		RunID:          summary.RunID,
		VideoRoot:      summary.Root,
		StartedAt:      summary.StartedAt,
		FinishedAt:     summary.FinishedAt,
		Outcome:        history.OutcomeCompleted,
		DryRun:         summary.DryRun,
		Merged:         summary.Merged,
		Orphaned:       summary.Orphaned,
		Failed:         summary.Failed,
		OrphansDeleted: summary.OrphansDeleted,
		DeleteFailures: summary.DeleteFailures,
	}
	switch {
	case runErr != nil:
		run.Outcome = history.OutcomeFailed
		run.ErrorMessage = runErr.Error()
	case summary.Failed > 0 || summary.DeleteFailures > 0:
		run.Outcome = history.OutcomeDegraded
	}
	return run
}
