package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mvsync/internal/logging"
	"mvsync/internal/services"
)

// RunFunc performs one reconcile pass.
type RunFunc func(ctx context.Context) error

// Watch invokes run immediately and then once per interval until ctx is
// cancelled. Runs never overlap: a tick that fires while a run is still in
// progress is dropped. Errors are logged and the loop continues, so a root
// that is temporarily unmounted is retried on the next tick.
func Watch(ctx context.Context, interval time.Duration, logger *slog.Logger, run RunFunc) error {
	if interval <= 0 {
		return services.Wrap(services.ErrConfiguration, "schedule", "watch", "interval must be positive", nil)
	}
	if run == nil {
		return services.Wrap(services.ErrConfiguration, "schedule", "watch", "run function is required", nil)
	}
	logger = logging.NewComponentLogger(logger, "scheduler")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("watch started", logging.Duration("interval", interval))
	for {
		invoke(ctx, logger, run)
		select {
		case <-ctx.Done():
			logger.Info("watch stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func invoke(ctx context.Context, logger *slog.Logger, run RunFunc) {
	if ctx.Err() != nil {
		return
	}
	err := run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrLocked):
		logging.WarnWithContext(logger, "skipping scheduled run", "run_skipped_locked",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "another mvsync process is reconciling this root"),
			logging.String(logging.FieldImpact, "run deferred to the next interval"),
		)
	case services.IsFatal(err):
		logging.ErrorWithContext(logger, "scheduled run aborted", "scheduled_run_aborted",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the video root and configuration"),
			logging.String(logging.FieldImpact, "nothing processed this interval; retrying on the next tick"),
		)
	default:
		logging.ErrorWithContext(logger, "scheduled run failed", "scheduled_run_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "see the run log for details"),
		)
	}
}
