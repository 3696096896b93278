package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mvsync/internal/logging"
	"mvsync/internal/reconcilerun"
	"mvsync/internal/scheduler"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var opts reconcilerun.Options
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reconcile on a fixed interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if interval <= 0 {
				interval = cfg.ScheduleInterval()
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}
			return scheduler.Watch(signalCtx, interval, logger, func(runCtx context.Context) error {
				_, runErr := reconcilerun.Run(runCtx, cfg, opts)
				return runErr
			})
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "Time between runs (default schedule.interval_minutes)")
	cmd.Flags().BoolVar(&opts.Diagnostic, "diagnostic", false, "Also write debug-level JSON logs under <log_dir>/debug")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Override logging.level for each run")
	return cmd
}
