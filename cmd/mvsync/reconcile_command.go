package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mvsync/internal/reconcile"
	"mvsync/internal/reconcilerun"
)

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var opts reconcilerun.Options
	var showSummary bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Merge matched fragments and apply the orphan policy once",
		Long: "Scan the video root for video and audio fragments, merge every matched pair " +
			"into a container and report unmatched fragments. Merge failures keep their " +
			"fragments for the next run and do not change the exit status.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			summary, err := reconcilerun.Run(cmd.Context(), cfg, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.DryRun {
				fmt.Fprintln(out, renderActions(summary))
			}
			if showSummary {
				printSummary(out, summary)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Scan and pair only; do not merge or delete anything")
	cmd.Flags().BoolVar(&opts.NoLock, "no-lock", false, "Skip the per-root run lock")
	cmd.Flags().BoolVar(&opts.Diagnostic, "diagnostic", false, "Also write a debug-level JSON log under <log_dir>/debug")
	cmd.Flags().BoolVar(&opts.Quiet, "quiet", false, "Write the run log to its file only")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Override logging.level for this run")
	cmd.Flags().BoolVar(&showSummary, "summary", false, "Print a summary table after the run")
	return cmd
}

func renderActions(summary reconcile.Summary) string {
	if len(summary.Actions) == 0 {
		return "No fragments found under " + summary.Root
	}
	rows := make([][]string, 0, len(summary.Actions))
	for _, action := range summary.Actions {
		rows = append(rows, []string{
			displayLabel(action.Outcome.String()),
			relativeTo(summary.Root, action.Base),
			displayLabel(action.Result),
			relativeTo(summary.Root, action.Output),
		})
	}
	return renderTable([]string{"Outcome", "Base", "Action", "Output"}, rows, nil)
}

func printSummary(out io.Writer, summary reconcile.Summary) {
	rows := [][]string{
		{"Merged", strconv.Itoa(summary.Merged)},
		{"Orphaned", strconv.Itoa(summary.Orphaned)},
		{"Failed", strconv.Itoa(summary.Failed)},
		{"Orphans deleted", strconv.Itoa(summary.OrphansDeleted)},
		{"Delete failures", strconv.Itoa(summary.DeleteFailures)},
		{"Dry run", yesNo(summary.DryRun)},
		{"Duration", summary.Duration().Round(time.Millisecond).String()},
	}
	fmt.Fprintln(out, renderTable([]string{"Run " + summary.RunID, ""}, rows, []columnAlignment{alignLeft, alignRight}))
}

func relativeTo(root, path string) string {
	if path == "" {
		return "-"
	}
	if rel, err := filepath.Rel(root, path); err == nil {
		return rel
	}
	return path
}
