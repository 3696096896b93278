package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mvsync/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent reconcile runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if _, err := os.Stat(cfg.HistoryPath()); err != nil {
				if !cfg.History.Enabled {
					fmt.Fprintln(out, "Run history is disabled; set [history] enabled = true to record runs.")
					return nil
				}
				fmt.Fprintln(out, "No runs recorded yet.")
				return nil
			}

			store, err := history.OpenPath(cfg.HistoryPath())
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet.")
				return nil
			}
			fmt.Fprintln(out, renderHistory(runs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show (0 for all)")
	return cmd
}

func renderHistory(runs []history.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		outcome := displayLabel(string(run.Outcome))
		if run.DryRun {
			outcome += " (dry run)"
		}
		rows = append(rows, []string{
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			outcome,
			strconv.Itoa(run.Merged),
			strconv.Itoa(run.Orphaned),
			strconv.Itoa(run.Failed),
			strconv.Itoa(run.OrphansDeleted),
			run.Duration().Round(time.Millisecond).String(),
		})
	}
	return renderTable(
		[]string{"Started", "Outcome", "Merged", "Orphaned", "Failed", "Deleted", "Duration"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	)
}
