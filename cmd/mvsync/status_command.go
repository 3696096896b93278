package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mvsync/internal/config"
	"mvsync/internal/history"
	"mvsync/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show directory access, muxer availability and the last run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			lines := buildStatusLines(cmd.Context(), cfg, ctx.configPath, colorize)
			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
}

func buildStatusLines(ctx context.Context, cfg *config.Config, configPath string, colorize bool) []string {
	var lines []string

	lines = append(lines, renderSectionHeader("Configuration", colorize)...)
	lines = append(lines, renderStatusLine("Config file", statusInfo, configPath, colorize))
	lines = append(lines, renderStatusLine("Fragments", statusInfo,
		fmt.Sprintf(".%s + .%s -> .%s", cfg.Fragments.VideoSuffix, cfg.Fragments.AudioSuffix, cfg.Fragments.ContainerExtension), colorize))
	orphanKind := statusInfo
	orphanText := "kept"
	if cfg.Fragments.DeleteOrphans {
		orphanKind = statusWarn
		orphanText = "deleted"
	}
	lines = append(lines, renderStatusLine("Orphans", orphanKind, orphanText, colorize))

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Directories", colorize)...)
	for _, result := range preflight.RunAll(cfg) {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
	for _, status := range preflight.CheckSystemDeps(ctx, cfg) {
		kind := statusOK
		detail := status.Path
		if status.Detail != "" {
			detail = strings.TrimSpace(detail + " " + status.Detail)
		}
		if !status.Available {
			kind = statusError
			if status.Optional {
				kind = statusWarn
			}
			detail = status.Detail
		}
		lines = append(lines, renderStatusLine(status.Name, kind, detail, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Last run", colorize)...)
	lines = append(lines, lastRunLine(ctx, cfg, colorize))
	return lines
}

func lastRunLine(ctx context.Context, cfg *config.Config, colorize bool) string {
	if !cfg.History.Enabled {
		return renderStatusLine("History", statusInfo, "disabled", colorize)
	}
	if _, err := os.Stat(cfg.HistoryPath()); err != nil {
		return renderStatusLine("History", statusInfo, "no runs recorded", colorize)
	}
	store, err := history.OpenPath(cfg.HistoryPath())
	if err != nil {
		return renderStatusLine("History", statusError, err.Error(), colorize)
	}
	defer store.Close()
	run, err := store.Latest(ctx, cfg.Paths.VideoRoot)
	if err != nil {
		return renderStatusLine("History", statusError, err.Error(), colorize)
	}
	if run == nil {
		return renderStatusLine("History", statusInfo, "no runs recorded", colorize)
	}
	kind := statusOK
	switch run.Outcome {
	case history.OutcomeDegraded:
		kind = statusWarn
	case history.OutcomeFailed:
		kind = statusError
	}
	detail := fmt.Sprintf("%s %s merged=%d orphaned=%d failed=%d",
		run.StartedAt.Local().Format("2006-01-02 15:04"), displayLabel(string(run.Outcome)),
		run.Merged, run.Orphaned, run.Failed)
	return renderStatusLine("Latest", kind, detail, colorize)
}
