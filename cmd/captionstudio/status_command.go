package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"captionstudio/internal/jobs"
	"captionstudio/internal/maintenance"
	"captionstudio/internal/preflight"
	"captionstudio/internal/transcribe"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, dependency and history health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			var lines []string

			lines = append(lines, renderSectionHeader("Configuration", colorize)...)
			configDetail := ctx.configPath
			if !ctx.configExists {
				configDetail += " (not found; using defaults)"
			}
			lines = append(lines, renderStatusLine("Config", statusInfo, configDetail, colorize))
			for _, dir := range []struct{ label, path string }{
				{"Work directory", cfg.Paths.WorkDir},
				{"Cache directory", cfg.Paths.CacheDir},
				{"Data directory", cfg.Paths.DataDir},
				{"Log directory", cfg.Paths.LogDir},
			} {
				lines = append(lines, resultLine(preflight.CheckDirectoryAccess(dir.label, dir.path), statusError, colorize))
			}
			lines = append(lines, resultLine(preflight.CheckFreeSpace("Work free space", cfg.Paths.WorkDir, preflight.MinFreeBytes), statusWarn, colorize))

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			for _, dep := range preflight.CheckSystemDeps(cfg) {
				switch {
				case dep.Available:
					lines = append(lines, renderStatusLine(dep.Name, statusOK, dep.Command, colorize))
				case dep.Optional:
					lines = append(lines, renderStatusLine(dep.Name, statusInfo, "optional; "+dep.Detail, colorize))
				default:
					lines = append(lines, renderStatusLine(dep.Name, statusError, dep.Detail, colorize))
				}
			}
			lines = append(lines, resultLine(preflight.CheckASRFromConfig(cmd.Context(), cfg), statusWarn, colorize))

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("History", colorize)...)
			lines = append(lines, historyLines(cmd, ctx, colorize)...)
			cache := transcribe.NewCache(cfg.TranscriptCacheDir(), nil)
			lines = append(lines, renderStatusLine("Cached transcripts", statusInfo, fmt.Sprintf("%d", cache.Count()), colorize))
			if sched, err := maintenance.NewScheduler(maintenance.NewRunner(cfg, nil, nil), cfg.Maintenance.Schedule, nil); err == nil {
				next := sched.Next(time.Now())
				lines = append(lines, renderStatusLine("Maintenance", statusInfo,
					fmt.Sprintf("%s (next %s)", cfg.Maintenance.Schedule, next.Format("2006-01-02 15:04")), colorize))
			}

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
}

func resultLine(result preflight.Result, failKind statusKind, colorize bool) string {
	if result.Passed {
		return renderStatusLine(result.Name, statusOK, result.Detail, colorize)
	}
	return renderStatusLine(result.Name, failKind, result.Detail, colorize)
}

func historyLines(cmd *cobra.Command, ctx *commandContext, colorize bool) []string {
	cfg, _ := ctx.ensureConfig()
	store, err := jobs.Open(cfg)
	if err != nil {
		return []string{renderStatusLine("Job history", statusError, err.Error(), colorize)}
	}
	defer store.Close()

	stats, err := store.Stats(cmd.Context())
	if err != nil {
		return []string{renderStatusLine("Job history", statusError, err.Error(), colorize)}
	}
	total := 0
	for _, n := range stats {
		total += n
	}
	detail := fmt.Sprintf("%d jobs (%d completed, %d degraded, %d failed, %d running)",
		total, stats[jobs.StatusCompleted], stats[jobs.StatusDegraded], stats[jobs.StatusFailed], stats[jobs.StatusRunning])
	kind := statusOK
	if stats[jobs.StatusFailed] > 0 {
		kind = statusWarn
	}
	return []string{renderStatusLine("Job history", kind, detail, colorize)}
}
