package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"captionstudio/internal/maintenance"
)

func newMaintainCommand(ctx *commandContext) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "maintain",
		Short: "Expire old logs, work files, cached transcripts and job history",
		Long: `Run one retention pass, or with --watch keep running passes on the
configured maintenance schedule until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.ensureLogger(cmd.ErrOrStderr())
			store := ctx.openJobs(cmd.ErrOrStderr())
			var runner *maintenance.Runner
			if store != nil {
				defer store.Close()
				runner = maintenance.NewRunner(cfg, store, logger)
			} else {
				runner = maintenance.NewRunner(cfg, nil, logger)
			}
			out := cmd.OutOrStdout()

			if !watch {
				report, err := runner.RunOnce(cmd.Context())
				printMaintenanceReport(cmd, report)
				return err
			}

			sched, err := maintenance.NewScheduler(runner, cfg.Maintenance.Schedule, logger)
			if err != nil {
				return err
			}
			sched.OnReport(func(report maintenance.Report, _ error) {
				printMaintenanceReport(cmd, report)
			})
			fmt.Fprintf(out, "Maintenance scheduled (%s); press Ctrl+C to stop\n", cfg.Maintenance.Schedule)
			return sched.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running on the configured schedule")
	return cmd
}

func printMaintenanceReport(cmd *cobra.Command, report maintenance.Report) {
	fmt.Fprintf(cmd.OutOrStdout(),
		"Removed %d files (%d failed), %d empty directories; %d stale jobs closed, %d old jobs pruned\n",
		len(report.Files.Removed), report.Files.Failed, report.EmptyDirs, report.JobsAbandoned, report.JobsPruned)
}
