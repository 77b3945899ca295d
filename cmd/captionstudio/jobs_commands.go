package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"captionstudio/internal/jobs"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Show transcription and export history",
	}
	cmd.AddCommand(newJobsListCommand(ctx))
	cmd.AddCommand(newJobsShowCommand(ctx))
	return cmd
}

func withJobs(ctx *commandContext, fn func(*jobs.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := jobs.Open(cfg)
	if err != nil {
		return fmt.Errorf("open job history: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var (
		kind       string
		status     string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recent jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobs(ctx, func(store *jobs.Store) error {
				list, err := store.List(cmd.Context(), jobs.Filter{
					Kind:   jobs.Kind(strings.ToLower(strings.TrimSpace(kind))),
					Status: jobs.Status(strings.ToLower(strings.TrimSpace(status))),
					Limit:  limit,
				})
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, list)
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No jobs recorded")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, job := range list {
					rows = append(rows, []string{
						shortID(job.ID),
						string(job.Kind),
						string(job.Status),
						job.CreatedAt.Local().Format("2006-01-02 15:04"),
						formatJobDuration(job),
						displaySource(job.SourcePath),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"ID", "Kind", "Status", "Started", "Took", "Source"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Only show transcribe or export jobs")
	cmd.Flags().StringVar(&status, "status", "", "Only show running, completed, degraded or failed jobs")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job (full ID or unique prefix)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobs(ctx, func(store *jobs.Store) error {
				job, err := resolveJob(cmd, store, args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, job)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:        %s\n", job.ID)
				fmt.Fprintf(out, "Kind:      %s\n", job.Kind)
				fmt.Fprintf(out, "Status:    %s\n", job.Status)
				fmt.Fprintf(out, "Source:    %s\n", job.SourcePath)
				if job.OutputPath != "" {
					fmt.Fprintf(out, "Output:    %s\n", job.OutputPath)
				}
				if job.Style != "" {
					fmt.Fprintf(out, "Style:     %s\n", job.Style)
				}
				if job.Language != "" {
					fmt.Fprintf(out, "Language:  %s\n", job.Language)
				}
				if job.CaptionSource != "" {
					fmt.Fprintf(out, "Captions:  %d (%s)\n", job.Segments, job.CaptionSource)
				}
				if job.Kind == jobs.KindExport && job.Status != jobs.StatusFailed {
					fmt.Fprintf(out, "Frames:    %d (%s)\n", job.Frames, formatBytes(job.OutputBytes))
				}
				fmt.Fprintf(out, "Started:   %s\n", job.CreatedAt.Local().Format(time.RFC3339))
				fmt.Fprintf(out, "Took:      %s\n", formatJobDuration(*job))
				if len(job.Warnings) > 0 {
					fmt.Fprintf(out, "Warnings:  %s\n", strings.Join(job.Warnings, ", "))
				}
				if job.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:     %s (%s)\n", job.ErrorMessage, job.ErrorKind)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON")
	return cmd
}

// resolveJob accepts a full ID or a prefix matching exactly one recent job.
func resolveJob(cmd *cobra.Command, store *jobs.Store, arg string) (*jobs.Job, error) {
	arg = strings.TrimSpace(arg)
	if job, err := store.Get(cmd.Context(), arg); err == nil {
		return job, nil
	} else if !errors.Is(err, jobs.ErrNotFound) {
		return nil, err
	}
	recent, err := store.List(cmd.Context(), jobs.Filter{Limit: 500})
	if err != nil {
		return nil, err
	}
	var match *jobs.Job
	for i := range recent {
		if strings.HasPrefix(recent[i].ID, arg) {
			if match != nil {
				return nil, fmt.Errorf("job prefix %q is ambiguous", arg)
			}
			match = &recent[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", jobs.ErrNotFound, arg)
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatJobDuration(job jobs.Job) string {
	if job.Status == jobs.StatusRunning {
		return "-"
	}
	return job.Duration().Round(100 * time.Millisecond).String()
}

func displaySource(path string) string {
	const max = 48
	if len(path) <= max {
		return path
	}
	return "..." + path[len(path)-max+3:]
}
