package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"captionstudio/internal/config"
	"captionstudio/internal/logging"
)

// staleJobAge is how long a job may stay "running" before maintenance
// assumes its process died.
const staleJobAge = 6 * time.Hour

// JobPruner is the slice of the job history store maintenance needs.
type JobPruner interface {
	AbandonRunning(ctx context.Context, cutoff time.Time) (int64, error)
	PruneFinished(ctx context.Context, cutoff time.Time) (int64, error)
}

// Report summarizes one maintenance pass.
type Report struct {
	Started       time.Time
	Elapsed       time.Duration
	Files         logging.RetentionReport
	EmptyDirs     int
	JobsAbandoned int64
	JobsPruned    int64
}

// Runner applies retention to captionstudio's on-disk state.
type Runner struct {
	cfg    *config.Config
	jobs   JobPruner
	logger *slog.Logger
	now    func() time.Time
}

// NewRunner builds a Runner. jobs may be nil when no history database is
// available.
func NewRunner(cfg *config.Config, jobs JobPruner, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		cfg:    cfg,
		jobs:   jobs,
		logger: logging.NewComponentLogger(logger, "maintenance"),
		now:    time.Now,
	}
}

// Targets lists the retention targets derived from configuration. The
// active log file is never removed.
func (r *Runner) Targets() []logging.RetentionTarget {
	artifactDays := r.cfg.Maintenance.ArtifactRetentionDays
	return []logging.RetentionTarget{
		{
			Label:   "logs",
			Dir:     r.cfg.Paths.LogDir,
			Pattern: "*.log*",
			Days:    r.cfg.Logging.RetentionDays,
			Exclude: []string{filepath.Join(r.cfg.Paths.LogDir, logging.LogFileName)},
		},
		{
			Label:     "work",
			Dir:       r.cfg.Paths.WorkDir,
			Days:      artifactDays,
			Recursive: true,
		},
		{
			Label:     "transcripts",
			Dir:       r.cfg.TranscriptCacheDir(),
			Pattern:   "*.json",
			Days:      artifactDays,
			Recursive: true,
		},
	}
}

// RunOnce performs a single pass. File failures are logged and counted;
// job history errors are returned after the file pass completes.
func (r *Runner) RunOnce(ctx context.Context) (Report, error) {
	start := r.now()
	report := Report{Started: start}

	if err := ctx.Err(); err != nil {
		return report, err
	}
	report.Files = logging.Prune(r.logger, start, r.Targets()...)
	report.EmptyDirs = removeEmptyDirs(r.cfg.Paths.WorkDir)

	var errs []error
	if r.jobs != nil {
		abandoned, err := r.jobs.AbandonRunning(ctx, start.Add(-staleJobAge))
		if err != nil {
			errs = append(errs, fmt.Errorf("abandon stale jobs: %w", err))
		}
		report.JobsAbandoned = abandoned
		if days := r.cfg.Logging.RetentionDays; days > 0 {
			pruned, err := r.jobs.PruneFinished(ctx, start.AddDate(0, 0, -days))
			if err != nil {
				errs = append(errs, fmt.Errorf("prune job history: %w", err))
			}
			report.JobsPruned = pruned
		}
	}
	report.Elapsed = r.now().Sub(start)

	r.logger.Info("maintenance pass complete",
		logging.String(logging.FieldEventType, "maintenance_complete"),
		logging.Int("files_removed", len(report.Files.Removed)),
		logging.Int("files_failed", report.Files.Failed),
		logging.Int("empty_dirs_removed", report.EmptyDirs),
		logging.Int64("jobs_abandoned", report.JobsAbandoned),
		logging.Int64("jobs_pruned", report.JobsPruned),
		logging.Duration("elapsed", report.Elapsed),
	)
	return report, errors.Join(errs...)
}

// removeEmptyDirs deletes empty directories below root, deepest first. The
// root itself is kept.
func removeEmptyDirs(root string) int {
	root = strings.TrimSpace(root)
	if root == "" {
		return 0
	}
	var dirs []string
	_ = filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if entry.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })

	removed := 0
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		if os.Remove(dir) == nil {
			removed++
		}
	}
	return removed
}
