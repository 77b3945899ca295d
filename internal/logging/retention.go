package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget names a directory and glob whose files expire after a number
// of days. Recursive targets also walk subdirectories (used for the
// transcript cache, which shards by key prefix).
type RetentionTarget struct {
	Label     string
	Dir       string
	Pattern   string
	Days      int
	Recursive bool
	Exclude   []string
}

// RetentionReport summarizes a prune pass.
type RetentionReport struct {
	Removed []string
	Failed  int
}

// Prune removes files older than each target's retention window. A target
// with Days <= 0 is skipped. Failures are logged and counted but never abort
// the pass.
func Prune(logger *slog.Logger, now time.Time, targets ...RetentionTarget) RetentionReport {
	var report RetentionReport
	exclusions := make(map[string]struct{})
	for _, target := range targets {
		for _, path := range target.Exclude {
			if trimmed := strings.TrimSpace(path); trimmed != "" {
				if abs, err := filepath.Abs(trimmed); err == nil {
					exclusions[abs] = struct{}{}
				}
			}
		}
	}

	for _, target := range targets {
		dir := strings.TrimSpace(target.Dir)
		if dir == "" || target.Days <= 0 {
			continue
		}
		cutoff := now.AddDate(0, 0, -target.Days)
		pattern := strings.TrimSpace(target.Pattern)

		visit := func(path string, entry os.DirEntry) {
			if pattern != "" {
				if matched, err := filepath.Match(pattern, entry.Name()); err != nil || !matched {
					return
				}
			}
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
			if _, skip := exclusions[path]; skip {
				return
			}
			info, err := entry.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				return
			}
			if err := os.Remove(path); err != nil {
				report.Failed++
				WarnWithContext(logger, "retention remove failed; file remains", "retention_remove_failed",
					String("path", path),
					String("target", target.Label),
					Error(err),
					String(FieldErrorHint, "check file permissions and directory ownership"),
					String(FieldImpact, "expired file remains on disk"),
				)
				return
			}
			report.Removed = append(report.Removed, path)
			if logger != nil {
				logger.Debug("expired file pruned",
					String("path", path),
					String("target", target.Label),
					String(FieldEventType, "retention_pruned"),
				)
			}
		}

		if target.Recursive {
			_ = filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
				if err != nil {
					return nil
				}
				if !entry.IsDir() {
					visit(path, entry)
				}
				return nil
			})
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			visit(filepath.Join(dir, entry.Name()), entry)
		}
	}
	return report
}
