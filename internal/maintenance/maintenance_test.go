package maintenance

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"captionstudio/internal/logging"
	"captionstudio/internal/testsupport"
)

type fakePruner struct {
	abandonCutoff time.Time
	pruneCutoff   time.Time
	pruneErr      error
	calls         atomic.Int32
}

func (f *fakePruner) AbandonRunning(_ context.Context, cutoff time.Time) (int64, error) {
	f.calls.Add(1)
	f.abandonCutoff = cutoff
	return 2, nil
}

func (f *fakePruner) PruneFinished(_ context.Context, cutoff time.Time) (int64, error) {
	f.pruneCutoff = cutoff
	return 5, f.pruneErr
}

func age(t *testing.T, path string, d time.Duration) {
	t.Helper()
	when := time.Now().Add(-d)
	if err := os.Chtimes(path, when, when); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestRunOnceAppliesRetention(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Logging.RetentionDays = 30
	cfg.Maintenance.ArtifactRetentionDays = 7

	oldLog := filepath.Join(cfg.Paths.LogDir, "captionstudio-2026-01-01.log")
	activeLog := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
	freshLog := filepath.Join(cfg.Paths.LogDir, "captionstudio-recent.log")
	oldWork := filepath.Join(cfg.Paths.WorkDir, "transcribe-123", "audio.wav")
	freshWork := filepath.Join(cfg.Paths.WorkDir, "transcribe-456", "audio.wav")
	oldTranscript := filepath.Join(cfg.TranscriptCacheDir(), "ab", "abcdef.json")

	for _, path := range []string{oldLog, activeLog, freshLog, oldWork, freshWork, oldTranscript} {
		testsupport.WriteFile(t, path, 16)
	}
	age(t, oldLog, 40*24*time.Hour)
	age(t, activeLog, 40*24*time.Hour)
	age(t, oldWork, 10*24*time.Hour)
	age(t, oldTranscript, 10*24*time.Hour)

	pruner := &fakePruner{}
	runner := NewRunner(cfg, pruner, nil)
	fixed := time.Now()
	runner.now = func() time.Time { return fixed }

	report, err := runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(report.Files.Removed) != 3 {
		t.Fatalf("removed %v, want 3 files", report.Files.Removed)
	}
	for _, gone := range []string{oldLog, oldWork, oldTranscript} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Fatalf("expected %s removed, stat err %v", gone, err)
		}
	}
	for _, kept := range []string{activeLog, freshLog, freshWork} {
		if _, err := os.Stat(kept); err != nil {
			t.Fatalf("expected %s kept: %v", kept, err)
		}
	}
	if report.EmptyDirs != 1 {
		t.Fatalf("empty dirs removed = %d, want 1", report.EmptyDirs)
	}
	if _, err := os.Stat(cfg.Paths.WorkDir); err != nil {
		t.Fatalf("work dir root should remain: %v", err)
	}
	if report.JobsAbandoned != 2 || report.JobsPruned != 5 {
		t.Fatalf("unexpected job counts %+v", report)
	}
	if !pruner.abandonCutoff.Equal(fixed.Add(-staleJobAge)) {
		t.Fatalf("abandon cutoff = %v", pruner.abandonCutoff)
	}
	if !pruner.pruneCutoff.Equal(fixed.AddDate(0, 0, -30)) {
		t.Fatalf("prune cutoff = %v", pruner.pruneCutoff)
	}
}

func TestRunOnceReportsJobErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pruner := &fakePruner{pruneErr: errors.New("database is locked")}

	_, err := NewRunner(cfg, pruner, nil).RunOnce(context.Background())
	if err == nil {
		t.Fatal("expected job history error")
	}
}

func TestRunOnceWithoutStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	report, err := NewRunner(cfg, nil, nil).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if report.JobsPruned != 0 || len(report.Files.Removed) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestRunOnceHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewRunner(testsupport.NewConfig(t), nil, nil).RunOnce(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("RunOnce error = %v, want context.Canceled", err)
	}
}

func TestNewSchedulerValidatesSpec(t *testing.T) {
	runner := NewRunner(testsupport.NewConfig(t), nil, nil)
	if _, err := NewScheduler(runner, "not a schedule", nil); err == nil {
		t.Fatal("expected parse error")
	}
	s, err := NewScheduler(runner, "30 3 * * *", nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	from := time.Date(2026, 10, 18, 4, 0, 0, 0, time.Local)
	want := time.Date(2026, 10, 19, 3, 30, 0, 0, time.Local)
	if got := s.Next(from); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestSchedulerRunsPasses(t *testing.T) {
	pruner := &fakePruner{}
	runner := NewRunner(testsupport.NewConfig(t), pruner, nil)
	s, err := NewScheduler(runner, "@every 1s", nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	var reports atomic.Int32
	s.OnReport(func(Report, error) { reports.Add(1) })

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reports.Load() < 1 || pruner.calls.Load() < 1 {
		t.Fatalf("expected at least one pass, got %d", reports.Load())
	}
}
