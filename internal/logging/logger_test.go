package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"captionstudio/internal/services"
)

func TestPrettyHandlerFormatsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))
	NewComponentLogger(logger, "export").Info("frame loop finished", String("reason", "end of stream"), Int("frames", 90))

	line := buf.String()
	if !strings.Contains(line, " INFO export: frame loop finished") {
		t.Fatalf("unexpected prefix: %q", line)
	}
	if !strings.Contains(line, `reason="end of stream"`) {
		t.Fatalf("expected quoted value, got %q", line)
	}
	if !strings.Contains(line, "frames=90") {
		t.Fatalf("expected frames field, got %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should be rendered as prefix only: %q", line)
	}
}

func TestJSONHandlerRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	slog.New(newJSONHandler(&buf, lvl, false)).Warn("careful", String("job_id", "abc"))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode json line: %v", err)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key: %v", payload)
	}
	if payload["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %v", payload["level"])
	}
	if payload["job_id"] != "abc" {
		t.Fatalf("expected job_id field, got %v", payload["job_id"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, lvl, false))
	WarnWithContext(logger, "audio capture failed", "audio_capture_failed", String(FieldImpact, "video only"))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode json line: %v", err)
	}
	if payload[FieldEventType] != "audio_capture_failed" {
		t.Fatalf("unexpected event type %v", payload[FieldEventType])
	}
	if payload[FieldImpact] != "video only" {
		t.Fatalf("caller impact should win, got %v", payload[FieldImpact])
	}
	if payload[FieldErrorHint] == nil {
		t.Fatal("expected default error hint")
	}
}

func TestContextFields(t *testing.T) {
	ctx := services.WithJobID(context.Background(), "job-1")
	ctx = services.WithStage(ctx, "export")
	ctx = services.WithRequestID(ctx, "req-9")

	fields := ContextFields(ctx)
	got := map[string]string{}
	for _, f := range fields {
		got[f.Key] = f.Value.String()
	}
	if got[FieldJobID] != "job-1" || got[FieldStage] != "export" || got[FieldCorrelationID] != "req-9" {
		t.Fatalf("unexpected context fields: %v", got)
	}
	if len(ContextFields(context.Background())) != 0 {
		t.Fatal("expected no fields for empty context")
	}
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(25)
	if !s.ShouldLog(0, "encode") {
		t.Fatal("first event should log")
	}
	if s.ShouldLog(10, "encode") {
		t.Fatal("same bucket should be suppressed")
	}
	if !s.ShouldLog(26, "encode") {
		t.Fatal("new bucket should log")
	}
	if !s.ShouldLog(26, "finalize") {
		t.Fatal("phase change should log")
	}
	s.Reset()
	if !s.ShouldLog(26, "finalize") {
		t.Fatal("reset should re-arm sampler")
	}
}

func TestPruneRemovesExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "ab")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	old := filepath.Join(dir, "old.log")
	fresh := filepath.Join(dir, "fresh.log")
	other := filepath.Join(dir, "old.txt")
	deep := filepath.Join(nested, "deep.log")
	for _, p := range []string{old, fresh, other, deep} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().AddDate(0, 0, -10)
	for _, p := range []string{old, other, deep} {
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatal(err)
		}
	}

	report := Prune(NewNop(), time.Now(), RetentionTarget{Label: "logs", Dir: dir, Pattern: "*.log", Days: 3})
	if len(report.Removed) != 1 {
		t.Fatalf("expected one removal, got %v", report.Removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("expected old.log removed")
	}
	for _, p := range []string{fresh, other, deep} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s kept: %v", p, err)
		}
	}

	report = Prune(NewNop(), time.Now(), RetentionTarget{Label: "cache", Dir: dir, Pattern: "*.log", Days: 3, Recursive: true})
	if len(report.Removed) != 1 || !strings.HasSuffix(report.Removed[0], "deep.log") {
		t.Fatalf("expected recursive removal of deep.log, got %v", report.Removed)
	}
}
