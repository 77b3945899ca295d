package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"captionstudio/internal/captions"
	"captionstudio/internal/config"
	"captionstudio/internal/jobs"
	"captionstudio/internal/logging"
	"captionstudio/internal/overlay"
	"captionstudio/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	cfg.Logging.Format = "json"

	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	configPath := filepath.Join(base, "config.toml")
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func (e *cliTestEnv) writeCaptions(t *testing.T, segments []captions.Segment) string {
	t.Helper()
	path := filepath.Join(e.baseDir, "clip_captions.json")
	if err := captions.Save(path, segments); err != nil {
		t.Fatalf("save captions: %v", err)
	}
	return path
}

var sampleSegments = []captions.Segment{
	{Start: 0, End: 2.5, Text: "Hello there"},
	{Start: 2.5, End: 5, Text: "General Kenobi"},
	{Start: 19, End: 24, Text: "Runs past the preview"},
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(env.baseDir, "fresh", "config.toml")

	out, _, err := env.run(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("unexpected output %q", out)
	}
	if _, _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config exists")
	}

	out, _, err = env.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") || !strings.Contains(out, env.configPath) {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestConfigShowRedactsKey(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv("CAPTIONSTUDIO_ASR_API_KEY", "sk-secret")

	out, _, err := env.run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "sk-secret") {
		t.Fatal("api key leaked in config show")
	}
	if !strings.Contains(out, "[export]") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestCaptionsShowAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.writeCaptions(t, sampleSegments)

	out, _, err := env.run(t, "captions", "show", path)
	if err != nil {
		t.Fatalf("captions show: %v", err)
	}
	if !strings.Contains(out, "General Kenobi") || !strings.Contains(out, "3 captions") {
		t.Fatalf("unexpected output %q", out)
	}
	if !strings.Contains(out, "0:02.500") {
		t.Fatalf("expected formatted times in %q", out)
	}

	if _, _, err := env.run(t, "captions", "validate", path); err != nil {
		t.Fatalf("captions validate: %v", err)
	}

	bad := filepath.Join(env.baseDir, "bad.json")
	if err := os.WriteFile(bad, []byte(`[{"start":3,"end":1,"text":"x"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := env.run(t, "captions", "validate", bad); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestPreviewRendersPNG(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.writeCaptions(t, sampleSegments)
	target := filepath.Join(env.baseDir, "still.png")

	out, _, err := env.run(t, "preview", path, "--at", "1", "--style", "karaoke", "--output", target)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !strings.Contains(out, "Hello there") {
		t.Fatalf("expected active caption in %q", out)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read png: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Fatal("output is not a PNG")
	}

	if _, _, err := env.run(t, "preview", path, "--at", "25"); err == nil {
		t.Fatal("expected error past the preview timeline")
	}
	if _, _, err := env.run(t, "preview", path, "--style", "neon"); err == nil {
		t.Fatal("expected error for unknown style")
	}
}

func TestPreviewListsCues(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.writeCaptions(t, sampleSegments)

	out, _, err := env.run(t, "preview", path, "--cues")
	if err != nil {
		t.Fatalf("preview --cues: %v", err)
	}
	if !strings.Contains(out, "600 frames") || !strings.Contains(out, "clipped") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestExportFailureWritesInstructionsAndRecordsJob(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.writeCaptions(t, sampleSegments)
	video := filepath.Join(env.baseDir, "clip.mp4")
	testsupport.WriteFile(t, video, 1024)

	_, stderr, err := env.run(t, "export", video, "--captions", path, "--style", "top", "--skip-preflight")
	if err == nil {
		t.Fatal("expected export to fail with stub ffprobe")
	}
	doc := filepath.Join(env.baseDir, "clip_export_instructions.txt")
	data, readErr := os.ReadFile(doc)
	if readErr != nil {
		t.Fatalf("fallback instructions missing (stderr %q): %v", stderr, readErr)
	}
	if !strings.Contains(string(data), "General Kenobi") || !strings.Contains(string(data), "--style top") {
		t.Fatalf("unexpected instructions %q", data)
	}

	store := testsupport.MustOpenStore(t, env.cfg)
	list, err := store.List(context.Background(), jobs.Filter{Kind: jobs.KindExport})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Status != jobs.StatusFailed || list[0].Style != "top" {
		t.Fatalf("unexpected jobs %+v", list)
	}
}

func TestFallbackInstructionsReportWriteFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	cause := errors.New("encoder exploded")

	var stderr bytes.Buffer
	reportFallbackInstructions(&stderr, filepath.Join(blocker, "clip.mp4"), "webm", sampleSegments, overlay.StyleBottom, cause)
	if !strings.Contains(stderr.String(), "could not be saved") {
		t.Fatalf("expected write failure to be reported, got %q", stderr.String())
	}

	stderr.Reset()
	reportFallbackInstructions(&stderr, filepath.Join(dir, "clip.mp4"), "mp4", sampleSegments, overlay.StyleBottom, cause)
	doc := filepath.Join(dir, "clip_export_instructions.txt")
	if !strings.Contains(stderr.String(), doc) {
		t.Fatalf("expected saved path in %q", stderr.String())
	}
	data, err := os.ReadFile(doc)
	if err != nil {
		t.Fatalf("read instructions: %v", err)
	}
	if !strings.Contains(string(data), "clip_captioned.mp4") {
		t.Fatalf("expected mp4 output in retry command:\n%s", data)
	}
}

func TestCommandContextSharesASRHandle(t *testing.T) {
	env := setupCLITestEnv(t)
	configPath, verbose := env.configPath, false
	cc := newCommandContext(&configPath, &verbose)

	first, err := cc.ensureASR(logging.NewNop())
	if err != nil {
		t.Fatalf("ensureASR: %v", err)
	}
	second, err := cc.ensureASR(logging.NewNop())
	if err != nil {
		t.Fatalf("ensureASR: %v", err)
	}
	if first == nil || first != second {
		t.Fatalf("expected one shared handle, got %p and %p", first, second)
	}
}

func TestExportRejectsBadStyle(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.writeCaptions(t, sampleSegments)
	if _, _, err := env.run(t, "export", filepath.Join(env.baseDir, "clip.mp4"), "--captions", path, "--style", "neon"); err == nil {
		t.Fatal("expected style error")
	}
}

func TestJobsListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "jobs", "list")
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	if !strings.Contains(out, "No jobs recorded") {
		t.Fatalf("unexpected output %q", out)
	}

	store := testsupport.MustOpenStore(t, env.cfg)
	job, err := store.Begin(context.Background(), jobs.Start{Kind: jobs.KindTranscribe, SourcePath: "/videos/clip.mp4"})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := store.Complete(context.Background(), job.ID, jobs.Outcome{CaptionSource: "chunks", Segments: 3}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	out, _, err = env.run(t, "jobs", "list", "--kind", "transcribe")
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	if !strings.Contains(out, job.ID[:8]) || !strings.Contains(out, "completed") {
		t.Fatalf("unexpected output %q", out)
	}

	out, _, err = env.run(t, "jobs", "show", job.ID[:8])
	if err != nil {
		t.Fatalf("jobs show: %v", err)
	}
	if !strings.Contains(out, job.ID) || !strings.Contains(out, "3 (chunks)") {
		t.Fatalf("unexpected output %q", out)
	}

	if _, _, err := env.run(t, "jobs", "show", "zzzz"); err == nil {
		t.Fatal("expected not found")
	}
}

func TestStatusReportsSections(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"Configuration", "Dependencies", "History", "FFmpeg", "Job history", "Maintenance"} {
		if !strings.Contains(out, want) {
			t.Fatalf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestMaintainRunsOnce(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "maintain")
	if err != nil {
		t.Fatalf("maintain: %v", err)
	}
	if !strings.Contains(out, "Removed 0 files") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestLogsFiltersByJob(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(env.cfg.Paths.LogDir, logging.LogFileName)
	content := `{"msg":"start","job_id":"aaa"}` + "\n" + `{"msg":"start","job_id":"bbb"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := env.run(t, "logs", "--job", "bbb")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "aaa") || !strings.Contains(out, "bbb") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatSeconds(65.25); got != "1:05.250" {
		t.Fatalf("formatSeconds = %q", got)
	}
	if got := formatBytes(1536); got != "1.5 KiB" {
		t.Fatalf("formatBytes = %q", got)
	}
	if got := formatBytes(12); got != "12 B" {
		t.Fatalf("formatBytes = %q", got)
	}
	if got := shortID("0123456789"); got != "01234567" {
		t.Fatalf("shortID = %q", got)
	}
}
