package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"captionstudio/internal/config"
	"captionstudio/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	ok := CheckFreeSpace("space", dir, 1)
	if !ok.Passed {
		t.Fatalf("expected pass with 1 byte minimum, got: %s", ok.Detail)
	}
	if !strings.Contains(ok.Detail, "GiB free") {
		t.Fatalf("unexpected detail %q", ok.Detail)
	}

	short := CheckFreeSpace("space", dir, 1<<62)
	if short.Passed {
		t.Fatal("expected failure for impossible minimum")
	}
	if !strings.Contains(short.Detail, "need") {
		t.Fatalf("unexpected detail %q", short.Detail)
	}

	missing := CheckFreeSpace("space", filepath.Join(dir, "nope"), 1)
	if missing.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestFormatGiB(t *testing.T) {
	if got := formatGiB(3 << 29); got != "1.50 GiB" {
		t.Fatalf("formatGiB = %q", got)
	}
}

func TestCheckASREndpoint(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		switch r.Header.Get("Authorization") {
		case "Bearer good-key":
			w.WriteHeader(http.StatusOK)
		case "Bearer missing-route":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	apiURL := srv.URL + "/v1/audio/transcriptions"
	cases := []struct {
		key  string
		pass bool
	}{
		{"good-key", true},
		{"missing-route", true},
		{"bad-key", false},
	}
	for _, tc := range cases {
		result := CheckASREndpoint(context.Background(), apiURL, tc.key)
		if result.Passed != tc.pass {
			t.Fatalf("key %s: passed=%v detail=%s", tc.key, result.Passed, result.Detail)
		}
	}
	if gotPath != "/v1/models" {
		t.Fatalf("probed %q, want /v1/models", gotPath)
	}
}

func TestCheckASREndpoint_MissingFields(t *testing.T) {
	if CheckASREndpoint(context.Background(), "", "key").Passed {
		t.Fatal("expected failure for missing URL")
	}
	if CheckASREndpoint(context.Background(), "http://localhost", "").Passed {
		t.Fatal("expected failure for missing key")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_StubbedConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	names := make(map[string]bool)
	for _, r := range results {
		names[r.Name] = true
		if r.Name == "Work free space" {
			continue
		}
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	for _, want := range []string{"Work directory", "Cache directory", "Data directory", "FFmpeg", "FFprobe", "uvx"} {
		if !names[want] {
			t.Fatalf("missing check %q in %+v", want, results)
		}
	}
	if names["Transcription API"] {
		t.Fatal("whisperx backend should not probe the HTTP API")
	}
}

func TestRunAll_HTTPBackendProbesAPI(t *testing.T) {
	var probed atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probed.Store(r.URL.Path == "/v1/models")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("ffmpeg", "ffprobe"), testsupport.WithASRBackend("http"))
	cfg.ASR.APIURL = srv.URL + "/v1/audio/transcriptions"
	cfg.ASR.APIKey = "test-key"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	var api *Result
	results := RunAll(context.Background(), cfg)
	for i := range results {
		if results[i].Name == "Transcription API" {
			api = &results[i]
		}
	}
	if api == nil || !api.Passed {
		t.Fatalf("expected a passing API check, got %+v", results)
	}
	if !probed.Load() {
		t.Fatal("expected the models route to be probed")
	}
}

func TestRunAll_MissingDirsFail(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	results := RunAll(context.Background(), cfg)
	err := Err(results)
	if err == nil {
		t.Fatal("expected error for missing directories")
	}
	if !strings.Contains(err.Error(), "Work directory") {
		t.Fatalf("unexpected error %v", err)
	}
	if len(Failed(results)) < 3 {
		t.Fatalf("expected three directory failures, got %+v", Failed(results))
	}
}

func TestCheckASRFromConfig(t *testing.T) {
	cfg := config.Default()
	if r := CheckASRFromConfig(context.Background(), &cfg); !r.Passed {
		t.Fatalf("whisperx should pass: %s", r.Detail)
	}
	cfg.ASR.Backend = "http"
	cfg.ASR.APIKey = ""
	if r := CheckASRFromConfig(context.Background(), &cfg); r.Passed || r.Detail != "Missing API key" {
		t.Fatalf("unexpected result %+v", r)
	}
	cfg.ASR.Backend = "bogus"
	if r := CheckASRFromConfig(context.Background(), &cfg); r.Passed {
		t.Fatal("unknown backend should fail")
	}
}
