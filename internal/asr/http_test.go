package asr

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"captionstudio/internal/services"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(path, []byte("RIFF0000WAVE"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHTTPEngineSegments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.FormValue("response_format") != "verbose_json" {
			t.Errorf("unexpected response_format %q", r.FormValue("response_format"))
		}
		if r.FormValue("language") != "hi" {
			t.Errorf("unexpected language %q", r.FormValue("language"))
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file part: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"a b","segments":[{"start":0,"end":1.2,"text":"a"},{"start":1.2,"end":null,"text":"b"}]}`))
	}))
	defer server.Close()

	engine := NewHTTPEngine(HTTPConfig{URL: server.URL, APIKey: "key", Model: "whisper-1"}, server.Client())
	result := engine.Transcribe(context.Background(), Request{AudioPath: writeAudio(t), Language: "hindi"})
	chunks, ok := result.(Chunks)
	if !ok {
		t.Fatalf("expected Chunks, got %#v", result)
	}
	if len(chunks.Chunks) != 2 || chunks.Chunks[1].End != nil {
		t.Fatalf("unexpected chunks %+v", chunks.Chunks)
	}
}

func TestHTTPEngineTextOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":"Good morning"}`))
	}))
	defer server.Close()

	engine := NewHTTPEngine(HTTPConfig{URL: server.URL, Model: "whisper-1"}, server.Client())
	result := engine.Transcribe(context.Background(), Request{AudioPath: writeAudio(t)})
	plain, ok := result.(PlainText)
	if !ok || plain.Text != "Good morning" {
		t.Fatalf("expected plain text result, got %#v", result)
	}
}

func TestHTTPEngineErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	engine := NewHTTPEngine(HTTPConfig{URL: server.URL, Model: "whisper-1"}, server.Client())
	result := engine.Transcribe(context.Background(), Request{AudioPath: writeAudio(t)})
	failure, ok := result.(Failure)
	if !ok {
		t.Fatalf("expected Failure, got %#v", result)
	}
	if !errors.Is(failure.Err, services.ErrASRFailure) {
		t.Fatalf("expected asr failure marker, got %v", failure.Err)
	}
}

func TestHTTPEngineMissingAudio(t *testing.T) {
	engine := NewHTTPEngine(HTTPConfig{URL: "http://127.0.0.1:1", Model: "whisper-1"}, nil)
	if _, ok := engine.Transcribe(context.Background(), Request{AudioPath: "/nonexistent.wav"}).(Failure); !ok {
		t.Fatal("expected failure for missing audio file")
	}
}
