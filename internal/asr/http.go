package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"captionstudio/internal/language"
	"captionstudio/internal/services"
)

// HTTPConfig configures an OpenAI-compatible transcription endpoint.
type HTTPConfig struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// HTTPEngine posts audio to a /v1/audio/transcriptions style endpoint and
// requests verbose_json so segment timestamps come back.
type HTTPEngine struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTPEngine builds the backend. A nil client uses one with cfg.Timeout.
func NewHTTPEngine(cfg HTTPConfig, client *http.Client) *HTTPEngine {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPEngine{cfg: cfg, client: client}
}

func (e *HTTPEngine) Name() string {
	return "http:" + e.cfg.Model
}

type verboseTranscription struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Start *float64 `json:"start"`
		End   *float64 `json:"end"`
		Text  string   `json:"text"`
	} `json:"segments"`
}

func (e *HTTPEngine) Transcribe(ctx context.Context, req Request) Result {
	body, contentType, err := e.buildForm(req)
	if err != nil {
		return Failure{Err: services.Wrap(services.ErrASRFailure, "asr", "http", "build request body", err)}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL, body)
	if err != nil {
		return Failure{Err: services.Wrap(services.ErrConfiguration, "asr", "http", "invalid api url", err)}
	}
	httpReq.Header.Set("Content-Type", contentType)
	if e.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return Failure{Err: services.Wrap(services.ErrTransient, "asr", "http", "transcription request failed", err)}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return Failure{Err: services.Wrap(services.ErrTransient, "asr", "http", "read transcription response", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("endpoint returned %s", resp.Status)
		return Failure{Err: services.Wrap(services.ErrASRFailure, "asr", "http", msg, fmt.Errorf("%s", tail(strings.TrimSpace(string(payload)), 256)))}
	}

	var parsed verboseTranscription
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return Failure{Err: services.Wrap(services.ErrASRFailure, "asr", "http", "decode transcription response", err)}
	}
	if len(parsed.Segments) == 0 {
		return PlainText{Text: parsed.Text}
	}
	chunks := make([]Chunk, 0, len(parsed.Segments))
	for _, seg := range parsed.Segments {
		chunks = append(chunks, Chunk{Start: seg.Start, End: seg.End, Text: seg.Text})
	}
	return Chunks{Chunks: chunks}
}

func (e *HTTPEngine) buildForm(req Request) (io.Reader, string, error) {
	file, err := os.Open(req.AudioPath)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filepath.Base(req.AudioPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", err
	}
	fields := [][2]string{
		{"model", e.cfg.Model},
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "segment"},
	}
	if lang := language.ToISO2(req.Language); lang != "" {
		fields = append(fields, [2]string{"language", lang})
	}
	for _, f := range fields {
		if err := form.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := form.Close(); err != nil {
		return nil, "", err
	}
	return &buf, form.FormDataContentType(), nil
}
