package preflight

import (
	"context"
	"strings"

	"captionstudio/internal/config"
)

// CheckASRFromConfig evaluates transcription backend status for status UIs.
func CheckASRFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "Transcription"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	switch cfg.ASR.Backend {
	case "whisperx":
		return Result{Name: name, Passed: true, Detail: "WhisperX (" + cfg.ASR.Model + ", local)"}
	case "http":
		if strings.TrimSpace(cfg.ASR.APIKey) == "" {
			return Result{Name: name, Detail: "Missing API key"}
		}
		check := CheckASREndpoint(ctx, cfg.ASR.APIURL, cfg.ASR.APIKey)
		check.Name = name
		return check
	default:
		return Result{Name: name, Detail: "Unknown backend " + cfg.ASR.Backend}
	}
}
