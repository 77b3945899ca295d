package asr

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"captionstudio/internal/config"
	"captionstudio/internal/deps"
	"captionstudio/internal/logging"
)

// NewHandleFromConfig builds the engine handle for the configured backend.
// The handle is unloaded; the first transcription triggers the load.
func NewHandleFromConfig(cfg *config.Config, logger *slog.Logger, runner CommandRunner) (*Handle, error) {
	loader, err := LoaderFor(cfg, logger, runner)
	if err != nil {
		return nil, err
	}
	return NewHandle(loader, HandleOptions{
		LockPath: filepath.Join(cfg.ModelCacheDir(), ".load.lock"),
		Logger:   logger,
	}), nil
}

// LoaderFor returns the Loader for cfg.ASR.Backend.
func LoaderFor(cfg *config.Config, logger *slog.Logger, runner CommandRunner) (Loader, error) {
	if cfg == nil {
		return nil, fmt.Errorf("asr: config required")
	}
	logger = logging.NewComponentLogger(logger, "asr")
	switch cfg.ASR.Backend {
	case "whisperx":
		engine := NewWhisperXEngine(WhisperXConfig{
			Model:       cfg.ASR.Model,
			CUDAEnabled: cfg.ASR.CUDAEnabled,
			ModelDir:    cfg.ModelCacheDir(),
			WorkDir:     cfg.Paths.WorkDir,
		}, runner)
		return func(ctx context.Context, progress ProgressFunc) (Engine, error) {
			if runner == nil {
				if err := deps.Require(deps.Requirement{Name: "uvx", Command: UVXCommand}); err != nil {
					return nil, err
				}
			}
			if err := os.MkdirAll(cfg.ModelCacheDir(), 0o755); err != nil {
				return nil, fmt.Errorf("ensure model cache: %w", err)
			}
			progress.Emit(PhaseLoad, fmt.Sprintf("Preparing WhisperX (%s)", cfg.ASR.Model), 10)
			if err := engine.Warm(ctx); err != nil {
				return nil, err
			}
			return engine, nil
		}, nil
	case "http":
		parsed, err := url.Parse(cfg.ASR.APIURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("asr: invalid api_url %q", cfg.ASR.APIURL)
		}
		timeout := time.Duration(cfg.ASR.RequestTimeoutSeconds) * time.Second
		return func(ctx context.Context, progress ProgressFunc) (Engine, error) {
			if cfg.ASR.APIKey == "" {
				logger.Info("asr api key not set; sending unauthenticated requests",
					logging.String("api_url", cfg.ASR.APIURL))
			}
			progress.Emit(PhaseLoad, "Using remote transcription endpoint "+parsed.Host, 50)
			return NewHTTPEngine(HTTPConfig{
				URL:     cfg.ASR.APIURL,
				APIKey:  cfg.ASR.APIKey,
				Model:   cfg.ASR.Model,
				Timeout: timeout,
			}, nil), nil
		}, nil
	default:
		return nil, fmt.Errorf("asr: unsupported backend %q", cfg.ASR.Backend)
	}
}
