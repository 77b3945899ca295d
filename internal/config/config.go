package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir  string `toml:"work_dir"`
	LogDir   string `toml:"log_dir"`
	CacheDir string `toml:"cache_dir"`
	DataDir  string `toml:"data_dir"`
}

// ASR contains configuration for the speech recognition backend.
type ASR struct {
	// Backend selects the engine: "whisperx" (local uvx CLI) or "http"
	// (OpenAI-compatible transcription endpoint).
	Backend           string `toml:"backend"`
	Model             string `toml:"model"`
	Language          string `toml:"language"`
	AlternateLanguage string `toml:"alternate_language"`
	APIURL            string `toml:"api_url"`
	APIKey            string `toml:"api_key"`
	CUDAEnabled       bool   `toml:"cuda_enabled"`
	// Chunking for the primary attempt and for the alternate-language retry.
	ChunkSeconds          int  `toml:"chunk_seconds"`
	StrideSeconds         int  `toml:"stride_seconds"`
	RetryChunkSeconds     int  `toml:"retry_chunk_seconds"`
	RetryStrideSeconds    int  `toml:"retry_stride_seconds"`
	ExtractTimeoutSeconds int  `toml:"extract_timeout_seconds"`
	RequestTimeoutSeconds int  `toml:"request_timeout_seconds"`
	CacheEnabled          bool `toml:"cache_enabled"`
}

// Export contains configuration for the burn-in export pipeline.
type Export struct {
	FrameRate           int    `toml:"frame_rate"`
	MaxSeconds          int    `toml:"max_seconds"`
	StallTimeoutSeconds int    `toml:"stall_timeout_seconds"`
	VideoCodec          string `toml:"video_codec"`
	AudioCodec          string `toml:"audio_codec"`
	Container           string `toml:"container"`
	MimeType            string `toml:"mime_type"`
	FontPath            string `toml:"font_path"`
	Realtime            bool   `toml:"realtime"`
}

// Preview contains the preview composition geometry.
type Preview struct {
	Width      int `toml:"width"`
	Height     int `toml:"height"`
	FrameRate  int `toml:"frame_rate"`
	MaxSeconds int `toml:"max_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Maintenance contains configuration for the scheduled cleanup loop.
type Maintenance struct {
	Schedule              string `toml:"schedule"`
	ArtifactRetentionDays int    `toml:"artifact_retention_days"`
}

// Config encapsulates all configuration values for captionstudio.
//
// Configuration sections by subsystem:
//   - Paths: work, log, cache and data directories
//   - ASR: transcription backend, language hints, chunking and timeouts
//   - Export: frame rate, wall-clock cap and encoder settings
//   - Preview: composition geometry for preview stills
//   - Logging: log format, level, and retention
//   - Maintenance: cron schedule for workspace retention
type Config struct {
	Paths       Paths       `toml:"paths"`
	ASR         ASR         `toml:"asr"`
	Export      Export      `toml:"export"`
	Preview     Preview     `toml:"preview"`
	Logging     Logging     `toml:"logging"`
	Maintenance Maintenance `toml:"maintenance"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/captionstudio/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file next to the config (or in the
// working directory) is loaded first so API keys can live outside the TOML file.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	loadDotEnv(resolvedPath)

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv never overrides variables that are already set.
func loadDotEnv(configPath string) {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append([]string{filepath.Join(filepath.Dir(configPath), ".env")}, candidates...)
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			_ = godotenv.Load(candidate)
		}
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if os.IsNotExist(err) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path %q is a directory", expanded)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("captionstudio.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the CLI writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir, c.Paths.CacheDir, c.Paths.DataDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// JobsDBPath returns the SQLite job history location.
func (c *Config) JobsDBPath() string {
	return filepath.Join(c.Paths.DataDir, "jobs.db")
}

// TranscriptCacheDir returns the directory holding cached normalized transcripts.
func (c *Config) TranscriptCacheDir() string {
	return filepath.Join(c.Paths.CacheDir, "transcripts")
}

// ModelCacheDir returns the directory used by the ASR engine for model state and its load lock.
func (c *Config) ModelCacheDir() string {
	return filepath.Join(c.Paths.CacheDir, "models")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	redacted := *c
	if redacted.ASR.APIKey != "" {
		redacted.ASR.APIKey = "********"
	}
	data, err := toml.Marshal(redacted)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
