package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"captionstudio/internal/language"
	"captionstudio/internal/services"
)

// WhisperX tuning shared by every run.
const (
	UVXCommand        = "uvx"
	CUDAIndexURL      = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL      = "https://pypi.org/simple"
	whisperXBatchSize = "4"
	whisperXBeamSize  = "5"
	cpuDevice         = "cpu"
	cudaDevice        = "cuda"
	cpuComputeType    = "float32"
)

// WhisperXConfig captures runtime settings for the WhisperX backend.
type WhisperXConfig struct {
	Model       string
	CUDAEnabled bool
	// ModelDir is where WhisperX caches downloaded model weights.
	ModelDir string
	// WorkDir receives per-run output directories.
	WorkDir string
}

// WhisperXEngine runs the WhisperX CLI through uvx.
type WhisperXEngine struct {
	cfg    WhisperXConfig
	runner CommandRunner
}

// NewWhisperXEngine builds the backend. A nil runner executes real commands.
func NewWhisperXEngine(cfg WhisperXConfig, runner CommandRunner) *WhisperXEngine {
	if runner == nil {
		runner = runCommand
	}
	return &WhisperXEngine{cfg: cfg, runner: runner}
}

func (e *WhisperXEngine) Name() string {
	return "whisperx:" + e.cfg.Model
}

// Warm installs the WhisperX environment so the first transcription does not
// pay for package resolution.
func (e *WhisperXEngine) Warm(ctx context.Context) error {
	args := append(e.indexArgs(), "whisperx", "--help")
	if err := e.runner(ctx, UVXCommand, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "asr", "warm whisperx", "uvx could not start whisperx", err)
	}
	return nil
}

func (e *WhisperXEngine) Transcribe(ctx context.Context, req Request) Result {
	if strings.TrimSpace(req.AudioPath) == "" {
		return Failure{Err: services.Wrap(services.ErrValidation, "asr", "whisperx", "audio path required", nil)}
	}
	base := e.cfg.WorkDir
	if base == "" {
		base = filepath.Dir(req.AudioPath)
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return Failure{Err: fmt.Errorf("whisperx: ensure work dir: %w", err)}
	}
	outputDir, err := os.MkdirTemp(base, "whisperx-")
	if err != nil {
		return Failure{Err: fmt.Errorf("whisperx: create output dir: %w", err)}
	}
	defer os.RemoveAll(outputDir)

	if err := e.runner(ctx, UVXCommand, e.buildArgs(req, outputDir)...); err != nil {
		return Failure{Err: services.Wrap(services.ErrASRFailure, "asr", "whisperx", "transcription command failed", err)}
	}

	stem := strings.TrimSuffix(filepath.Base(req.AudioPath), filepath.Ext(req.AudioPath))
	chunks, err := loadWhisperXChunks(filepath.Join(outputDir, stem+".json"))
	if err != nil {
		return Failure{Err: services.Wrap(services.ErrASRFailure, "asr", "whisperx", "unreadable whisperx output", err)}
	}
	return Chunks{Chunks: chunks}
}

func (e *WhisperXEngine) indexArgs() []string {
	if e.cfg.CUDAEnabled {
		return []string{"--index-url", CUDAIndexURL, "--extra-index-url", PypiIndexURL}
	}
	return []string{"--index-url", PypiIndexURL}
}

// buildArgs constructs the uvx command arguments for WhisperX. WhisperX has
// no stride knob; its VAD cuts chunks on silence instead.
func (e *WhisperXEngine) buildArgs(req Request, outputDir string) []string {
	args := make([]string, 0, 32)
	args = append(args, e.indexArgs()...)
	args = append(args,
		"whisperx",
		req.AudioPath,
		"--model", e.cfg.Model,
		"--batch_size", whisperXBatchSize,
		"--beam_size", whisperXBeamSize,
		"--output_dir", outputDir,
		"--output_format", "json",
		"--segment_resolution", "sentence",
	)
	if req.ChunkSeconds > 0 {
		args = append(args, "--chunk_size", strconv.Itoa(req.ChunkSeconds))
	}
	if e.cfg.ModelDir != "" {
		args = append(args, "--model_dir", e.cfg.ModelDir)
	}
	if lang := language.ToISO2(req.Language); lang != "" {
		args = append(args, "--language", lang)
	}
	if e.cfg.CUDAEnabled {
		args = append(args, "--device", cudaDevice)
	} else {
		args = append(args, "--device", cpuDevice, "--compute_type", cpuComputeType)
	}
	return args
}

type whisperXPayload struct {
	Segments []whisperXSegment `json:"segments"`
}

type whisperXSegment struct {
	Text  string           `json:"text"`
	Start *decimal.Decimal `json:"start"`
	End   *decimal.Decimal `json:"end"`
}

func loadWhisperXChunks(path string) ([]Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	chunks := make([]Chunk, 0, len(payload.Segments))
	for _, seg := range payload.Segments {
		chunks = append(chunks, Chunk{
			Start: decimalSeconds(seg.Start),
			End:   decimalSeconds(seg.End),
			Text:  seg.Text,
		})
	}
	return chunks, nil
}

func decimalSeconds(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	return Seconds(d.InexactFloat64())
}
