package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"captionstudio/internal/asr"
	"captionstudio/internal/captions"
	"captionstudio/internal/config"
	"captionstudio/internal/language"
	"captionstudio/internal/logging"
	"captionstudio/internal/services"
)

const stageTranscribe = "transcribe"

// EngineProvider hands out a loaded engine. *asr.Handle implements it.
type EngineProvider interface {
	Engine(ctx context.Context, progress asr.ProgressFunc) (asr.Engine, error)
}

// AudioExtractor stages a source's audio for the engine. asr.Extractor
// implements it.
type AudioExtractor interface {
	Extract(ctx context.Context, source, dest string) (asr.Extraction, error)
}

// Chunking is the window configuration for one attempt.
type Chunking struct {
	ChunkSeconds  int
	StrideSeconds int
}

// Options configures a Service.
type Options struct {
	Language          string
	AlternateLanguage string
	Primary           Chunking
	Retry             Chunking
	WorkDir           string
	// Backend and Model qualify cache keys so switching engines does not
	// serve stale transcripts.
	Backend string
	Model   string
}

// Request describes one transcription.
type Request struct {
	SourcePath string
	// Language overrides the configured primary hint.
	Language  string
	JobID     string
	SkipCache bool
	Progress  asr.ProgressFunc
}

// Outcome is a finished transcription. It is always usable: when recognition
// fails the fallback captions are returned with Source set to fallback and
// Warnings explaining why.
type Outcome struct {
	JobID       string
	Segments    []captions.Segment
	Source      captions.Source
	Language    string
	Detected    language.Detection
	Attempts    int
	Cached      bool
	SilentAudio bool
	Warnings    []string
	Elapsed     time.Duration
}

// Fallback reports whether the placeholder captions were returned.
func (o Outcome) Fallback() bool {
	return o.Source == captions.SourceFallback
}

// Service runs extraction, recognition, retry and normalization.
type Service struct {
	engines   EngineProvider
	extractor AudioExtractor
	cache     *Cache
	opts      Options
	logger    *slog.Logger
}

// NewService assembles a Service. cache may be nil.
func NewService(engines EngineProvider, extractor AudioExtractor, cache *Cache, opts Options, logger *slog.Logger) *Service {
	if opts.Primary.ChunkSeconds <= 0 {
		opts.Primary = Chunking{ChunkSeconds: 15, StrideSeconds: 2}
	}
	if opts.Retry.ChunkSeconds <= 0 {
		opts.Retry = Chunking{ChunkSeconds: 30, StrideSeconds: 5}
	}
	return &Service{
		engines:   engines,
		extractor: extractor,
		cache:     cache,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "transcribe"),
	}
}

// NewFromConfig wires a Service to handle using cfg.
func NewFromConfig(cfg *config.Config, handle *asr.Handle, logger *slog.Logger) *Service {
	var cache *Cache
	if cfg.ASR.CacheEnabled {
		cache = NewCache(cfg.TranscriptCacheDir(), logger)
	}
	extractor := asr.Extractor{
		FFmpeg:  cfg.FFmpegBinary(),
		Timeout: time.Duration(cfg.ASR.ExtractTimeoutSeconds) * time.Second,
	}
	return NewService(handle, extractor, cache, Options{
		Language:          cfg.ASR.Language,
		AlternateLanguage: cfg.ASR.AlternateLanguage,
		Primary:           Chunking{ChunkSeconds: cfg.ASR.ChunkSeconds, StrideSeconds: cfg.ASR.StrideSeconds},
		Retry:             Chunking{ChunkSeconds: cfg.ASR.RetryChunkSeconds, StrideSeconds: cfg.ASR.RetryStrideSeconds},
		WorkDir:           cfg.Paths.WorkDir,
		Backend:           cfg.ASR.Backend,
		Model:             cfg.ASR.Model,
	}, logger)
}

// Transcribe produces captions for req.SourcePath. Errors are returned only
// for invalid requests, cancellation and local I/O failures; recognition
// problems degrade to fallback captions.
func (s *Service) Transcribe(ctx context.Context, req Request) (Outcome, error) {
	started := time.Now()
	source := strings.TrimSpace(req.SourcePath)
	if source == "" {
		return Outcome{}, services.Wrap(services.ErrValidation, stageTranscribe, "request", "source path is required", nil)
	}
	info, err := os.Stat(source)
	if err != nil {
		return Outcome{}, services.Wrap(services.ErrNotFound, stageTranscribe, "request", "source video not readable", err)
	}
	if info.IsDir() {
		return Outcome{}, services.Wrap(services.ErrValidation, stageTranscribe, "request", "source is a directory", nil)
	}

	primary := strings.TrimSpace(req.Language)
	if primary == "" {
		primary = s.opts.Language
	}
	jobID := req.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	}
	ctx = services.WithStage(services.WithJobID(ctx, jobID), stageTranscribe)
	logger := logging.WithContext(ctx, s.logger)
	progress := req.Progress

	key := ""
	if s.cache != nil && !req.SkipCache {
		key, err = CacheKey(source, primary, s.opts.AlternateLanguage, s.opts.Backend, s.opts.Model)
		if err != nil {
			logging.WarnWithContext(logger, "transcript cache key unavailable", "transcript_cache_key_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "transcript will not be cached"))
		} else if entry, ok := s.cache.Lookup(key); ok {
			logger.Info("transcript cache hit",
				logging.String("key", key),
				logging.Int("segments", len(entry.Segments)))
			progress.Emit(asr.PhaseDone, "Loaded cached transcript", 100)
			return Outcome{
				JobID:    jobID,
				Segments: entry.Segments,
				Source:   entry.Origin,
				Language: entry.Language,
				Detected: language.Detect(joinText(entry.Segments)),
				Cached:   true,
				Elapsed:  time.Since(started),
			}, nil
		}
	}

	if s.opts.WorkDir != "" {
		if err := os.MkdirAll(s.opts.WorkDir, 0o755); err != nil {
			return Outcome{}, fmt.Errorf("ensure work dir: %w", err)
		}
	}
	workDir, err := os.MkdirTemp(s.opts.WorkDir, "transcribe-")
	if err != nil {
		return Outcome{}, fmt.Errorf("create transcription workspace: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Debug("failed to remove transcription workspace", logging.String("path", workDir), logging.Error(err))
		}
	}()

	outcome := Outcome{JobID: jobID, Language: primary}

	progress.Emit(asr.PhaseExtract, "Extracting audio", 5)
	extraction, err := s.extractor.Extract(ctx, source, filepath.Join(workDir, "audio.wav"))
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		return Outcome{}, services.Wrap(services.ErrTransient, stageTranscribe, "extract", "could not stage audio", err)
	}
	if extraction.Silent {
		outcome.SilentAudio = true
		outcome.Warnings = append(outcome.Warnings, "audio extraction failed; transcribed one second of silence")
		logging.WarnWithContext(logger, "audio extraction fell back to silence", "audio_extraction_fallback",
			logging.Error(extraction.Cause),
			logging.String(logging.FieldImpact, "captions will be placeholders"),
			logging.String(logging.FieldErrorHint, "check that the source has a decodable audio track"))
	}

	result, used, attempts, err := s.recognize(ctx, logger, extraction.Path, primary, progress)
	if err != nil {
		return Outcome{}, err
	}
	outcome.Attempts = attempts
	if used != "" {
		outcome.Language = used
	}

	progress.Emit(asr.PhaseNormalize, "Preparing captions", 90)
	normalized := captions.Normalize(result)
	outcome.Segments = normalized.Segments
	outcome.Source = normalized.Source
	if normalized.Fallback() {
		outcome.Warnings = append(outcome.Warnings, normalized.Warning)
		logging.WarnWithContext(logger, "transcription unavailable; using placeholder captions", "asr_fallback",
			logging.String("reason", normalized.Warning),
			logging.Int("attempts", attempts),
			logging.String(logging.FieldImpact, "captions are placeholders, not the spoken text"),
			logging.String(logging.FieldErrorHint, "check the speech engine logs or retry with --language"))
	} else {
		outcome.Detected = language.Detect(joinText(outcome.Segments))
	}
	if normalized.Dropped > 0 {
		logger.Debug("normalizer dropped chunks", logging.Int("dropped", normalized.Dropped))
	}

	if key != "" && !normalized.Fallback() && !extraction.Silent {
		if err := s.cache.Store(Entry{
			Key:              key,
			SourceName:       filepath.Base(source),
			Language:         outcome.Language,
			DetectedLanguage: outcome.Detected.Code,
			Origin:           outcome.Source,
			Segments:         outcome.Segments,
		}); err != nil {
			logging.WarnWithContext(logger, "failed to cache transcript", "transcript_cache_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "next run will transcribe again"))
		}
	}

	outcome.Elapsed = time.Since(started)
	progress.Emit(asr.PhaseDone, fmt.Sprintf("Generated %d captions", len(outcome.Segments)), 100)
	logger.Info("transcription complete",
		logging.Int("segments", len(outcome.Segments)),
		logging.String("source_kind", string(outcome.Source)),
		logging.String("language", outcome.Language),
		logging.String("detected_language", outcome.Detected.Code),
		logging.Int("attempts", outcome.Attempts),
		logging.Duration("elapsed", outcome.Elapsed),
	)
	return outcome, nil
}

// recognize runs the primary attempt and, when it yields nothing usable, one
// retry with the alternate language hint and the wider retry windows.
func (s *Service) recognize(ctx context.Context, logger *slog.Logger, audioPath, primary string, progress asr.ProgressFunc) (asr.Result, string, int, error) {
	engine, err := s.engines.Engine(ctx, progress)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", 0, ctx.Err()
		}
		return asr.Failure{Err: services.Wrap(services.ErrASRFailure, stageTranscribe, "load engine", "speech engine unavailable", err)}, "", 0, nil
	}

	progress.Emit(asr.PhaseTranscribe, fmt.Sprintf("Transcribing (%s)", language.DisplayName(primary)), 40)
	result := engine.Transcribe(ctx, asr.Request{
		AudioPath:     audioPath,
		Language:      primary,
		ChunkSeconds:  s.opts.Primary.ChunkSeconds,
		StrideSeconds: s.opts.Primary.StrideSeconds,
	})
	if ctx.Err() != nil {
		return nil, "", 1, ctx.Err()
	}
	if asr.Usable(result) {
		return result, primary, 1, nil
	}

	alternate := strings.TrimSpace(s.opts.AlternateLanguage)
	if alternate == "" || language.Same(alternate, primary) {
		return result, primary, 1, nil
	}
	logger.Info("retrying transcription with alternate language",
		logging.Args(logging.DecisionAttrs("asr_retry", "retry", describeResult(result))...)...)
	progress.Emit(asr.PhaseRetry, fmt.Sprintf("Retrying with %s", language.DisplayName(alternate)), 60)
	retry := engine.Transcribe(ctx, asr.Request{
		AudioPath:     audioPath,
		Language:      alternate,
		ChunkSeconds:  s.opts.Retry.ChunkSeconds,
		StrideSeconds: s.opts.Retry.StrideSeconds,
	})
	if ctx.Err() != nil {
		return nil, "", 2, ctx.Err()
	}
	if asr.Usable(retry) {
		return retry, alternate, 2, nil
	}
	// A primary engine failure explains more than an empty retry.
	if _, retryFailed := retry.(asr.Failure); !retryFailed {
		if _, primaryFailed := result.(asr.Failure); primaryFailed {
			return result, primary, 2, nil
		}
	}
	return retry, alternate, 2, nil
}

func describeResult(r asr.Result) string {
	switch v := r.(type) {
	case asr.Failure:
		if v.Err != nil {
			return v.Err.Error()
		}
		return "engine failed"
	case asr.Chunks:
		return "no usable chunks"
	case asr.PlainText:
		return "empty transcript"
	default:
		return "no result"
	}
}

func joinText(segments []captions.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " ")
}
