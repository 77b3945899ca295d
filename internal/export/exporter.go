package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"captionstudio/internal/burnin"
	"captionstudio/internal/captions"
	"captionstudio/internal/config"
	"captionstudio/internal/logging"
	"captionstudio/internal/overlay"
	"captionstudio/internal/services"
)

const (
	stageExport = "export"

	defaultFrameRate    = 30
	defaultStallTimeout = 10 * time.Second
	defaultAudioGrace   = 5 * time.Second
	finalizeTimeout     = time.Minute
	// capWriteGrace is how long a frame write blocked at the duration cap may
	// take to complete once audio has been stopped.
	capWriteGrace = 2 * time.Second
)

// Options tunes an Exporter. Zero values select the defaults.
type Options struct {
	FrameRate    int
	MaxDuration  time.Duration
	StallTimeout time.Duration
	// AudioGrace is how long finalization waits for the audio track to end
	// on its own before the capture is stopped.
	AudioGrace time.Duration
	VideoCodec string
	AudioCodec string
	Container  string
	MimeType   string
	Realtime   bool

	// OnState observes every job state transition.
	OnState func(State)
	// OnProgress observes frame progress.
	OnProgress func(Progress)
}

// Progress reports how far the frame loop has got.
type Progress struct {
	JobID    string
	Frames   int
	Position float64
	// Percent is relative to the expected output length, or -1 when unknown.
	Percent float64
}

// OptionsFromConfig maps the export section of cfg onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		FrameRate:    cfg.Export.FrameRate,
		MaxDuration:  time.Duration(cfg.Export.MaxSeconds) * time.Second,
		StallTimeout: time.Duration(cfg.Export.StallTimeoutSeconds) * time.Second,
		VideoCodec:   cfg.Export.VideoCodec,
		AudioCodec:   cfg.Export.AudioCodec,
		Container:    cfg.Export.Container,
		MimeType:     cfg.Export.MimeType,
		Realtime:     cfg.Export.Realtime,
	}
}

func (o Options) withDefaults() Options {
	hardCap := time.Duration(config.HardExportCapSeconds) * time.Second
	if o.FrameRate <= 0 {
		o.FrameRate = defaultFrameRate
	}
	if o.MaxDuration <= 0 || o.MaxDuration > hardCap {
		o.MaxDuration = hardCap
	}
	if o.StallTimeout <= 0 {
		o.StallTimeout = defaultStallTimeout
	}
	if o.AudioGrace <= 0 {
		o.AudioGrace = defaultAudioGrace
	}
	if strings.TrimSpace(o.Container) == "" {
		o.Container = "webm"
	}
	if strings.TrimSpace(o.MimeType) == "" {
		o.MimeType = "video/" + o.Container
	}
	return o
}

// Request describes one export.
type Request struct {
	JobID      string
	SourcePath string
	Segments   []captions.Segment
	Style      overlay.Style
}

// Exporter burns captions into a source video.
type Exporter struct {
	backend  Backend
	renderer *burnin.Renderer
	opts     Options
	logger   *slog.Logger
}

// New builds an Exporter over backend.
func New(backend Backend, renderer *burnin.Renderer, opts Options, logger *slog.Logger) (*Exporter, error) {
	if backend == nil {
		return nil, errors.New("export: backend is required")
	}
	if renderer == nil {
		return nil, errors.New("export: renderer is required")
	}
	return &Exporter{
		backend:  backend,
		renderer: renderer,
		opts:     opts.withDefaults(),
		logger:   logging.NewComponentLogger(logger, "export"),
	}, nil
}

// NewFromConfig builds an ffmpeg-backed Exporter. configure, when set, may
// adjust the options derived from cfg, typically to attach observers.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, configure func(*Options)) (*Exporter, error) {
	if cfg == nil {
		return nil, errors.New("export: config is required")
	}
	renderer, err := burnin.New(cfg.Export.FontPath)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageExport, "load font", "caption font unusable", err)
	}
	opts := OptionsFromConfig(cfg)
	if configure != nil {
		configure(&opts)
	}
	backend := FFmpegBackend{FFmpeg: cfg.FFmpegBinary(), FFprobe: cfg.FFprobeBinary()}
	exp, err := New(backend, renderer, opts, logger)
	if err != nil {
		_ = renderer.Close()
		return nil, err
	}
	return exp, nil
}

// Close releases the renderer's font faces.
func (e *Exporter) Close() error {
	return e.renderer.Close()
}

// Export renders req to a single encoded artifact.
func (e *Exporter) Export(ctx context.Context, req Request) (art Artifact, err error) {
	if strings.TrimSpace(req.SourcePath) == "" {
		return Artifact{}, services.Wrap(services.ErrValidation, stageExport, "request", "source path is required", nil)
	}
	if err := captions.Validate(req.Segments); err != nil {
		return Artifact{}, services.Wrap(services.ErrValidation, stageExport, "request", "invalid captions", err)
	}
	style := req.Style
	if style == "" {
		style = overlay.StyleBottom
	}
	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}

	started := time.Now()
	deadline := started.Add(e.opts.MaxDuration)
	ctx = services.WithStage(services.WithJobID(ctx, req.JobID), stageExport)
	logger := logging.WithContext(ctx, e.logger)
	job := newJob(req.JobID, e.opts.OnState, logger)

	defer job.release()
	defer func() {
		if r := recover(); r != nil {
			err = services.Wrap(services.ErrEncodeFailure, stageExport, "export", fmt.Sprintf("panic: %v", r), nil)
		}
		if err != nil {
			job.set(StateFailed)
			logging.ErrorWithContext(logger, "export failed", "export_failed",
				logging.String("source", req.SourcePath),
				logging.String("error_kind", string(services.KindOf(err))),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "captions were kept; rerun with the fallback instructions"),
			)
		}
	}()

	job.set(StatePreparing)
	summary, err := e.backend.Probe(ctx, req.SourcePath)
	if err != nil {
		return Artifact{}, services.Wrap(services.ErrDecodeFailure, stageExport, "probe", "could not inspect source", err)
	}
	width, height := summary.Width&^1, summary.Height&^1
	if width < 2 || height < 2 {
		return Artifact{}, services.Wrap(services.ErrDecodeFailure, stageExport, "probe", fmt.Sprintf("unusable video size %dx%d", summary.Width, summary.Height), nil)
	}
	logger.Info("export preparing",
		logging.String("source", req.SourcePath),
		logging.Int("width", width),
		logging.Int("height", height),
		logging.Float64("duration_seconds", summary.Duration),
		logging.Int("segments", len(req.Segments)),
		logging.String("style", string(style)),
	)

	decoder, err := e.backend.OpenDecoder(ctx, DecoderSpec{
		Path:      req.SourcePath,
		Width:     width,
		Height:    height,
		FrameRate: e.opts.FrameRate,
		Realtime:  e.opts.Realtime,
	})
	if err != nil {
		return Artifact{}, services.Wrap(services.ErrDecodeFailure, stageExport, "open decoder", "could not decode source", err)
	}
	job.mu.Lock()
	job.decoder = decoder
	job.mu.Unlock()

	job.set(StateCapturing)
	var warnings []Warning
	if summary.HasAudio {
		capture, aerr := e.backend.OpenAudio(ctx, AudioSpec{Path: req.SourcePath, Realtime: e.opts.Realtime})
		if aerr != nil {
			if ctx.Err() != nil {
				return Artifact{}, fmt.Errorf("export cancelled: %w", ctx.Err())
			}
			werr := services.Wrap(services.ErrAudioCaptureFailure, stageExport, "capture audio", "continuing without audio", aerr)
			warnings = append(warnings, Warning{
				Code:    WarningAudioCaptureFailed,
				Kind:    services.ErrorKindAudioCapture,
				Message: services.Describe(werr),
			})
			logging.WarnWithContext(logger, "audio capture unavailable", "audio_capture_failed",
				logging.Error(aerr),
				logging.String(logging.FieldImpact, "export will contain video only"),
				logging.String(logging.FieldErrorHint, "check the source audio track with ffprobe"),
			)
		} else {
			job.mu.Lock()
			job.audio = capture
			job.mu.Unlock()
		}
	} else {
		logger.Info("source has no audio stream; exporting video only")
	}

	encoder, err := e.backend.OpenEncoder(ctx, EncoderSpec{
		Width:      width,
		Height:     height,
		FrameRate:  e.opts.FrameRate,
		VideoCodec: e.opts.VideoCodec,
		AudioCodec: e.opts.AudioCodec,
		Container:  e.opts.Container,
		Audio:      job.audio,
	})
	if err != nil {
		return Artifact{}, services.Wrap(services.ErrEncodeFailure, stageExport, "open encoder", "could not start encoder", err)
	}
	job.mu.Lock()
	job.encoder = encoder
	job.mu.Unlock()

	expected := e.opts.MaxDuration.Seconds()
	if summary.Duration > 0 && summary.Duration < expected {
		expected = summary.Duration
	}

	job.set(StateRunning)
	var (
		chunks [][]byte
		loop   loopResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for chunk := range encoder.Output() {
			chunks = append(chunks, chunk)
		}
		return nil
	})
	g.Go(func() (lerr error) {
		defer func() {
			if r := recover(); r != nil {
				lerr = services.Wrap(services.ErrEncodeFailure, stageExport, "composite", fmt.Sprintf("frame loop panic: %v", r), nil)
			}
			if lerr != nil {
				_ = encoder.Abort()
			}
		}()
		var err error
		loop, err = e.frameLoop(gctx, job, req.Segments, style, deadline, expected, logger)
		if err != nil {
			return err
		}
		if loop.frames == 0 {
			return services.Wrap(services.ErrDecodeFailure, stageExport, "decode", "source produced no frames", nil)
		}
		job.set(StateFinalizing)
		if loop.encoderAborted {
			return nil
		}
		return e.finish(gctx, job, loop.reason != StopEndOfStream)
	})
	if err := g.Wait(); err != nil {
		return Artifact{}, err
	}

	data := bytes.Join(chunks, nil)
	if len(data) == 0 {
		return Artifact{}, services.Wrap(services.ErrEncodeFailure, stageExport, "finalize", "encoder produced no output", nil)
	}

	switch loop.reason {
	case StopStalled:
		warnings = append(warnings, Warning{
			Code:    WarningStalled,
			Kind:    services.ErrorKindTimeout,
			Message: fmt.Sprintf("source stopped producing frames for %s; output truncated at %.1fs", e.opts.StallTimeout, loop.position),
		})
		logging.WarnWithContext(logger, "export finalized after decoder stall", "export_stalled",
			logging.Duration("stall_timeout", e.opts.StallTimeout),
			logging.Int("frames", loop.frames),
			logging.String(logging.FieldImpact, "output is shorter than the source"),
		)
	case StopDurationCap:
		message := fmt.Sprintf("export reached the %s limit; output truncated at %.1fs", e.opts.MaxDuration, loop.position)
		if loop.encoderAborted {
			message += "; the encoder stopped accepting frames and was not flushed"
		}
		warnings = append(warnings, Warning{
			Code:    WarningDurationCap,
			Kind:    services.ErrorKindTimeout,
			Message: message,
		})
		logging.WarnWithContext(logger, "export finalized at duration cap", "export_duration_cap",
			logging.Duration("cap", e.opts.MaxDuration),
			logging.Int("frames", loop.frames),
			logging.String(logging.FieldImpact, "output is shorter than the source"),
			logging.String(logging.FieldErrorHint, "trim the source below the export limit"),
		)
	}

	art = Artifact{
		Data:       data,
		MimeType:   e.opts.MimeType,
		Width:      width,
		Height:     height,
		Frames:     loop.frames,
		FrameRate:  e.opts.FrameRate,
		HasAudio:   job.audio != nil,
		Truncated:  loop.reason != StopEndOfStream,
		StopReason: loop.reason,
		Warnings:   warnings,
	}
	job.set(StateDone)
	logger.Info("export complete",
		logging.Int("frames", art.Frames),
		logging.Int("bytes", len(art.Data)),
		logging.Bool("has_audio", art.HasAudio),
		logging.String("stop_reason", string(art.StopReason)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return art, nil
}

type loopResult struct {
	frames   int
	position float64
	reason   StopReason
	// encoderAborted is set when the cap passed while the encoder was
	// refusing input and it had to be stopped without a flush.
	encoderAborted bool
}

// frameLoop pulls, composites and encodes frames until end of stream, a
// decoder stall or the wall-clock deadline.
func (e *Exporter) frameLoop(ctx context.Context, job *Job, segments []captions.Segment, style overlay.Style, deadline time.Time, expected float64, logger *slog.Logger) (loopResult, error) {
	capCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	fps := float64(e.opts.FrameRate)
	sampler := logging.NewProgressSampler(10)
	var res loopResult
	for {
		if ctx.Err() != nil {
			return res, fmt.Errorf("export cancelled: %w", ctx.Err())
		}
		if capCtx.Err() != nil {
			res.reason = StopDurationCap
			return res, nil
		}

		frameCtx, frameCancel := context.WithTimeout(capCtx, e.opts.StallTimeout)
		frame, err := job.decoder.NextFrame(frameCtx)
		stalled := errors.Is(frameCtx.Err(), context.DeadlineExceeded) && capCtx.Err() == nil
		frameCancel()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				res.reason = StopEndOfStream
				return res, nil
			case ctx.Err() != nil:
				return res, fmt.Errorf("export cancelled: %w", ctx.Err())
			case capCtx.Err() != nil:
				res.reason = StopDurationCap
				return res, nil
			case stalled:
				res.reason = StopStalled
				return res, nil
			default:
				return res, services.Wrap(services.ErrDecodeFailure, stageExport, "decode", fmt.Sprintf("frame %d", res.frames), err)
			}
		}

		if vf, ok := overlay.At(segments, style, frame.Time, fps); ok {
			if err := e.renderer.Draw(frame.Image, vf); err != nil {
				return res, services.Wrap(services.ErrEncodeFailure, stageExport, "composite", fmt.Sprintf("frame %d", frame.Index), err)
			}
		}
		aborted, err := e.writeFrame(ctx, capCtx, job, frame.Image, logger)
		if aborted {
			if ctx.Err() != nil {
				return res, fmt.Errorf("export cancelled: %w", ctx.Err())
			}
			res.reason = StopDurationCap
			res.encoderAborted = true
			return res, nil
		}
		if err != nil {
			return res, services.Wrap(services.ErrEncodeFailure, stageExport, "encode", fmt.Sprintf("frame %d", frame.Index), err)
		}
		res.frames++
		res.position = frame.Time + 1/fps

		percent := -1.0
		if expected > 0 {
			percent = min(100, res.position/expected*100)
		}
		if e.opts.OnProgress != nil {
			e.opts.OnProgress(Progress{JobID: job.ID, Frames: res.frames, Position: res.position, Percent: percent})
		}
		if sampler.ShouldLog(percent, string(StateRunning)) {
			logger.Info("export progress",
				logging.Int("frames", res.frames),
				logging.Float64("position_seconds", res.position),
				logging.Float64("percent", percent),
			)
		}
	}
}

// writeFrame hands img to the encoder under the duration cap. When the cap
// passes mid-write, audio is stopped and the write gets capWriteGrace to
// complete; after that, or on cancellation, the encoder is aborted and
// aborted is reported.
func (e *Exporter) writeFrame(ctx, capCtx context.Context, job *Job, img *image.RGBA, logger *slog.Logger) (aborted bool, err error) {
	done := make(chan error, 1)
	go func() { done <- job.encoder.WriteFrame(img) }()

	select {
	case err := <-done:
		return false, err
	case <-capCtx.Done():
	}
	if ctx.Err() == nil {
		// An encoder waiting on the audio pipe starts reading frames again
		// once audio ends.
		job.closeAudio()
		timer := time.NewTimer(capWriteGrace)
		defer timer.Stop()
		select {
		case err := <-done:
			return false, err
		case <-timer.C:
		case <-ctx.Done():
		}
	}
	if ctx.Err() == nil {
		logging.WarnWithContext(logger, "encoder stopped accepting frames at the duration cap", "export_encoder_blocked",
			logging.Duration("cap", e.opts.MaxDuration),
			logging.String(logging.FieldImpact, "output ends at the last chunk the encoder emitted"),
		)
	}
	_ = job.encoder.Abort()
	<-done
	return true, nil
}

// finish flushes the encoder. A truncated export stops audio first so the
// track ends with the video; otherwise audio gets a grace period to drain.
func (e *Exporter) finish(ctx context.Context, job *Job, truncated bool) error {
	if truncated {
		job.closeAudio()
	}
	finishCtx, cancel := context.WithTimeout(ctx, finalizeTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- job.encoder.Finish(finishCtx) }()

	var err error
	if job.audio != nil && !truncated {
		timer := time.NewTimer(e.opts.AudioGrace)
		select {
		case err = <-done:
		case <-timer.C:
			job.closeAudio()
			err = <-done
		}
		timer.Stop()
	} else {
		err = <-done
	}
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("export cancelled: %w", ctx.Err())
		}
		return services.Wrap(services.ErrEncodeFailure, stageExport, "finalize", "encoder did not flush", err)
	}
	return nil
}
