package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"captionstudio/internal/asr"
	"captionstudio/internal/config"
	"captionstudio/internal/jobs"
	"captionstudio/internal/logging"
	"captionstudio/internal/preflight"
	"captionstudio/internal/services"
	"captionstudio/internal/transcribe"
)

// jobRecorder wraps an optional history store. Recording failures are
// logged and never fail the command.
type jobRecorder struct {
	store  *jobs.Store
	logger *slog.Logger
	id     string
}

func (r *jobRecorder) begin(ctx context.Context, start jobs.Start) string {
	if start.ID == "" {
		start.ID = uuid.NewString()
	}
	r.id = start.ID
	if r.store == nil {
		return r.id
	}
	if _, err := r.store.Begin(ctx, start); err != nil {
		r.warn("begin", err)
	}
	return r.id
}

func (r *jobRecorder) complete(outcome jobs.Outcome) {
	if r.store == nil || r.id == "" {
		return
	}
	if err := r.store.Complete(context.Background(), r.id, outcome); err != nil {
		r.warn("complete", err)
	}
}

func (r *jobRecorder) fail(cause error) {
	if r.store == nil || r.id == "" {
		return
	}
	if err := r.store.Fail(context.Background(), r.id, cause); err != nil {
		r.warn("fail", err)
	}
}

func (r *jobRecorder) close() {
	if r.store != nil {
		_ = r.store.Close()
	}
}

func (r *jobRecorder) warn(op string, err error) {
	logging.WarnWithContext(r.logger, "job history update failed", "job_history_failed",
		logging.String("operation", op),
		logging.String(logging.FieldJobID, r.id),
		logging.Error(err),
		logging.String(logging.FieldImpact, "job missing or stale in `captionstudio jobs`"),
	)
}

// runPreflight fails fast when directories or binaries are unusable.
func runPreflight(ctx context.Context, cfg *config.Config, skip bool) error {
	if skip {
		return nil
	}
	if err := preflight.Err(preflight.RunAll(ctx, cfg)); err != nil {
		return services.Wrap(services.ErrConfiguration, "preflight", "run checks", "environment not ready", err)
	}
	return nil
}

type transcribeParams struct {
	source    string
	language  string
	skipCache bool
}

// runTranscription transcribes one source and records it as a job.
func runTranscription(ctx context.Context, cfg *config.Config, handle *asr.Handle, logger *slog.Logger, recorder *jobRecorder, stderr io.Writer, params transcribeParams) (transcribe.Outcome, error) {
	jobID := recorder.begin(ctx, jobs.Start{
		Kind:       jobs.KindTranscribe,
		SourcePath: params.source,
		Language:   params.language,
	})
	svc := transcribe.NewFromConfig(cfg, handle, logger)

	printer := newProgressPrinter(stderr)
	outcome, err := svc.Transcribe(ctx, transcribe.Request{
		SourcePath: params.source,
		Language:   params.language,
		JobID:      jobID,
		SkipCache:  params.skipCache,
		Progress: func(p asr.Progress) {
			printer.update(string(p.Phase), p.Message, p.Percent)
		},
	})
	printer.done()
	if err != nil {
		recorder.fail(err)
		return outcome, err
	}

	recorder.complete(jobs.Outcome{
		Language:      outcome.Language,
		CaptionSource: string(outcome.Source),
		Segments:      len(outcome.Segments),
		Warnings:      outcome.Warnings,
	})
	return outcome, nil
}

func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func warningsSummary(warnings []string) string {
	switch len(warnings) {
	case 0:
		return "none"
	case 1:
		return warnings[0]
	default:
		return fmt.Sprintf("%s (+%d more)", warnings[0], len(warnings)-1)
	}
}
