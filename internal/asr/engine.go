package asr

import "context"

// Request describes one transcription attempt.
type Request struct {
	AudioPath     string
	Language      string
	ChunkSeconds  int
	StrideSeconds int
}

// Engine transcribes extracted audio. Implementations report failures through
// the Failure variant rather than an error return and must honour ctx
// cancellation by stopping inference.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, req Request) Result
}

// Phase names a step of the transcription flow for progress observers.
type Phase string

const (
	PhaseLoad       Phase = "load"
	PhaseExtract    Phase = "extract"
	PhaseTranscribe Phase = "transcribe"
	PhaseRetry      Phase = "retry"
	PhaseNormalize  Phase = "normalize"
	PhaseDone       Phase = "done"
)

// Progress is a single status update.
type Progress struct {
	Phase   Phase
	Message string
	// Percent is 0-100, or negative when unknown.
	Percent float64
}

// ProgressFunc observes progress updates. A nil ProgressFunc is valid.
type ProgressFunc func(Progress)

// Emit delivers an update when f is non-nil.
func (f ProgressFunc) Emit(phase Phase, message string, percent float64) {
	if f == nil {
		return
	}
	f(Progress{Phase: phase, Message: message, Percent: percent})
}
