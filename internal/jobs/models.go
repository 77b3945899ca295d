package jobs

import "time"

// Kind names what a job did.
type Kind string

const (
	KindTranscribe Kind = "transcribe"
	KindExport     Kind = "export"
)

// Status is the persisted job outcome.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	// StatusDegraded marks a job that produced output with warnings, such as
	// fallback captions or a video-only export.
	StatusDegraded Status = "degraded"
	StatusFailed   Status = "failed"
)

// Job is one recorded transcription or export run.
type Job struct {
	ID            string
	Kind          Kind
	Status        Status
	SourcePath    string
	OutputPath    string
	Style         string
	Language      string
	CaptionSource string
	Segments      int
	Frames        int
	OutputBytes   int64
	Warnings      []string
	ErrorKind     string
	ErrorMessage  string
	CreatedAt     time.Time
	FinishedAt    time.Time
}

// Duration returns how long the job ran, or zero while it is running.
func (j Job) Duration() time.Duration {
	if j.FinishedAt.IsZero() || j.CreatedAt.IsZero() {
		return 0
	}
	return j.FinishedAt.Sub(j.CreatedAt)
}

// Start describes a job being opened.
type Start struct {
	ID         string
	Kind       Kind
	SourcePath string
	Style      string
	Language   string
}

// Outcome describes how a job finished.
type Outcome struct {
	OutputPath    string
	Language      string
	CaptionSource string
	Segments      int
	Frames        int
	OutputBytes   int64
	Warnings      []string
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Kind   Kind
	Status Status
	Limit  int
}
