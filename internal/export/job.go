package export

import (
	"log/slog"
	"sync"

	"captionstudio/internal/logging"
)

// State is a Job lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StatePreparing  State = "preparing"
	StateCapturing  State = "capturing"
	StateRunning    State = "running"
	StateFinalizing State = "finalizing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Job owns the decoder, audio capture and encoder of one export. Release is
// idempotent and runs on every exit path.
type Job struct {
	ID string

	mu       sync.Mutex
	state    State
	onState  func(State)
	decoder  FrameSource
	audio    AudioCapture
	encoder  EncoderSession
	released bool
	logger   *slog.Logger

	audioOnce sync.Once
}

func newJob(id string, onState func(State), logger *slog.Logger) *Job {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Job{ID: id, state: StateIdle, onState: onState, logger: logger}
}

// State returns the current lifecycle state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) set(next State) {
	j.mu.Lock()
	if j.state == next || j.state.Terminal() {
		j.mu.Unlock()
		return
	}
	prev := j.state
	j.state = next
	j.mu.Unlock()

	j.logger.Debug("export state changed", logging.String("from", string(prev)), logging.String("to", string(next)))
	if j.onState != nil {
		j.onState(next)
	}
}

// closeAudio stops the capture so the encoder sees end of audio.
func (j *Job) closeAudio() {
	j.mu.Lock()
	audio := j.audio
	j.mu.Unlock()
	if audio == nil {
		return
	}
	j.audioOnce.Do(func() {
		if err := audio.Close(); err != nil {
			j.logger.Debug("audio capture close failed", logging.Error(err))
		}
	})
}

func (j *Job) release() {
	j.mu.Lock()
	if j.released {
		j.mu.Unlock()
		return
	}
	j.released = true
	decoder, encoder := j.decoder, j.encoder
	j.mu.Unlock()

	if encoder != nil {
		if err := encoder.Abort(); err != nil {
			j.logger.Debug("encoder abort failed", logging.Error(err))
		}
	}
	j.closeAudio()
	if decoder != nil {
		if err := decoder.Close(); err != nil {
			j.logger.Debug("decoder close failed", logging.Error(err))
		}
	}
}
