package asr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"captionstudio/internal/logging"
	"captionstudio/internal/services"
)

// State is the load state of a Handle.
type State int32

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Loader prepares an engine (installs packages, fetches models, checks
// credentials). It runs at most once concurrently per Handle.
type Loader func(ctx context.Context, progress ProgressFunc) (Engine, error)

// HandleOptions tunes a Handle.
type HandleOptions struct {
	// LockPath, when set, serializes loads across processes sharing a model
	// cache.
	LockPath string
	Logger   *slog.Logger
}

// Handle owns the lifetime of one ASR engine. The first caller of Engine
// starts the load; callers arriving while it runs wait for the same outcome.
// A failed load is retried by the next caller.
type Handle struct {
	loader   Loader
	lockPath string
	logger   *slog.Logger

	state atomic.Int32

	mu   sync.Mutex
	call *loadCall
}

// loadCall is one load attempt. engine and err are written before done is
// closed.
type loadCall struct {
	done     chan struct{}
	engine   Engine
	err      error
	watchers []ProgressFunc
}

// NewHandle constructs an unloaded handle.
func NewHandle(loader Loader, opts HandleOptions) *Handle {
	return &Handle{
		loader:   loader,
		lockPath: opts.LockPath,
		logger:   logging.NewComponentLogger(opts.Logger, "asr"),
	}
}

// State reports the current load state.
func (h *Handle) State() State {
	return State(h.state.Load())
}

// Engine returns the loaded engine, starting or joining a load as needed.
// Cancelling ctx abandons the wait without aborting a load other callers may
// still need.
func (h *Handle) Engine(ctx context.Context, progress ProgressFunc) (Engine, error) {
	if h == nil || h.loader == nil {
		return nil, services.Wrap(services.ErrConfiguration, "asr", "load engine", "no engine loader configured", nil)
	}

	h.mu.Lock()
	call := h.call
	switch h.State() {
	case StateReady:
		h.mu.Unlock()
		return call.engine, nil
	case StateLoading:
	default:
		call = &loadCall{done: make(chan struct{})}
		h.call = call
		h.state.Store(int32(StateLoading))
		go h.load(context.WithoutCancel(ctx), call)
	}
	if progress != nil {
		call.watchers = append(call.watchers, progress)
	}
	h.mu.Unlock()

	select {
	case <-call.done:
		return call.engine, call.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Handle) broadcast(call *loadCall) ProgressFunc {
	return func(p Progress) {
		h.mu.Lock()
		watchers := append([]ProgressFunc(nil), call.watchers...)
		h.mu.Unlock()
		for _, w := range watchers {
			w(p)
		}
	}
}

func (h *Handle) load(ctx context.Context, call *loadCall) {
	started := time.Now()
	progress := h.broadcast(call)
	progress.Emit(PhaseLoad, "Loading speech recognition engine", 0)

	engine, err := h.loadLocked(ctx, progress)
	if err == nil {
		progress.Emit(PhaseLoad, "Model ready", 100)
	}

	h.mu.Lock()
	if err != nil {
		call.err = services.Wrap(services.ErrASRFailure, "asr", "load engine", "engine failed to load", err)
		h.state.Store(int32(StateFailed))
	} else {
		call.engine = engine
		h.state.Store(int32(StateReady))
	}
	call.watchers = nil
	h.mu.Unlock()
	close(call.done)

	if err != nil {
		logging.WarnWithContext(h.logger, "asr engine load failed", "asr_load_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run captionstudio status to check uvx, ffmpeg and the api key"),
			logging.String(logging.FieldImpact, "captions fall back to placeholder text"),
		)
		return
	}
	h.logger.Info("asr engine ready",
		logging.String("engine", engine.Name()),
		logging.Duration("load_time", time.Since(started)),
	)
}

func (h *Handle) loadLocked(ctx context.Context, progress ProgressFunc) (Engine, error) {
	if h.lockPath == "" {
		return h.loader(ctx, progress)
	}
	if err := os.MkdirAll(filepath.Dir(h.lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure lock directory: %w", err)
	}
	lock := flock.New(h.lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire model lock: %w", err)
	}
	if !locked {
		progress.Emit(PhaseLoad, "Waiting for another process to finish loading the model", -1)
		locked, err = lock.TryLockContext(ctx, 250*time.Millisecond)
		if err != nil {
			return nil, fmt.Errorf("acquire model lock: %w", err)
		}
		if !locked {
			return nil, errors.New("acquire model lock: not acquired")
		}
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			h.logger.Debug("model lock release failed", logging.Error(err))
		}
	}()
	return h.loader(ctx, progress)
}
