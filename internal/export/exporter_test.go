package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"captionstudio/internal/burnin"
	"captionstudio/internal/captions"
	"captionstudio/internal/logging"
	"captionstudio/internal/media/ffprobe"
	"captionstudio/internal/overlay"
	"captionstudio/internal/services"
	"captionstudio/internal/testsupport"
)

type fakeSource struct {
	width, height int
	total         int // -1 for endless
	interval      time.Duration
	stallAfter    int // -1 for never
	failAfter     int // -1 for never
	panicAfter    int // -1 for never

	index  int
	closes int
	mu     sync.Mutex
}

func newFakeSource(total int) *fakeSource {
	return &fakeSource{width: 64, height: 36, total: total, stallAfter: -1, failAfter: -1, panicAfter: -1}
}

func (s *fakeSource) NextFrame(ctx context.Context) (Frame, error) {
	switch {
	case s.failAfter >= 0 && s.index == s.failAfter:
		return Frame{}, errors.New("corrupt packet")
	case s.panicAfter >= 0 && s.index == s.panicAfter:
		panic("decoder exploded")
	case s.stallAfter >= 0 && s.index >= s.stallAfter:
		<-ctx.Done()
		return Frame{}, ctx.Err()
	case s.total >= 0 && s.index >= s.total:
		return Frame{}, io.EOF
	}
	if s.interval > 0 {
		select {
		case <-time.After(s.interval):
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		}
	}
	frame := Frame{
		Index: s.index,
		Time:  float64(s.index) / 30,
		Image: image.NewRGBA(image.Rect(0, 0, s.width, s.height)),
	}
	s.index++
	return frame, nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeSource) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

type fakeAudio struct {
	mu     sync.Mutex
	closes int
}

func (a *fakeAudio) Stream() io.Reader   { return bytes.NewReader(make([]byte, 1024)) }
func (a *fakeAudio) Format() AudioFormat { return DefaultAudioFormat }
func (a *fakeAudio) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closes++
	return nil
}

func (a *fakeAudio) closeCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closes
}

type fakeEncoder struct {
	spec      EncoderSpec
	out       chan []byte
	failAt    int
	blockAt   int // -1 for never
	unblock   chan struct{}
	painted   []bool
	closeOnce sync.Once
	abortOnce sync.Once

	mu       sync.Mutex
	finished bool
	aborted  bool
}

func (e *fakeEncoder) WriteFrame(img *image.RGBA) error {
	if e.failAt >= 0 && len(e.painted) == e.failAt {
		return errors.New("broken pipe")
	}
	if e.blockAt >= 0 && len(e.painted) >= e.blockAt {
		<-e.unblock
		return errors.New("encoder input closed")
	}
	painted := false
	for _, b := range img.Pix {
		if b != 0 {
			painted = true
			break
		}
	}
	e.painted = append(e.painted, painted)
	e.out <- []byte{byte(len(e.painted))}
	return nil
}

func (e *fakeEncoder) Output() <-chan []byte { return e.out }

func (e *fakeEncoder) status() (finished, aborted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finished, e.aborted
}

func (e *fakeEncoder) Finish(context.Context) error {
	e.mu.Lock()
	e.finished = true
	e.mu.Unlock()
	e.closeOnce.Do(func() { close(e.out) })
	return nil
}

func (e *fakeEncoder) Abort() error {
	e.mu.Lock()
	e.aborted = true
	e.mu.Unlock()
	e.abortOnce.Do(func() { close(e.unblock) })
	e.closeOnce.Do(func() { close(e.out) })
	return nil
}

type fakeBackend struct {
	summary    ffprobe.Summary
	source     *fakeSource
	audio      *fakeAudio
	audioErr   error
	encoderErr error
	encoder    *fakeEncoder
	failEncAt  int
	blockEncAt int
}

func newFakeBackend(source *fakeSource) *fakeBackend {
	return &fakeBackend{
		summary:    ffprobe.Summary{Width: 64, Height: 36, Duration: 2, FrameRate: 30, HasAudio: true},
		source:     source,
		audio:      &fakeAudio{},
		failEncAt:  -1,
		blockEncAt: -1,
	}
}

func (b *fakeBackend) Probe(context.Context, string) (ffprobe.Summary, error) {
	return b.summary, nil
}

func (b *fakeBackend) OpenDecoder(context.Context, DecoderSpec) (FrameSource, error) {
	return b.source, nil
}

func (b *fakeBackend) OpenAudio(context.Context, AudioSpec) (AudioCapture, error) {
	if b.audioErr != nil {
		return nil, b.audioErr
	}
	return b.audio, nil
}

func (b *fakeBackend) OpenEncoder(_ context.Context, spec EncoderSpec) (EncoderSession, error) {
	if b.encoderErr != nil {
		return nil, b.encoderErr
	}
	b.encoder = &fakeEncoder{
		spec:    spec,
		out:     make(chan []byte, 4),
		failAt:  b.failEncAt,
		blockAt: b.blockEncAt,
		unblock: make(chan struct{}),
	}
	return b.encoder, nil
}

type stateRecorder struct {
	mu     sync.Mutex
	states []State
	times  []time.Time
}

func (r *stateRecorder) observe(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
	r.times = append(r.times, time.Now())
}

func (r *stateRecorder) snapshot() ([]State, []time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...), append([]time.Time(nil), r.times...)
}

func newTestExporter(t *testing.T, backend Backend, opts Options) *Exporter {
	t.Helper()
	renderer, err := burnin.New("")
	if err != nil {
		t.Fatalf("burnin.New: %v", err)
	}
	exp, err := New(backend, renderer, opts, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return exp
}

func testRequest() Request {
	return Request{
		SourcePath: "/videos/demo.mp4",
		Segments:   []captions.Segment{{Start: 0, End: 0.2, Text: "Hi"}},
		Style:      overlay.StyleBottom,
	}
}

func TestExportEndOfStream(t *testing.T) {
	backend := newFakeBackend(newFakeSource(10))
	rec := &stateRecorder{}
	exp := newTestExporter(t, backend, Options{OnState: rec.observe})

	art, err := exp.Export(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if art.Frames != 10 || len(art.Data) != 10 {
		t.Fatalf("expected 10 frames and 10 chunk bytes, got %d frames %d bytes", art.Frames, len(art.Data))
	}
	if !bytes.Equal(art.Data, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}) {
		t.Fatalf("chunks not concatenated in order: %v", art.Data)
	}
	if art.Truncated || art.StopReason != StopEndOfStream {
		t.Fatalf("unexpected stop: truncated=%v reason=%s", art.Truncated, art.StopReason)
	}
	if !art.HasAudio || backend.encoder.spec.Audio == nil {
		t.Fatal("expected audio to be wired into the encoder")
	}
	if art.MimeType != "video/webm" || art.Width != 64 || art.Height != 36 {
		t.Fatalf("unexpected artifact metadata: %+v", art)
	}
	if len(art.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %+v", art.Warnings)
	}

	painted := backend.encoder.painted
	if painted[0] {
		t.Fatal("frame at t=0 should be invisible during the entrance")
	}
	if !painted[3] {
		t.Fatal("frame at t=0.1 should carry the caption")
	}
	if painted[9] {
		t.Fatal("frame after the caption ended should be untouched")
	}

	states, _ := rec.snapshot()
	want := []State{StatePreparing, StateCapturing, StateRunning, StateFinalizing, StateDone}
	if len(states) != len(want) {
		t.Fatalf("unexpected transitions %v", states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("transition %d: got %s want %s", i, states[i], want[i])
		}
	}
	if backend.source.closeCount() != 1 || backend.audio.closeCount() != 1 {
		t.Fatalf("expected resources released once, decoder=%d audio=%d", backend.source.closeCount(), backend.audio.closeCount())
	}
}

func TestExportAudioCaptureFailureIsVideoOnly(t *testing.T) {
	backend := newFakeBackend(newFakeSource(5))
	backend.audioErr = errors.New("no such device")
	exp := newTestExporter(t, backend, Options{})

	art, err := exp.Export(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("audio failure must not fail the export: %v", err)
	}
	if art.HasAudio {
		t.Fatal("expected video-only artifact")
	}
	if backend.encoder.spec.Audio != nil {
		t.Fatal("encoder should not receive an audio input")
	}
	if len(art.Warnings) != 1 || art.Warnings[0].Code != WarningAudioCaptureFailed {
		t.Fatalf("expected audio warning, got %+v", art.Warnings)
	}
	if art.Warnings[0].Kind != services.ErrorKindAudioCapture {
		t.Fatalf("unexpected warning kind %q", art.Warnings[0].Kind)
	}
	if art.Frames != 5 {
		t.Fatalf("expected 5 frames, got %d", art.Frames)
	}
}

func TestExportSourceWithoutAudio(t *testing.T) {
	backend := newFakeBackend(newFakeSource(3))
	backend.summary.HasAudio = false
	exp := newTestExporter(t, backend, Options{})

	art, err := exp.Export(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if art.HasAudio || len(art.Warnings) != 0 || backend.audio.closeCount() != 0 {
		t.Fatalf("expected silent video-only export, got %+v", art)
	}
}

func TestExportDurationCapFinalizes(t *testing.T) {
	source := newFakeSource(-1)
	source.interval = time.Millisecond
	backend := newFakeBackend(source)
	rec := &stateRecorder{}
	limit := 150 * time.Millisecond
	exp := newTestExporter(t, backend, Options{MaxDuration: limit, OnState: rec.observe})

	started := time.Now()
	art, err := exp.Export(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !art.Truncated || art.StopReason != StopDurationCap {
		t.Fatalf("expected cap truncation, got truncated=%v reason=%s", art.Truncated, art.StopReason)
	}
	if art.Frames == 0 || len(art.Data) == 0 {
		t.Fatal("expected a non-empty artifact")
	}
	if len(art.Warnings) != 1 || art.Warnings[0].Code != WarningDurationCap {
		t.Fatalf("expected cap warning, got %+v", art.Warnings)
	}

	states, times := rec.snapshot()
	finalizing := -1
	for i, s := range states {
		if s == StateFinalizing {
			finalizing = i
		}
	}
	if finalizing < 0 {
		t.Fatalf("never reached finalizing: %v", states)
	}
	if elapsed := times[finalizing].Sub(started); elapsed > limit+100*time.Millisecond {
		t.Fatalf("finalizing began %s after start, limit %s", elapsed, limit)
	}
	if backend.audio.closeCount() != 1 {
		t.Fatalf("expected audio stopped once, got %d", backend.audio.closeCount())
	}
}

func TestExportDurationCapInterruptsBlockedEncoder(t *testing.T) {
	source := newFakeSource(-1)
	source.interval = time.Millisecond
	backend := newFakeBackend(source)
	backend.blockEncAt = 3
	rec := &stateRecorder{}
	limit := 200 * time.Millisecond
	exp := newTestExporter(t, backend, Options{MaxDuration: limit, OnState: rec.observe})

	started := time.Now()
	art, err := exp.Export(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if elapsed := time.Since(started); elapsed > limit+capWriteGrace+time.Second {
		t.Fatalf("export took %s with a blocked encoder", elapsed)
	}
	if art.StopReason != StopDurationCap || !art.Truncated {
		t.Fatalf("expected cap truncation, got %+v", art)
	}
	if art.Frames != 3 || len(art.Data) != 3 {
		t.Fatalf("expected the 3 frames written before the block, got %d frames %d bytes", art.Frames, len(art.Data))
	}
	if len(art.Warnings) != 1 || art.Warnings[0].Code != WarningDurationCap || !strings.Contains(art.Warnings[0].Message, "not flushed") {
		t.Fatalf("expected cap warning naming the unflushed encoder, got %+v", art.Warnings)
	}
	finished, aborted := backend.encoder.status()
	if finished || !aborted {
		t.Fatalf("expected abort without flush, finished=%v aborted=%v", finished, aborted)
	}
	if backend.audio.closeCount() != 1 {
		t.Fatalf("expected audio stopped once, got %d", backend.audio.closeCount())
	}
	states, _ := rec.snapshot()
	if len(states) == 0 || states[len(states)-1] != StateDone {
		t.Fatalf("expected export to finish, states=%v", states)
	}
}

func TestExportCancelInterruptsBlockedEncoder(t *testing.T) {
	source := newFakeSource(-1)
	source.interval = time.Millisecond
	backend := newFakeBackend(source)
	backend.blockEncAt = 2
	exp := newTestExporter(t, backend, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	started := time.Now()
	_, err := exp.Export(ctx, testRequest())
	if err == nil || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Fatalf("cancellation took %s with a blocked encoder", elapsed)
	}
	if _, aborted := backend.encoder.status(); !aborted {
		t.Fatal("expected the encoder to be aborted")
	}
}

func TestExportCapNeverExceedsHardLimit(t *testing.T) {
	exp := newTestExporter(t, newFakeBackend(newFakeSource(1)), Options{MaxDuration: time.Hour})
	if exp.opts.MaxDuration != 120*time.Second {
		t.Fatalf("expected cap clamped to 120s, got %s", exp.opts.MaxDuration)
	}
}

func TestExportStallFinalizes(t *testing.T) {
	source := newFakeSource(-1)
	source.stallAfter = 3
	backend := newFakeBackend(source)
	exp := newTestExporter(t, backend, Options{StallTimeout: 50 * time.Millisecond})

	art, err := exp.Export(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if art.StopReason != StopStalled || !art.Truncated || art.Frames != 3 {
		t.Fatalf("expected stalled truncation after 3 frames, got %+v", art)
	}
	if len(art.Warnings) != 1 || art.Warnings[0].Code != WarningStalled {
		t.Fatalf("expected stall warning, got %+v", art.Warnings)
	}
}

func TestExportFailuresReleaseResources(t *testing.T) {
	cases := []struct {
		name    string
		prepare func(*fakeBackend)
		kind    services.ErrorKind
	}{
		{"decode mid stream", func(b *fakeBackend) { b.source.failAfter = 2 }, services.ErrorKindDecode},
		{"encoder construction", func(b *fakeBackend) { b.encoderErr = errors.New("unknown codec") }, services.ErrorKindEncode},
		{"encoder mid stream", func(b *fakeBackend) { b.failEncAt = 2 }, services.ErrorKindEncode},
		{"frame loop panic", func(b *fakeBackend) { b.source.panicAfter = 1 }, services.ErrorKindEncode},
		{"no frames", func(b *fakeBackend) { b.source.total = 0 }, services.ErrorKindDecode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := newFakeBackend(newFakeSource(10))
			tc.prepare(backend)
			rec := &stateRecorder{}
			exp := newTestExporter(t, backend, Options{OnState: rec.observe})

			_, err := exp.Export(context.Background(), testRequest())
			if err == nil {
				t.Fatal("expected failure")
			}
			if got := services.KindOf(err); got != tc.kind {
				t.Fatalf("expected kind %s, got %s (%v)", tc.kind, got, err)
			}
			var svcErr *services.ServiceError
			if !errors.As(err, &svcErr) {
				t.Fatalf("expected typed service error, got %T", err)
			}
			if backend.source.closeCount() != 1 {
				t.Fatalf("decoder closed %d times", backend.source.closeCount())
			}
			if backend.audio.closeCount() != 1 {
				t.Fatalf("audio closed %d times", backend.audio.closeCount())
			}
			if backend.encoder != nil && !backend.encoder.aborted {
				t.Fatal("expected encoder aborted")
			}
			states, _ := rec.snapshot()
			if states[len(states)-1] != StateFailed {
				t.Fatalf("expected failed state, got %v", states)
			}
		})
	}
}

func TestExportCancellation(t *testing.T) {
	source := newFakeSource(-1)
	source.interval = time.Millisecond
	backend := newFakeBackend(source)
	exp := newTestExporter(t, backend, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	_, err := exp.Export(ctx, testRequest())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context error, got %v", err)
	}
	if backend.source.closeCount() != 1 || !backend.encoder.aborted {
		t.Fatal("expected resources released after cancellation")
	}
}

func TestExportRejectsInvalidRequest(t *testing.T) {
	exp := newTestExporter(t, newFakeBackend(newFakeSource(1)), Options{})
	req := testRequest()
	req.Segments = []captions.Segment{{Start: 2, End: 1, Text: "backwards"}}
	if _, err := exp.Export(context.Background(), req); services.KindOf(err) != services.ErrorKindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	req = testRequest()
	req.SourcePath = " "
	if _, err := exp.Export(context.Background(), req); services.KindOf(err) != services.ErrorKindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithExportCap(30))
	cfg.Export.Container = "mp4"

	exp, err := NewFromConfig(cfg, logging.NewNop(), func(opts *Options) {
		opts.OnProgress = func(Progress) {}
	})
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	defer exp.Close()
	if exp.opts.Container != "mp4" || exp.opts.MaxDuration != 30*time.Second {
		t.Fatalf("options not taken from config: %+v", exp.opts)
	}
	if exp.opts.OnProgress == nil {
		t.Fatal("configure hook was not applied")
	}
	if _, ok := exp.backend.(FFmpegBackend); !ok {
		t.Fatalf("expected ffmpeg backend, got %T", exp.backend)
	}

	cfg.Export.FontPath = filepath.Join(t.TempDir(), "missing.ttf")
	if _, err := NewFromConfig(cfg, logging.NewNop(), nil); services.KindOf(err) != services.ErrorKindConfiguration {
		t.Fatalf("expected configuration error for a missing font, got %v", err)
	}
}
