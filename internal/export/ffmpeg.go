package export

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"captionstudio/internal/media/ffprobe"
)

// FFmpegBackend implements Backend with ffmpeg and ffprobe subprocesses.
type FFmpegBackend struct {
	FFmpeg  string
	FFprobe string
}

func (b FFmpegBackend) ffmpeg() string {
	if strings.TrimSpace(b.FFmpeg) == "" {
		return "ffmpeg"
	}
	return b.FFmpeg
}

// Probe inspects path with ffprobe.
func (b FFmpegBackend) Probe(ctx context.Context, path string) (ffprobe.Summary, error) {
	binary := b.FFprobe
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	result, err := ffprobe.Inspect(ctx, binary, path)
	if err != nil {
		return ffprobe.Summary{}, err
	}
	return result.Summarize()
}

// OpenDecoder starts an ffmpeg process that emits RGBA frames on stdout.
func (b FFmpegBackend) OpenDecoder(ctx context.Context, spec DecoderSpec) (FrameSource, error) {
	return startDecoder(ctx, b.ffmpeg(), spec)
}

// OpenAudio starts an ffmpeg process that emits PCM on stdout.
func (b FFmpegBackend) OpenAudio(ctx context.Context, spec AudioSpec) (AudioCapture, error) {
	return startAudio(ctx, b.ffmpeg(), spec)
}

// OpenEncoder starts an ffmpeg process reading raw frames on stdin.
func (b FFmpegBackend) OpenEncoder(ctx context.Context, spec EncoderSpec) (EncoderSession, error) {
	return startEncoder(ctx, b.ffmpeg(), spec)
}

func decoderArgs(spec DecoderSpec) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if spec.Realtime {
		args = append(args, "-re")
	}
	args = append(args,
		"-i", spec.Path,
		"-map", "0:v:0",
		"-an", "-sn",
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d", spec.FrameRate, spec.Width, spec.Height),
		"-pix_fmt", "rgba",
		"-f", "rawvideo",
		"pipe:1",
	)
	return args
}

func audioArgs(spec AudioSpec, format AudioFormat) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if spec.Realtime {
		args = append(args, "-re")
	}
	return append(args,
		"-i", spec.Path,
		"-map", "0:a:0",
		"-vn", "-sn",
		"-ac", strconv.Itoa(format.Channels),
		"-ar", strconv.Itoa(format.SampleRate),
		"-f", "s16le",
		"pipe:1",
	)
}

// encoderArgs builds the encode command. Video arrives on stdin, audio (when
// present) on the first extra file descriptor, and the container is written
// to stdout.
func encoderArgs(spec EncoderSpec) []string {
	args := []string{"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", spec.Width, spec.Height),
		"-r", strconv.Itoa(spec.FrameRate),
		"-i", "pipe:0",
	}
	if spec.Audio != nil {
		format := spec.Audio.Format()
		args = append(args,
			"-f", "s16le",
			"-ar", strconv.Itoa(format.SampleRate),
			"-ac", strconv.Itoa(format.Channels),
			"-i", "pipe:3",
		)
	}
	args = append(args, "-map", "0:v:0")
	if spec.Audio != nil {
		args = append(args, "-map", "1:a:0", "-c:a", audioEncoder(spec.AudioCodec))
	}
	args = append(args, "-c:v", videoEncoder(spec.VideoCodec), "-pix_fmt", "yuv420p")
	switch videoEncoder(spec.VideoCodec) {
	case "libvpx-vp9":
		args = append(args, "-deadline", "realtime", "-cpu-used", "8", "-row-mt", "1", "-b:v", "0", "-crf", "32")
	case "libvpx":
		args = append(args, "-deadline", "realtime", "-cpu-used", "8", "-b:v", "2M")
	case "libx264":
		args = append(args, "-preset", "veryfast", "-crf", "23")
	}
	container := strings.ToLower(strings.TrimSpace(spec.Container))
	if container == "" {
		container = "webm"
	}
	if container == "mp4" {
		args = append(args, "-movflags", "frag_keyframe+empty_moov")
	}
	return append(args, "-f", container, "pipe:1")
}

func videoEncoder(codec string) string {
	switch strings.ToLower(strings.TrimSpace(codec)) {
	case "vp8":
		return "libvpx"
	case "h264", "avc":
		return "libx264"
	case "", "vp9":
		return "libvpx-vp9"
	default:
		return codec
	}
}

func audioEncoder(codec string) string {
	switch strings.ToLower(strings.TrimSpace(codec)) {
	case "", "opus":
		return "libopus"
	case "vorbis":
		return "libvorbis"
	default:
		return codec
	}
}

// stderrTail keeps the last bytes a subprocess wrote to stderr so failures
// can quote them.
type stderrTail struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

const stderrTailLimit = 4096

func (s *stderrTail) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Write(p)
	if over := s.buf.Len() - stderrTailLimit; over > 0 {
		s.buf.Next(over)
	}
	return len(p), nil
}

func (s *stderrTail) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.TrimSpace(s.buf.String())
}

func exitError(name string, err error, stderr *stderrTail) error {
	if msg := stderr.String(); msg != "" {
		return fmt.Errorf("%s: %w: %s", name, err, msg)
	}
	return fmt.Errorf("%s: %w", name, err)
}

// killProcess stops cmd if it is still running.
func killProcess(cmd *exec.Cmd) {
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}
