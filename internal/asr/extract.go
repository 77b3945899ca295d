package asr

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"captionstudio/internal/services"
)

// SampleRate is the mono PCM rate every backend receives.
const SampleRate = 16000

// Extractor pulls a mono 16 kHz WAV out of a video for transcription.
type Extractor struct {
	FFmpeg  string
	Timeout time.Duration
	Runner  CommandRunner
}

// Extraction reports where the audio landed. When Silent is set the file is
// one second of silence and Cause explains why extraction was abandoned.
type Extraction struct {
	Path   string
	Silent bool
	Cause  error
}

// Extract writes dest from source. A stalled or failing ffmpeg is replaced by
// one second of silence so transcription can still produce its fallback; only
// cancellation of ctx or an unwritable dest is returned as an error.
func (x Extractor) Extract(ctx context.Context, source, dest string) (Extraction, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Extraction{}, fmt.Errorf("extract audio: ensure dir: %w", err)
	}
	runner := x.Runner
	if runner == nil {
		runner = runCommand
	}
	ffmpeg := x.FFmpeg
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}

	runCtx := ctx
	cancel := func() {}
	if x.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, x.Timeout)
	}
	err := runner(runCtx, ffmpeg, extractArgs(source, dest)...)
	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)
	cancel()
	if err == nil {
		return Extraction{Path: dest}, nil
	}
	if ctx.Err() != nil {
		return Extraction{}, ctx.Err()
	}

	var cause error
	if timedOut {
		cause = services.Wrap(services.ErrTimeout, "extract", "ffmpeg", fmt.Sprintf("audio extraction exceeded %s", x.Timeout), err)
	} else {
		cause = services.Wrap(services.ErrExternalTool, "extract", "ffmpeg", "audio extraction failed", err)
	}
	if werr := WriteSilence(dest, time.Second); werr != nil {
		return Extraction{}, fmt.Errorf("extract audio: write silence: %w", werr)
	}
	return Extraction{Path: dest, Silent: true, Cause: cause}, nil
}

func extractArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", SampleRate),
		"-c:a", "pcm_s16le",
		dest,
	}
}

// WriteSilence writes a mono 16-bit PCM WAV of the given duration.
func WriteSilence(path string, d time.Duration) error {
	samples := int(d.Seconds() * SampleRate)
	dataSize := uint32(samples * 2)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	header := struct {
		RIFF          [4]byte
		ChunkSize     uint32
		WAVE          [4]byte
		Fmt           [4]byte
		FmtSize       uint32
		AudioFormat   uint16
		Channels      uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Data          [4]byte
		DataSize      uint32
	}{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1,
		Channels:      1,
		SampleRate:    SampleRate,
		ByteRate:      SampleRate * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      dataSize,
	}
	if err := binary.Write(f, binary.LittleEndian, header); err != nil {
		f.Close()
		return err
	}
	if _, err := f.Write(make([]byte, dataSize)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
