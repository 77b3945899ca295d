package export

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// DefaultAudioFormat is the PCM layout captured from the source.
var DefaultAudioFormat = AudioFormat{SampleRate: 48000, Channels: 2}

// audioEstablishTimeout bounds how long capture may take to produce its first
// sample before the export continues without audio.
const audioEstablishTimeout = 5 * time.Second

type ffmpegAudio struct {
	cmd    *exec.Cmd
	pipe   *os.File
	reader *bufio.Reader
	stderr *stderrTail
	format AudioFormat

	closeOnce sync.Once
}

func startAudio(ctx context.Context, binary string, spec AudioSpec) (*ffmpegAudio, error) {
	format := DefaultAudioFormat
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("audio pipe: %w", err)
	}
	cmd := exec.CommandContext(ctx, binary, audioArgs(spec, format)...) //nolint:gosec
	stderr := &stderrTail{}
	cmd.Stdout = pw
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, fmt.Errorf("start audio capture: %w", err)
	}
	_ = pw.Close()

	a := &ffmpegAudio{
		cmd:    cmd,
		pipe:   pr,
		reader: bufio.NewReaderSize(pr, 64<<10),
		stderr: stderr,
		format: format,
	}

	peeked := make(chan error, 1)
	go func() {
		_, err := a.reader.Peek(1)
		peeked <- err
	}()
	timer := time.NewTimer(audioEstablishTimeout)
	defer timer.Stop()
	select {
	case err = <-peeked:
	case <-timer.C:
		_ = a.Close()
		<-peeked
		return nil, fmt.Errorf("audio capture produced no samples within %s", audioEstablishTimeout)
	case <-ctx.Done():
		_ = a.Close()
		<-peeked
		return nil, ctx.Err()
	}
	if err != nil {
		_ = a.Close()
		if errors.Is(err, io.EOF) {
			return nil, exitError("ffmpeg audio capture", errors.New("no audio samples"), stderr)
		}
		return nil, fmt.Errorf("audio capture: %w", err)
	}
	return a, nil
}

func (a *ffmpegAudio) Stream() io.Reader   { return a.reader }
func (a *ffmpegAudio) Format() AudioFormat { return a.format }

func (a *ffmpegAudio) Close() error {
	a.closeOnce.Do(func() {
		killProcess(a.cmd)
		_ = a.cmd.Wait()
		_ = a.pipe.Close()
	})
	return nil
}
