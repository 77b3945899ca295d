package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"sync"
)

const encoderChunkSize = 64 << 10

type ffmpegEncoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *stderrTail
	frame  int
	audioW *os.File

	out      chan []byte
	abort    chan struct{}
	readDone chan struct{}
	readErr  error

	finishOnce sync.Once
	finishErr  error
	abortOnce  sync.Once
	waitOnce   sync.Once
	waitErr    error
}

func startEncoder(_ context.Context, binary string, spec EncoderSpec) (*ffmpegEncoder, error) {
	if spec.Width <= 0 || spec.Height <= 0 || spec.FrameRate <= 0 {
		return nil, fmt.Errorf("encoder: invalid geometry %dx%d@%d", spec.Width, spec.Height, spec.FrameRate)
	}
	// The encoder outlives cancellation of the caller's context long enough
	// to be aborted explicitly, so it is not bound to ctx.
	cmd := exec.Command(binary, encoderArgs(spec)...) //nolint:gosec
	stderr := &stderrTail{}
	cmd.Stderr = stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("encoder stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("encoder stdout: %w", err)
	}

	var audioR, audioW *os.File
	if spec.Audio != nil {
		audioR, audioW, err = os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("encoder audio pipe: %w", err)
		}
		cmd.ExtraFiles = []*os.File{audioR}
	}
	if err := cmd.Start(); err != nil {
		if audioR != nil {
			_ = audioR.Close()
			_ = audioW.Close()
		}
		return nil, fmt.Errorf("start encoder: %w", err)
	}
	if audioR != nil {
		_ = audioR.Close()
	}

	e := &ffmpegEncoder{
		cmd:      cmd,
		stdin:    stdin,
		stderr:   stderr,
		frame:    spec.Width * spec.Height * 4,
		audioW:   audioW,
		out:      make(chan []byte, 16),
		abort:    make(chan struct{}),
		readDone: make(chan struct{}),
	}
	go e.collect(stdout)
	if audioW != nil {
		go func() {
			// Audio is best effort; a broken pipe just ends the track.
			_, _ = io.Copy(audioW, spec.Audio.Stream())
			_ = audioW.Close()
		}()
	}
	return e, nil
}

func (e *ffmpegEncoder) collect(stdout io.Reader) {
	defer close(e.out)
	defer close(e.readDone)
	buf := make([]byte, encoderChunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			select {
			case e.out <- chunk:
			case <-e.abort:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				e.readErr = err
			}
			return
		}
	}
}

func (e *ffmpegEncoder) Output() <-chan []byte { return e.out }

func (e *ffmpegEncoder) WriteFrame(img *image.RGBA) error {
	if img == nil || len(img.Pix) != e.frame {
		return fmt.Errorf("encoder: frame size mismatch")
	}
	if _, err := e.stdin.Write(img.Pix); err != nil {
		return exitError("ffmpeg encoder write", err, e.stderr)
	}
	return nil
}

func (e *ffmpegEncoder) wait() error {
	e.waitOnce.Do(func() {
		e.waitErr = e.cmd.Wait()
	})
	return e.waitErr
}

func (e *ffmpegEncoder) Finish(ctx context.Context) error {
	e.finishOnce.Do(func() {
		if err := e.stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			e.finishErr = fmt.Errorf("close encoder input: %w", err)
			_ = e.Abort()
			return
		}
		done := make(chan error, 1)
		go func() {
			<-e.readDone
			done <- e.wait()
		}()
		select {
		case err := <-done:
			switch {
			case err != nil:
				e.finishErr = exitError("ffmpeg encoder", err, e.stderr)
			case e.readErr != nil:
				e.finishErr = fmt.Errorf("read encoder output: %w", e.readErr)
			}
		case <-ctx.Done():
			_ = e.Abort()
			e.finishErr = ctx.Err()
		}
	})
	return e.finishErr
}

func (e *ffmpegEncoder) Abort() error {
	e.abortOnce.Do(func() {
		close(e.abort)
		_ = e.stdin.Close()
		killProcess(e.cmd)
		if e.audioW != nil {
			_ = e.audioW.Close()
		}
	})
	<-e.readDone
	_ = e.wait()
	return nil
}
