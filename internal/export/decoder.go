package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"sync"
)

const decoderBuffers = 4

type decoded struct {
	frame Frame
	err   error
}

// ffmpegDecoder reads fixed-size RGBA frames from an ffmpeg process on a
// background goroutine so NextFrame can honour context deadlines.
type ffmpegDecoder struct {
	cmd    *exec.Cmd
	stdout io.Reader
	stderr *stderrTail
	rate   float64

	frames chan decoded
	free   chan *image.RGBA
	done   chan struct{}
	exited chan struct{}

	prev *image.RGBA
	err  error

	closeOnce sync.Once
}

func startDecoder(ctx context.Context, binary string, spec DecoderSpec) (*ffmpegDecoder, error) {
	if spec.Width <= 0 || spec.Height <= 0 || spec.FrameRate <= 0 {
		return nil, fmt.Errorf("decoder: invalid geometry %dx%d@%d", spec.Width, spec.Height, spec.FrameRate)
	}
	cmd := exec.CommandContext(ctx, binary, decoderArgs(spec)...) //nolint:gosec
	stderr := &stderrTail{}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("decoder stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start decoder: %w", err)
	}

	d := &ffmpegDecoder{
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		rate:   float64(spec.FrameRate),
		frames: make(chan decoded, 2),
		free:   make(chan *image.RGBA, decoderBuffers),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	for range decoderBuffers {
		d.free <- image.NewRGBA(image.Rect(0, 0, spec.Width, spec.Height))
	}
	go d.read()
	return d, nil
}

func (d *ffmpegDecoder) read() {
	waited := false
	defer func() {
		if !waited {
			_ = d.cmd.Wait()
		}
		close(d.frames)
		close(d.exited)
	}()

	for index := 0; ; index++ {
		var img *image.RGBA
		select {
		case img = <-d.free:
		case <-d.done:
			return
		}
		if _, err := io.ReadFull(d.stdout, img.Pix); err != nil {
			waited = true
			werr := d.cmd.Wait()
			var item decoded
			switch {
			case werr != nil:
				item.err = exitError("ffmpeg decoder", werr, d.stderr)
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
				// A clean exit with a partial trailing frame is end of stream.
				item.err = io.EOF
			default:
				item.err = fmt.Errorf("read frame %d: %w", index, err)
			}
			select {
			case d.frames <- item:
			case <-d.done:
			}
			return
		}
		item := decoded{frame: Frame{Index: index, Time: float64(index) / d.rate, Image: img}}
		select {
		case d.frames <- item:
		case <-d.done:
			return
		}
	}
}

// NextFrame returns the next decoded frame. The previous frame's image is
// recycled, so callers must finish with it before calling again.
func (d *ffmpegDecoder) NextFrame(ctx context.Context) (Frame, error) {
	if d.prev != nil {
		select {
		case d.free <- d.prev:
		default:
		}
		d.prev = nil
	}
	if d.err != nil {
		return Frame{}, d.err
	}
	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case item, ok := <-d.frames:
		if !ok {
			d.err = io.EOF
			return Frame{}, io.EOF
		}
		if item.err != nil {
			d.err = item.err
			return Frame{}, item.err
		}
		d.prev = item.frame.Image
		return item.frame, nil
	}
}

func (d *ffmpegDecoder) Close() error {
	d.closeOnce.Do(func() {
		close(d.done)
		killProcess(d.cmd)
		<-d.exited
	})
	return nil
}
