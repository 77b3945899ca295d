package export

import (
	"context"
	"image"
	"io"

	"captionstudio/internal/media/ffprobe"
)

// Frame is one decoded picture. Image is owned by the FrameSource and is only
// valid until the next call to NextFrame.
type Frame struct {
	Index int
	// Time is the source playback position in seconds.
	Time  float64
	Image *image.RGBA
}

// FrameSource yields decoded frames in presentation order. NextFrame returns
// io.EOF at end of stream and ctx.Err() when ctx ends first.
type FrameSource interface {
	NextFrame(ctx context.Context) (Frame, error)
	Close() error
}

// AudioFormat describes raw interleaved signed 16-bit PCM.
type AudioFormat struct {
	SampleRate int
	Channels   int
}

// AudioCapture streams the source's audio track as raw PCM. Close stops the
// capture and makes Stream return EOF.
type AudioCapture interface {
	Stream() io.Reader
	Format() AudioFormat
	Close() error
}

// EncoderSession consumes composited frames and produces container bytes.
// Output delivers chunks of arbitrary size and is closed once the session has
// emitted its last chunk, after Finish or Abort.
type EncoderSession interface {
	WriteFrame(img *image.RGBA) error
	Output() <-chan []byte
	// Finish ends input and waits for the encoder to flush.
	Finish(ctx context.Context) error
	// Abort stops the encoder without flushing. Safe to call repeatedly and
	// after Finish.
	Abort() error
}

// DecoderSpec configures a FrameSource.
type DecoderSpec struct {
	Path      string
	Width     int
	Height    int
	FrameRate int
	// Realtime paces decoding at native playback speed.
	Realtime bool
}

// AudioSpec configures an AudioCapture.
type AudioSpec struct {
	Path     string
	Realtime bool
}

// EncoderSpec configures an EncoderSession. Audio is nil for video-only
// output.
type EncoderSpec struct {
	Width      int
	Height     int
	FrameRate  int
	VideoCodec string
	AudioCodec string
	Container  string
	Audio      AudioCapture
}

// Backend opens the media resources one export needs.
type Backend interface {
	Probe(ctx context.Context, path string) (ffprobe.Summary, error)
	OpenDecoder(ctx context.Context, spec DecoderSpec) (FrameSource, error)
	OpenAudio(ctx context.Context, spec AudioSpec) (AudioCapture, error)
	OpenEncoder(ctx context.Context, spec EncoderSpec) (EncoderSession, error)
}
