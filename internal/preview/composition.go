package preview

import (
	"fmt"
	"math"

	"captionstudio/internal/captions"
	"captionstudio/internal/config"
	"captionstudio/internal/overlay"
)

// Composition is the fixed preview timeline.
type Composition struct {
	Width     int
	Height    int
	FrameRate int
	// DurationFrames is the timeline length, independent of the captions.
	DurationFrames int
}

// DefaultComposition is 20 seconds of 1920x1080 at 30 fps.
func DefaultComposition() Composition {
	return Composition{Width: 1920, Height: 1080, FrameRate: 30, DurationFrames: 30 * 20}
}

// CompositionFromConfig builds the composition described by cfg.
func CompositionFromConfig(cfg config.Preview) Composition {
	c := DefaultComposition()
	if cfg.Width > 0 && cfg.Height > 0 {
		c.Width, c.Height = cfg.Width, cfg.Height
	}
	if cfg.FrameRate > 0 {
		c.FrameRate = cfg.FrameRate
	}
	if cfg.MaxSeconds > 0 {
		c.DurationFrames = cfg.MaxSeconds * c.FrameRate
	}
	return c
}

// Duration returns the timeline length in seconds.
func (c Composition) Duration() float64 {
	if c.FrameRate <= 0 {
		return 0
	}
	return float64(c.DurationFrames) / float64(c.FrameRate)
}

// FrameAt maps a playback time to the frame shown at that time.
func (c Composition) FrameAt(t float64) (int, error) {
	if math.IsNaN(t) || t < 0 || t > c.Duration() {
		return 0, fmt.Errorf("time %.3fs outside preview range [0, %.1fs]", t, c.Duration())
	}
	frame := int(math.Floor(t * float64(c.FrameRate)))
	return min(frame, c.DurationFrames-1), nil
}

// TimeAt returns the playback time of frame.
func (c Composition) TimeAt(frame int) float64 {
	return float64(frame) / float64(c.FrameRate)
}

// Describe resolves the overlay for frame. Frames snap to the composition
// grid so a preview still matches the corresponding export frame.
func (c Composition) Describe(segments []captions.Segment, style overlay.Style, frame int) (overlay.VisualFrame, bool) {
	return overlay.At(segments, style, c.TimeAt(frame), float64(c.FrameRate))
}

// Cue is a caption that falls at least partly inside the composition.
type Cue struct {
	Index      int
	Segment    captions.Segment
	StartFrame int
	EndFrame   int
	// Clipped is set when the caption runs past the end of the timeline.
	Clipped bool
}

// Cues lists the captions visible on the timeline with their frame ranges.
func (c Composition) Cues(segments []captions.Segment) []Cue {
	limit := c.Duration()
	cues := make([]Cue, 0, len(segments))
	for i, seg := range segments {
		if seg.Start >= limit {
			continue
		}
		end := math.Min(seg.End, limit)
		cues = append(cues, Cue{
			Index:      i,
			Segment:    seg,
			StartFrame: int(math.Ceil(seg.Start * float64(c.FrameRate))),
			EndFrame:   min(int(math.Floor(end*float64(c.FrameRate))), c.DurationFrames-1),
			Clipped:    seg.End > limit,
		})
	}
	return cues
}
