package overlay

import (
	"math"

	"github.com/rivo/uniseg"

	"captionstudio/internal/captions"
)

// EntranceSeconds is how long a caption takes to fade in.
const EntranceSeconds = 0.3

// VisualFrame describes how the active caption looks at one instant.
type VisualFrame struct {
	Segment captions.Segment
	Style   Style
	Layout  Layout
	Opacity float64
	Scale   float64
	// Fill, Spoken and Unspoken are only populated for the karaoke style.
	Fill     float64
	Spoken   string
	Unspoken string
}

// Karaoke reports whether the frame carries a spoken/unspoken split.
func (v VisualFrame) Karaoke() bool {
	return v.Style == StyleKaraoke
}

// ActiveSegment returns the first segment, in sequence order, whose closed
// interval [Start, End] contains t. On overlap the earliest one wins.
func ActiveSegment(segments []captions.Segment, t float64) (captions.Segment, bool) {
	for _, seg := range segments {
		if t >= seg.Start && t <= seg.End {
			return seg, true
		}
	}
	return captions.Segment{}, false
}

// Describe computes the caption's appearance at time t for a composition
// running at fps. The result depends only on its arguments.
func Describe(seg captions.Segment, style Style, t, fps float64) VisualFrame {
	frame := VisualFrame{
		Segment: seg,
		Style:   style,
		Layout:  LayoutFor(style),
		Opacity: clamp01((t - seg.Start) / EntranceSeconds),
		Scale:   EntranceSpring.At((t-seg.Start)*fps, fps),
	}
	if style == StyleKaraoke {
		frame.Fill = FillFraction(seg, t)
		frame.Spoken, frame.Unspoken = SplitText(seg.Text, frame.Fill)
	}
	return frame
}

// At resolves the active caption at t and describes it.
func At(segments []captions.Segment, style Style, t, fps float64) (VisualFrame, bool) {
	seg, ok := ActiveSegment(segments, t)
	if !ok {
		return VisualFrame{}, false
	}
	return Describe(seg, style, t, fps), true
}

// FillFraction is the elapsed share of the segment, clamped to [0, 1].
func FillFraction(seg captions.Segment, t float64) float64 {
	d := seg.End - seg.Start
	if d <= 0 {
		if t >= seg.Start {
			return 1
		}
		return 0
	}
	return clamp01((t - seg.Start) / d)
}

// SplitText divides text at floor(fill * n) user-perceived characters. It is
// a character split, not a word split: a word may be half highlighted.
func SplitText(text string, fill float64) (spoken, unspoken string) {
	n := uniseg.GraphemeClusterCount(text)
	k := int(math.Floor(clamp01(fill) * float64(n)))
	if k <= 0 {
		return "", text
	}
	if k >= n {
		return text, ""
	}
	gr := uniseg.NewGraphemes(text)
	cut := 0
	for i := 0; i < k && gr.Next(); i++ {
		_, cut = gr.Positions()
	}
	return text[:cut], text[cut:]
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
