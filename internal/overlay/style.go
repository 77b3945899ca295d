package overlay

import (
	"fmt"
	"image/color"
	"strings"
)

// Style selects a caption presentation.
type Style string

const (
	StyleBottom  Style = "bottom"
	StyleTop     Style = "top"
	StyleKaraoke Style = "karaoke"
)

// Styles lists every supported style in display order.
func Styles() []Style {
	return []Style{StyleBottom, StyleTop, StyleKaraoke}
}

// ParseStyle accepts a style name case-insensitively.
func ParseStyle(s string) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case StyleBottom:
		return StyleBottom, nil
	case StyleTop:
		return StyleTop, nil
	case StyleKaraoke:
		return StyleKaraoke, nil
	default:
		return "", fmt.Errorf("unknown caption style %q (want bottom, top or karaoke)", s)
	}
}

func (s Style) String() string { return string(s) }

// Layout is the fixed presentation for one style. Colours with zero alpha are
// not drawn. Pixel measures are at the reference font size and scale with it.
type Layout struct {
	Style Style
	// CenterY is the vertical centre of the text as a fraction of frame height.
	CenterY float64

	Text color.NRGBA

	// Background is a box behind the text, padded by PadX/PadY. FullWidth
	// stretches it edge to edge.
	Background color.NRGBA
	FullWidth  bool
	PadX       int
	PadY       int

	// Accent is a horizontal bar AccentGap pixels below the text box.
	Accent       color.NRGBA
	AccentHeight int
	AccentGap    int

	Outline      color.NRGBA
	OutlineWidth int

	// Karaoke colours for spoken and unspoken glyphs.
	Highlight       color.NRGBA
	HighlightShadow color.NRGBA
	Dim             color.NRGBA
}

var (
	white  = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	black  = color.NRGBA{A: 255}
	coral  = color.NRGBA{R: 0xff, G: 0x6b, B: 0x6b, A: 255}
	yellow = color.NRGBA{R: 0xff, G: 0xdd, B: 0x44, A: 255}
)

var layouts = map[Style]Layout{
	StyleBottom: {
		Style:      StyleBottom,
		CenterY:    0.88,
		Text:       white,
		Background: color.NRGBA{A: 204},
		PadX:       20,
		PadY:       10,
	},
	StyleTop: {
		Style:        StyleTop,
		CenterY:      0.15,
		Text:         white,
		Background:   color.NRGBA{A: 230},
		FullWidth:    true,
		PadY:         15,
		Accent:       coral,
		AccentHeight: 4,
		AccentGap:    5,
	},
	StyleKaraoke: {
		Style:           StyleKaraoke,
		CenterY:         0.85,
		Text:            white,
		Outline:         black,
		OutlineWidth:    3,
		Highlight:       yellow,
		HighlightShadow: coral,
		Dim:             color.NRGBA{R: 255, G: 255, B: 255, A: 204},
	},
}

// LayoutFor returns the layout for style; unknown styles get the bottom
// layout.
func LayoutFor(style Style) Layout {
	if l, ok := layouts[style]; ok {
		return l
	}
	return layouts[StyleBottom]
}

// FontSize is the caption font size in pixels for a frame width.
func FontSize(frameWidth int) float64 {
	return max(24, float64(frameWidth)/40)
}
