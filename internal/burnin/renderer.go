package burnin

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"captionstudio/internal/overlay"
)

// maxTextWidth is the share of the frame width a caption may occupy before
// the font shrinks to fit.
const maxTextWidth = 0.9

// Renderer draws caption frames onto RGBA images. It is safe for concurrent
// use; Draw calls are serialized because faces are shared and not
// goroutine-safe.
type Renderer struct {
	font *opentype.Font

	// mu guards faces and every use of a face.
	mu    sync.Mutex
	faces map[int]font.Face
}

// New loads the caption font. An empty path uses the embedded Go Bold face,
// which covers Latin scripts only; point fontPath at a Noto build for
// Devanagari and other scripts.
func New(fontPath string) (*Renderer, error) {
	data := gobold.TTF
	if p := strings.TrimSpace(fontPath); p != "" {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read caption font: %w", err)
		}
		data = raw
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse caption font: %w", err)
	}
	return &Renderer{font: f, faces: make(map[int]font.Face)}, nil
}

// faceLocked returns a cached face for size, quantized to half pixels.
// r.mu must be held.
func (r *Renderer) faceLocked(size float64) (font.Face, error) {
	key := int(math.Round(size * 2))
	if f, ok := r.faces[key]; ok {
		return f, nil
	}
	if len(r.faces) >= 64 {
		for k, f := range r.faces {
			_ = f.Close()
			delete(r.faces, k)
		}
	}
	f, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    float64(key) / 2,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	r.faces[key] = f
	return f, nil
}

// Close releases cached faces.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, f := range r.faces {
		_ = f.Close()
		delete(r.faces, k)
	}
	return nil
}

// Draw composites vf onto dst in place. Invisible frames (zero opacity or a
// scale too small to rasterize) leave dst untouched.
func (r *Renderer) Draw(dst *image.RGBA, vf overlay.VisualFrame) error {
	text := vf.Segment.Text
	if dst == nil || text == "" || vf.Opacity <= 0 {
		return nil
	}
	bounds := dst.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	scale := vf.Scale
	if scale <= 0 {
		return nil
	}

	size := overlay.FontSize(width) * scale
	if size < 1 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	face, err := r.faceLocked(size)
	if err != nil {
		return fmt.Errorf("caption face: %w", err)
	}
	textWidth := font.MeasureString(face, text).Ceil()
	if limit := int(float64(width) * maxTextWidth); textWidth > limit && textWidth > 0 {
		size = size * float64(limit) / float64(textWidth)
		if size < 1 {
			return nil
		}
		if face, err = r.faceLocked(size); err != nil {
			return fmt.Errorf("caption face: %w", err)
		}
		textWidth = font.MeasureString(face, text).Ceil()
	}

	layout := vf.Layout
	textHeight := int(math.Round(size))
	cx := bounds.Min.X + width/2
	cy := bounds.Min.Y + int(math.Round(layout.CenterY*float64(height)))
	padX := scaled(layout.PadX, scale)
	padY := scaled(layout.PadY, scale)

	box := image.Rect(cx-textWidth/2-padX, cy-textHeight/2-padY, cx+(textWidth+1)/2+padX, cy+(textHeight+1)/2+padY)
	if layout.FullWidth {
		box.Min.X, box.Max.X = bounds.Min.X, bounds.Max.X
	}
	if layout.Background.A > 0 {
		fill(dst, box, fade(layout.Background, vf.Opacity))
	}
	if layout.Accent.A > 0 && layout.AccentHeight > 0 {
		top := cy + textHeight/2 + scaled(layout.AccentGap, scale)
		bar := image.Rect(box.Min.X, top, box.Max.X, top+max(1, scaled(layout.AccentHeight, scale)))
		fill(dst, bar, fade(layout.Accent, vf.Opacity))
	}

	m := face.Metrics()
	baseline := fixed.I(cy) + (m.Ascent-m.Descent)/2
	origin := fixed.Point26_6{X: fixed.I(cx - textWidth/2), Y: baseline}

	if layout.Outline.A > 0 && layout.OutlineWidth > 0 {
		stroke(dst, face, origin, text, fade(layout.Outline, vf.Opacity), max(1, scaled(layout.OutlineWidth, scale)))
	}

	if !vf.Karaoke() {
		drawString(dst, face, origin, text, fade(layout.Text, vf.Opacity))
		return nil
	}

	spokenEnd := origin
	if vf.Spoken != "" {
		if layout.HighlightShadow.A > 0 {
			shadow := origin.Add(fixed.P(2, 2))
			drawString(dst, face, shadow, vf.Spoken, fade(layout.HighlightShadow, vf.Opacity))
		}
		spokenEnd = drawString(dst, face, origin, vf.Spoken, fade(layout.Highlight, vf.Opacity))
	}
	if vf.Unspoken != "" {
		drawString(dst, face, spokenEnd, vf.Unspoken, fade(layout.Dim, vf.Opacity))
	}
	return nil
}

func drawString(dst *image.RGBA, face font.Face, at fixed.Point26_6, s string, c color.NRGBA) fixed.Point26_6 {
	d := font.Drawer{Dst: dst, Src: image.NewUniform(c), Face: face, Dot: at}
	d.DrawString(s)
	return d.Dot
}

// stroke approximates an outline by stamping the text around a ring.
func stroke(dst *image.RGBA, face font.Face, at fixed.Point26_6, s string, c color.NRGBA, w int) {
	for dy := -w; dy <= w; dy++ {
		for dx := -w; dx <= w; dx++ {
			if dx == 0 && dy == 0 || dx*dx+dy*dy > w*w {
				continue
			}
			drawString(dst, face, at.Add(fixed.P(dx, dy)), s, c)
		}
	}
}

func fill(dst *image.RGBA, r image.Rectangle, c color.NRGBA) {
	draw.Draw(dst, r.Intersect(dst.Bounds()), image.NewUniform(c), image.Point{}, draw.Over)
}

func fade(c color.NRGBA, opacity float64) color.NRGBA {
	if opacity >= 1 {
		return c
	}
	c.A = uint8(math.Round(float64(c.A) * max(0, opacity)))
	return c
}

func scaled(v int, scale float64) int {
	return int(math.Round(float64(v) * scale))
}
