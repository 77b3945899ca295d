package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg" // background decoding
	"image/png"
	"io"
	"os"

	xdraw "golang.org/x/image/draw"

	"captionstudio/internal/burnin"
	"captionstudio/internal/captions"
	"captionstudio/internal/overlay"
)

// backdrop is painted when no background image is supplied.
var backdrop = color.RGBA{R: 0x1e, G: 0x29, B: 0x3b, A: 0xff}

// Stills renders single preview frames.
type Stills struct {
	comp       Composition
	renderer   *burnin.Renderer
	background *image.RGBA
}

// NewStills prepares a still renderer. background may be nil.
func NewStills(comp Composition, renderer *burnin.Renderer, background image.Image) *Stills {
	s := &Stills{comp: comp, renderer: renderer}
	canvas := image.NewRGBA(image.Rect(0, 0, comp.Width, comp.Height))
	if background == nil {
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(backdrop), image.Point{}, draw.Src)
	} else {
		xdraw.CatmullRom.Scale(canvas, canvas.Bounds(), background, background.Bounds(), xdraw.Src, nil)
	}
	s.background = canvas
	return s
}

// LoadBackground decodes a PNG or JPEG file.
func LoadBackground(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open background: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode background: %w", err)
	}
	return img, nil
}

// Render draws the caption visible at t over the background. The returned
// image is a fresh copy.
func (s *Stills) Render(segments []captions.Segment, style overlay.Style, t float64) (*image.RGBA, error) {
	frame, err := s.comp.FrameAt(t)
	if err != nil {
		return nil, err
	}
	img := image.NewRGBA(s.background.Bounds())
	copy(img.Pix, s.background.Pix)
	if vf, ok := s.comp.Describe(segments, style, frame); ok {
		if err := s.renderer.Draw(img, vf); err != nil {
			return nil, err
		}
	}
	return img, nil
}

// WritePNG renders the still at t and encodes it to w.
func (s *Stills) WritePNG(w io.Writer, segments []captions.Segment, style overlay.Style, t float64) error {
	img, err := s.Render(segments, style, t)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
