package burnin

import (
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"captionstudio/internal/captions"
	"captionstudio/internal/overlay"
)

func grayFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 128, G: 128, B: 128, A: 255}), image.Point{}, draw.Src)
	return img
}

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func settled(seg captions.Segment, style overlay.Style) overlay.VisualFrame {
	vf := overlay.Describe(seg, style, seg.End, 30)
	vf.Scale = 1
	return vf
}

func TestDrawBottomBackground(t *testing.T) {
	r := newRenderer(t)
	img := grayFrame(640, 360)
	seg := captions.Segment{Start: 0, End: 2, Text: "Hello"}
	if err := r.Draw(img, settled(seg, overlay.StyleBottom)); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	// Padding above the text inside the background box.
	px := img.RGBAAt(320, 300)
	if px.R > 60 {
		t.Fatalf("expected darkened background at padding, got %+v", px)
	}
	// Far corner untouched.
	if got := img.RGBAAt(5, 5); got.R != 128 {
		t.Fatalf("expected untouched corner, got %+v", got)
	}
}

func TestDrawTopAccentBar(t *testing.T) {
	r := newRenderer(t)
	img := grayFrame(640, 360)
	seg := captions.Segment{Start: 0, End: 2, Text: "Breaking"}
	if err := r.Draw(img, settled(seg, overlay.StyleTop)); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	accent := img.RGBAAt(2, 72)
	if accent.R != 0xff || accent.G != 0x6b || accent.B != 0x6b {
		t.Fatalf("expected coral accent bar, got %+v", accent)
	}
	bar := img.RGBAAt(2, 30)
	if bar.R > 20 {
		t.Fatalf("expected full-width dark bar, got %+v", bar)
	}
}

func TestDrawKaraokeHighlightsSpoken(t *testing.T) {
	r := newRenderer(t)
	img := grayFrame(640, 360)
	seg := captions.Segment{Start: 0, End: 2, Text: "HELLO WORLD"}
	vf := overlay.Describe(seg, overlay.StyleKaraoke, 1, 30)
	vf.Scale = 1
	if err := r.Draw(img, vf); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	var yellow, bright int
	for y := 280; y < 340; y++ {
		for x := 0; x < 640; x++ {
			p := img.RGBAAt(x, y)
			if p.R > 220 && p.G > 190 && p.B < 110 {
				yellow++
			}
			if p.R > 200 && p.G > 200 && p.B > 200 {
				bright++
			}
		}
	}
	if yellow == 0 {
		t.Fatal("expected highlighted glyph pixels")
	}
	if bright == 0 {
		t.Fatal("expected unspoken glyph pixels")
	}
}

func TestDrawInvisibleFrameNoop(t *testing.T) {
	r := newRenderer(t)
	img := grayFrame(320, 180)
	seg := captions.Segment{Start: 5, End: 6, Text: "later"}
	vf := overlay.Describe(seg, overlay.StyleBottom, 5, 30)
	if err := r.Draw(img, vf); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	for y := 0; y < 180; y++ {
		for x := 0; x < 320; x++ {
			if img.RGBAAt(x, y).R != 128 {
				t.Fatalf("expected untouched frame at entrance start, pixel %d,%d changed", x, y)
			}
		}
	}
}

func TestDrawLongTextShrinksToFit(t *testing.T) {
	r := newRenderer(t)
	img := grayFrame(320, 180)
	seg := captions.Segment{Start: 0, End: 2, Text: "This caption is far too long to fit on a small frame at the default size"}
	if err := r.Draw(img, settled(seg, overlay.StyleKaraoke)); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	for y := 140; y < 170; y++ {
		for _, x := range []int{0, 1, 318, 319} {
			if got := img.RGBAAt(x, y); got.R != 128 {
				t.Fatalf("caption spilled to frame edge at %d,%d: %+v", x, y, got)
			}
		}
	}
}

func TestNewRejectsBadFont(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ttf")
	if err := os.WriteFile(path, []byte("not a font"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(path); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := New(filepath.Join(t.TempDir(), "missing.ttf")); err == nil {
		t.Fatal("expected read error")
	}
}

func TestDrawConcurrentAcrossFaceEviction(t *testing.T) {
	r := newRenderer(t)
	seg := captions.Segment{Start: 0, End: 2, Text: "Shared faces"}
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			img := grayFrame(320, 180)
			// Enough distinct sizes across goroutines to force cache eviction.
			for i := range 20 {
				vf := settled(seg, overlay.StyleBottom)
				vf.Scale = 0.5 + float64(g*20+i)/40
				if err := r.Draw(img, vf); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Draw: %v", err)
	}
}
