package captions

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"captionstudio/internal/asr"
	"captionstudio/internal/services"
)

// Source says which rule produced a normalized sequence.
type Source string

const (
	SourceChunks    Source = "chunks"
	SourcePlainText Source = "plain_text"
	SourceFallback  Source = "fallback"
)

const (
	// defaultChunkDuration is assumed when a chunk has no end boundary.
	defaultChunkDuration = 2.0
	// plainTextDuration is the span given to a transcript without timing.
	plainTextDuration = 5.0
	// minimumDuration keeps end > start after rounding.
	minimumDuration  = 0.1
	fallbackDuration = 3.0
)

var fallbackTexts = []string{
	"Welcome to Caption Studio",
	"This is a demo of caption generation",
	"आप easily captions add कर सकते हैं",
	"Multiple styles available हैं",
	"Transcription was unavailable for this video",
}

// Result is the output of Normalize. Segments is never empty. Warning is set
// whenever Source is SourceFallback and explains why.
type Result struct {
	Segments []Segment
	Source   Source
	Warning  string
	// Dropped counts chunks discarded for blank text or duplication.
	Dropped int
}

// Fallback reports whether the placeholder sequence was emitted.
func (r Result) Fallback() bool {
	return r.Source == SourceFallback
}

// FallbackSequence returns the fixed placeholder captions shown when no
// transcript is available.
func FallbackSequence() []Segment {
	out := make([]Segment, len(fallbackTexts))
	for i, text := range fallbackTexts {
		start := float64(i) * fallbackDuration
		out[i] = Segment{Start: start, End: start + fallbackDuration, Text: text}
	}
	return out
}

// Normalize converts one raw ASR result into displayable captions. It never
// fails: when neither chunks nor plain text yield a caption the fallback
// sequence is returned with Source set to SourceFallback.
func Normalize(raw asr.Result) Result {
	var reason string
	switch v := raw.(type) {
	case asr.Chunks:
		segments, dropped := fromChunks(v.Chunks)
		if len(segments) > 0 {
			return Result{Segments: segments, Source: SourceChunks, Dropped: dropped}
		}
		reason = "transcription returned no usable text"
	case asr.PlainText:
		if text := cleanText(v.Text); text != "" {
			return Result{
				Segments: []Segment{{Start: 0, End: plainTextDuration, Text: text}},
				Source:   SourcePlainText,
			}
		}
		reason = "transcription returned no usable text"
	case asr.Failure:
		reason = "transcription failed"
		if v.Err != nil {
			reason += ": " + services.Describe(v.Err)
		}
	default:
		reason = "transcription produced no result"
	}
	return Result{Segments: FallbackSequence(), Source: SourceFallback, Warning: reason}
}

// fromChunks keeps engine order. A start earlier than the previous emitted
// start is raised to it so the sequence stays ordered without re-sorting.
func fromChunks(chunks []asr.Chunk) ([]Segment, int) {
	out := make([]Segment, 0, len(chunks))
	dropped := 0
	for _, chunk := range chunks {
		text := cleanText(chunk.Text)
		if text == "" {
			dropped++
			continue
		}
		start := 0.0
		if finite(chunk.Start) {
			start = *chunk.Start
		}
		end := start + defaultChunkDuration
		if finite(chunk.End) {
			end = *chunk.End
		}

		rs, re := round(start), round(end)
		if rs < 0 {
			rs = 0
		}
		if n := len(out); n > 0 && rs < out[n-1].Start {
			rs = out[n-1].Start
		}
		if re <= rs {
			re = round(rs + minimumDuration)
		}

		seg := Segment{Start: rs, End: re, Text: text}
		if n := len(out); n > 0 && out[n-1] == seg {
			dropped++
			continue
		}
		out = append(out, seg)
	}
	return out, dropped
}

func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

func cleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// round rounds seconds to one decimal place, half away from zero.
func round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(1).InexactFloat64()
}
