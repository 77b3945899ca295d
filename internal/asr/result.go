package asr

import "strings"

// Result is the raw outcome of one ASR call. It is a closed union: the only
// implementations are Chunks, PlainText and Failure.
type Result interface {
	isResult()
}

// Chunk is one recognized span. A nil Start or End means the engine did not
// report that boundary.
type Chunk struct {
	Start *float64
	End   *float64
	Text  string
}

// Chunks carries timestamped spans in engine order.
type Chunks struct {
	Chunks []Chunk
}

// PlainText carries a transcript without timing.
type PlainText struct {
	Text string
}

// Failure records that the engine could not be loaded or invoked.
type Failure struct {
	Err error
}

func (Chunks) isResult()    {}
func (PlainText) isResult() {}
func (Failure) isResult()   {}

// Seconds returns a pointer to v for building chunk boundaries.
func Seconds(v float64) *float64 {
	return &v
}

// Usable reports whether r carries any non-blank text.
func Usable(r Result) bool {
	return strings.TrimSpace(Text(r)) != ""
}

// Text flattens r into a single transcript string.
func Text(r Result) string {
	switch v := r.(type) {
	case Chunks:
		parts := make([]string, 0, len(v.Chunks))
		for _, c := range v.Chunks {
			if t := strings.TrimSpace(c.Text); t != "" {
				parts = append(parts, t)
			}
		}
		return strings.Join(parts, " ")
	case PlainText:
		return strings.TrimSpace(v.Text)
	default:
		return ""
	}
}
