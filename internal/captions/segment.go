package captions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"captionstudio/internal/fileutil"
)

// Segment is one timed caption. Times are seconds from the start of the
// source.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Duration returns End - Start.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Validate checks a sequence: non-negative starts, end after start, non-empty
// text, and starts in ascending order.
func Validate(segments []Segment) error {
	var errs []error
	for i, seg := range segments {
		if seg.Start < 0 {
			errs = append(errs, fmt.Errorf("segment %d: start %.3f is negative", i, seg.Start))
		}
		if seg.End <= seg.Start {
			errs = append(errs, fmt.Errorf("segment %d: end %.3f not after start %.3f", i, seg.End, seg.Start))
		}
		if strings.TrimSpace(seg.Text) == "" {
			errs = append(errs, fmt.Errorf("segment %d: empty text", i))
		}
		if i > 0 && seg.Start < segments[i-1].Start {
			errs = append(errs, fmt.Errorf("segment %d: start %.3f before previous start %.3f", i, seg.Start, segments[i-1].Start))
		}
	}
	return errors.Join(errs...)
}

// Marshal encodes segments in the wire shape [{"start","end","text"}]. A nil
// slice encodes as [].
func Marshal(segments []Segment) ([]byte, error) {
	if segments == nil {
		segments = []Segment{}
	}
	return json.MarshalIndent(segments, "", "  ")
}

// Unmarshal decodes the wire shape. Unknown fields are rejected so typos in
// hand-edited caption files surface early.
func Unmarshal(data []byte) ([]Segment, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var segments []Segment
	if err := dec.Decode(&segments); err != nil {
		return nil, fmt.Errorf("decode captions: %w", err)
	}
	if dec.More() {
		return nil, errors.New("decode captions: trailing data after array")
	}
	if segments == nil {
		segments = []Segment{}
	}
	return segments, nil
}

// Load reads and validates a caption file.
func Load(path string) ([]Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open captions: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read captions: %w", err)
	}
	segments, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if err := Validate(segments); err != nil {
		return nil, fmt.Errorf("invalid captions in %s: %w", path, err)
	}
	return segments, nil
}

// Save writes segments to path in the wire shape.
func Save(path string, segments []Segment) error {
	data, err := Marshal(segments)
	if err != nil {
		return fmt.Errorf("encode captions: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write captions: %w", err)
	}
	return nil
}
