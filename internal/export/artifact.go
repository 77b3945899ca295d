package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"captionstudio/internal/captions"
	"captionstudio/internal/overlay"
	"captionstudio/internal/services"
	"captionstudio/internal/textutil"
)

// StopReason records why the frame loop ended.
type StopReason string

const (
	StopEndOfStream StopReason = "end_of_stream"
	StopStalled     StopReason = "stalled"
	StopDurationCap StopReason = "duration_cap"
)

// Warning codes attached to degraded artifacts.
const (
	WarningAudioCaptureFailed = "audio_capture_failed"
	WarningStalled            = "source_stalled"
	WarningDurationCap        = "duration_cap_reached"
)

// Warning describes a degradation that did not fail the export.
type Warning struct {
	Code    string             `json:"code"`
	Kind    services.ErrorKind `json:"kind"`
	Message string             `json:"message"`
}

// Artifact is a finished export.
type Artifact struct {
	Data       []byte
	MimeType   string
	Width      int
	Height     int
	Frames     int
	FrameRate  int
	HasAudio   bool
	Truncated  bool
	StopReason StopReason
	Warnings   []Warning
}

// Duration is the rendered length in seconds.
func (a Artifact) Duration() float64 {
	if a.FrameRate <= 0 {
		return 0
	}
	return float64(a.Frames) / float64(a.FrameRate)
}

// FallbackInstructions renders a plain-text document that preserves the
// captions and explains how to burn them in later. The CLI writes it when an
// export fails.
func FallbackInstructions(segments []captions.Segment, style overlay.Style, source, container string, cause error) string {
	if style == "" {
		style = overlay.StyleBottom
	}
	payload, err := captions.Marshal(segments)
	if err != nil {
		payload = []byte("[]")
	}
	name := filepath.Base(source)
	if source == "" {
		name = "input.mp4"
	}
	if strings.TrimSpace(container) == "" {
		container = "webm"
	}
	output := textutil.DerivedName(name, "captioned", strings.ToLower(strings.TrimSpace(container)))

	var b strings.Builder
	b.WriteString("Caption export did not complete.\n")
	if cause != nil {
		fmt.Fprintf(&b, "Reason: %s\n", services.Describe(cause))
	}
	fmt.Fprintf(&b, "Source: %s\n", name)
	fmt.Fprintf(&b, "Style: %s\n", style)
	fmt.Fprintf(&b, "Captions: %d\n\n", len(segments))
	b.WriteString("Save the JSON below as captions.json and rerun the export:\n\n")
	fmt.Fprintf(&b, "  captionstudio export %s --captions captions.json --style %s --output %s\n\n",
		shellQuote(source), style, shellQuote(output))
	b.WriteString("Alternatively load captions.json into any editor that accepts\n")
	b.WriteString("[{\"start\": seconds, \"end\": seconds, \"text\": \"...\"}] caption lists.\n\n")
	b.WriteString("--- captions.json ---\n")
	b.Write(payload)
	b.WriteString("\n")
	return b.String()
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r == '/' || r == '.' || r == '_' || r == '-' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
