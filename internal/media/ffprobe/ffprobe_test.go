package ffprobe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const sample = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "mjpeg", "width": 300, "height": 300, "disposition": {"attached_pic": 1}},
    {"index": 1, "codec_type": "video", "codec_name": "h264", "width": 1280, "height": 720, "avg_frame_rate": "30000/1001", "r_frame_rate": "30/1"},
    {"index": 2, "codec_type": "audio", "codec_name": "aac", "sample_rate": "48000", "channels": 2}
  ],
  "format": {"duration": "300.5", "nb_streams": 3, "format_name": "mov,mp4"}
}`

func TestSummarize(t *testing.T) {
	result, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	summary, err := result.Summarize()
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.Width != 1280 || summary.Height != 720 {
		t.Fatalf("cover art should be skipped, got %dx%d", summary.Width, summary.Height)
	}
	if summary.Duration != 300.5 {
		t.Fatalf("unexpected duration %v", summary.Duration)
	}
	if summary.FrameRate < 29.97 || summary.FrameRate > 29.98 {
		t.Fatalf("unexpected frame rate %v", summary.FrameRate)
	}
	if !summary.HasAudio || summary.VideoCodec != "h264" {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestSummarizeRequiresVideo(t *testing.T) {
	result := Result{Streams: []Stream{{CodecType: "audio"}}}
	if _, err := result.Summarize(); err == nil {
		t.Fatal("expected error without video stream")
	}
	result = Result{Streams: []Stream{{CodecType: "video"}}}
	if _, err := result.Summarize(); err == nil {
		t.Fatal("expected error for zero dimensions")
	}
}

func TestFrameRateFallbacks(t *testing.T) {
	cases := []struct {
		stream Stream
		want   float64
	}{
		{Stream{AvgFrameRate: "0/0", RFrameRate: "25/1"}, 25},
		{Stream{AvgFrameRate: "24"}, 24},
		{Stream{AvgFrameRate: "bad", RFrameRate: ""}, 0},
	}
	for _, tc := range cases {
		if got := tc.stream.FrameRate(); got != tc.want {
			t.Fatalf("FrameRate(%+v) = %v want %v", tc.stream, got, tc.want)
		}
	}
}

func TestDurationFallsBackToStream(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", Duration: "12.5", Width: 2, Height: 2}},
		Format:  Format{Duration: "N/A"},
	}
	if got := result.DurationSeconds(); got != 12.5 {
		t.Fatalf("expected stream duration fallback, got %v", got)
	}
}

func TestInspectUsesBinary(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "ffprobe")
	body := "#!/bin/sh\ncat <<'JSON'\n" + sample + "\nJSON\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	result, err := Inspect(context.Background(), script, "/video.mp4")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if _, ok := result.VideoStream(); !ok {
		t.Fatal("expected video stream from stub output")
	}
	if _, err := Inspect(context.Background(), script, " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
