package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"  plain  ":          "plain",
		"a/b\\c:d*e":         "a-b-c-d-e",
		`what?"<is>|this`:    "whatisthis",
		"":                   "",
		"हिंदी captions.mp4": "हिंदी captions.mp4",
	}
	for in, want := range cases {
		if got := SanitizeFileName(in); got != want {
			t.Fatalf("SanitizeFileName(%q) = %q want %q", in, got, want)
		}
	}
}

func TestSanitizeToken(t *testing.T) {
	cases := map[string]string{
		"Bottom Style": "bottom_style",
		"  ":           "unknown",
		"__--":         "unknown",
		"karaoke-2":    "karaoke-2",
	}
	for in, want := range cases {
		if got := SanitizeToken(in); got != want {
			t.Fatalf("SanitizeToken(%q) = %q want %q", in, got, want)
		}
	}
}

func TestDerivedName(t *testing.T) {
	cases := []struct {
		source, suffix, ext, want string
	}{
		{"/in/My Clip:1.mp4", "captioned", ".webm", "My Clip-1_captioned.webm"},
		{"talk.mov", "", "json", "talk.json"},
		{"", "fallback", ".txt", "output_fallback.txt"},
		{"/videos/", "", ".png", "videos.png"},
	}
	for _, tc := range cases {
		if got := DerivedName(tc.source, tc.suffix, tc.ext); got != tc.want {
			t.Fatalf("DerivedName(%q,%q,%q) = %q want %q", tc.source, tc.suffix, tc.ext, got, tc.want)
		}
	}
}
