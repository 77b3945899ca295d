package language

import "testing"

func TestToISO2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en", "en"},
		{"EN", "en"},
		{"eng", "en"},
		{"hin", "hi"},
		{"english", "en"},
		{"Hindi", "hi"},
		{"HINGLISH", "hi"},
		{"mandarin", "zh"},
		{"en-US", "en"},
		{"hi-IN", "hi"},
		{"pt-BR", "pt"},
		{"xy", "xy"},
		{"not a language", ""},
		{"", ""},
		{" ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ToISO2(tt.input); got != tt.expected {
				t.Errorf("ToISO2(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en", "English"},
		{"hindi", "Hindi"},
		{"", "Unknown"},
		{"not a language", "NOT A LANGUAGE"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := DisplayName(tt.input); got != tt.expected {
				t.Errorf("DisplayName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSame(t *testing.T) {
	if !Same("english", "en") {
		t.Fatal("english and en should match")
	}
	if !Same("hi-IN", "hindi") {
		t.Fatal("hi-IN and hindi should match")
	}
	if Same("english", "hindi") {
		t.Fatal("english and hindi should differ")
	}
}

func TestDetect(t *testing.T) {
	if got := Detect("   "); got.Code != "" {
		t.Fatalf("expected empty detection, got %+v", got)
	}
	got := Detect("The quick brown fox jumps over the lazy dog while the children watch from the porch.")
	if got.Code != "en" {
		t.Fatalf("expected english detection, got %+v", got)
	}
	if got.Name != "English" {
		t.Fatalf("expected display name English, got %q", got.Name)
	}
}
