package captions

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestMarshalRoundTrip(t *testing.T) {
	in := []Segment{
		{Start: 0, End: 2.5, Text: "Hello"},
		{Start: 2.5, End: 4.1, Text: "आप easily captions add कर सकते हैं"},
	}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch: %+v vs %+v", in, out)
	}
}

func TestMarshalWireShape(t *testing.T) {
	data, err := Marshal([]Segment{{Start: 1, End: 2, Text: "x"}})
	if err != nil {
		t.Fatal(err)
	}
	compact := strings.Join(strings.Fields(string(data)), "")
	if compact != `[{"start":1,"end":2,"text":"x"}]` {
		t.Fatalf("unexpected wire shape %s", compact)
	}
	empty, err := Marshal(nil)
	if err != nil || string(empty) != "[]" {
		t.Fatalf("expected [] for nil, got %q (%v)", empty, err)
	}
}

func TestUnmarshalRejectsUnknownFields(t *testing.T) {
	if _, err := Unmarshal([]byte(`[{"start":0,"end":1,"text":"a","speaker":"x"}]`)); err == nil {
		t.Fatal("expected unknown field error")
	}
	if _, err := Unmarshal([]byte(`[] []`)); err == nil {
		t.Fatal("expected trailing data error")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		segs []Segment
		want string
	}{
		{"negative", []Segment{{Start: -1, End: 1, Text: "a"}}, "negative"},
		{"zero length", []Segment{{Start: 1, End: 1, Text: "a"}}, "not after start"},
		{"blank", []Segment{{Start: 0, End: 1, Text: " "}}, "empty text"},
		{"unsorted", []Segment{{Start: 2, End: 3, Text: "a"}, {Start: 1, End: 3, Text: "b"}}, "before previous"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.segs)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q error, got %v", tc.want, err)
			}
		})
	}
	if err := Validate([]Segment{{Start: 0, End: 3, Text: "A"}, {Start: 2, End: 5, Text: "B"}}); err != nil {
		t.Fatalf("overlap should be allowed: %v", err)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captions.json")
	in := FallbackSequence()
	if err := Save(path, in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatal("save/load mismatch")
	}
}
