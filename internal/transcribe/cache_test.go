package transcribe

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"captionstudio/internal/captions"
)

func TestCacheKeyDependsOnContentAndSettings(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mp4")
	b := filepath.Join(dir, "b.mp4")
	if err := os.WriteFile(a, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("two"), 0o644); err != nil {
		t.Fatal(err)
	}

	base, err := CacheKey(a, "english", "hindi")
	if err != nil {
		t.Fatalf("CacheKey: %v", err)
	}
	same, _ := CacheKey(a, " English ", "hindi")
	if same != base {
		t.Fatal("qualifiers should be case and space insensitive")
	}
	otherLang, _ := CacheKey(a, "hindi", "english")
	otherFile, _ := CacheKey(b, "english", "hindi")
	if otherLang == base || otherFile == base {
		t.Fatal("expected distinct keys for different inputs")
	}
	if !validKey(base) {
		t.Fatalf("key %q is not a hex digest", base)
	}
}

func TestCacheStoreLookupRemove(t *testing.T) {
	cache := NewCache(t.TempDir(), nil)
	key, err := CacheKey(writeSource(t, "payload"), "en")
	if err != nil {
		t.Fatal(err)
	}
	entry := Entry{
		Key:      key,
		Language: "en",
		Origin:   captions.SourceChunks,
		Segments: []captions.Segment{{Start: 0, End: 1.5, Text: "hello"}},
		CachedAt: time.Now().UTC(),
	}
	if err := cache.Store(entry); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, ok := cache.Lookup(key)
	if !ok || got.Segments[0] != entry.Segments[0] {
		t.Fatalf("Lookup returned %+v ok=%v", got, ok)
	}
	if cache.Count() != 1 {
		t.Fatalf("expected one entry, got %d", cache.Count())
	}
	if err := cache.Remove(key); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := cache.Lookup(key); ok {
		t.Fatal("entry should be gone")
	}
	if err := cache.Remove(key); err == nil {
		t.Fatal("expected error removing a missing entry")
	}
}

func TestCacheRejectsUnsafeKeysAndCorruptEntries(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(dir, nil)
	if err := cache.Store(Entry{Key: "../escape"}); err == nil {
		t.Fatal("expected invalid key error")
	}
	if _, ok := cache.Lookup("../escape"); ok {
		t.Fatal("unsafe key must not resolve")
	}
	if err := os.WriteFile(filepath.Join(dir, "abc123.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := cache.Lookup("abc123"); ok {
		t.Fatal("corrupt entry must be ignored")
	}
	if cache.Count() != 0 {
		t.Fatal("corrupt entries are not listed")
	}
}

func TestDisabledCacheIsNoop(t *testing.T) {
	cache := NewCache("", nil)
	if err := cache.Store(Entry{Key: "abc"}); err != nil {
		t.Fatalf("Store on disabled cache: %v", err)
	}
	if _, ok := cache.Lookup("abc"); ok {
		t.Fatal("disabled cache should never hit")
	}
	if cache.List() != nil {
		t.Fatal("disabled cache lists nothing")
	}
}
