package transcribe

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"captionstudio/internal/captions"
	"captionstudio/internal/fileutil"
	"captionstudio/internal/logging"
)

// Entry is a cached transcription keyed by source content and language
// settings.
type Entry struct {
	Key              string             `json:"key"`
	SourceName       string             `json:"source_name"`
	Language         string             `json:"language"`
	DetectedLanguage string             `json:"detected_language,omitempty"`
	Origin           captions.Source    `json:"origin"`
	Segments         []captions.Segment `json:"segments"`
	CachedAt         time.Time          `json:"cached_at"`
}

// Cache stores one JSON file per entry under a directory. An empty dir makes
// every operation a no-op.
type Cache struct {
	dir    string
	logger *slog.Logger
	mu     sync.RWMutex
}

// NewCache creates a cache rooted at dir. The directory is created lazily on
// first Store.
func NewCache(dir string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Cache{dir: strings.TrimSpace(dir), logger: logging.NewComponentLogger(logger, "transcript-cache")}
}

// CacheKey derives the cache key for a source file and the settings that
// influence its transcript.
func CacheKey(sourcePath string, qualifiers ...string) (string, error) {
	content, err := fileutil.HashFile(sourcePath)
	if err != nil {
		return "", fmt.Errorf("hash source: %w", err)
	}
	parts := append([]string{content}, qualifiers...)
	for i := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(parts[i]))
	}
	return fileutil.HashReader(strings.NewReader(strings.Join(parts, "\x00")))
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func validKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}

// Lookup returns the entry stored under key.
func (c *Cache) Lookup(key string) (Entry, bool) {
	if c == nil || c.dir == "" || !validKey(key) {
		return Entry{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, err := c.read(c.path(key))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("failed to read transcript cache entry",
				logging.String(logging.FieldEventType, "transcript_cache_read_failed"),
				logging.String("key", key),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the entry will be regenerated"),
				logging.String(logging.FieldImpact, "transcription runs again for this source"))
		}
		return Entry{}, false
	}
	if entry.Key != key || captions.Validate(entry.Segments) != nil {
		return Entry{}, false
	}
	return entry, true
}

// Store persists entry atomically.
func (c *Cache) Store(entry Entry) error {
	if !validKey(entry.Key) {
		return errors.New("cache key must be a hex digest")
	}
	if c == nil || c.dir == "" {
		return nil
	}
	if entry.CachedAt.IsZero() {
		entry.CachedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := fileutil.WriteFileAtomic(c.path(entry.Key), data, 0o644); err != nil {
		return fmt.Errorf("persist cache entry: %w", err)
	}
	c.logger.Debug("cached transcript",
		logging.String("key", entry.Key),
		logging.String("source", entry.SourceName),
		logging.Int("segments", len(entry.Segments)))
	return nil
}

// Remove deletes the entry stored under key.
func (c *Cache) Remove(key string) error {
	if !validKey(key) {
		return errors.New("cache key must be a hex digest")
	}
	if c == nil || c.dir == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.Remove(c.path(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("transcript %q not found in cache", key)
		}
		return err
	}
	return nil
}

// List returns all readable entries, newest first.
func (c *Cache) List() []Entry {
	if c == nil || c.dir == "" {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return nil
	}
	entries := make([]Entry, 0, len(matches))
	for _, path := range matches {
		entry, err := c.read(path)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CachedAt.After(entries[j].CachedAt)
	})
	return entries
}

// Count returns the number of readable entries.
func (c *Cache) Count() int {
	return len(c.List())
}

func (c *Cache) read(path string) (Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, fmt.Errorf("parse cache entry: %w", err)
	}
	return entry, nil
}
