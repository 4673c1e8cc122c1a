// Package cache stores provider responses on disk so that repeated benchmark
// runs against the same prompts can be replayed without spending quota.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

// Entry is a cached provider response.
type Entry struct {
	Body       []byte    `json:"body"`
	StatusCode int       `json:"status_code"`
	CachedAt   time.Time `json:"cached_at"`
}

// FileCache provides TTL-based file caching keyed by an opaque string.
type FileCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// New creates a new file cache rooted at dir.
func New(dir string, ttl time.Duration) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "cache: create dir")
	}
	return &FileCache{dir: dir, ttl: ttl, now: time.Now}, nil
}

// Key hashes the parts of a request into a cache key.
func Key(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a fresh entry for key. Expired or corrupt entries are removed.
func (c *FileCache) Get(key string) (*Entry, bool) {
	path := c.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		_ = os.Remove(path)
		return nil, false
	}

	if c.ttl > 0 && c.now().Sub(entry.CachedAt) > c.ttl {
		_ = os.Remove(path)
		return nil, false
	}

	return &entry, true
}

// Set stores an entry in the cache.
func (c *FileCache) Set(key string, entry *Entry) error {
	entry.CachedAt = c.now()
	data, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "cache: marshal entry")
	}
	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "cache: create dir")
	}
	return eris.Wrap(os.WriteFile(path, data, 0o644), "cache: write entry")
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, key[:2], key)
}
