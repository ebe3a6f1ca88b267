// Package cache stores pruned outputs on disk so unchanged inputs are not
// reprocessed. An entry is valid only while the source content hash and the
// pruning options both match.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"

	"github.com/cpptrim/cpptrim/internal/optimizer"
)

// Cache provides file-based caching for pruned outputs.
type Cache struct {
	dir     string
	ttl     time.Duration
	enabled bool
}

// Entry is one cached pruning result.
type Entry struct {
	Hash      string            `json:"hash"` // blake3 of the input buffer
	Timestamp time.Time         `json:"timestamp"`
	Output    string            `json:"output"`
	Report    *optimizer.Report `json:"report,omitempty"`
}

// New creates a cache rooted at dir. A disabled cache accepts every call
// and stores nothing.
func New(dir string, ttlHours int, enabled bool) (*Cache, error) {
	if !enabled {
		return &Cache{enabled: false}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return &Cache{
		dir:     dir,
		ttl:     time.Duration(ttlHours) * time.Hour,
		enabled: true,
	}, nil
}

// HashBytes computes a BLAKE3 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// HashFile computes a BLAKE3 hash of a file's contents.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}

// OptionsKey fingerprints pruning options. Two runs with the same input and
// the same key produce the same output.
func OptionsKey(opts optimizer.Options) string {
	h := xxhash.New()
	for _, e := range opts.EntryPoints {
		_, _ = h.WriteString("entry\x00" + e + "\x00")
	}

	names := make([]string, 0, len(opts.Defines))
	for name := range opts.Defines {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = h.WriteString("define\x00" + name + "=" + opts.Defines[name] + "\x00")
	}

	keep := append([]string{}, opts.KeepMacros...)
	sort.Strings(keep)
	for _, name := range keep {
		_, _ = h.WriteString("keep\x00" + name + "\x00")
	}

	return fmt.Sprintf("%016x", h.Sum64())
}

// Lookup returns the cached entry for a path if the content hash matches
// and the entry has not expired.
func (c *Cache) Lookup(path, contentHash, optionsKey string) (*Entry, bool) {
	if !c.enabled {
		return nil, false
	}

	keyPath := c.keyPath(path, optionsKey)
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}

	if entry.Hash != contentHash {
		return nil, false
	}
	if time.Since(entry.Timestamp) > c.ttl {
		os.Remove(keyPath)
		return nil, false
	}

	return &entry, true
}

// Store records a pruning result for a path.
func (c *Cache) Store(path, contentHash, optionsKey, output string, report *optimizer.Report) error {
	if !c.enabled {
		return nil
	}

	entry := Entry{
		Hash:      contentHash,
		Timestamp: time.Now(),
		Output:    output,
		Report:    report,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return os.WriteFile(c.keyPath(path, optionsKey), data, 0600)
}

// Invalidate removes the entry for a path.
func (c *Cache) Invalidate(path, optionsKey string) error {
	if !c.enabled {
		return nil
	}
	return os.Remove(c.keyPath(path, optionsKey))
}

// Clear removes all cache entries.
func (c *Cache) Clear() error {
	if !c.enabled {
		return nil
	}
	return os.RemoveAll(c.dir)
}

// keyPath derives the entry filename. Hashing keeps arbitrary source paths
// out of the filesystem namespace.
func (c *Cache) keyPath(path, optionsKey string) string {
	hash := blake3.Sum256([]byte(path + "\x00" + optionsKey))
	return filepath.Join(c.dir, hex.EncodeToString(hash[:])+".json")
}

// Stats summarizes the on-disk cache.
type Stats struct {
	Entries   int           `json:"entries"`
	TotalSize int64         `json:"total_size"`
	OldestAge time.Duration `json:"oldest_age"`
	NewestAge time.Duration `json:"newest_age"`
}

// GetStats returns statistics about the cache.
func (c *Cache) GetStats() (*Stats, error) {
	if !c.enabled {
		return &Stats{}, nil
	}

	stats := &Stats{}
	var oldest, newest time.Time

	err := filepath.Walk(c.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		stats.Entries++
		stats.TotalSize += info.Size()

		modTime := info.ModTime()
		if oldest.IsZero() || modTime.Before(oldest) {
			oldest = modTime
		}
		if newest.IsZero() || modTime.After(newest) {
			newest = modTime
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !oldest.IsZero() {
		stats.OldestAge = time.Since(oldest)
	}
	if !newest.IsZero() {
		stats.NewestAge = time.Since(newest)
	}

	return stats, nil
}
