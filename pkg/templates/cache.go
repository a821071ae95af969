// Package templates caches page templates and other static assets read
// from disk under a byte budget. Entries are evicted least-recently-read
// first until the cache fits.
package templates

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeshare/pkg/logger"
)

// ErrNotFound is returned when neither a mapping nor a file on disk
// backs the requested name.
var ErrNotFound = errors.New("templates: not found")

type cacheEntry struct {
	data     []byte
	lastRead int64
}

// Cache is a bounded read-through file cache. Names resolve through the
// configured mappings first, then fall back to <dir>/<name>.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	size     int64
	maxBytes int64
	dir      string
	mappings map[string]string

	// Metrics hooks, wired by the app.
	OnHit      func()
	OnMiss     func()
	OnEviction func()
}

// New builds a cache with the given byte budget, base directory and
// name-to-path mappings.
func New(maxBytes int64, dir string, mappings map[string]string) *Cache {
	m := map[string]string{}
	for k, v := range mappings {
		m[k] = v
	}
	return &Cache{
		entries:  map[string]*cacheEntry{},
		maxBytes: maxBytes,
		dir:      dir,
		mappings: m,
	}
}

// Get returns the bytes for name, reading the backing file at most once
// while the entry stays resident. Callers must not mutate the returned
// slice.
func (c *Cache) Get(name string) ([]byte, error) {
	c.mu.Lock()
	if e, ok := c.entries[name]; ok {
		e.lastRead = time.Now().UnixNano()
		data := e.data
		c.mu.Unlock()
		if c.OnHit != nil {
			c.OnHit()
		}
		return data, nil
	}
	c.mu.Unlock()
	if c.OnMiss != nil {
		c.OnMiss()
	}

	path, ok := c.mappings[name]
	if !ok {
		path = filepath.Join(c.dir, filepath.Clean("/"+name))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	c.mu.Lock()
	// A racing Get may have populated the entry; keep the first one.
	if e, ok := c.entries[name]; ok {
		e.lastRead = time.Now().UnixNano()
		data = e.data
		c.mu.Unlock()
		return data, nil
	}
	c.entries[name] = &cacheEntry{data: data, lastRead: time.Now().UnixNano()}
	c.size += int64(len(data))
	c.evictLocked()
	c.mu.Unlock()
	return data, nil
}

// evictLocked drops least-recently-read entries until the cache fits the
// budget. An entry bigger than the whole budget is evicted right after
// insertion, so the byte invariant holds after every Get. Called with the
// lock held.
func (c *Cache) evictLocked() {
	for c.size > c.maxBytes && len(c.entries) > 0 {
		oldest := ""
		var oldestAt int64
		for name, e := range c.entries {
			if oldest == "" || e.lastRead < oldestAt {
				oldest = name
				oldestAt = e.lastRead
			}
		}
		c.size -= int64(len(c.entries[oldest].data))
		delete(c.entries, oldest)
		logger.Debug("template_evicted", "name", oldest)
		if c.OnEviction != nil {
			c.OnEviction()
		}
	}
}

// Clear empties the cache; the next Get for each name re-reads disk.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = map[string]*cacheEntry{}
	c.size = 0
	c.mu.Unlock()
	logger.Info("template_cache_cleared")
}

// Size returns the cached byte total.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len returns the number of resident entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
