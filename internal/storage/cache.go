package storage

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pders01/gallery/internal/debuglog"
)

// Persisted keys.
const (
	KeyWord      = "word"
	KeyXRestrict = "x_restrict"
)

// Cache maps string keys to JSON-serializable values. A missing key is not an
// error; callers supply their own default.
type Cache interface {
	Get(key string, v any) bool
	Set(key string, v any) error
}

// MemoryCache is the fallback when no database can be opened. Values are kept
// as JSON so both implementations decode the same way.
type MemoryCache struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{values: make(map[string][]byte)}
}

func (m *MemoryCache) Get(key string, v any) bool {
	m.mu.RLock()
	data, ok := m.values[key]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

func (m *MemoryCache) Set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	m.mu.Lock()
	m.values[key] = data
	m.mu.Unlock()
	return nil
}

// Open returns a bbolt-backed cache at path, or an in-memory cache when path
// is empty or the database cannot be opened. The closer is always non-nil.
func Open(path string, timeout time.Duration) (Cache, func() error) {
	noop := func() error { return nil }
	if path == "" {
		return NewMemoryCache(), noop
	}
	store, err := NewStore(path, timeout)
	if err != nil {
		debuglog.Warnf("persistent cache unavailable, using memory: %v", err)
		return NewMemoryCache(), noop
	}
	return store, store.Close
}

func GetString(c Cache, key, def string) string {
	var s string
	if c == nil || !c.Get(key, &s) {
		return def
	}
	return s
}

func GetBool(c Cache, key string, def bool) bool {
	var b bool
	if c == nil || !c.Get(key, &b) {
		return def
	}
	return b
}

// Put writes through c and logs instead of failing; persistence is best-effort.
func Put(c Cache, key string, v any) {
	if c == nil {
		return
	}
	if err := c.Set(key, v); err != nil {
		debuglog.With("key", key).Warnf("cache write failed: %v", err)
	}
}
