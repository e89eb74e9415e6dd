package thumbnail

import (
	"fmt"

	"aigen-library/internal/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryCache is a fixed-size LRU of encoded thumbnails keyed by cache key.
type MemoryCache struct {
	lru *lru.Cache[string, []byte]
}

// NewMemoryCache creates an LRU holding at most size thumbnails.
func NewMemoryCache(size int) (*MemoryCache, error) {
	c, err := lru.NewWithEvict[string, []byte](size, func(string, []byte) {
		metrics.ThumbnailMemoryCacheEvictions.Inc()
	})
	if err != nil {
		return nil, fmt.Errorf("create thumbnail LRU: %w", err)
	}
	return &MemoryCache{lru: c}, nil
}

// Get returns the cached bytes for key.
func (m *MemoryCache) Get(key string) ([]byte, bool) {
	data, ok := m.lru.Get(key)
	if ok {
		metrics.ThumbnailMemoryCacheHits.Inc()
	} else {
		metrics.ThumbnailMemoryCacheMisses.Inc()
	}
	return data, ok
}

// Add stores data under key, evicting the least recently used entry when
// full.
func (m *MemoryCache) Add(key string, data []byte) {
	m.lru.Add(key, data)
	metrics.ThumbnailMemoryCacheEntries.Set(float64(m.lru.Len()))
}

// Contains reports whether key is cached without touching recency.
func (m *MemoryCache) Contains(key string) bool {
	return m.lru.Contains(key)
}

// Len returns the number of cached thumbnails.
func (m *MemoryCache) Len() int {
	return m.lru.Len()
}

// Purge drops every entry.
func (m *MemoryCache) Purge() {
	m.lru.Purge()
	metrics.ThumbnailMemoryCacheEntries.Set(0)
}
