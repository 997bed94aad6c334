package cache

import (
	"sync"
	"time"
)

// MemoryCache implements an in-memory cache with TTL support.
// The event hub uses it to suppress duplicate deliveries: the broadcaster
// is at-least-once across redundant transports, so the same event id can
// arrive more than once.
type MemoryCache struct {
	mu      sync.RWMutex
	data    map[string]*cacheEntry
	ttl     time.Duration
	maxSize int
}

// cacheEntry represents a single cache entry
type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
	createdAt time.Time
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(defaultTTL time.Duration, maxSize int) *MemoryCache {
	return &MemoryCache{
		data:    make(map[string]*cacheEntry),
		ttl:     defaultTTL,
		maxSize: maxSize,
	}
}

// Set stores a value in the cache with TTL
func (mc *MemoryCache) Set(key string, value interface{}, ttl time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if ttl == 0 {
		ttl = mc.ttl
	}

	if mc.maxSize > 0 && len(mc.data) >= mc.maxSize {
		mc.evictOldest()
	}

	mc.data[key] = &cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
		createdAt: time.Now(),
	}
}

// Get retrieves a value from the cache
func (mc *MemoryCache) Get(key string) (interface{}, bool) {
	mc.mu.RLock()
	entry, exists := mc.data[key]
	mc.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		mc.mu.Lock()
		delete(mc.data, key)
		mc.mu.Unlock()
		return nil, false
	}

	return entry.value, true
}

// SetIfAbsent stores the value only if the key is not already present.
// Returns true if the value was stored.
func (mc *MemoryCache) SetIfAbsent(key string, value interface{}, ttl time.Duration) bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if entry, exists := mc.data[key]; exists && time.Now().Before(entry.expiresAt) {
		return false
	}

	if ttl == 0 {
		ttl = mc.ttl
	}
	if mc.maxSize > 0 && len(mc.data) >= mc.maxSize {
		mc.evictOldest()
	}

	mc.data[key] = &cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
		createdAt: time.Now(),
	}
	return true
}

// Delete removes a value from the cache
func (mc *MemoryCache) Delete(key string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	delete(mc.data, key)
}

// Size returns the current number of entries in the cache
func (mc *MemoryCache) Size() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.data)
}

// evictOldest removes the oldest entry from the cache. Caller holds the lock.
func (mc *MemoryCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range mc.data {
		if oldestKey == "" || entry.createdAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.createdAt
		}
	}

	if oldestKey != "" {
		delete(mc.data, oldestKey)
	}
}

// StartCleanup periodically removes expired entries until stop is closed
func (mc *MemoryCache) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := time.Now()
			mc.mu.Lock()
			for key, entry := range mc.data {
				if now.After(entry.expiresAt) {
					delete(mc.data, key)
				}
			}
			mc.mu.Unlock()
		}
	}
}
