// Package cache provides a thread-safe TTL cache for fetched OSM data.
package cache

import (
	"cmp"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"
)

type item[V any] struct {
	value      V
	expiration int64
}

func (i item[V]) expired(now int64) bool {
	return i.expiration > 0 && now > i.expiration
}

// TTLCache is a thread-safe cache with time-based expiration. When
// maxItems is exceeded the entries closest to expiry are evicted first.
type TTLCache[K comparable, V any] struct {
	items           map[K]item[V]
	mu              sync.RWMutex
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	maxItems        int
	stopCleanup     chan struct{}
	cleanupStopped  sync.Once
	logger          *slog.Logger
}

// New creates a cache. A zero cleanupInterval disables the background
// sweep; expired entries are then dropped lazily on Get.
func New[K comparable, V any](defaultTTL, cleanupInterval time.Duration, maxItems int) *TTLCache[K, V] {
	c := &TTLCache[K, V]{
		items:           make(map[K]item[V]),
		defaultTTL:      defaultTTL,
		cleanupInterval: cleanupInterval,
		maxItems:        maxItems,
		stopCleanup:     make(chan struct{}),
		logger:          slog.Default().With("component", "cache"),
	}
	if cleanupInterval > 0 {
		go c.cleanupLoop()
	}
	return c
}

// Set stores value with the default TTL
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores value; a non-positive ttl never expires
func (c *TTLCache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	var expiration int64
	if ttl > 0 {
		expiration = time.Now().Add(ttl).UnixNano()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = item[V]{value: value, expiration: expiration}
	if c.maxItems > 0 && len(c.items) > c.maxItems {
		c.evictOldest()
	}
}

// Get returns the value for key if present and not expired
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	it, found := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !found {
		return zero, false
	}
	if it.expired(time.Now().UnixNano()) {
		c.Delete(key)
		return zero, false
	}
	return it.value, true
}

// Delete removes key
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Count returns the number of stored entries, including expired ones not yet swept
func (c *TTLCache[K, V]) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear removes every entry
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	c.items = make(map[K]item[V])
	c.mu.Unlock()
}

// evictOldest must be called with the lock held
func (c *TTLCache[K, V]) evictOldest() {
	excess := len(c.items) - c.maxItems
	if excess <= 0 {
		return
	}

	type entry struct {
		key        K
		expiration int64
	}
	entries := make([]entry, 0, len(c.items))
	for k, v := range c.items {
		exp := v.expiration
		if exp == 0 {
			exp = math.MaxInt64
		}
		entries = append(entries, entry{k, exp})
	}
	slices.SortFunc(entries, func(a, b entry) int { return cmp.Compare(a.expiration, b.expiration) })

	for _, e := range entries[:excess] {
		delete(c.items, e.key)
	}
}

func (c *TTLCache[K, V]) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *TTLCache[K, V]) sweep() {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("cache cleanup panicked", "panic", r)
		}
	}()
	c.deleteExpired()
}

func (c *TTLCache[K, V]) deleteExpired() {
	now := time.Now().UnixNano()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range c.items {
		if v.expired(now) {
			delete(c.items, k)
		}
	}
}

// Stop ends the background sweep. It is safe to call more than once.
func (c *TTLCache[K, V]) Stop() {
	c.cleanupStopped.Do(func() {
		close(c.stopCleanup)
	})
}
