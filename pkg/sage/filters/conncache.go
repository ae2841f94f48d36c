package filters

import (
	"sync"
	"time"
)

// handleCache keeps open handles keyed by connection string. Entries
// expire after ttl, fail a health check, or are evicted least recently
// used once the cache is full.
type handleCache[T any] struct {
	mu          sync.Mutex
	entries     map[string]*cachedHandle[T]
	maxSize     int
	ttl         time.Duration
	sweepEvery  time.Duration
	healthCheck func(T) error
	closeFunc   func(T) error
	sweepOnce   sync.Once
	stop        chan struct{}
	stopOnce    sync.Once
}

type cachedHandle[T any] struct {
	handle    T
	createdAt time.Time
	lastUsed  time.Time
}

func newHandleCache[T any](maxSize int, ttl time.Duration, healthCheck, closeFunc func(T) error) *handleCache[T] {
	return &handleCache[T]{
		entries:     make(map[string]*cachedHandle[T]),
		maxSize:     maxSize,
		ttl:         ttl,
		sweepEvery:  5 * time.Minute,
		healthCheck: healthCheck,
		closeFunc:   closeFunc,
		stop:        make(chan struct{}),
	}
}

// get returns a live handle for key. Expired or unhealthy handles are
// closed and reported as missing.
func (c *handleCache[T]) get(key string) (T, bool) {
	var zero T
	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return zero, false
	}
	if time.Since(entry.createdAt) > c.ttl {
		c.removeLocked(key)
		c.mu.Unlock()
		return zero, false
	}
	c.mu.Unlock()

	if c.healthCheck != nil {
		if err := c.healthCheck(entry.handle); err != nil {
			c.mu.Lock()
			if c.entries[key] == entry {
				c.removeLocked(key)
			}
			c.mu.Unlock()
			return zero, false
		}
	}

	c.mu.Lock()
	entry.lastUsed = time.Now()
	c.mu.Unlock()
	return entry.handle, true
}

func (c *handleCache[T]) put(key string, handle T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.removeLocked(key)
	} else if len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}
	now := time.Now()
	c.entries[key] = &cachedHandle[T]{handle: handle, createdAt: now, lastUsed: now}

	c.sweepOnce.Do(func() { go c.sweep() })
}

func (c *handleCache[T]) removeLocked(key string) {
	if entry, ok := c.entries[key]; ok {
		_ = c.closeFunc(entry.handle)
		delete(c.entries, key)
	}
}

func (c *handleCache[T]) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.lastUsed.Before(oldest) {
			oldestKey, oldest = key, entry.lastUsed
		}
	}
	if oldestKey != "" {
		c.removeLocked(oldestKey)
	}
}

func (c *handleCache[T]) sweep() {
	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			for key, entry := range c.entries {
				if time.Since(entry.createdAt) > c.ttl {
					c.removeLocked(key)
				}
			}
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}

// close stops the sweeper and closes every handle.
func (c *handleCache[T]) close() error {
	c.stopOnce.Do(func() { close(c.stop) })

	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for key, entry := range c.entries {
		if err := c.closeFunc(entry.handle); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.entries, key)
	}
	return firstErr
}

func (c *handleCache[T]) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
