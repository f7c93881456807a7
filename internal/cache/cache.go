// ABOUTME: In-memory cache with TTL-based expiration
// ABOUTME: Thread-safe cache using sync.Map with prefix invalidation and stoppable cleanup

package cache

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

type entry struct {
	data      any
	expiresAt time.Time
}

// Cache holds values for a fixed TTL. Call Close to stop the cleanup goroutine.
type Cache struct {
	store sync.Map
	ttl   time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

func New(ttl time.Duration) *Cache {
	c := &Cache{
		ttl:  ttl,
		stop: make(chan struct{}),
	}
	go c.startCleanup(time.Minute)
	return c
}

func (c *Cache) Get(key string) (any, bool) {
	val, ok := c.store.Load(key)
	if !ok {
		slog.Debug("Cache miss", "key", key)
		return nil, false
	}

	e := val.(entry)
	if time.Now().After(e.expiresAt) {
		c.store.Delete(key)
		slog.Debug("Cache expired", "key", key)
		return nil, false
	}

	slog.Debug("Cache hit", "key", key)
	return e.data, true
}

func (c *Cache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with a custom TTL
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	c.store.Store(key, entry{
		data:      value,
		expiresAt: time.Now().Add(ttl),
	})
	slog.Debug("Cache set", "key", key, "ttl", ttl)
}

// ClearPrefix drops every key starting with prefix and returns how many went.
func (c *Cache) ClearPrefix(prefix string) int {
	n := 0
	c.store.Range(func(key, _ any) bool {
		if k, ok := key.(string); ok && strings.HasPrefix(k, prefix) {
			c.store.Delete(key)
			n++
		}
		return true
	})
	if n > 0 {
		slog.Debug("Cache invalidated", "prefix", prefix, "entries", n)
	}
	return n
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.store.Range(func(key, val any) bool {
				if now.After(val.(entry).expiresAt) {
					c.store.Delete(key)
				}
				return true
			})
		}
	}
}
