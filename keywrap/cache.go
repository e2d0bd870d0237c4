package keywrap

import (
	"sync"
	"time"
)

type ttlItem[T any] struct {
	v   T
	exp time.Time
}

// TTLCache is a bounded, goroutine-safe cache whose entries expire after a
// fixed TTL. Expired entries are dropped lazily on Get. When full, the
// oldest inserted key is evicted; re-setting a key refreshes its expiry
// without moving it in the eviction order.
//
// The zero value is not usable; call NewTTLCache.
type TTLCache[T any] struct {
	mu   sync.Mutex
	ttl  time.Duration
	size int
	now  func() time.Time
	data map[string]ttlItem[T]
	keys []string
}

// NewTTLCache returns a cache holding at most size entries. A non-positive
// ttl makes every entry expire immediately.
func NewTTLCache[T any](size int, ttl time.Duration) *TTLCache[T] {
	if size < 1 {
		size = 1
	}
	return &TTLCache[T]{ttl: ttl, size: size, now: time.Now, data: make(map[string]ttlItem[T])}
}

func (c *TTLCache[T]) Get(k string) (T, bool) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.data[k]
	if !ok {
		return zero, false
	}
	if !c.now().Before(it.exp) {
		c.removeLocked(k)
		return zero, false
	}
	return it.v, true
}

func (c *TTLCache[T]) Set(k string, v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	exp := c.now().Add(c.ttl)
	if _, ok := c.data[k]; ok {
		c.data[k] = ttlItem[T]{v: v, exp: exp}
		return
	}
	for len(c.data) >= c.size && len(c.keys) > 0 {
		c.removeLocked(c.keys[0])
	}
	c.data[k] = ttlItem[T]{v: v, exp: exp}
	c.keys = append(c.keys, k)
}

func (c *TTLCache[T]) Delete(k string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(k)
}

func (c *TTLCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

func (c *TTLCache[T]) removeLocked(k string) {
	delete(c.data, k)
	for i, key := range c.keys {
		if key == k {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			break
		}
	}
}
