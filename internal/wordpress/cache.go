package wordpress

import (
	"sync"
	"time"

	"github.com/IshaanNene/newsblend/internal/types"
)

// Clock abstracts time for cache expiry.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// Cache memoizes the single upstream post collection for a fixed TTL.
// It holds one slot since there is exactly one upstream collection.
type Cache struct {
	mu       sync.RWMutex
	ttl      time.Duration
	clock    Clock
	posts    []types.WPPost
	storedAt time.Time
	filled   bool
}

// NewCache creates a cache with the given TTL. A TTL of zero disables
// caching.
func NewCache(ttl time.Duration, clock Clock) *Cache {
	if clock == nil {
		clock = SystemClock()
	}
	return &Cache{ttl: ttl, clock: clock}
}

// Get returns the cached snapshot and its age if it is still fresh.
func (c *Cache) Get() ([]types.WPPost, time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.filled || c.ttl <= 0 {
		return nil, 0, false
	}
	age := c.clock.Now().Sub(c.storedAt)
	if age >= c.ttl {
		return nil, age, false
	}
	return c.posts, age, true
}

// Set replaces the snapshot.
func (c *Cache) Set(posts []types.WPPost) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts = posts
	c.storedAt = c.clock.Now()
	c.filled = true
}
