package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/xraph/warrant"
)

// Compile-time interface check.
var _ warrant.Cache = (*LRU)(nil)

// LRU is a bounded least-recently-used cache whose entries also expire
// after a TTL.
type LRU struct {
	cache *lru.LRU[string, *warrant.Resolution]
}

// NewLRU creates an LRU cache holding at most size users. A zero ttl
// disables expiry.
func NewLRU(size int, ttl time.Duration) *LRU {
	if size <= 0 {
		size = 10000
	}
	return &LRU{cache: lru.NewLRU[string, *warrant.Resolution](size, nil, ttl)}
}

// Get returns a cached resolution.
func (c *LRU) Get(_ context.Context, userID string) (*warrant.Resolution, bool) {
	return c.cache.Get(userID)
}

// Set stores a resolution in the cache.
func (c *LRU) Set(_ context.Context, userID string, res *warrant.Resolution) {
	c.cache.Add(userID, res)
}

// InvalidateUser removes the cached resolution of one user.
func (c *LRU) InvalidateUser(_ context.Context, userID string) {
	c.cache.Remove(userID)
}

// InvalidateAll removes every cached resolution.
func (c *LRU) InvalidateAll(_ context.Context) {
	c.cache.Purge()
}

// Len returns the number of cached users.
func (c *LRU) Len() int { return c.cache.Len() }
