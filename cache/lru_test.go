package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(2, time.Minute)

	c.Set(ctx, "u1", testResolution("u1"))
	c.Set(ctx, "u2", testResolution("u2"))
	_, ok := c.Get(ctx, "u1")
	require.True(t, ok)

	c.Set(ctx, "u3", testResolution("u3"))
	_, ok = c.Get(ctx, "u2")
	assert.False(t, ok, "u2 was least recently used")
	_, ok = c.Get(ctx, "u1")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestLRUInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(0, 0)

	c.Set(ctx, "u1", testResolution("u1", "staff:edit"))
	c.Set(ctx, "u2", testResolution("u2"))

	c.InvalidateUser(ctx, "u1")
	_, ok := c.Get(ctx, "u1")
	assert.False(t, ok)

	c.InvalidateAll(ctx)
	assert.Equal(t, 0, c.Len())
}

func TestLRUExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(10, 5*time.Millisecond)

	c.Set(ctx, "u1", testResolution("u1"))
	time.Sleep(20 * time.Millisecond)
	_, ok := c.Get(ctx, "u1")
	assert.False(t, ok)
}
