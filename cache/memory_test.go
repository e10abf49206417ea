package cache

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/warrant"
)

func testResolution(userID string, keys ...string) *warrant.Resolution {
	return &warrant.Resolution{
		UserID:      userID,
		Permissions: warrant.NewPermissionSet(keys...),
		ResolvedAt:  time.Now().UTC(),
	}
}

func TestMemoryCacheHitMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(time.Minute))

	// Miss
	_, ok := c.Get(ctx, "u1")
	if ok {
		t.Fatal("expected cache miss")
	}

	// Set + Hit
	c.Set(ctx, "u1", testResolution("u1", "staff:edit"))
	got, ok := c.Get(ctx, "u1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if !got.Has("staff:edit") {
		t.Fatal("expected staff:edit")
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(1 * time.Millisecond))

	c.Set(ctx, "u1", testResolution("u1"))
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(ctx, "u1")
	if ok {
		t.Fatal("expected cache miss after TTL expiry")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired entry to be dropped, got %d entries", c.Len())
	}
}

func TestMemoryCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	c.Set(ctx, "u1", testResolution("u1"))
	c.Set(ctx, "u2", testResolution("u2"))

	c.InvalidateUser(ctx, "u1")
	if _, ok := c.Get(ctx, "u1"); ok {
		t.Fatal("expected u1 to be invalidated")
	}
	if _, ok := c.Get(ctx, "u2"); !ok {
		t.Fatal("expected u2 to survive")
	}

	c.InvalidateAll(ctx)
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d entries", c.Len())
	}
}

func TestMemoryCacheMaxSize(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithMaxSize(2))

	c.Set(ctx, "u1", testResolution("u1"))
	c.Set(ctx, "u2", testResolution("u2"))
	c.Set(ctx, "u3", testResolution("u3"))
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}

	// Overwriting an existing user does not evict.
	c.Set(ctx, "u3", testResolution("u3", "staff:edit"))
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
}
