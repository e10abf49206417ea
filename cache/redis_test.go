package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/warrant"
	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/override"
	"github.com/xraph/warrant/role"
)

func newTestRedis(t *testing.T, opts ...RedisOption) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, opts...), mr
}

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedis(t)

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	rid := id.NewRoleID()
	res := &warrant.Resolution{
		UserID:      "u1",
		Permissions: warrant.NewPermissionSet("staff:edit", "dashboard:view"),
		Roles:       []*role.Role{{ID: rid, Name: "manager", IsActive: true}},
		Overrides: []*override.Override{{
			ID:           id.NewOverrideID(),
			UserID:       "u1",
			PermissionID: id.NewPermissionID(),
			IsGranted:    true,
			ExpiresAt:    &expires,
		}},
		ResolvedAt: time.Now().UTC().Truncate(time.Second),
		ValidUntil: &expires,
	}

	_, ok := c.Get(ctx, "u1")
	require.False(t, ok)

	c.Set(ctx, "u1", res)
	got, ok := c.Get(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, []string{"dashboard:view", "staff:edit"}, got.Permissions.Keys())
	require.Len(t, got.Roles, 1)
	assert.Equal(t, rid.String(), got.Roles[0].ID.String())
	require.NotNil(t, got.ValidUntil)
	assert.True(t, got.ValidUntil.Equal(expires))
}

func TestRedisInvalidate(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedis(t)

	c.Set(ctx, "u1", testResolution("u1"))
	c.Set(ctx, "u2", testResolution("u2"))

	c.InvalidateUser(ctx, "u1")
	_, ok := c.Get(ctx, "u1")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "u2")
	assert.True(t, ok)

	c.InvalidateAll(ctx)
	_, ok = c.Get(ctx, "u2")
	assert.False(t, ok)

	// New generation works normally.
	c.Set(ctx, "u2", testResolution("u2"))
	_, ok = c.Get(ctx, "u2")
	assert.True(t, ok)
}

func TestRedisTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t, WithRedisTTL(time.Minute), WithRedisPrefix("test"))

	c.Set(ctx, "u1", testResolution("u1"))
	assert.True(t, mr.Exists("test:res:0:0:u1"))

	mr.FastForward(2 * time.Minute)
	_, ok := c.Get(ctx, "u1")
	assert.False(t, ok)
}

func TestRedisTTLBoundedByValidUntil(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t, WithRedisTTL(time.Hour))

	soon := time.Now().Add(10 * time.Second)
	res := testResolution("u1")
	res.ValidUntil = &soon
	c.Set(ctx, "u1", res)
	ttl := mr.TTL("warrant:res:0:0:u1")
	assert.LessOrEqual(t, ttl, 10*time.Second)
	assert.Positive(t, ttl)

	past := time.Now().Add(-time.Second)
	res = testResolution("u2")
	res.ValidUntil = &past
	c.Set(ctx, "u2", res)
	assert.False(t, mr.Exists("warrant:res:0:0:u2"))
}

func TestRedisFailureIsMiss(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t)

	c.Set(ctx, "u1", testResolution("u1"))
	mr.Close()

	_, ok := c.Get(ctx, "u1")
	assert.False(t, ok)
	c.InvalidateAll(ctx)
}

// Two caches over one server behave like two engine processes.
func TestRedisStaleSetAcrossProcesses(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	newCache := func() *Redis {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return NewRedis(client)
	}
	a, b := newCache(), newCache()

	// a misses and starts resolving; b changes the user's roles meanwhile.
	_, ok := a.Get(ctx, "u1")
	require.False(t, ok)
	b.InvalidateUser(ctx, "u1")
	a.Set(ctx, "u1", testResolution("u1"))

	_, ok = b.Get(ctx, "u1")
	assert.False(t, ok, "resolution started before the invalidation must not be served")
	_, ok = a.Get(ctx, "u1")
	assert.False(t, ok)

	// The next resolution is cached normally and visible to both.
	a.Set(ctx, "u1", testResolution("u1"))
	_, ok = b.Get(ctx, "u1")
	assert.True(t, ok)

	// Same for a global invalidation.
	_, ok = a.Get(ctx, "u2")
	require.False(t, ok)
	b.InvalidateAll(ctx)
	a.Set(ctx, "u2", testResolution("u2"))
	_, ok = b.Get(ctx, "u2")
	assert.False(t, ok)
}

func TestRedisUserVersionExpires(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t, WithRedisTTL(time.Minute))

	c.InvalidateUser(ctx, "u1")
	assert.Equal(t, 2*time.Minute, mr.TTL("warrant:ver:u1"))
}
