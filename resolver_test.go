package warrant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/plugin"
	"github.com/xraph/warrant/role"
	"github.com/xraph/warrant/store"
	"github.com/xraph/warrant/userrole"
)

// mapCache is a minimal Cache that counts hits.
type mapCache struct {
	mu   sync.Mutex
	m    map[string]*Resolution
	hits int
}

func newMapCache() *mapCache { return &mapCache{m: make(map[string]*Resolution)} }

func (c *mapCache) Get(_ context.Context, userID string) (*Resolution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.m[userID]
	if ok {
		c.hits++
	}
	return res, ok
}

func (c *mapCache) Set(_ context.Context, userID string, res *Resolution) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[userID] = res
}

func (c *mapCache) InvalidateUser(_ context.Context, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, userID)
}

func (c *mapCache) InvalidateAll(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = make(map[string]*Resolution)
}

func (c *mapCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

// faultyStore wraps a real store and injects failures.
type faultyStore struct {
	store.Store

	listUserRolesErr error
	block            bool
	missingRole      string
	calls            atomic.Int32
}

func (f *faultyStore) ListUserRoles(ctx context.Context, userID string) ([]*userrole.UserRole, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.listUserRolesErr != nil {
		return nil, f.listUserRolesErr
	}
	return f.Store.ListUserRoles(ctx, userID)
}

func (f *faultyStore) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	if f.missingRole != "" && roleID.String() == f.missingRole {
		return nil, fmt.Errorf("role %s: %w", roleID, store.ErrNotFound)
	}
	return f.Store.GetRole(ctx, roleID)
}

func TestResolveCachesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	cache := newMapCache()
	eng, perms := managerFixture(t, WithCache(cache))

	_, err := eng.Resolve(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, cache.len())

	_, err = eng.Resolve(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)

	// User-scoped write drops only that user.
	_, err = eng.Resolve(ctx, "u2")
	require.NoError(t, err)
	_, err = eng.SetPermissionOverride(ctx, "u1", perms["staff:edit"].ID, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.len())

	ok, err := eng.HasPermission(ctx, "u1", "staff:edit")
	require.NoError(t, err)
	assert.False(t, ok, "stale cached resolution served after override")

	// Role write drops everyone.
	_, err = eng.Resolve(ctx, "u1")
	require.NoError(t, err)
	r, err := eng.Store().GetRoleByName(ctx, "manager")
	require.NoError(t, err)
	require.NoError(t, eng.RevokeRolePermission(ctx, r.ID, perms["dashboard:view"].ID))
	assert.Equal(t, 0, cache.len())

	got, err := eng.GetEffectivePermissions(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got.Keys())
}

func TestResolveNotServedPastValidUntil(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	cache := newMapCache()
	eng, perms := managerFixture(t, WithCache(cache), WithClock(clock.Now))

	expires := clock.Now().Add(time.Minute)
	_, err := eng.SetPermissionOverride(ctx, "u1", perms["staff:edit"].ID, false, &expires)
	require.NoError(t, err)

	got, err := eng.GetEffectivePermissions(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, got.Has("staff:edit"))

	clock.Advance(2 * time.Minute)
	got, err = eng.GetEffectivePermissions(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.Has("staff:edit"), "deny override expired but cached resolution was served")
}

func TestResolveStaleGenerationNotCached(t *testing.T) {
	ctx := context.Background()
	cache := newMapCache()
	eng, _ := managerFixture(t, WithCache(cache))

	gen := eng.gen.Load()
	res, err := eng.resolve(ctx, "u1")
	require.NoError(t, err)

	eng.invalidateUser(ctx, "u1")
	eng.storeResolution(ctx, gen, res)
	assert.Equal(t, 0, cache.len())

	eng.storeResolution(ctx, eng.gen.Load(), res)
	assert.Equal(t, 1, cache.len())
}

func TestResolveStorageFailureFailsClosed(t *testing.T) {
	ctx := context.Background()
	eng, _ := managerFixture(t)
	faulty := &faultyStore{Store: eng.Store(), listUserRolesErr: errors.New("connection refused")}
	eng.store = faulty

	_, err := eng.GetEffectivePermissions(ctx, "u1")
	require.ErrorIs(t, err, ErrStorageUnavailable)

	ok, err := eng.HasPermission(ctx, "u1", "staff:edit")
	require.ErrorIs(t, err, ErrStorageUnavailable)
	assert.False(t, ok)

	require.ErrorIs(t, eng.Enforce(ctx, "u1", "staff:edit"), ErrStorageUnavailable)
}

func TestResolveTimeoutFailsClosed(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.ResolveTimeout = 20 * time.Millisecond
	eng, _ := managerFixture(t, WithConfig(cfg))
	eng.store = &faultyStore{Store: eng.Store(), block: true}

	_, err := eng.Resolve(ctx, "u1")
	require.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	ok, err := eng.HasPermission(ctx, "u1", "staff:edit")
	require.ErrorIs(t, err, ErrStorageUnavailable)
	assert.False(t, ok)
}

func TestResolveCallerCancellation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResolveTimeout = time.Second
	eng, _ := managerFixture(t, WithConfig(cfg))
	eng.store = &faultyStore{Store: eng.Store(), block: true}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := eng.Resolve(ctx, "u1")
	require.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestResolveSkipsDanglingAssignment(t *testing.T) {
	ctx := context.Background()
	eng, perms := managerFixture(t)
	other := mustRole(t, eng, "auditor", perms, "billing:admin")
	_, err := eng.AssignRole(ctx, "u1", other.ID, false)
	require.NoError(t, err)

	eng.store = &faultyStore{Store: eng.Store(), missingRole: other.ID.String()}

	got, err := eng.GetEffectivePermissions(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"dashboard:view", "staff:edit"}, got.Keys())

	ok, err := eng.HasPermission(ctx, "u1", "billing:admin")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveConcurrentCallersShareResult(t *testing.T) {
	ctx := context.Background()
	eng, _ := managerFixture(t)
	faulty := &faultyStore{Store: eng.Store()}
	eng.store = faulty

	var wg sync.WaitGroup
	results := make([]PermissionSet, 16)
	errs := make([]error, len(results))
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = eng.GetEffectivePermissions(ctx, "u1")
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, []string{"dashboard:view", "staff:edit"}, results[i].Keys())
	}
	assert.LessOrEqual(t, int(faulty.calls.Load()), len(results))
}

func TestResolutionCarriesRolesAndOverrides(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	eng, perms := managerFixture(t, WithClock(clock.Now))

	past := clock.Now().Add(-time.Minute)
	_, err := eng.SetPermissionOverride(ctx, "u1", perms["billing:admin"].ID, true, nil)
	require.NoError(t, err)
	_, err = eng.SetPermissionOverride(ctx, "u1", perms["dashboard:view"].ID, false, &past)
	require.NoError(t, err)

	res, err := eng.Resolve(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, res.Roles, 1)
	assert.Equal(t, "manager", res.Roles[0].Name)
	require.Len(t, res.Overrides, 1, "expired override must not be reported")
	assert.True(t, res.Overrides[0].IsGranted)
	assert.Nil(t, res.ValidUntil)
	assert.Equal(t, clock.Now(), res.ResolvedAt)
}

// recordingPlugin captures resolution and check events.
type recordingPlugin struct {
	mu       sync.Mutex
	resolves int
	checks   []string
	lastErr  error
}

func (p *recordingPlugin) Name() string { return "recording" }

func (p *recordingPlugin) OnAfterResolve(_ context.Context, _ string, _ any, _ time.Duration, err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolves++
	p.lastErr = err
	return nil
}

func (p *recordingPlugin) OnAfterCheck(_ context.Context, _, key string, allowed bool, _ error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks = append(p.checks, fmt.Sprintf("%s=%v", key, allowed))
	return nil
}

var _ plugin.AfterResolve = (*recordingPlugin)(nil)

func TestResolveHooks(t *testing.T) {
	ctx := context.Background()
	rec := &recordingPlugin{}
	eng, _ := managerFixture(t, WithPlugin(rec))

	_, err := eng.Resolve(ctx, "u1")
	require.NoError(t, err)
	_, err = eng.HasPermission(ctx, "u1", "staff:edit")
	require.NoError(t, err)
	_, err = eng.HasPermission(ctx, "u1", "billing:admin")
	require.NoError(t, err)

	assert.Equal(t, 1, rec.resolves)
	assert.NoError(t, rec.lastErr)
	assert.Equal(t, []string{"staff:edit=true", "billing:admin=false"}, rec.checks)
}

func TestPermissionSetJSON(t *testing.T) {
	s := NewPermissionSet("staff:edit", "dashboard:view")
	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `["dashboard:view","staff:edit"]`, string(data))

	var back PermissionSet
	require.NoError(t, back.UnmarshalJSON(data))
	assert.True(t, back.Has("staff:edit"))
	assert.Equal(t, 2, back.Len())
}
