package warrant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/permission"
	"github.com/xraph/warrant/role"
	"github.com/xraph/warrant/store/memory"
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *memory.Store) {
	t.Helper()
	s := memory.New()
	eng, err := NewEngine(append([]Option{WithStore(s)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return eng, s
}

// testClock is a settable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// seedCatalog creates a permission for every key and returns them by key.
func seedCatalog(t *testing.T, eng *Engine, keys ...string) map[string]*permission.Permission {
	t.Helper()
	ctx := context.Background()
	modules := make(map[string]id.ModuleID)
	actions := make(map[string]id.ActionID)
	out := make(map[string]*permission.Permission, len(keys))

	for _, key := range keys {
		mName, aName, ok := permission.SplitKey(key)
		if !ok {
			t.Fatalf("bad key %q", key)
		}
		if _, ok := modules[mName]; !ok {
			m, err := eng.CreateModule(ctx, &ModuleInput{Name: mName})
			if err != nil {
				t.Fatal(err)
			}
			modules[mName] = m.ID
		}
		if _, ok := actions[aName]; !ok {
			a, err := eng.CreateAction(ctx, &ActionInput{Name: aName})
			if err != nil {
				t.Fatal(err)
			}
			actions[aName] = a.ID
		}
		p, err := eng.CreatePermission(ctx, modules[mName], actions[aName], "")
		if err != nil {
			t.Fatal(err)
		}
		out[key] = p
	}
	return out
}

func permIDs(perms map[string]*permission.Permission, keys ...string) []id.PermissionID {
	ids := make([]id.PermissionID, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, perms[k].ID)
	}
	return ids
}

func mustRole(t *testing.T, eng *Engine, name string, perms map[string]*permission.Permission, keys ...string) *role.Role {
	t.Helper()
	r, err := eng.CreateRole(context.Background(), &CreateRoleInput{Name: name, PermissionIDs: permIDs(perms, keys...)})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func assertSet(t *testing.T, got PermissionSet, want ...string) {
	t.Helper()
	if got.Len() != len(want) {
		t.Fatalf("expected %v, got %v", want, got.Keys())
	}
	for _, k := range want {
		if !got.Has(k) {
			t.Fatalf("expected %v, got %v", want, got.Keys())
		}
	}
}

var standardKeys = []string{"dashboard:view", "staff:edit", "billing:admin"}

// managerFixture is scenario A: "manager" grants dashboard:view and
// staff:edit, and u1 holds only "manager".
func managerFixture(t *testing.T, opts ...Option) (*Engine, map[string]*permission.Permission) {
	t.Helper()
	eng, _ := newTestEngine(t, opts...)
	perms := seedCatalog(t, eng, standardKeys...)
	mgr := mustRole(t, eng, "manager", perms, "dashboard:view", "staff:edit")
	if _, err := eng.AssignRole(context.Background(), "u1", mgr.ID, true); err != nil {
		t.Fatal(err)
	}
	return eng, perms
}

func TestNewEngine_RequiresStore(t *testing.T) {
	_, err := NewEngine()
	if err == nil {
		t.Fatal("expected error when store is nil")
	}
}

func TestScenarioA_RoleGrants(t *testing.T) {
	eng, _ := managerFixture(t)
	got, err := eng.GetEffectivePermissions(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	assertSet(t, got, "dashboard:view", "staff:edit")
}

func TestScenarioB_DenyOverride(t *testing.T) {
	ctx := context.Background()
	eng, perms := managerFixture(t)
	if _, err := eng.SetPermissionOverride(ctx, "u1", perms["staff:edit"].ID, false, nil); err != nil {
		t.Fatal(err)
	}
	got, err := eng.GetEffectivePermissions(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	assertSet(t, got, "dashboard:view")
}

func TestScenarioC_GrantOverride(t *testing.T) {
	ctx := context.Background()
	eng, perms := managerFixture(t)
	if _, err := eng.SetPermissionOverride(ctx, "u1", perms["billing:admin"].ID, true, nil); err != nil {
		t.Fatal(err)
	}
	got, err := eng.GetEffectivePermissions(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	assertSet(t, got, "dashboard:view", "staff:edit", "billing:admin")
}

func TestScenarioD_ExpiredOverrideIgnored(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	eng, perms := managerFixture(t, WithClock(clock.Now))

	past := clock.Now().Add(-time.Hour)
	if _, err := eng.SetPermissionOverride(ctx, "u1", perms["staff:edit"].ID, false, &past); err != nil {
		t.Fatal(err)
	}
	got, err := eng.GetEffectivePermissions(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	assertSet(t, got, "dashboard:view", "staff:edit")
}

func TestNoRolesNoOverrides(t *testing.T) {
	eng, _ := newTestEngine(t)
	seedCatalog(t, eng, standardKeys...)

	got, err := eng.GetEffectivePermissions(context.Background(), "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 0 {
		t.Fatalf("expected empty set, got %v", got.Keys())
	}
}

func TestDenyOverrideBeatsEveryRole(t *testing.T) {
	ctx := context.Background()
	eng, perms := managerFixture(t)
	for _, name := range []string{"editor", "supervisor"} {
		r := mustRole(t, eng, name, perms, "staff:edit")
		if _, err := eng.AssignRole(ctx, "u1", r.ID, false); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := eng.SetPermissionOverride(ctx, "u1", perms["staff:edit"].ID, false, nil); err != nil {
		t.Fatal(err)
	}

	ok, err := eng.HasPermission(ctx, "u1", "staff:edit")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected deny override to win over three granting roles")
	}
}

func TestGrantOverrideWithoutRoles(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	perms := seedCatalog(t, eng, standardKeys...)

	if _, err := eng.SetPermissionOverride(ctx, "solo", perms["billing:admin"].ID, true, nil); err != nil {
		t.Fatal(err)
	}
	ok, err := eng.HasPermission(ctx, "solo", "billing:admin")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected grant override to apply without roles")
	}
}

func TestOverrideExpiresAtInstant(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	eng, perms := managerFixture(t, WithClock(clock.Now))

	expires := clock.Now().Add(time.Minute)
	if _, err := eng.SetPermissionOverride(ctx, "u1", perms["billing:admin"].ID, true, &expires); err != nil {
		t.Fatal(err)
	}

	res, err := eng.Resolve(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Has("billing:admin") {
		t.Fatal("expected active grant override before expiry")
	}
	if res.ValidUntil == nil || !res.ValidUntil.Equal(expires) {
		t.Fatalf("expected ValidUntil %v, got %v", expires, res.ValidUntil)
	}

	clock.Advance(time.Minute)
	ok, err := eng.HasPermission(ctx, "u1", "billing:admin")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected override to be inactive at its expiry instant")
	}
}

func TestInactiveEntitiesExcluded(t *testing.T) {
	ctx := context.Background()
	off := false

	tests := []struct {
		name       string
		deactivate func(t *testing.T, eng *Engine, perms map[string]*permission.Permission)
		want       []string
	}{
		{
			name: "permission",
			deactivate: func(t *testing.T, eng *Engine, perms map[string]*permission.Permission) {
				if _, err := eng.UpdatePermission(ctx, perms["staff:edit"].ID, &PermissionUpdate{IsActive: &off}); err != nil {
					t.Fatal(err)
				}
			},
			want: []string{"dashboard:view"},
		},
		{
			name: "module",
			deactivate: func(t *testing.T, eng *Engine, perms map[string]*permission.Permission) {
				if _, err := eng.UpdateModule(ctx, perms["dashboard:view"].ModuleID, &CatalogUpdate{IsActive: &off}); err != nil {
					t.Fatal(err)
				}
			},
			want: []string{"staff:edit"},
		},
		{
			name: "action",
			deactivate: func(t *testing.T, eng *Engine, perms map[string]*permission.Permission) {
				if _, err := eng.UpdateAction(ctx, perms["staff:edit"].ActionID, &CatalogUpdate{IsActive: &off}); err != nil {
					t.Fatal(err)
				}
			},
			want: []string{"dashboard:view"},
		},
		{
			name: "role",
			deactivate: func(t *testing.T, eng *Engine, _ map[string]*permission.Permission) {
				r, err := eng.Store().GetRoleByName(ctx, "manager")
				if err != nil {
					t.Fatal(err)
				}
				if _, err := eng.UpdateRole(ctx, r.ID, &UpdateRoleInput{IsActive: &off}); err != nil {
					t.Fatal(err)
				}
			},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, perms := managerFixture(t)
			tt.deactivate(t, eng, perms)

			got, err := eng.GetEffectivePermissions(ctx, "u1")
			if err != nil {
				t.Fatal(err)
			}
			assertSet(t, got, tt.want...)
		})
	}
}

func TestHasPermissionMatchesFullSet(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	eng, _ := newTestEngine(t, WithClock(clock.Now))
	keys := []string{"dashboard:view", "dashboard:edit", "staff:view", "staff:edit", "billing:view", "billing:admin"}
	perms := seedCatalog(t, eng, keys...)

	a := mustRole(t, eng, "a", perms, "dashboard:view", "staff:view")
	b := mustRole(t, eng, "b", perms, "staff:view", "staff:edit", "billing:view")
	c := mustRole(t, eng, "c", perms, "billing:admin")

	type ov struct {
		granted bool
		expires *time.Time
	}
	past := clock.Now().Add(-time.Second)
	future := clock.Now().Add(time.Hour)
	users := []struct {
		id        string
		roles     []*role.Role
		overrides map[string]ov
	}{
		{id: "none"},
		{id: "a", roles: []*role.Role{a}},
		{id: "ab", roles: []*role.Role{a, b}},
		{id: "abc", roles: []*role.Role{a, b, c}, overrides: map[string]ov{
			"staff:view":     {false, nil},
			"dashboard:edit": {true, &future},
			"staff:edit":     {false, &past},
			"billing:view":   {true, nil},
		}},
		{id: "grant-only", overrides: map[string]ov{
			"billing:admin":  {true, nil},
			"dashboard:view": {false, nil},
		}},
	}
	for _, u := range users {
		for _, r := range u.roles {
			if _, err := eng.AssignRole(ctx, u.id, r.ID, false); err != nil {
				t.Fatal(err)
			}
		}
		for k, o := range u.overrides {
			if _, err := eng.SetPermissionOverride(ctx, u.id, perms[k].ID, o.granted, o.expires); err != nil {
				t.Fatal(err)
			}
		}
	}

	// Deactivate after assignment so inactive rows are still referenced.
	off := false
	if _, err := eng.UpdateRole(ctx, c.ID, &UpdateRoleInput{IsActive: &off}); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.UpdatePermission(ctx, perms["billing:view"].ID, &PermissionUpdate{IsActive: &off}); err != nil {
		t.Fatal(err)
	}

	for _, u := range users {
		full, err := eng.GetEffectivePermissions(ctx, u.id)
		if err != nil {
			t.Fatal(err)
		}
		for _, k := range append(keys, "unknown:key") {
			got, err := eng.HasPermission(ctx, u.id, k)
			if err != nil {
				t.Fatal(err)
			}
			if got != full.Has(k) {
				t.Fatalf("user %s key %s: HasPermission=%v, full set=%v", u.id, k, got, full.Keys())
			}
		}
	}
}

func TestEnforce(t *testing.T) {
	ctx := context.Background()
	eng, _ := managerFixture(t)

	if err := eng.Enforce(ctx, "u1", "staff:edit"); err != nil {
		t.Fatalf("expected allowed, got %v", err)
	}
	err := eng.Enforce(ctx, "u1", "billing:admin")
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestResolveDeterministic(t *testing.T) {
	ctx := context.Background()
	eng, _ := managerFixture(t)

	first, err := eng.Resolve(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := eng.Resolve(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Permissions.Keys()) != len(second.Permissions.Keys()) {
		t.Fatalf("expected identical results, got %v and %v", first.Permissions.Keys(), second.Permissions.Keys())
	}
	for _, k := range first.Permissions.Keys() {
		if !second.Has(k) {
			t.Fatalf("expected identical results, got %v and %v", first.Permissions.Keys(), second.Permissions.Keys())
		}
	}
}
