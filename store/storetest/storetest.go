// Package storetest holds a behaviour suite every store.Store backend must
// pass. Backend packages call Run from their own tests with a constructor
// that returns an empty, migrated store.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/warrant/action"
	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/module"
	"github.com/xraph/warrant/override"
	"github.com/xraph/warrant/permission"
	"github.com/xraph/warrant/role"
	"github.com/xraph/warrant/store"
	"github.com/xraph/warrant/userrole"
)

// Factory returns a fresh, empty store for a single subtest.
type Factory func(t *testing.T) store.Store

// Run executes the behaviour suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"CatalogCRUD", testCatalogCRUD},
		{"RoleCRUD", testRoleCRUD},
		{"DeleteRoleCascades", testDeleteRoleCascades},
		{"AssignRolePrimary", testAssignRolePrimary},
		{"ReplaceUserRoles", testReplaceUserRoles},
		{"Overrides", testOverrides},
		{"Pagination", testPagination},
		{"ConcurrentAssignRole", testConcurrentAssignRole},
		{"ConcurrentSetOverride", testConcurrentSetOverride},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

// SeedPermission creates a module, an action and the permission joining
// them, reusing the module and action when they already exist.
func SeedPermission(t *testing.T, s store.Store, mod, act string) *permission.Permission {
	t.Helper()
	ctx := context.Background()

	m, err := s.GetModuleByName(ctx, mod)
	if errors.Is(err, store.ErrNotFound) {
		m = &module.Module{ID: id.NewModuleID(), Name: mod, IsActive: true}
		if err := s.CreateModule(ctx, m); err != nil {
			t.Fatal(err)
		}
	} else if err != nil {
		t.Fatal(err)
	}
	a, err := s.GetActionByName(ctx, act)
	if errors.Is(err, store.ErrNotFound) {
		a = &action.Action{ID: id.NewActionID(), Name: act, IsActive: true}
		if err := s.CreateAction(ctx, a); err != nil {
			t.Fatal(err)
		}
	} else if err != nil {
		t.Fatal(err)
	}
	p := &permission.Permission{
		ID:       id.NewPermissionID(),
		ModuleID: m.ID,
		ActionID: a.ID,
		Key:      permission.Key(mod, act),
		IsActive: true,
	}
	if err := s.CreatePermission(ctx, p); err != nil {
		t.Fatal(err)
	}
	return p
}

func testCatalogCRUD(t *testing.T, s store.Store) {
	ctx := context.Background()

	p := SeedPermission(t, s, "orders", "view")
	SeedPermission(t, s, "orders", "edit")

	// Duplicate module name
	err := s.CreateModule(ctx, &module.Module{ID: id.NewModuleID(), Name: "orders"})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Duplicate permission key
	err = s.CreatePermission(ctx, &permission.Permission{
		ID:       id.NewPermissionID(),
		ModuleID: p.ModuleID,
		ActionID: p.ActionID,
		Key:      "orders:view",
	})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := s.GetPermissionByKey(ctx, "orders:view")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != p.ID {
		t.Fatal("key lookup mismatch")
	}

	// Deactivate and filter
	p.IsActive = false
	if err := s.UpdatePermission(ctx, p); err != nil {
		t.Fatal(err)
	}
	list, err := s.ListPermissions(ctx, &permission.ListFilter{ActiveOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Key != "orders:edit" {
		t.Fatalf("expected only orders:edit, got %d entries", len(list))
	}

	all, err := s.ListPermissions(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Key != "orders:edit" {
		t.Fatal("expected permissions ordered by key")
	}

	if _, err := s.GetAction(ctx, id.NewActionID()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testRoleCRUD(t *testing.T, s store.Store) {
	ctx := context.Background()

	view := SeedPermission(t, s, "orders", "view")
	edit := SeedPermission(t, s, "orders", "edit")

	r := &role.Role{ID: id.NewRoleID(), Name: "clerk", IsActive: true}
	grants := []*role.Grant{
		{RoleID: r.ID, PermissionID: view.ID},
		{RoleID: r.ID, PermissionID: edit.ID},
	}

	// Create
	if err := s.CreateRole(ctx, r, grants); err != nil {
		t.Fatal(err)
	}
	perms, _ := s.ListRolePermissions(ctx, r.ID)
	if len(perms) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(perms))
	}

	// Duplicate name
	if err := s.CreateRole(ctx, &role.Role{ID: id.NewRoleID(), Name: "clerk"}, nil); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// GetByName
	got, err := s.GetRoleByName(ctx, "clerk")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != r.ID {
		t.Fatal("name lookup mismatch")
	}

	// Replace grants
	r.DisplayName = "Clerk"
	if err := s.UpdateRoleWithGrants(ctx, r, []*role.Grant{{RoleID: r.ID, PermissionID: view.ID}}); err != nil {
		t.Fatal(err)
	}
	perms, _ = s.ListRolePermissions(ctx, r.ID)
	if len(perms) != 1 || perms[0] != view.ID {
		t.Fatal("expected grant set replaced by orders:view only")
	}
	got, _ = s.GetRole(ctx, r.ID)
	if got.DisplayName != "Clerk" {
		t.Fatal("update failed")
	}

	// Idempotent grant
	g := &role.Grant{RoleID: r.ID, PermissionID: edit.ID}
	if err := s.GrantPermission(ctx, g); err != nil {
		t.Fatal(err)
	}
	if err := s.GrantPermission(ctx, g); err != nil {
		t.Fatal(err)
	}
	perms, _ = s.ListRolePermissions(ctx, r.ID)
	if len(perms) != 2 {
		t.Fatalf("expected 2 grants after re-grant, got %d", len(perms))
	}

	// Revoke
	if err := s.RevokePermission(ctx, r.ID, edit.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.RevokePermission(ctx, r.ID, edit.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Count / search
	count, err := s.CountRoles(ctx, &role.ListFilter{Search: "CLE"})
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}
}

func testDeleteRoleCascades(t *testing.T, s store.Store) {
	ctx := context.Background()

	p := SeedPermission(t, s, "orders", "view")
	r := &role.Role{ID: id.NewRoleID(), Name: "clerk", IsActive: true}
	if err := s.CreateRole(ctx, r, []*role.Grant{{RoleID: r.ID, PermissionID: p.ID}}); err != nil {
		t.Fatal(err)
	}
	ur := &userrole.UserRole{ID: id.NewUserRoleID(), UserID: "u1", RoleID: r.ID, IsPrimary: true}
	if err := s.AssignRole(ctx, ur); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteRole(ctx, r.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := s.GetRole(ctx, r.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	urs, _ := s.ListUserRoles(ctx, "u1")
	if len(urs) != 0 {
		t.Fatalf("expected user roles removed, got %d", len(urs))
	}
	perms, _ := s.ListRolePermissions(ctx, r.ID)
	if len(perms) != 0 {
		t.Fatal("expected grants removed")
	}
	if err := s.DeleteRole(ctx, r.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func testAssignRolePrimary(t *testing.T, s store.Store) {
	ctx := context.Background()

	a := &role.Role{ID: id.NewRoleID(), Name: "a", IsActive: true}
	b := &role.Role{ID: id.NewRoleID(), Name: "b", IsActive: true}
	for _, r := range []*role.Role{a, b} {
		if err := s.CreateRole(ctx, r, nil); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.AssignRole(ctx, &userrole.UserRole{ID: id.NewUserRoleID(), UserID: "u1", RoleID: a.ID, IsPrimary: true}); err != nil {
		t.Fatal(err)
	}
	if err := s.AssignRole(ctx, &userrole.UserRole{ID: id.NewUserRoleID(), UserID: "u1", RoleID: b.ID, IsPrimary: true}); err != nil {
		t.Fatal(err)
	}

	primary, err := s.GetPrimaryRole(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if primary.RoleID != b.ID {
		t.Fatal("expected b to be primary")
	}

	// Re-assigning a without primary keeps the row and b's flag.
	again := &userrole.UserRole{ID: id.NewUserRoleID(), UserID: "u1", RoleID: a.ID}
	if err := s.AssignRole(ctx, again); err != nil {
		t.Fatal(err)
	}
	urs, _ := s.ListUserRoles(ctx, "u1")
	if len(urs) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(urs))
	}
	primaries := 0
	for _, ur := range urs {
		if ur.IsPrimary {
			primaries++
		}
	}
	if primaries != 1 {
		t.Fatalf("expected exactly one primary, got %d", primaries)
	}

	// Unknown role
	err = s.AssignRole(ctx, &userrole.UserRole{ID: id.NewUserRoleID(), UserID: "u1", RoleID: id.NewRoleID()})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Revoke
	if err := s.RevokeRole(ctx, "u1", a.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.RevokeRole(ctx, "u1", a.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testReplaceUserRoles(t *testing.T, s store.Store) {
	ctx := context.Background()

	a := &role.Role{ID: id.NewRoleID(), Name: "a", IsActive: true}
	b := &role.Role{ID: id.NewRoleID(), Name: "b", IsActive: true}
	for _, r := range []*role.Role{a, b} {
		if err := s.CreateRole(ctx, r, nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.AssignRole(ctx, &userrole.UserRole{ID: id.NewUserRoleID(), UserID: "u1", RoleID: a.ID, IsPrimary: true}); err != nil {
		t.Fatal(err)
	}

	// A failing replace leaves the previous set intact.
	err := s.ReplaceUserRoles(ctx, "u1", []*userrole.UserRole{
		{ID: id.NewUserRoleID(), UserID: "u1", RoleID: b.ID},
		{ID: id.NewUserRoleID(), UserID: "u1", RoleID: id.NewRoleID()},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	urs, _ := s.ListUserRoles(ctx, "u1")
	if len(urs) != 1 || urs[0].RoleID != a.ID {
		t.Fatal("expected previous assignment to survive")
	}

	if err := s.ReplaceUserRoles(ctx, "u1", []*userrole.UserRole{
		{ID: id.NewUserRoleID(), UserID: "u1", RoleID: b.ID, IsPrimary: true},
	}); err != nil {
		t.Fatal(err)
	}
	urs, _ = s.ListUserRoles(ctx, "u1")
	if len(urs) != 1 || urs[0].RoleID != b.ID || !urs[0].IsPrimary {
		t.Fatal("expected b as the only, primary role")
	}

	if err := s.ReplaceUserRoles(ctx, "u1", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetPrimaryRole(ctx, "u1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected no primary role, got %v", err)
	}
}

func testOverrides(t *testing.T, s store.Store) {
	ctx := context.Background()

	p := SeedPermission(t, s, "orders", "view")
	now := time.Now().UTC()
	past := now.Add(-time.Hour)

	o := &override.Override{ID: id.NewOverrideID(), UserID: "u1", PermissionID: p.ID, IsGranted: true, GrantedAt: now}
	if err := s.SetOverride(ctx, o); err != nil {
		t.Fatal(err)
	}

	// Upsert replaces the prior override.
	deny := &override.Override{ID: id.NewOverrideID(), UserID: "u1", PermissionID: p.ID, IsGranted: false, GrantedAt: now, ExpiresAt: &past}
	if err := s.SetOverride(ctx, deny); err != nil {
		t.Fatal(err)
	}
	list, err := s.ListOverrides(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].IsGranted {
		t.Fatal("expected a single deny override")
	}
	// SQL backends may store timestamps at microsecond precision.
	if list[0].ExpiresAt == nil || list[0].ExpiresAt.Sub(past).Abs() > time.Millisecond {
		t.Fatalf("expected expiry %v to round-trip, got %v", past, list[0].ExpiresAt)
	}

	// Mutating a returned copy's pointer must not leak back.
	list[0].ExpiresAt = nil
	got, err := s.GetOverride(ctx, "u1", p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ExpiresAt == nil {
		t.Fatal("expected stored expiry to be unaffected")
	}

	// Unknown permission
	err = s.SetOverride(ctx, &override.Override{ID: id.NewOverrideID(), UserID: "u1", PermissionID: id.NewPermissionID(), GrantedAt: now})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// An override expiring later survives the purge.
	other := SeedPermission(t, s, "orders", "edit")
	future := now.Add(time.Hour)
	if err := s.SetOverride(ctx, &override.Override{ID: id.NewOverrideID(), UserID: "u1", PermissionID: other.ID, IsGranted: true, GrantedAt: now, ExpiresAt: &future}); err != nil {
		t.Fatal(err)
	}

	// Purge
	n, err := s.DeleteExpiredOverrides(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged override, got %d", n)
	}
	if err := s.DeleteOverride(ctx, "u1", p.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetOverride(ctx, "u1", other.ID); err != nil {
		t.Fatalf("expected unexpired override to remain, got %v", err)
	}
}

func testPagination(t *testing.T, s store.Store) {
	ctx := context.Background()

	for i, name := range []string{"a", "b", "c", "d", "e"} {
		r := &role.Role{ID: id.NewRoleID(), Name: name, SortOrder: i}
		if err := s.CreateRole(ctx, r, nil); err != nil {
			t.Fatal(err)
		}
	}

	page, err := s.ListRoles(ctx, &role.ListFilter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].Name != "b" || page[1].Name != "c" {
		t.Fatal("unexpected page contents")
	}
	tail, err := s.ListRoles(ctx, &role.ListFilter{Offset: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(tail) != 2 || tail[0].Name != "d" {
		t.Fatalf("expected the last two roles, got %d", len(tail))
	}
	empty, err := s.ListRoles(ctx, &role.ListFilter{Offset: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty page, got %d", len(empty))
	}
}

// Assigning the same pair from several goroutines must neither fail nor
// leave more than one row.
func testConcurrentAssignRole(t *testing.T, s store.Store) {
	ctx := context.Background()

	r := &role.Role{ID: id.NewRoleID(), Name: "clerk", IsActive: true}
	if err := s.CreateRole(ctx, r, nil); err != nil {
		t.Fatal(err)
	}

	var g errgroup.Group
	for i := range 8 {
		g.Go(func() error {
			ur := &userrole.UserRole{ID: id.NewUserRoleID(), UserID: "u1", RoleID: r.ID, IsPrimary: i%2 == 0}
			if err := s.AssignRole(ctx, ur); err != nil {
				return fmt.Errorf("assign %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	urs, err := s.ListUserRoles(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(urs) != 1 {
		t.Fatalf("expected a single assignment, got %d", len(urs))
	}
	if !urs[0].IsPrimary {
		t.Fatal("expected a primary request to have promoted the assignment")
	}
}

// Setting the same override from several goroutines must neither fail nor
// leave more than one row.
func testConcurrentSetOverride(t *testing.T, s store.Store) {
	ctx := context.Background()

	p := SeedPermission(t, s, "orders", "view")

	var g errgroup.Group
	for i := range 8 {
		g.Go(func() error {
			o := &override.Override{ID: id.NewOverrideID(), UserID: "u1", PermissionID: p.ID, IsGranted: i%2 == 0, GrantedAt: time.Now().UTC()}
			if err := s.SetOverride(ctx, o); err != nil {
				return fmt.Errorf("set %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListOverrides(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected a single override, got %d", len(list))
	}
}
