package warrant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/role"
)

func TestCreateRoleValidation(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	perms := seedCatalog(t, eng, standardKeys...)

	_, err := eng.CreateRole(ctx, &CreateRoleInput{Name: "  "})
	require.ErrorIs(t, err, ErrInvalidArgument)

	r, err := eng.CreateRole(ctx, &CreateRoleInput{
		Name:          "manager",
		PermissionIDs: permIDs(perms, "staff:edit", "staff:edit", "dashboard:view"),
	})
	require.NoError(t, err)
	assert.True(t, r.IsActive)
	assert.Equal(t, "manager", r.DisplayName)

	grants, err := eng.Store().ListRolePermissions(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, grants, 2, "duplicate permission ids must collapse")

	_, err = eng.CreateRole(ctx, &CreateRoleInput{Name: "manager"})
	require.ErrorIs(t, err, ErrDuplicateName)

	_, err = eng.CreateRole(ctx, &CreateRoleInput{Name: "ghost", PermissionIDs: []id.PermissionID{id.NewPermissionID()}})
	require.ErrorIs(t, err, ErrInvalidPermission)
	_, err = eng.Store().GetRoleByName(ctx, "ghost")
	require.Error(t, err, "role must not exist after a failed create")

	off := false
	_, err = eng.UpdatePermission(ctx, perms["billing:admin"].ID, &PermissionUpdate{IsActive: &off})
	require.NoError(t, err)
	_, err = eng.CreateRole(ctx, &CreateRoleInput{Name: "billing", PermissionIDs: permIDs(perms, "billing:admin")})
	require.ErrorIs(t, err, ErrInvalidPermission)
	assert.Contains(t, err.Error(), "billing:admin")
}

func TestUpdateRoleReplacesGrants(t *testing.T) {
	ctx := context.Background()
	eng, perms := managerFixture(t)
	r, err := eng.Store().GetRoleByName(ctx, "manager")
	require.NoError(t, err)

	desc := "runs the floor"
	updated, err := eng.UpdateRole(ctx, r.ID, &UpdateRoleInput{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, desc, updated.Description)

	got, err := eng.GetEffectivePermissions(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"dashboard:view", "staff:edit"}, got.Keys(), "nil permission ids must keep grants")

	_, err = eng.UpdateRole(ctx, r.ID, &UpdateRoleInput{PermissionIDs: permIDs(perms, "billing:admin")})
	require.NoError(t, err)
	got, err = eng.GetEffectivePermissions(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"billing:admin"}, got.Keys())

	_, err = eng.UpdateRole(ctx, r.ID, &UpdateRoleInput{PermissionIDs: []id.PermissionID{}})
	require.NoError(t, err)
	got, err = eng.GetEffectivePermissions(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got.Keys())

	_, err = eng.UpdateRole(ctx, id.NewRoleID(), &UpdateRoleInput{Description: &desc})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRoleCascades(t *testing.T) {
	ctx := context.Background()
	eng, perms := managerFixture(t)
	viewer := mustRole(t, eng, "viewer", perms, "dashboard:view")
	_, err := eng.AssignRole(ctx, "u1", viewer.ID, false)
	require.NoError(t, err)

	mgr, err := eng.Store().GetRoleByName(ctx, "manager")
	require.NoError(t, err)
	require.NoError(t, eng.DeleteRole(ctx, mgr.ID))

	got, err := eng.GetEffectivePermissions(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"dashboard:view"}, got.Keys())

	urs, err := eng.ListUserRoles(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, urs, 1)
	assert.Equal(t, viewer.ID.String(), urs[0].RoleID.String())

	members, err := eng.ListRoleMembers(ctx, mgr.ID)
	require.NoError(t, err)
	assert.Empty(t, members)

	require.ErrorIs(t, eng.DeleteRole(ctx, mgr.ID), ErrNotFound)
}

func TestSystemRoleProtection(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	perms := seedCatalog(t, eng, standardKeys...)

	admin, err := eng.CreateRole(ctx, &CreateRoleInput{Name: "admin", IsSystem: true, PermissionIDs: permIDs(perms, standardKeys...)})
	require.NoError(t, err)

	off := false
	_, err = eng.UpdateRole(ctx, admin.ID, &UpdateRoleInput{IsActive: &off})
	require.ErrorIs(t, err, ErrSystemRoleProtected)
	require.ErrorIs(t, eng.RevokeRolePermission(ctx, admin.ID, perms["staff:edit"].ID), ErrSystemRoleProtected)
	require.ErrorIs(t, eng.DeleteRole(ctx, admin.ID), ErrSystemRoleProtected)

	sys := WithSystemAuthority(ctx)
	require.NoError(t, eng.RevokeRolePermission(sys, admin.ID, perms["staff:edit"].ID))
	require.NoError(t, eng.DeleteRole(sys, admin.ID))

	cfg := DefaultConfig()
	cfg.ProtectSystemRoles = &off
	open, _ := newTestEngine(t, WithConfig(cfg))
	openPerms := seedCatalog(t, open, standardKeys...)
	r, err := open.CreateRole(ctx, &CreateRoleInput{Name: "root", IsSystem: true, PermissionIDs: permIDs(openPerms, "staff:edit")})
	require.NoError(t, err)
	require.NoError(t, open.DeleteRole(ctx, r.ID))
}

func TestAssignRoleIdempotentAndPrimary(t *testing.T) {
	ctx := context.Background()
	eng, perms := managerFixture(t)
	a := mustRole(t, eng, "a", perms, "dashboard:view")
	b := mustRole(t, eng, "b", perms, "billing:admin")

	first, err := eng.AssignRole(ctx, "u2", a.ID, false)
	require.NoError(t, err)
	again, err := eng.AssignRole(ctx, "u2", a.ID, false)
	require.NoError(t, err)
	assert.Equal(t, first.ID.String(), again.ID.String(), "re-assign must return the stored row")
	urs, err := eng.ListUserRoles(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, urs, 1, "re-assign must not add a row")

	// u2 holds only a on the first pass and both roles afterwards.
	for i, rid := range []id.RoleID{a.ID, b.ID, a.ID, b.ID} {
		_, err := eng.AssignRole(ctx, "u2", rid, true)
		require.NoError(t, err)

		urs, err := eng.ListUserRoles(ctx, "u2")
		require.NoError(t, err)
		require.Len(t, urs, min(i+1, 2))
		primaries := 0
		for _, ur := range urs {
			if ur.IsPrimary {
				primaries++
				assert.Equal(t, rid.String(), ur.RoleID.String())
			}
		}
		assert.Equal(t, 1, primaries)
	}

	// Re-assigning without the flag keeps the current primary.
	_, err = eng.AssignRole(ctx, "u2", b.ID, false)
	require.NoError(t, err)
	primary, err := eng.PrimaryRole(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, b.ID.String(), primary.RoleID.String())

	_, err = eng.AssignRole(ctx, "u2", id.NewRoleID(), false)
	require.ErrorIs(t, err, ErrNotFound)

	off := false
	_, err = eng.UpdateRole(ctx, a.ID, &UpdateRoleInput{IsActive: &off})
	require.NoError(t, err)
	_, err = eng.AssignRole(ctx, "u3", a.ID, false)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = eng.AssignRole(ctx, "", b.ID, false)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRevokeRoleLeavesNoPrimary(t *testing.T) {
	ctx := context.Background()
	eng, perms := managerFixture(t)
	mgr, err := eng.Store().GetRoleByName(ctx, "manager")
	require.NoError(t, err)
	viewer := mustRole(t, eng, "viewer", perms, "dashboard:view")
	_, err = eng.AssignRole(ctx, "u1", viewer.ID, false)
	require.NoError(t, err)

	require.NoError(t, eng.RevokeRole(ctx, "u1", mgr.ID))
	_, err = eng.PrimaryRole(ctx, "u1")
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, eng.RevokeRole(ctx, "u1", mgr.ID), ErrNotFound)
}

func TestReplaceUserRoles(t *testing.T) {
	ctx := context.Background()
	eng, perms := managerFixture(t)
	a := mustRole(t, eng, "a", perms, "dashboard:view")
	b := mustRole(t, eng, "b", perms, "billing:admin")

	_, err := eng.ReplaceUserRoles(ctx, "u1", []id.RoleID{a.ID}, &b.ID)
	require.ErrorIs(t, err, ErrInvalidPrimary)

	_, err = eng.ReplaceUserRoles(ctx, "u1", []id.RoleID{a.ID, id.NewRoleID()}, nil)
	require.ErrorIs(t, err, ErrNotFound)

	// Failed replacements leave the original set.
	got, err := eng.GetEffectivePermissions(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"dashboard:view", "staff:edit"}, got.Keys())

	urs, err := eng.ReplaceUserRoles(ctx, "u1", []id.RoleID{a.ID, b.ID, b.ID}, &b.ID)
	require.NoError(t, err)
	require.Len(t, urs, 2)

	got, err = eng.GetEffectivePermissions(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"billing:admin", "dashboard:view"}, got.Keys())

	primary, err := eng.PrimaryRole(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, b.ID.String(), primary.RoleID.String())

	urs, err = eng.ReplaceUserRoles(ctx, "u1", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, urs)
	got, err = eng.GetEffectivePermissions(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got.Keys())
}

func TestPermissionOverrides(t *testing.T) {
	ctx := WithActor(context.Background(), "admin_7")
	clock := newTestClock()
	eng, perms := managerFixture(t, WithClock(clock.Now))
	staffEdit := perms["staff:edit"].ID

	o, err := eng.SetPermissionOverride(ctx, "u1", staffEdit, false, nil)
	require.NoError(t, err)
	assert.Equal(t, "admin_7", o.GrantedBy)

	// Setting again replaces the prior override of the pair.
	expires := clock.Now().Add(time.Hour)
	_, err = eng.SetPermissionOverride(ctx, "u1", staffEdit, true, &expires)
	require.NoError(t, err)
	list, err := eng.ListOverrides(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsGranted)

	require.NoError(t, eng.ClearPermissionOverride(ctx, "u1", staffEdit))
	require.ErrorIs(t, eng.ClearPermissionOverride(ctx, "u1", staffEdit), ErrNotFound)

	_, err = eng.SetPermissionOverride(ctx, "u1", id.NewPermissionID(), true, nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPurgeExpiredOverrides(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	eng, perms := managerFixture(t, WithClock(clock.Now))

	past := clock.Now().Add(-time.Hour)
	future := clock.Now().Add(time.Hour)
	_, err := eng.SetPermissionOverride(ctx, "u1", perms["staff:edit"].ID, false, &past)
	require.NoError(t, err)
	_, err = eng.SetPermissionOverride(ctx, "u1", perms["billing:admin"].ID, true, &future)
	require.NoError(t, err)
	_, err = eng.SetPermissionOverride(ctx, "u2", perms["dashboard:view"].ID, true, nil)
	require.NoError(t, err)

	n, err := eng.PurgeExpiredOverrides(ctx, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	list, err := eng.ListOverrides(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, perms["billing:admin"].ID.String(), list[0].PermissionID.String())
}

func TestGrantRolePermissionIdempotent(t *testing.T) {
	ctx := context.Background()
	eng, perms := managerFixture(t)
	mgr, err := eng.Store().GetRoleByName(ctx, "manager")
	require.NoError(t, err)

	require.NoError(t, eng.GrantRolePermission(ctx, mgr.ID, perms["billing:admin"].ID))
	require.NoError(t, eng.GrantRolePermission(ctx, mgr.ID, perms["billing:admin"].ID))

	grants, err := eng.Store().ListGrants(ctx, mgr.ID)
	require.NoError(t, err)
	assert.Len(t, grants, 3)

	got, err := eng.GetEffectivePermissions(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"billing:admin", "dashboard:view", "staff:edit"}, got.Keys())

	require.ErrorIs(t, eng.GrantRolePermission(ctx, mgr.ID, id.NewPermissionID()), ErrInvalidPermission)
	require.NoError(t, eng.RevokeRolePermission(ctx, mgr.ID, perms["billing:admin"].ID))
	require.ErrorIs(t, eng.RevokeRolePermission(ctx, mgr.ID, perms["billing:admin"].ID), ErrNotFound)
}

func TestGetRoleWithPermissions(t *testing.T) {
	ctx := context.Background()
	eng, _ := managerFixture(t)
	mgr, err := eng.Store().GetRoleByName(ctx, "manager")
	require.NoError(t, err)

	rwp, err := eng.GetRoleWithPermissions(ctx, mgr.ID)
	require.NoError(t, err)
	assert.Equal(t, "manager", rwp.Name)
	require.Len(t, rwp.Permissions, 2)
	assert.Equal(t, "dashboard:view", rwp.Permissions[0].Permission.Key)
	assert.Equal(t, "dashboard", rwp.Permissions[0].Module.Name)
	assert.Equal(t, "view", rwp.Permissions[0].Action.Name)
	assert.Equal(t, "staff:edit", rwp.Permissions[1].Permission.Key)

	_, err = eng.GetRoleWithPermissions(ctx, id.NewRoleID())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListAndCountRoles(t *testing.T) {
	ctx := context.Background()
	eng, perms := managerFixture(t)
	r := mustRole(t, eng, "viewer", perms, "dashboard:view")
	off := false
	_, err := eng.UpdateRole(ctx, r.ID, &UpdateRoleInput{IsActive: &off})
	require.NoError(t, err)

	all, err := eng.ListRoles(ctx, &role.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := eng.ListRoles(ctx, &role.ListFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "manager", active[0].Name)

	n, err := eng.CountRoles(ctx, &role.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCatalogAdministration(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	m, err := eng.CreateModule(ctx, &ModuleInput{Name: "staff", DisplayName: "Staff"})
	require.NoError(t, err)
	a, err := eng.CreateAction(ctx, &ActionInput{Name: "edit"})
	require.NoError(t, err)
	assert.Equal(t, "edit", a.DisplayName)

	_, err = eng.CreateModule(ctx, &ModuleInput{Name: "staff"})
	require.ErrorIs(t, err, ErrDuplicateName)
	_, err = eng.CreateModule(ctx, &ModuleInput{Name: "a:b"})
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = eng.CreateAction(ctx, &ActionInput{Name: ""})
	require.ErrorIs(t, err, ErrInvalidArgument)

	p, err := eng.CreatePermission(ctx, m.ID, a.ID, "Edit staff")
	require.NoError(t, err)
	assert.Equal(t, "staff:edit", p.Key)

	_, err = eng.CreatePermission(ctx, m.ID, a.ID, "")
	require.ErrorIs(t, err, ErrDuplicateName)
	_, err = eng.CreatePermission(ctx, id.NewModuleID(), a.ID, "")
	require.ErrorIs(t, err, ErrNotFound)

	got, err := eng.GetPermissionByKey(ctx, "staff:edit")
	require.NoError(t, err)
	assert.Equal(t, p.ID.String(), got.ID.String())
	_, err = eng.GetPermissionByKey(ctx, "staff")
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = eng.GetPermissionByKey(ctx, "staff:delete")
	require.ErrorIs(t, err, ErrNotFound)

	name := "Staff members"
	updated, err := eng.UpdateModule(ctx, m.ID, &CatalogUpdate{DisplayName: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.DisplayName)
	assert.Equal(t, "staff", updated.Name)

	modules, err := eng.ListModules(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, modules, 1)
	actions, err := eng.ListActions(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, actions, 1)
	ps, err := eng.ListPermissions(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, ps, 1)
}

func TestWritesRecordActor(t *testing.T) {
	ctx := WithActor(context.Background(), "admin_1")
	eng, _ := newTestEngine(t)
	perms := seedCatalog(t, eng, standardKeys...)

	r, err := eng.CreateRole(ctx, &CreateRoleInput{Name: "manager", PermissionIDs: permIDs(perms, "staff:edit")})
	require.NoError(t, err)
	grants, err := eng.Store().ListGrants(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, "admin_1", grants[0].GrantedBy)

	ur, err := eng.AssignRole(ctx, "u1", r.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "admin_1", ur.AssignedBy)
}
