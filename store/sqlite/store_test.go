package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/module"
	"github.com/xraph/warrant/override"
	"github.com/xraph/warrant/role"
	"github.com/xraph/warrant/store"
	"github.com/xraph/warrant/store/storetest"
	"github.com/xraph/warrant/userrole"
)

// newTestStore opens a migrated store backed by a file in a temp dir.
// Foreign keys and the busy timeout are per-connection pragmas, so they go
// in the DSN to reach every pooled connection.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	dsn := filepath.Join(t.TempDir(), "warrant.db") +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	drv := sqlitedriver.New()
	require.NoError(t, drv.Open(ctx, dsn))

	db, err := grove.Open(drv)
	require.NoError(t, err)

	s := New(db)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newTestStore(t) })
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Ping(context.Background()))
}

func TestTimestampsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	created := time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.FixedZone("CET", 3600))
	m := &module.Module{ID: id.NewModuleID(), Name: "orders", IsActive: true, CreatedAt: created, UpdatedAt: created}
	require.NoError(t, s.CreateModule(ctx, m))

	got, err := s.GetModule(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(created), "created_at %v != %v", got.CreatedAt, created)
	assert.True(t, got.UpdatedAt.Equal(created))
}

func TestUserRolesOrderedByAssignment(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := &role.Role{ID: id.NewRoleID(), Name: "a", IsActive: true}
	b := &role.Role{ID: id.NewRoleID(), Name: "b", IsActive: true}
	require.NoError(t, s.CreateRole(ctx, a, nil))
	require.NoError(t, s.CreateRole(ctx, b, nil))

	// b is assigned earlier in wall time, from a different zone.
	later := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	earlier := time.Date(2025, 1, 2, 12, 0, 0, 0, time.FixedZone("EET", 3*3600))
	require.NoError(t, s.AssignRole(ctx, &userrole.UserRole{ID: id.NewUserRoleID(), UserID: "u1", RoleID: a.ID, AssignedAt: later}))
	require.NoError(t, s.AssignRole(ctx, &userrole.UserRole{ID: id.NewUserRoleID(), UserID: "u1", RoleID: b.ID, AssignedAt: earlier}))

	urs, err := s.ListUserRoles(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, urs, 2)
	assert.Equal(t, b.ID, urs[0].RoleID)
	assert.Equal(t, a.ID, urs[1].RoleID)
	assert.True(t, urs[0].AssignedAt.Equal(earlier))
}

func TestDeleteExpiredOverridesAcrossZones(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := storetest.SeedPermission(t, s, "orders", "view")
	// 11:30 in UTC+2 is 09:30 UTC, before the 10:00 UTC cutoff.
	exp := time.Date(2025, 1, 2, 11, 30, 0, 0, time.FixedZone("EET", 2*3600))
	o := &override.Override{ID: id.NewOverrideID(), UserID: "u1", PermissionID: p.ID, GrantedAt: exp.Add(-time.Hour), ExpiresAt: &exp}
	require.NoError(t, s.SetOverride(ctx, o))

	n, err := s.DeleteExpiredOverrides(ctx, time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
