package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/warrant"
	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/store/memory"
)

func TestPluginRecordsEngineEvents(t *testing.T) {
	ctx := context.Background()
	m := New(prometheus.NewRegistry())

	eng, err := warrant.NewEngine(warrant.WithStore(memory.New()), warrant.WithPlugin(m))
	require.NoError(t, err)

	mod, err := eng.CreateModule(ctx, &warrant.ModuleInput{Name: "staff"})
	require.NoError(t, err)
	act, err := eng.CreateAction(ctx, &warrant.ActionInput{Name: "edit"})
	require.NoError(t, err)
	p, err := eng.CreatePermission(ctx, mod.ID, act.ID, "")
	require.NoError(t, err)
	r, err := eng.CreateRole(ctx, &warrant.CreateRoleInput{Name: "manager", PermissionIDs: []id.PermissionID{p.ID}})
	require.NoError(t, err)
	_, err = eng.AssignRole(ctx, "u1", r.ID, true)
	require.NoError(t, err)

	_, err = eng.Resolve(ctx, "u1")
	require.NoError(t, err)
	ok, err := eng.HasPermission(ctx, "u1", "staff:edit")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = eng.HasPermission(ctx, "u1", "staff:delete")
	require.NoError(t, err)
	require.False(t, ok)

	assert.InDelta(t, 1, testutil.ToFloat64(m.resolutions.WithLabelValues("ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.checks.WithLabelValues("allowed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.checks.WithLabelValues("denied")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.writes.WithLabelValues("role_created")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.writes.WithLabelValues("role_assigned")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.writes.WithLabelValues("module_changed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.writes.WithLabelValues("permission_changed")), 0)
}

func TestPluginRecordsFailures(t *testing.T) {
	ctx := context.Background()
	m := New(prometheus.NewRegistry())

	require.NoError(t, m.OnAfterResolve(ctx, "u1", nil, 3*time.Millisecond, errors.New("down")))
	require.NoError(t, m.OnAfterCheck(ctx, "u1", "staff:edit", false, errors.New("down")))

	assert.InDelta(t, 1, testutil.ToFloat64(m.resolutions.WithLabelValues("error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.checks.WithLabelValues("error")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) }, "duplicate registration must fail")
}
