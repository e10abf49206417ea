// Package metrics provides a Warrant plugin exporting Prometheus
// collectors for resolutions, permission checks and administration
// writes.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/override"
	"github.com/xraph/warrant/plugin"
	"github.com/xraph/warrant/role"
	"github.com/xraph/warrant/userrole"
)

// Compile-time hook checks.
var (
	_ plugin.AfterResolve           = (*Plugin)(nil)
	_ plugin.AfterCheck             = (*Plugin)(nil)
	_ plugin.RoleCreated            = (*Plugin)(nil)
	_ plugin.RoleUpdated            = (*Plugin)(nil)
	_ plugin.RoleDeleted            = (*Plugin)(nil)
	_ plugin.RolePermissionsChanged = (*Plugin)(nil)
	_ plugin.RoleAssigned           = (*Plugin)(nil)
	_ plugin.RoleRevoked            = (*Plugin)(nil)
	_ plugin.UserRolesReplaced      = (*Plugin)(nil)
	_ plugin.OverrideSet            = (*Plugin)(nil)
	_ plugin.OverrideCleared        = (*Plugin)(nil)
	_ plugin.CatalogChanged         = (*Plugin)(nil)
)

// Plugin records engine events as Prometheus metrics.
type Plugin struct {
	resolutions *prometheus.CounterVec
	duration    prometheus.Histogram
	checks      *prometheus.CounterVec
	writes      *prometheus.CounterVec
}

// New registers the collectors against registerer, or the default
// registerer when nil.
func New(registerer prometheus.Registerer) *Plugin {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	p := &Plugin{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warrant_resolutions_total",
			Help: "Effective-permission resolutions partitioned by outcome.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "warrant_resolution_duration_seconds",
			Help:    "Duration in seconds of effective-permission resolutions.",
			Buckets: prometheus.DefBuckets,
		}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warrant_checks_total",
			Help: "Single-permission checks partitioned by decision.",
		}, []string{"decision"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warrant_admin_writes_total",
			Help: "Administration writes partitioned by operation.",
		}, []string{"op"}),
	}
	registerer.MustRegister(p.resolutions, p.duration, p.checks, p.writes)
	return p
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return "metrics" }

// OnAfterResolve implements plugin.AfterResolve.
func (p *Plugin) OnAfterResolve(_ context.Context, _ string, _ any, elapsed time.Duration, err error) error {
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.resolutions.WithLabelValues(result).Inc()
	p.duration.Observe(elapsed.Seconds())
	return nil
}

// OnAfterCheck implements plugin.AfterCheck.
func (p *Plugin) OnAfterCheck(_ context.Context, _, _ string, allowed bool, err error) error {
	decision := "denied"
	switch {
	case err != nil:
		decision = "error"
	case allowed:
		decision = "allowed"
	}
	p.checks.WithLabelValues(decision).Inc()
	return nil
}

func (p *Plugin) write(op string) error {
	p.writes.WithLabelValues(op).Inc()
	return nil
}

// OnRoleCreated implements plugin.RoleCreated.
func (p *Plugin) OnRoleCreated(context.Context, *role.Role) error { return p.write("role_created") }

// OnRoleUpdated implements plugin.RoleUpdated.
func (p *Plugin) OnRoleUpdated(context.Context, *role.Role) error { return p.write("role_updated") }

// OnRoleDeleted implements plugin.RoleDeleted.
func (p *Plugin) OnRoleDeleted(context.Context, id.RoleID) error { return p.write("role_deleted") }

// OnRolePermissionsChanged implements plugin.RolePermissionsChanged.
func (p *Plugin) OnRolePermissionsChanged(context.Context, id.RoleID) error {
	return p.write("role_permissions_changed")
}

// OnRoleAssigned implements plugin.RoleAssigned.
func (p *Plugin) OnRoleAssigned(context.Context, *userrole.UserRole) error {
	return p.write("role_assigned")
}

// OnRoleRevoked implements plugin.RoleRevoked.
func (p *Plugin) OnRoleRevoked(context.Context, string, id.RoleID) error {
	return p.write("role_revoked")
}

// OnUserRolesReplaced implements plugin.UserRolesReplaced.
func (p *Plugin) OnUserRolesReplaced(context.Context, string, []*userrole.UserRole) error {
	return p.write("user_roles_replaced")
}

// OnOverrideSet implements plugin.OverrideSet.
func (p *Plugin) OnOverrideSet(context.Context, *override.Override) error {
	return p.write("override_set")
}

// OnOverrideCleared implements plugin.OverrideCleared.
func (p *Plugin) OnOverrideCleared(context.Context, string, id.PermissionID) error {
	return p.write("override_cleared")
}

// OnCatalogChanged implements plugin.CatalogChanged.
func (p *Plugin) OnCatalogChanged(_ context.Context, kind string, _ id.ID) error {
	return p.write(kind + "_changed")
}
