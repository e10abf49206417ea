package plugin

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/override"
	"github.com/xraph/warrant/role"
	"github.com/xraph/warrant/userrole"
)

// Named entry types pair a hook with the plugin name for logging.

type afterResolveEntry struct {
	name string
	hook AfterResolve
}
type afterCheckEntry struct {
	name string
	hook AfterCheck
}
type roleCreatedEntry struct {
	name string
	hook RoleCreated
}
type roleUpdatedEntry struct {
	name string
	hook RoleUpdated
}
type roleDeletedEntry struct {
	name string
	hook RoleDeleted
}
type rolePermissionsChangedEntry struct {
	name string
	hook RolePermissionsChanged
}
type roleAssignedEntry struct {
	name string
	hook RoleAssigned
}
type roleRevokedEntry struct {
	name string
	hook RoleRevoked
}
type userRolesReplacedEntry struct {
	name string
	hook UserRolesReplaced
}
type overrideSetEntry struct {
	name string
	hook OverrideSet
}
type overrideClearedEntry struct {
	name string
	hook OverrideCleared
}
type catalogChangedEntry struct {
	name string
	hook CatalogChanged
}
type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered plugins and dispatches lifecycle events.
// It type-caches plugins at registration time so emit calls iterate
// only over plugins implementing the relevant hook.
type Registry struct {
	plugins []Plugin
	logger  *slog.Logger

	afterResolve           []afterResolveEntry
	afterCheck             []afterCheckEntry
	roleCreated            []roleCreatedEntry
	roleUpdated            []roleUpdatedEntry
	roleDeleted            []roleDeletedEntry
	rolePermissionsChanged []rolePermissionsChangedEntry
	roleAssigned           []roleAssignedEntry
	roleRevoked            []roleRevokedEntry
	userRolesReplaced      []userRolesReplacedEntry
	overrideSet            []overrideSetEntry
	overrideCleared        []overrideClearedEntry
	catalogChanged         []catalogChangedEntry
	shutdown               []shutdownEntry
}

// NewRegistry creates a plugin registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a plugin and type-asserts it into all applicable
// hook caches. Plugins are notified in registration order.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	name := p.Name()

	if h, ok := p.(AfterResolve); ok {
		r.afterResolve = append(r.afterResolve, afterResolveEntry{name, h})
	}
	if h, ok := p.(AfterCheck); ok {
		r.afterCheck = append(r.afterCheck, afterCheckEntry{name, h})
	}
	if h, ok := p.(RoleCreated); ok {
		r.roleCreated = append(r.roleCreated, roleCreatedEntry{name, h})
	}
	if h, ok := p.(RoleUpdated); ok {
		r.roleUpdated = append(r.roleUpdated, roleUpdatedEntry{name, h})
	}
	if h, ok := p.(RoleDeleted); ok {
		r.roleDeleted = append(r.roleDeleted, roleDeletedEntry{name, h})
	}
	if h, ok := p.(RolePermissionsChanged); ok {
		r.rolePermissionsChanged = append(r.rolePermissionsChanged, rolePermissionsChangedEntry{name, h})
	}
	if h, ok := p.(RoleAssigned); ok {
		r.roleAssigned = append(r.roleAssigned, roleAssignedEntry{name, h})
	}
	if h, ok := p.(RoleRevoked); ok {
		r.roleRevoked = append(r.roleRevoked, roleRevokedEntry{name, h})
	}
	if h, ok := p.(UserRolesReplaced); ok {
		r.userRolesReplaced = append(r.userRolesReplaced, userRolesReplacedEntry{name, h})
	}
	if h, ok := p.(OverrideSet); ok {
		r.overrideSet = append(r.overrideSet, overrideSetEntry{name, h})
	}
	if h, ok := p.(OverrideCleared); ok {
		r.overrideCleared = append(r.overrideCleared, overrideClearedEntry{name, h})
	}
	if h, ok := p.(CatalogChanged); ok {
		r.catalogChanged = append(r.catalogChanged, catalogChangedEntry{name, h})
	}
	if h, ok := p.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin { return r.plugins }

// ──────────────────────────────────────────────────
// Resolution event emitters
// ──────────────────────────────────────────────────

// EmitAfterResolve notifies all plugins that implement AfterResolve.
func (r *Registry) EmitAfterResolve(ctx context.Context, userID string, result any, elapsed time.Duration, resolveErr error) {
	for _, e := range r.afterResolve {
		if err := e.hook.OnAfterResolve(ctx, userID, result, elapsed, resolveErr); err != nil {
			r.logHookError("OnAfterResolve", e.name, err)
		}
	}
}

// EmitAfterCheck notifies all plugins that implement AfterCheck.
func (r *Registry) EmitAfterCheck(ctx context.Context, userID, permissionKey string, allowed bool, checkErr error) {
	for _, e := range r.afterCheck {
		if err := e.hook.OnAfterCheck(ctx, userID, permissionKey, allowed, checkErr); err != nil {
			r.logHookError("OnAfterCheck", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Role event emitters
// ──────────────────────────────────────────────────

// EmitRoleCreated notifies all plugins that implement RoleCreated.
func (r *Registry) EmitRoleCreated(ctx context.Context, rl *role.Role) {
	for _, e := range r.roleCreated {
		if err := e.hook.OnRoleCreated(ctx, rl); err != nil {
			r.logHookError("OnRoleCreated", e.name, err)
		}
	}
}

// EmitRoleUpdated notifies all plugins that implement RoleUpdated.
func (r *Registry) EmitRoleUpdated(ctx context.Context, rl *role.Role) {
	for _, e := range r.roleUpdated {
		if err := e.hook.OnRoleUpdated(ctx, rl); err != nil {
			r.logHookError("OnRoleUpdated", e.name, err)
		}
	}
}

// EmitRoleDeleted notifies all plugins that implement RoleDeleted.
func (r *Registry) EmitRoleDeleted(ctx context.Context, roleID id.RoleID) {
	for _, e := range r.roleDeleted {
		if err := e.hook.OnRoleDeleted(ctx, roleID); err != nil {
			r.logHookError("OnRoleDeleted", e.name, err)
		}
	}
}

// EmitRolePermissionsChanged notifies all plugins that implement RolePermissionsChanged.
func (r *Registry) EmitRolePermissionsChanged(ctx context.Context, roleID id.RoleID) {
	for _, e := range r.rolePermissionsChanged {
		if err := e.hook.OnRolePermissionsChanged(ctx, roleID); err != nil {
			r.logHookError("OnRolePermissionsChanged", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Assignment event emitters
// ──────────────────────────────────────────────────

// EmitRoleAssigned notifies all plugins that implement RoleAssigned.
func (r *Registry) EmitRoleAssigned(ctx context.Context, ur *userrole.UserRole) {
	for _, e := range r.roleAssigned {
		if err := e.hook.OnRoleAssigned(ctx, ur); err != nil {
			r.logHookError("OnRoleAssigned", e.name, err)
		}
	}
}

// EmitRoleRevoked notifies all plugins that implement RoleRevoked.
func (r *Registry) EmitRoleRevoked(ctx context.Context, userID string, roleID id.RoleID) {
	for _, e := range r.roleRevoked {
		if err := e.hook.OnRoleRevoked(ctx, userID, roleID); err != nil {
			r.logHookError("OnRoleRevoked", e.name, err)
		}
	}
}

// EmitUserRolesReplaced notifies all plugins that implement UserRolesReplaced.
func (r *Registry) EmitUserRolesReplaced(ctx context.Context, userID string, urs []*userrole.UserRole) {
	for _, e := range r.userRolesReplaced {
		if err := e.hook.OnUserRolesReplaced(ctx, userID, urs); err != nil {
			r.logHookError("OnUserRolesReplaced", e.name, err)
		}
	}
}

// EmitOverrideSet notifies all plugins that implement OverrideSet.
func (r *Registry) EmitOverrideSet(ctx context.Context, o *override.Override) {
	for _, e := range r.overrideSet {
		if err := e.hook.OnOverrideSet(ctx, o); err != nil {
			r.logHookError("OnOverrideSet", e.name, err)
		}
	}
}

// EmitOverrideCleared notifies all plugins that implement OverrideCleared.
func (r *Registry) EmitOverrideCleared(ctx context.Context, userID string, permID id.PermissionID) {
	for _, e := range r.overrideCleared {
		if err := e.hook.OnOverrideCleared(ctx, userID, permID); err != nil {
			r.logHookError("OnOverrideCleared", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Catalog event emitters
// ──────────────────────────────────────────────────

// EmitCatalogChanged notifies all plugins that implement CatalogChanged.
func (r *Registry) EmitCatalogChanged(ctx context.Context, kind string, entityID id.ID) {
	for _, e := range r.catalogChanged {
		if err := e.hook.OnCatalogChanged(ctx, kind, entityID); err != nil {
			r.logHookError("OnCatalogChanged", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Shutdown emitter
// ──────────────────────────────────────────────────

// EmitShutdown notifies all plugins that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated.
func (r *Registry) logHookError(hook, pluginName string, err error) {
	r.logger.Warn("plugin hook error",
		slog.String("hook", hook),
		slog.String("plugin", pluginName),
		slog.String("error", err.Error()),
	)
}
