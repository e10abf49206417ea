// Package plugin defines the plugin system for Warrant.
// Plugins are notified of lifecycle events (resolution performed, role
// created, override set, etc.) and can react with logging, metrics or
// tracing.
//
// Each lifecycle hook is a separate interface so plugins opt in only
// to the events they care about.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/override"
	"github.com/xraph/warrant/role"
	"github.com/xraph/warrant/userrole"
)

// Plugin is the base interface all plugins must implement.
type Plugin interface {
	// Name returns a unique human-readable name for the plugin.
	Name() string
}

// ──────────────────────────────────────────────────
// Resolution hooks
// ──────────────────────────────────────────────────

// AfterResolve is called after a user's effective permissions are resolved.
// The result parameter is *warrant.Resolution (passed as any to avoid an
// import cycle) and is nil when err is set.
type AfterResolve interface {
	OnAfterResolve(ctx context.Context, userID string, result any, elapsed time.Duration, err error) error
}

// AfterCheck is called after a single permission check completes.
type AfterCheck interface {
	OnAfterCheck(ctx context.Context, userID, permissionKey string, allowed bool, err error) error
}

// ──────────────────────────────────────────────────
// Role lifecycle hooks
// ──────────────────────────────────────────────────

// RoleCreated is called after a role is created.
type RoleCreated interface {
	OnRoleCreated(ctx context.Context, r *role.Role) error
}

// RoleUpdated is called after a role is updated.
type RoleUpdated interface {
	OnRoleUpdated(ctx context.Context, r *role.Role) error
}

// RoleDeleted is called after a role and its grants and assignments are deleted.
type RoleDeleted interface {
	OnRoleDeleted(ctx context.Context, roleID id.RoleID) error
}

// RolePermissionsChanged is called after a role's grant set changes.
type RolePermissionsChanged interface {
	OnRolePermissionsChanged(ctx context.Context, roleID id.RoleID) error
}

// ──────────────────────────────────────────────────
// Assignment lifecycle hooks
// ──────────────────────────────────────────────────

// RoleAssigned is called after a role is assigned to a user.
type RoleAssigned interface {
	OnRoleAssigned(ctx context.Context, ur *userrole.UserRole) error
}

// RoleRevoked is called after a role is revoked from a user.
type RoleRevoked interface {
	OnRoleRevoked(ctx context.Context, userID string, roleID id.RoleID) error
}

// UserRolesReplaced is called after a user's whole role set is replaced.
type UserRolesReplaced interface {
	OnUserRolesReplaced(ctx context.Context, userID string, urs []*userrole.UserRole) error
}

// OverrideSet is called after a permission override is upserted.
type OverrideSet interface {
	OnOverrideSet(ctx context.Context, o *override.Override) error
}

// OverrideCleared is called after a permission override is removed.
type OverrideCleared interface {
	OnOverrideCleared(ctx context.Context, userID string, permID id.PermissionID) error
}

// ──────────────────────────────────────────────────
// Catalog hooks
// ──────────────────────────────────────────────────

// CatalogChanged is called after a module, action or permission is created
// or updated. Kind is "module", "action" or "permission".
type CatalogChanged interface {
	OnCatalogChanged(ctx context.Context, kind string, entityID id.ID) error
}

// ──────────────────────────────────────────────────
// Shutdown hook
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
