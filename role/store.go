package role

import (
	"context"

	"github.com/xraph/warrant/id"
)

// Store defines persistence operations for roles and their grants.
// Every method that touches more than one row is atomic.
type Store interface {
	// CreateRole persists a new role together with its grants.
	CreateRole(ctx context.Context, r *Role, grants []*Grant) error

	// GetRole retrieves a role by ID.
	GetRole(ctx context.Context, roleID id.RoleID) (*Role, error)

	// GetRoleByName retrieves a role by its unique name.
	GetRoleByName(ctx context.Context, name string) (*Role, error)

	// UpdateRole persists changes to a role's own fields.
	UpdateRole(ctx context.Context, r *Role) error

	// UpdateRoleWithGrants persists changes to a role and replaces its
	// entire grant set (delete-all-then-insert).
	UpdateRoleWithGrants(ctx context.Context, r *Role, grants []*Grant) error

	// DeleteRole removes a role, its grants, and every user_roles row
	// that references it.
	DeleteRole(ctx context.Context, roleID id.RoleID) error

	// ListRoles returns roles matching the filter, ordered by sort order.
	ListRoles(ctx context.Context, filter *ListFilter) ([]*Role, error)

	// CountRoles returns the number of roles matching the filter.
	CountRoles(ctx context.Context, filter *ListFilter) (int64, error)

	// ListRolePermissions returns the permission IDs granted to a role.
	ListRolePermissions(ctx context.Context, roleID id.RoleID) ([]id.PermissionID, error)

	// ListGrants returns the grant rows of a role.
	ListGrants(ctx context.Context, roleID id.RoleID) ([]*Grant, error)

	// GrantPermission adds a single grant. Granting an existing pair is a no-op.
	GrantPermission(ctx context.Context, g *Grant) error

	// RevokePermission removes a single grant.
	RevokePermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error
}
