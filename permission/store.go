package permission

import (
	"context"

	"github.com/xraph/warrant/id"
)

// Store defines persistence operations for permissions.
type Store interface {
	// CreatePermission persists a new permission. Keys are unique.
	CreatePermission(ctx context.Context, p *Permission) error

	// GetPermission retrieves a permission by ID.
	GetPermission(ctx context.Context, permID id.PermissionID) (*Permission, error)

	// GetPermissionByKey retrieves a permission by its "module:action" key.
	GetPermissionByKey(ctx context.Context, key string) (*Permission, error)

	// UpdatePermission persists changes to a permission.
	UpdatePermission(ctx context.Context, p *Permission) error

	// ListPermissions returns permissions ordered by key.
	ListPermissions(ctx context.Context, filter *ListFilter) ([]*Permission, error)
}
