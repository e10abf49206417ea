package userrole

import (
	"context"

	"github.com/xraph/warrant/id"
)

// Store defines persistence operations for user role assignments.
type Store interface {
	// AssignRole inserts the assignment unless the user already holds the
	// role. When ur.IsPrimary is set, every other primary flag of the user
	// is cleared in the same atomic step. When the assignment already
	// exists, ur is overwritten with the stored row.
	AssignRole(ctx context.Context, ur *UserRole) error

	// RevokeRole removes the user's assignment of a role.
	RevokeRole(ctx context.Context, userID string, roleID id.RoleID) error

	// ReplaceUserRoles deletes all assignments of a user and inserts urs.
	ReplaceUserRoles(ctx context.Context, userID string, urs []*UserRole) error

	// ListUserRoles returns all assignments of a user.
	ListUserRoles(ctx context.Context, userID string) ([]*UserRole, error)

	// GetPrimaryRole returns the user's primary assignment.
	GetPrimaryRole(ctx context.Context, userID string) (*UserRole, error)

	// ListRoleMembers returns all assignments of a role.
	ListRoleMembers(ctx context.Context, roleID id.RoleID) ([]*UserRole, error)
}
