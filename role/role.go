// Package role defines the Role entity, its permission grants, and the
// role store interface.
package role

import (
	"time"

	"github.com/xraph/warrant/id"
)

// Role is a named, administrator-defined bundle of permissions.
type Role struct {
	ID          id.RoleID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Description string    `json:"description,omitempty" db:"description"`
	IsSystem    bool      `json:"is_system_role" db:"is_system_role"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	SortOrder   int       `json:"sort_order" db:"sort_order"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Grant is a role_permissions row. A (RoleID, PermissionID) pair is unique.
type Grant struct {
	RoleID       id.RoleID       `json:"role_id" db:"role_id"`
	PermissionID id.PermissionID `json:"permission_id" db:"permission_id"`
	GrantedAt    time.Time       `json:"granted_at" db:"granted_at"`
	GrantedBy    string          `json:"granted_by,omitempty" db:"granted_by"`
}

// ListFilter contains filters for listing roles.
type ListFilter struct {
	ActiveOnly bool   `json:"active_only,omitempty"`
	IsSystem   *bool  `json:"is_system,omitempty"`
	Search     string `json:"search,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}
