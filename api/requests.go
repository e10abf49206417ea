package api

import "github.com/xraph/warrant"

// ──────────────────────────────────────────────────
// Catalog requests
// ──────────────────────────────────────────────────

// CreateCatalogEntryRequest is the body for creating a module or action.
type CreateCatalogEntryRequest struct {
	Name        string `json:"name" description:"Unique name (must not contain ':')"`
	DisplayName string `json:"display_name,omitempty" description:"Human-readable name"`
	SortOrder   int    `json:"sort_order,omitempty" description:"Display order"`
}

// UpdateCatalogEntryRequest is the body for updating a module or action.
type UpdateCatalogEntryRequest struct {
	DisplayName *string `json:"display_name,omitempty" description:"Human-readable name"`
	IsActive    *bool   `json:"is_active,omitempty" description:"Active flag"`
	SortOrder   *int    `json:"sort_order,omitempty" description:"Display order"`
}

// ListCatalogRequest holds query parameters for listing catalog entries.
type ListCatalogRequest struct {
	ActiveOnly bool   `query:"active_only" description:"Only active entries"`
	ModuleID   string `query:"module_id" description:"Filter permissions by module ID"`
	Limit      int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset     int    `query:"offset" description:"Results to skip"`
}

// CreatePermissionRequest is the body for creating a permission.
type CreatePermissionRequest struct {
	ModuleID    string `json:"module_id" description:"Module ID"`
	ActionID    string `json:"action_id" description:"Action ID"`
	DisplayName string `json:"display_name,omitempty" description:"Human-readable name"`
}

// UpdatePermissionRequest is the body for updating a permission.
type UpdatePermissionRequest struct {
	DisplayName *string `json:"display_name,omitempty" description:"Human-readable name"`
	IsActive    *bool   `json:"is_active,omitempty" description:"Active flag"`
}

// GetPermissionRequest is the path parameter for getting a permission.
type GetPermissionRequest struct {
	PermissionID string `path:"permissionId" description:"Permission ID"`
}

// ──────────────────────────────────────────────────
// Role requests
// ──────────────────────────────────────────────────

// CreateRoleRequest is the body for creating a role.
type CreateRoleRequest struct {
	Name          string   `json:"name" description:"Unique role name"`
	DisplayName   string   `json:"display_name,omitempty" description:"Human-readable name"`
	Description   string   `json:"description,omitempty" description:"Human-readable description"`
	IsSystem      bool     `json:"is_system_role,omitempty" description:"System role flag"`
	SortOrder     int      `json:"sort_order,omitempty" description:"Display order"`
	PermissionIDs []string `json:"permission_ids,omitempty" description:"Granted permission IDs"`
}

// UpdateRoleRequest is the body for updating a role. A present
// permission_ids replaces the whole grant set.
type UpdateRoleRequest struct {
	DisplayName   *string  `json:"display_name,omitempty" description:"Human-readable name"`
	Description   *string  `json:"description,omitempty" description:"Human-readable description"`
	IsActive      *bool    `json:"is_active,omitempty" description:"Active flag"`
	SortOrder     *int     `json:"sort_order,omitempty" description:"Display order"`
	PermissionIDs []string `json:"permission_ids,omitempty" description:"Replacement permission IDs"`
}

// GetRoleRequest is the path parameter for getting a role.
type GetRoleRequest struct {
	RoleID string `path:"roleId" description:"Role ID"`
}

// ListRolesRequest holds query parameters for listing roles.
type ListRolesRequest struct {
	ActiveOnly bool   `query:"active_only" description:"Only active roles"`
	Search     string `query:"search" description:"Search by name"`
	Limit      int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset     int    `query:"offset" description:"Results to skip"`
}

// GrantPermissionRequest is the body for granting a permission to a role.
type GrantPermissionRequest struct {
	PermissionID string `json:"permission_id" description:"Permission ID to grant"`
}

// ──────────────────────────────────────────────────
// User requests
// ──────────────────────────────────────────────────

// UserRequest is the path parameter naming a user.
type UserRequest struct {
	UserID string `path:"userId" description:"User ID"`
}

// AssignRoleRequest is the body for assigning a role to a user.
type AssignRoleRequest struct {
	RoleID    string `json:"role_id" description:"Role ID to assign"`
	IsPrimary bool   `json:"is_primary,omitempty" description:"Make this the user's primary role"`
}

// ReplaceUserRolesRequest is the body for replacing a user's role set.
type ReplaceUserRolesRequest struct {
	RoleIDs       []string `json:"role_ids" description:"Complete set of role IDs"`
	PrimaryRoleID string   `json:"primary_role_id,omitempty" description:"Primary role (must be in role_ids)"`
}

// SetOverrideRequest is the body for setting a permission override.
type SetOverrideRequest struct {
	IsGranted bool   `json:"is_granted" description:"Grant (true) or deny (false)"`
	ExpiresAt string `json:"expires_at,omitempty" description:"Expiration time (RFC3339)"`
}

// CheckPermissionRequest holds the path and query of a permission check.
type CheckPermissionRequest struct {
	UserID     string `path:"userId" description:"User ID"`
	Permission string `query:"permission" description:"Permission key (module:action)"`
}

// BatchCheckRequest is the body for checking several permissions at once.
type BatchCheckRequest struct {
	Permissions []string `json:"permissions" description:"Permission keys (max 100)"`
}

func (r *UpdateCatalogEntryRequest) toUpdate() *warrant.CatalogUpdate {
	return &warrant.CatalogUpdate{
		DisplayName: r.DisplayName,
		IsActive:    r.IsActive,
		SortOrder:   r.SortOrder,
	}
}
