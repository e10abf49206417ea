package postgres

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/warrant/action"
	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/module"
	"github.com/xraph/warrant/override"
	"github.com/xraph/warrant/permission"
	"github.com/xraph/warrant/role"
	"github.com/xraph/warrant/userrole"
)

// ──────────────────────────────────────────────────
// Module model
// ──────────────────────────────────────────────────

type moduleModel struct {
	grove.BaseModel `grove:"table:warrant_modules"`
	ID              string    `grove:"id,pk"`
	Name            string    `grove:"name,notnull"`
	DisplayName     string    `grove:"display_name,notnull"`
	IsActive        bool      `grove:"is_active,notnull"`
	SortOrder       int       `grove:"sort_order,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func moduleToModel(m *module.Module) *moduleModel {
	return &moduleModel{
		ID:          m.ID.String(),
		Name:        m.Name,
		DisplayName: m.DisplayName,
		IsActive:    m.IsActive,
		SortOrder:   m.SortOrder,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func moduleFromModel(m *moduleModel) *module.Module {
	mid, _ := id.ParseModuleID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &module.Module{
		ID:          mid,
		Name:        m.Name,
		DisplayName: m.DisplayName,
		IsActive:    m.IsActive,
		SortOrder:   m.SortOrder,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Action model
// ──────────────────────────────────────────────────

type actionModel struct {
	grove.BaseModel `grove:"table:warrant_actions"`
	ID              string    `grove:"id,pk"`
	Name            string    `grove:"name,notnull"`
	DisplayName     string    `grove:"display_name,notnull"`
	IsActive        bool      `grove:"is_active,notnull"`
	SortOrder       int       `grove:"sort_order,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func actionToModel(a *action.Action) *actionModel {
	return &actionModel{
		ID:          a.ID.String(),
		Name:        a.Name,
		DisplayName: a.DisplayName,
		IsActive:    a.IsActive,
		SortOrder:   a.SortOrder,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func actionFromModel(m *actionModel) *action.Action {
	aid, _ := id.ParseActionID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &action.Action{
		ID:          aid,
		Name:        m.Name,
		DisplayName: m.DisplayName,
		IsActive:    m.IsActive,
		SortOrder:   m.SortOrder,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Permission model
// ──────────────────────────────────────────────────

type permissionModel struct {
	grove.BaseModel `grove:"table:warrant_permissions"`
	ID              string    `grove:"id,pk"`
	ModuleID        string    `grove:"module_id,notnull"`
	ActionID        string    `grove:"action_id,notnull"`
	Key             string    `grove:"permission_key,notnull"`
	DisplayName     string    `grove:"display_name,notnull"`
	IsActive        bool      `grove:"is_active,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func permissionToModel(p *permission.Permission) *permissionModel {
	return &permissionModel{
		ID:          p.ID.String(),
		ModuleID:    p.ModuleID.String(),
		ActionID:    p.ActionID.String(),
		Key:         p.Key,
		DisplayName: p.DisplayName,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func permissionFromModel(m *permissionModel) *permission.Permission {
	pid, _ := id.ParsePermissionID(m.ID)   //nolint:errcheck // stored IDs are always valid
	mid, _ := id.ParseModuleID(m.ModuleID) //nolint:errcheck // stored IDs are always valid
	aid, _ := id.ParseActionID(m.ActionID) //nolint:errcheck // stored IDs are always valid
	return &permission.Permission{
		ID:          pid,
		ModuleID:    mid,
		ActionID:    aid,
		Key:         m.Key,
		DisplayName: m.DisplayName,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Role model
// ──────────────────────────────────────────────────

type roleModel struct {
	grove.BaseModel `grove:"table:warrant_roles"`
	ID              string    `grove:"id,pk"`
	Name            string    `grove:"name,notnull"`
	DisplayName     string    `grove:"display_name,notnull"`
	Description     string    `grove:"description"`
	IsSystem        bool      `grove:"is_system_role,notnull"`
	IsActive        bool      `grove:"is_active,notnull"`
	SortOrder       int       `grove:"sort_order,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func roleToModel(r *role.Role) *roleModel {
	return &roleModel{
		ID:          r.ID.String(),
		Name:        r.Name,
		DisplayName: r.DisplayName,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		IsActive:    r.IsActive,
		SortOrder:   r.SortOrder,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func roleFromModel(m *roleModel) *role.Role {
	rid, _ := id.ParseRoleID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &role.Role{
		ID:          rid,
		Name:        m.Name,
		DisplayName: m.DisplayName,
		Description: m.Description,
		IsSystem:    m.IsSystem,
		IsActive:    m.IsActive,
		SortOrder:   m.SortOrder,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Role-Permission join model
// ──────────────────────────────────────────────────

type rolePermissionModel struct {
	grove.BaseModel `grove:"table:warrant_role_permissions"`
	RoleID          string    `grove:"role_id,pk"`
	PermissionID    string    `grove:"permission_id,pk"`
	GrantedAt       time.Time `grove:"granted_at,notnull"`
	GrantedBy       string    `grove:"granted_by,notnull"`
}

func grantToModel(g *role.Grant) rolePermissionModel {
	return rolePermissionModel{
		RoleID:       g.RoleID.String(),
		PermissionID: g.PermissionID.String(),
		GrantedAt:    g.GrantedAt,
		GrantedBy:    g.GrantedBy,
	}
}

func grantFromModel(m *rolePermissionModel) *role.Grant {
	rid, _ := id.ParseRoleID(m.RoleID)             //nolint:errcheck // stored IDs are always valid
	pid, _ := id.ParsePermissionID(m.PermissionID) //nolint:errcheck // stored IDs are always valid
	return &role.Grant{
		RoleID:       rid,
		PermissionID: pid,
		GrantedAt:    m.GrantedAt,
		GrantedBy:    m.GrantedBy,
	}
}

// ──────────────────────────────────────────────────
// UserRole model
// ──────────────────────────────────────────────────

type userRoleModel struct {
	grove.BaseModel `grove:"table:warrant_user_roles"`
	ID              string    `grove:"id,pk"`
	UserID          string    `grove:"user_id,notnull"`
	RoleID          string    `grove:"role_id,notnull"`
	IsPrimary       bool      `grove:"is_primary,notnull"`
	AssignedAt      time.Time `grove:"assigned_at,notnull"`
	AssignedBy      string    `grove:"assigned_by,notnull"`
}

func userRoleToModel(ur *userrole.UserRole) userRoleModel {
	return userRoleModel{
		ID:         ur.ID.String(),
		UserID:     ur.UserID,
		RoleID:     ur.RoleID.String(),
		IsPrimary:  ur.IsPrimary,
		AssignedAt: ur.AssignedAt,
		AssignedBy: ur.AssignedBy,
	}
}

func userRoleFromModel(m *userRoleModel) *userrole.UserRole {
	uid, _ := id.ParseUserRoleID(m.ID) //nolint:errcheck // stored IDs are always valid
	rid, _ := id.ParseRoleID(m.RoleID) //nolint:errcheck // stored IDs are always valid
	return &userrole.UserRole{
		ID:         uid,
		UserID:     m.UserID,
		RoleID:     rid,
		IsPrimary:  m.IsPrimary,
		AssignedAt: m.AssignedAt,
		AssignedBy: m.AssignedBy,
	}
}

// ──────────────────────────────────────────────────
// Override model
// ──────────────────────────────────────────────────

type overrideModel struct {
	grove.BaseModel `grove:"table:warrant_user_permissions"`
	ID              string     `grove:"id,pk"`
	UserID          string     `grove:"user_id,notnull"`
	PermissionID    string     `grove:"permission_id,notnull"`
	IsGranted       bool       `grove:"is_granted,notnull"`
	GrantedAt       time.Time  `grove:"granted_at,notnull"`
	GrantedBy       string     `grove:"granted_by,notnull"`
	ExpiresAt       *time.Time `grove:"expires_at"`
}

func overrideToModel(o *override.Override) *overrideModel {
	return &overrideModel{
		ID:           o.ID.String(),
		UserID:       o.UserID,
		PermissionID: o.PermissionID.String(),
		IsGranted:    o.IsGranted,
		GrantedAt:    o.GrantedAt,
		GrantedBy:    o.GrantedBy,
		ExpiresAt:    o.ExpiresAt,
	}
}

func overrideFromModel(m *overrideModel) *override.Override {
	oid, _ := id.ParseOverrideID(m.ID)             //nolint:errcheck // stored IDs are always valid
	pid, _ := id.ParsePermissionID(m.PermissionID) //nolint:errcheck // stored IDs are always valid
	return &override.Override{
		ID:           oid,
		UserID:       m.UserID,
		PermissionID: pid,
		IsGranted:    m.IsGranted,
		GrantedAt:    m.GrantedAt,
		GrantedBy:    m.GrantedBy,
		ExpiresAt:    m.ExpiresAt,
	}
}
