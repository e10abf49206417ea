package warrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/override"
	"github.com/xraph/warrant/role"
	"github.com/xraph/warrant/store"
	"github.com/xraph/warrant/userrole"
)

// CreateRoleInput describes a new role and its initial grants.
type CreateRoleInput struct {
	Name          string            `json:"name"`
	DisplayName   string            `json:"display_name,omitempty"`
	Description   string            `json:"description,omitempty"`
	IsSystem      bool              `json:"is_system_role,omitempty"`
	SortOrder     int               `json:"sort_order,omitempty"`
	PermissionIDs []id.PermissionID `json:"permission_ids,omitempty"`
}

// UpdateRoleInput holds the optional changes to a role. Nil fields are
// left unchanged. A non-nil PermissionIDs (even empty) replaces the whole
// grant set.
type UpdateRoleInput struct {
	DisplayName   *string           `json:"display_name,omitempty"`
	Description   *string           `json:"description,omitempty"`
	IsActive      *bool             `json:"is_active,omitempty"`
	SortOrder     *int              `json:"sort_order,omitempty"`
	PermissionIDs []id.PermissionID `json:"permission_ids,omitempty"`
}

// ──────────────────────────────────────────────────
// Roles
// ──────────────────────────────────────────────────

// CreateRole creates an active role together with its grants in one
// atomic step.
func (e *Engine) CreateRole(ctx context.Context, in *CreateRoleInput) (*role.Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidArgument)
	}
	pids, err := e.validatePermissions(ctx, in.PermissionIDs)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	r := &role.Role{
		ID:          id.NewRoleID(),
		Name:        name,
		DisplayName: orDefault(in.DisplayName, name),
		Description: in.Description,
		IsSystem:    in.IsSystem,
		IsActive:    true,
		SortOrder:   in.SortOrder,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.CreateRole(ctx, r, e.grants(ctx, r.ID, pids, now)); err != nil {
		return nil, fmt.Errorf("create role %q: %w", name, classifyErr(err))
	}

	e.logger.Info("warrant: role created",
		slog.String("role_id", r.ID.String()),
		slog.String("name", r.Name),
		slog.Int("permissions", len(pids)),
	)
	if e.plugins != nil {
		e.plugins.EmitRoleCreated(ctx, r)
	}
	return r, nil
}

// UpdateRole applies in to a role. When in.PermissionIDs is non-nil the
// role's grants are replaced atomically together with its fields.
func (e *Engine) UpdateRole(ctx context.Context, roleID id.RoleID, in *UpdateRoleInput) (*role.Role, error) {
	r, err := e.store.GetRole(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("role %s: %w", roleID, classifyErr(err))
	}
	if err := e.checkSystemRole(ctx, r); err != nil {
		return nil, err
	}

	if in.DisplayName != nil {
		r.DisplayName = *in.DisplayName
	}
	if in.Description != nil {
		r.Description = *in.Description
	}
	if in.IsActive != nil {
		r.IsActive = *in.IsActive
	}
	if in.SortOrder != nil {
		r.SortOrder = *in.SortOrder
	}
	now := e.now().UTC()
	r.UpdatedAt = now

	if in.PermissionIDs == nil {
		err = e.store.UpdateRole(ctx, r)
	} else {
		var pids []id.PermissionID
		pids, err = e.validatePermissions(ctx, in.PermissionIDs)
		if err != nil {
			return nil, err
		}
		err = e.store.UpdateRoleWithGrants(ctx, r, e.grants(ctx, r.ID, pids, now))
	}
	if err != nil {
		return nil, fmt.Errorf("update role %s: %w", roleID, classifyErr(err))
	}

	e.invalidateAll(ctx)
	e.logger.Info("warrant: role updated", slog.String("role_id", r.ID.String()))
	if e.plugins != nil {
		e.plugins.EmitRoleUpdated(ctx, r)
		if in.PermissionIDs != nil {
			e.plugins.EmitRolePermissionsChanged(ctx, r.ID)
		}
	}
	return r, nil
}

// DeleteRole removes a role, its grants and every assignment of it.
func (e *Engine) DeleteRole(ctx context.Context, roleID id.RoleID) error {
	r, err := e.store.GetRole(ctx, roleID)
	if err != nil {
		return fmt.Errorf("role %s: %w", roleID, classifyErr(err))
	}
	if err := e.checkSystemRole(ctx, r); err != nil {
		return err
	}
	if err := e.store.DeleteRole(ctx, roleID); err != nil {
		return fmt.Errorf("delete role %s: %w", roleID, classifyErr(err))
	}

	e.invalidateAll(ctx)
	e.logger.Info("warrant: role deleted",
		slog.String("role_id", roleID.String()),
		slog.String("name", r.Name),
	)
	if e.plugins != nil {
		e.plugins.EmitRoleDeleted(ctx, roleID)
	}
	return nil
}

// GetRole returns a role by ID.
func (e *Engine) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	r, err := e.store.GetRole(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("role %s: %w", roleID, classifyErr(err))
	}
	return r, nil
}

// GetRoleWithPermissions returns a role with its granted permissions and
// their module and action details, ordered by permission key. A grant
// whose catalog rows no longer resolve is reported as ErrNotFound.
func (e *Engine) GetRoleWithPermissions(ctx context.Context, roleID id.RoleID) (*RoleWithPermissions, error) {
	r, err := e.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	pids, err := e.store.ListRolePermissions(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("role %s permissions: %w", roleID, classifyErr(err))
	}

	out := &RoleWithPermissions{Role: r, Permissions: make([]*PermissionDetail, 0, len(pids))}
	for _, pid := range pids {
		d, err := e.permissionDetail(ctx, pid)
		if err != nil {
			return nil, fmt.Errorf("role %s: %w", roleID, err)
		}
		out.Permissions = append(out.Permissions, d)
	}
	sortDetails(out.Permissions)
	return out, nil
}

// ListRoles returns roles matching the filter.
func (e *Engine) ListRoles(ctx context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	roles, err := e.store.ListRoles(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", classifyErr(err))
	}
	return roles, nil
}

// CountRoles returns the number of roles matching the filter.
func (e *Engine) CountRoles(ctx context.Context, filter *role.ListFilter) (int64, error) {
	n, err := e.store.CountRoles(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count roles: %w", classifyErr(err))
	}
	return n, nil
}

// GrantRolePermission adds one permission to a role. Granting a permission
// the role already holds is a no-op.
func (e *Engine) GrantRolePermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error {
	r, err := e.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if err := e.checkSystemRole(ctx, r); err != nil {
		return err
	}
	if _, err := e.validatePermissions(ctx, []id.PermissionID{permID}); err != nil {
		return err
	}
	g := &role.Grant{
		RoleID:       roleID,
		PermissionID: permID,
		GrantedAt:    e.now().UTC(),
		GrantedBy:    ActorFromContext(ctx),
	}
	if err := e.store.GrantPermission(ctx, g); err != nil {
		return fmt.Errorf("grant %s to role %s: %w", permID, roleID, classifyErr(err))
	}

	e.invalidateAll(ctx)
	e.logger.Info("warrant: role permission granted",
		slog.String("role_id", roleID.String()),
		slog.String("permission_id", permID.String()),
	)
	if e.plugins != nil {
		e.plugins.EmitRolePermissionsChanged(ctx, roleID)
	}
	return nil
}

// RevokeRolePermission removes one permission from a role.
func (e *Engine) RevokeRolePermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error {
	r, err := e.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if err := e.checkSystemRole(ctx, r); err != nil {
		return err
	}
	if err := e.store.RevokePermission(ctx, roleID, permID); err != nil {
		return fmt.Errorf("revoke %s from role %s: %w", permID, roleID, classifyErr(err))
	}

	e.invalidateAll(ctx)
	e.logger.Info("warrant: role permission revoked",
		slog.String("role_id", roleID.String()),
		slog.String("permission_id", permID.String()),
	)
	if e.plugins != nil {
		e.plugins.EmitRolePermissionsChanged(ctx, roleID)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Assignments
// ──────────────────────────────────────────────────

// AssignRole gives userID the role. Assigning a role the user already
// holds is idempotent; with isPrimary it becomes the user's only primary
// role, without it the existing primary flag is kept.
func (e *Engine) AssignRole(ctx context.Context, userID string, roleID id.RoleID, isPrimary bool) (*userrole.UserRole, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}
	if _, err := e.activeRole(ctx, roleID); err != nil {
		return nil, err
	}

	ur := &userrole.UserRole{
		ID:         id.NewUserRoleID(),
		UserID:     userID,
		RoleID:     roleID,
		IsPrimary:  isPrimary,
		AssignedAt: e.now().UTC(),
		AssignedBy: ActorFromContext(ctx),
	}
	if err := e.store.AssignRole(ctx, ur); err != nil {
		return nil, fmt.Errorf("assign role %s to %q: %w", roleID, userID, classifyErr(err))
	}

	e.invalidateUser(ctx, userID)
	e.logger.Info("warrant: role assigned",
		slog.String("user_id", userID),
		slog.String("role_id", roleID.String()),
		slog.Bool("primary", ur.IsPrimary),
	)
	if e.plugins != nil {
		e.plugins.EmitRoleAssigned(ctx, ur)
	}
	return ur, nil
}

// RevokeRole removes the user's assignment of a role. Revoking the primary
// role leaves the user without one.
func (e *Engine) RevokeRole(ctx context.Context, userID string, roleID id.RoleID) error {
	if err := e.store.RevokeRole(ctx, userID, roleID); err != nil {
		return fmt.Errorf("revoke role %s from %q: %w", roleID, userID, classifyErr(err))
	}

	e.invalidateUser(ctx, userID)
	e.logger.Info("warrant: role revoked",
		slog.String("user_id", userID),
		slog.String("role_id", roleID.String()),
	)
	if e.plugins != nil {
		e.plugins.EmitRoleRevoked(ctx, userID, roleID)
	}
	return nil
}

// ReplaceUserRoles atomically swaps the user's whole role set. When primary
// is given it must be one of roleIDs. Duplicate role IDs collapse.
func (e *Engine) ReplaceUserRoles(ctx context.Context, userID string, roleIDs []id.RoleID, primary *id.RoleID) ([]*userrole.UserRole, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}

	distinct := make([]id.RoleID, 0, len(roleIDs))
	seen := make(map[string]struct{}, len(roleIDs))
	for _, rid := range roleIDs {
		if _, dup := seen[rid.String()]; dup {
			continue
		}
		seen[rid.String()] = struct{}{}
		distinct = append(distinct, rid)
	}
	if primary != nil {
		if _, ok := seen[primary.String()]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPrimary, primary)
		}
	}
	for _, rid := range distinct {
		if _, err := e.activeRole(ctx, rid); err != nil {
			return nil, err
		}
	}

	now := e.now().UTC()
	actor := ActorFromContext(ctx)
	urs := make([]*userrole.UserRole, 0, len(distinct))
	for _, rid := range distinct {
		urs = append(urs, &userrole.UserRole{
			ID:         id.NewUserRoleID(),
			UserID:     userID,
			RoleID:     rid,
			IsPrimary:  primary != nil && rid.String() == primary.String(),
			AssignedAt: now,
			AssignedBy: actor,
		})
	}
	if err := e.store.ReplaceUserRoles(ctx, userID, urs); err != nil {
		return nil, fmt.Errorf("replace roles of %q: %w", userID, classifyErr(err))
	}

	e.invalidateUser(ctx, userID)
	e.logger.Info("warrant: user roles replaced",
		slog.String("user_id", userID),
		slog.Int("roles", len(urs)),
	)
	if e.plugins != nil {
		e.plugins.EmitUserRolesReplaced(ctx, userID, urs)
	}
	return urs, nil
}

// ListUserRoles returns the user's assignments.
func (e *Engine) ListUserRoles(ctx context.Context, userID string) ([]*userrole.UserRole, error) {
	urs, err := e.store.ListUserRoles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list roles of %q: %w", userID, classifyErr(err))
	}
	return urs, nil
}

// PrimaryRole returns the user's primary assignment, or ErrNotFound.
func (e *Engine) PrimaryRole(ctx context.Context, userID string) (*userrole.UserRole, error) {
	ur, err := e.store.GetPrimaryRole(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("primary role of %q: %w", userID, classifyErr(err))
	}
	return ur, nil
}

// ListRoleMembers returns every assignment of a role.
func (e *Engine) ListRoleMembers(ctx context.Context, roleID id.RoleID) ([]*userrole.UserRole, error) {
	urs, err := e.store.ListRoleMembers(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("members of role %s: %w", roleID, classifyErr(err))
	}
	return urs, nil
}

// ──────────────────────────────────────────────────
// Overrides
// ──────────────────────────────────────────────────

// SetPermissionOverride force-grants or force-denies a permission for a
// user, replacing any prior override of the pair. A nil expiresAt never
// expires.
func (e *Engine) SetPermissionOverride(ctx context.Context, userID string, permID id.PermissionID, isGranted bool, expiresAt *time.Time) (*override.Override, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}
	if _, err := e.store.GetPermission(ctx, permID); err != nil {
		return nil, fmt.Errorf("permission %s: %w", permID, classifyErr(err))
	}

	o := &override.Override{
		ID:           id.NewOverrideID(),
		UserID:       userID,
		PermissionID: permID,
		IsGranted:    isGranted,
		GrantedAt:    e.now().UTC(),
		GrantedBy:    ActorFromContext(ctx),
	}
	if expiresAt != nil {
		t := expiresAt.UTC()
		o.ExpiresAt = &t
	}
	if err := e.store.SetOverride(ctx, o); err != nil {
		return nil, fmt.Errorf("override %s for %q: %w", permID, userID, classifyErr(err))
	}

	e.invalidateUser(ctx, userID)
	e.logger.Info("warrant: permission override set",
		slog.String("user_id", userID),
		slog.String("permission_id", permID.String()),
		slog.Bool("granted", isGranted),
	)
	if e.plugins != nil {
		e.plugins.EmitOverrideSet(ctx, o)
	}
	return o, nil
}

// ClearPermissionOverride removes the user's override of a permission.
func (e *Engine) ClearPermissionOverride(ctx context.Context, userID string, permID id.PermissionID) error {
	if err := e.store.DeleteOverride(ctx, userID, permID); err != nil {
		return fmt.Errorf("override %s for %q: %w", permID, userID, classifyErr(err))
	}

	e.invalidateUser(ctx, userID)
	e.logger.Info("warrant: permission override cleared",
		slog.String("user_id", userID),
		slog.String("permission_id", permID.String()),
	)
	if e.plugins != nil {
		e.plugins.EmitOverrideCleared(ctx, userID, permID)
	}
	return nil
}

// ListOverrides returns every override of a user, expired ones included.
func (e *Engine) ListOverrides(ctx context.Context, userID string) ([]*override.Override, error) {
	list, err := e.store.ListOverrides(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("overrides of %q: %w", userID, classifyErr(err))
	}
	return list, nil
}

// PurgeExpiredOverrides deletes overrides that expired before the given
// instant. Resolution already ignores them.
func (e *Engine) PurgeExpiredOverrides(ctx context.Context, before time.Time) (int64, error) {
	n, err := e.store.DeleteExpiredOverrides(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("purge expired overrides: %w", classifyErr(err))
	}
	if n > 0 {
		e.logger.Info("warrant: expired overrides purged", slog.Int64("count", n))
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// validatePermissions dedupes pids and requires each to exist and be active.
func (e *Engine) validatePermissions(ctx context.Context, pids []id.PermissionID) ([]id.PermissionID, error) {
	out := make([]id.PermissionID, 0, len(pids))
	seen := make(map[string]struct{}, len(pids))
	for _, pid := range pids {
		if _, dup := seen[pid.String()]; dup {
			continue
		}
		seen[pid.String()] = struct{}{}

		p, err := e.store.GetPermission(ctx, pid)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrInvalidPermission, pid)
		}
		if err != nil {
			return nil, fmt.Errorf("permission %s: %w", pid, classifyErr(err))
		}
		if !p.IsActive {
			return nil, fmt.Errorf("%w: %s (%s) is inactive", ErrInvalidPermission, pid, p.Key)
		}
		out = append(out, pid)
	}
	return out, nil
}

func (e *Engine) grants(ctx context.Context, roleID id.RoleID, pids []id.PermissionID, at time.Time) []*role.Grant {
	actor := ActorFromContext(ctx)
	gs := make([]*role.Grant, 0, len(pids))
	for _, pid := range pids {
		gs = append(gs, &role.Grant{RoleID: roleID, PermissionID: pid, GrantedAt: at, GrantedBy: actor})
	}
	return gs
}

// activeRole loads a role that may be assigned. Missing and inactive roles
// are both ErrNotFound.
func (e *Engine) activeRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	r, err := e.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if !r.IsActive {
		return nil, fmt.Errorf("%w: role %s is inactive", ErrNotFound, roleID)
	}
	return r, nil
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}
