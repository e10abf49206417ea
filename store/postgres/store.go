// Package postgres provides a PostgreSQL implementation of the Warrant
// composite store using grove ORM with Go-based migrations.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate" // registers the migration executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/warrant/action"
	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/module"
	"github.com/xraph/warrant/override"
	"github.com/xraph/warrant/permission"
	"github.com/xraph/warrant/role"
	"github.com/xraph/warrant/store"
	"github.com/xraph/warrant/userrole"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// SQLSTATE codes mapped to store sentinels.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Store is a PostgreSQL implementation of the composite Warrant store.
type Store struct {
	db   *grove.DB
	pgdb *pgdriver.PgDB
}

// New creates a new PostgreSQL store.
func New(db *grove.DB) *Store {
	return &Store{
		db:   db,
		pgdb: pgdriver.Unwrap(db),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pgdb)
	if err != nil {
		return fmt.Errorf("warrant: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("warrant: migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ──────────────────────────────────────────────────
// Module operations
// ──────────────────────────────────────────────────

func (s *Store) CreateModule(ctx context.Context, m *module.Module) error {
	_, err := s.pgdb.NewInsert(moduleToModel(m)).Exec(ctx)
	if err != nil {
		return writeErr("create module", fmt.Sprintf("module %q", m.Name), err)
	}
	return nil
}

func (s *Store) GetModule(ctx context.Context, moduleID id.ModuleID) (*module.Module, error) {
	m := new(moduleModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", moduleID.String()).Scan(ctx)
	if err != nil {
		return nil, readErr("get module", fmt.Sprintf("module %s", moduleID), err)
	}
	return moduleFromModel(m), nil
}

func (s *Store) GetModuleByName(ctx context.Context, name string) (*module.Module, error) {
	m := new(moduleModel)
	err := s.pgdb.NewSelect(m).Where("name = ?", name).Scan(ctx)
	if err != nil {
		return nil, readErr("get module by name", fmt.Sprintf("module %q", name), err)
	}
	return moduleFromModel(m), nil
}

func (s *Store) UpdateModule(ctx context.Context, m *module.Module) error {
	res, err := s.pgdb.NewUpdate(moduleToModel(m)).WherePK().Exec(ctx)
	if err != nil {
		return writeErr("update module", fmt.Sprintf("module %q", m.Name), err)
	}
	return requireRow(res, "update module", fmt.Sprintf("module %s", m.ID))
}

func (s *Store) ListModules(ctx context.Context, filter *module.ListFilter) ([]*module.Module, error) {
	var models []moduleModel
	q := s.pgdb.NewSelect(&models).OrderExpr("sort_order ASC, name ASC")
	if filter != nil {
		if filter.ActiveOnly {
			q = q.Where("is_active = ?", true)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("warrant: list modules: %w", err)
	}
	result := make([]*module.Module, len(models))
	for i := range models {
		result[i] = moduleFromModel(&models[i])
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Action operations
// ──────────────────────────────────────────────────

func (s *Store) CreateAction(ctx context.Context, a *action.Action) error {
	_, err := s.pgdb.NewInsert(actionToModel(a)).Exec(ctx)
	if err != nil {
		return writeErr("create action", fmt.Sprintf("action %q", a.Name), err)
	}
	return nil
}

func (s *Store) GetAction(ctx context.Context, actionID id.ActionID) (*action.Action, error) {
	m := new(actionModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", actionID.String()).Scan(ctx)
	if err != nil {
		return nil, readErr("get action", fmt.Sprintf("action %s", actionID), err)
	}
	return actionFromModel(m), nil
}

func (s *Store) GetActionByName(ctx context.Context, name string) (*action.Action, error) {
	m := new(actionModel)
	err := s.pgdb.NewSelect(m).Where("name = ?", name).Scan(ctx)
	if err != nil {
		return nil, readErr("get action by name", fmt.Sprintf("action %q", name), err)
	}
	return actionFromModel(m), nil
}

func (s *Store) UpdateAction(ctx context.Context, a *action.Action) error {
	res, err := s.pgdb.NewUpdate(actionToModel(a)).WherePK().Exec(ctx)
	if err != nil {
		return writeErr("update action", fmt.Sprintf("action %q", a.Name), err)
	}
	return requireRow(res, "update action", fmt.Sprintf("action %s", a.ID))
}

func (s *Store) ListActions(ctx context.Context, filter *action.ListFilter) ([]*action.Action, error) {
	var models []actionModel
	q := s.pgdb.NewSelect(&models).OrderExpr("sort_order ASC, name ASC")
	if filter != nil {
		if filter.ActiveOnly {
			q = q.Where("is_active = ?", true)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("warrant: list actions: %w", err)
	}
	result := make([]*action.Action, len(models))
	for i := range models {
		result[i] = actionFromModel(&models[i])
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Permission operations
// ──────────────────────────────────────────────────

func (s *Store) CreatePermission(ctx context.Context, p *permission.Permission) error {
	_, err := s.pgdb.NewInsert(permissionToModel(p)).Exec(ctx)
	if err != nil {
		return writeErr("create permission", fmt.Sprintf("permission %q", p.Key), err)
	}
	return nil
}

func (s *Store) GetPermission(ctx context.Context, permID id.PermissionID) (*permission.Permission, error) {
	m := new(permissionModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", permID.String()).Scan(ctx)
	if err != nil {
		return nil, readErr("get permission", fmt.Sprintf("permission %s", permID), err)
	}
	return permissionFromModel(m), nil
}

func (s *Store) GetPermissionByKey(ctx context.Context, key string) (*permission.Permission, error) {
	m := new(permissionModel)
	err := s.pgdb.NewSelect(m).Where("permission_key = ?", key).Scan(ctx)
	if err != nil {
		return nil, readErr("get permission by key", fmt.Sprintf("permission %q", key), err)
	}
	return permissionFromModel(m), nil
}

func (s *Store) UpdatePermission(ctx context.Context, p *permission.Permission) error {
	res, err := s.pgdb.NewUpdate(permissionToModel(p)).WherePK().Exec(ctx)
	if err != nil {
		return writeErr("update permission", fmt.Sprintf("permission %q", p.Key), err)
	}
	return requireRow(res, "update permission", fmt.Sprintf("permission %s", p.ID))
}

func (s *Store) ListPermissions(ctx context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	var models []permissionModel
	q := s.pgdb.NewSelect(&models).OrderExpr("permission_key ASC")
	if filter != nil {
		if filter.ActiveOnly {
			q = q.Where("is_active = ?", true)
		}
		if filter.ModuleID != nil {
			q = q.Where("module_id = ?", filter.ModuleID.String())
		}
		if filter.ActionID != nil {
			q = q.Where("action_id = ?", filter.ActionID.String())
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("warrant: list permissions: %w", err)
	}
	result := make([]*permission.Permission, len(models))
	for i := range models {
		result[i] = permissionFromModel(&models[i])
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Role operations
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(ctx context.Context, r *role.Role, grants []*role.Grant) error {
	tx, err := s.pgdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("warrant: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	if _, err := tx.NewInsert(roleToModel(r)).Exec(ctx); err != nil {
		return writeErr("create role", fmt.Sprintf("role %q", r.Name), err)
	}
	if len(grants) > 0 {
		models := grantModels(grants)
		if _, err := tx.NewInsert(&models).Exec(ctx); err != nil {
			return fmt.Errorf("warrant: create role grants: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("warrant: commit tx: %w", err)
	}
	return nil
}

func (s *Store) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	m := new(roleModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", roleID.String()).Scan(ctx)
	if err != nil {
		return nil, readErr("get role", fmt.Sprintf("role %s", roleID), err)
	}
	return roleFromModel(m), nil
}

func (s *Store) GetRoleByName(ctx context.Context, name string) (*role.Role, error) {
	m := new(roleModel)
	err := s.pgdb.NewSelect(m).Where("name = ?", name).Scan(ctx)
	if err != nil {
		return nil, readErr("get role by name", fmt.Sprintf("role %q", name), err)
	}
	return roleFromModel(m), nil
}

func (s *Store) UpdateRole(ctx context.Context, r *role.Role) error {
	res, err := s.pgdb.NewUpdate(roleToModel(r)).WherePK().Exec(ctx)
	if err != nil {
		return writeErr("update role", fmt.Sprintf("role %q", r.Name), err)
	}
	return requireRow(res, "update role", fmt.Sprintf("role %s", r.ID))
}

func (s *Store) UpdateRoleWithGrants(ctx context.Context, r *role.Role, grants []*role.Grant) error {
	tx, err := s.pgdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("warrant: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	res, err := tx.NewUpdate(roleToModel(r)).WherePK().Exec(ctx)
	if err != nil {
		return writeErr("update role", fmt.Sprintf("role %q", r.Name), err)
	}
	if err := requireRow(res, "update role", fmt.Sprintf("role %s", r.ID)); err != nil {
		return err
	}

	// Replace the grant set.
	_, err = tx.NewDelete((*rolePermissionModel)(nil)).
		Where("role_id = ?", r.ID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("warrant: clear role permissions: %w", err)
	}
	if len(grants) > 0 {
		models := grantModels(grants)
		if _, err := tx.NewInsert(&models).Exec(ctx); err != nil {
			return fmt.Errorf("warrant: set role permissions: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("warrant: commit tx: %w", err)
	}
	return nil
}

func (s *Store) DeleteRole(ctx context.Context, roleID id.RoleID) error {
	tx, err := s.pgdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("warrant: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	// Foreign keys cascade as well; the explicit deletes keep the
	// operation correct on schemas created without them.
	_, err = tx.NewDelete((*userRoleModel)(nil)).
		Where("role_id = ?", roleID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("warrant: delete role assignments: %w", err)
	}
	_, err = tx.NewDelete((*rolePermissionModel)(nil)).
		Where("role_id = ?", roleID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("warrant: delete role permissions: %w", err)
	}
	res, err := tx.NewDelete((*roleModel)(nil)).
		Where("id = ?", roleID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("warrant: delete role: %w", err)
	}
	if err := requireRow(res, "delete role", fmt.Sprintf("role %s", roleID)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("warrant: commit tx: %w", err)
	}
	return nil
}

func (s *Store) ListRoles(ctx context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	var models []roleModel
	q := s.pgdb.NewSelect(&models).OrderExpr("sort_order ASC, name ASC")
	if filter != nil {
		if filter.ActiveOnly {
			q = q.Where("is_active = ?", true)
		}
		if filter.IsSystem != nil {
			q = q.Where("is_system_role = ?", *filter.IsSystem)
		}
		if filter.Search != "" {
			q = q.Where("(LOWER(name) LIKE LOWER(?) OR LOWER(display_name) LIKE LOWER(?))",
				"%"+filter.Search+"%", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("warrant: list roles: %w", err)
	}
	result := make([]*role.Role, len(models))
	for i := range models {
		result[i] = roleFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountRoles(ctx context.Context, filter *role.ListFilter) (int64, error) {
	q := s.pgdb.NewSelect((*roleModel)(nil))
	if filter != nil {
		if filter.ActiveOnly {
			q = q.Where("is_active = ?", true)
		}
		if filter.IsSystem != nil {
			q = q.Where("is_system_role = ?", *filter.IsSystem)
		}
		if filter.Search != "" {
			q = q.Where("(LOWER(name) LIKE LOWER(?) OR LOWER(display_name) LIKE LOWER(?))",
				"%"+filter.Search+"%", "%"+filter.Search+"%")
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("warrant: count roles: %w", err)
	}
	return count, nil
}

func (s *Store) ListRolePermissions(ctx context.Context, roleID id.RoleID) ([]id.PermissionID, error) {
	var models []rolePermissionModel
	err := s.pgdb.NewSelect(&models).
		Where("role_id = ?", roleID.String()).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("warrant: list role permissions: %w", err)
	}
	result := make([]id.PermissionID, 0, len(models))
	for _, m := range models {
		pid, err := id.ParsePermissionID(m.PermissionID)
		if err == nil {
			result = append(result, pid)
		}
	}
	return result, nil
}

func (s *Store) ListGrants(ctx context.Context, roleID id.RoleID) ([]*role.Grant, error) {
	var models []rolePermissionModel
	err := s.pgdb.NewSelect(&models).
		Where("role_id = ?", roleID.String()).
		OrderExpr("permission_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("warrant: list grants: %w", err)
	}
	result := make([]*role.Grant, len(models))
	for i := range models {
		result[i] = grantFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) GrantPermission(ctx context.Context, g *role.Grant) error {
	m := grantToModel(g)
	_, err := s.pgdb.NewInsert(&m).
		OnConflict("(role_id, permission_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("warrant: grant permission: %w", err)
	}
	return nil
}

func (s *Store) RevokePermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error {
	res, err := s.pgdb.NewDelete((*rolePermissionModel)(nil)).
		Where("role_id = ?", roleID.String()).
		Where("permission_id = ?", permID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("warrant: revoke permission: %w", err)
	}
	return requireRow(res, "revoke permission", fmt.Sprintf("grant %s/%s", roleID, permID))
}

// ──────────────────────────────────────────────────
// UserRole operations
// ──────────────────────────────────────────────────

func (s *Store) AssignRole(ctx context.Context, ur *userrole.UserRole) error {
	err := s.assignRole(ctx, ur)
	if errors.Is(err, store.ErrDuplicate) {
		// A concurrent primary assignment for the same user committed
		// between our read and write; the retry reads its row.
		err = s.assignRole(ctx, ur)
	}
	return err
}

func (s *Store) assignRole(ctx context.Context, ur *userrole.UserRole) error {
	tx, err := s.pgdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("warrant: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	var current []userRoleModel
	err = tx.NewSelect(&current).
		Where("user_id = ?", ur.UserID).
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("warrant: load user roles: %w", err)
	}

	var existing *userRoleModel
	for i := range current {
		c := &current[i]
		if c.RoleID == ur.RoleID.String() {
			existing = c
			continue
		}
		if ur.IsPrimary && c.IsPrimary {
			c.IsPrimary = false
			if _, err := tx.NewUpdate(c).WherePK().Exec(ctx); err != nil {
				return writeErr("demote primary role", fmt.Sprintf("user %q", ur.UserID), err)
			}
		}
	}

	switch {
	case existing == nil:
		m := userRoleToModel(ur)
		res, err := tx.NewInsert(&m).
			OnConflict("(user_id, role_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("role %s: %w", ur.RoleID, store.ErrNotFound)
			}
			return writeErr("assign role", fmt.Sprintf("user %q role %s", ur.UserID, ur.RoleID), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("warrant: assign role rows: %w", err)
		}
		if n == 0 {
			// A concurrent assignment of the same pair committed first.
			winner := new(userRoleModel)
			err := tx.NewSelect(winner).
				Where("user_id = ?", ur.UserID).
				Where("role_id = ?", ur.RoleID.String()).
				Scan(ctx)
			if err != nil {
				return fmt.Errorf("warrant: load user role: %w", err)
			}
			if ur.IsPrimary && !winner.IsPrimary {
				winner.IsPrimary = true
				if _, err := tx.NewUpdate(winner).WherePK().Exec(ctx); err != nil {
					return writeErr("promote primary role", fmt.Sprintf("user %q", ur.UserID), err)
				}
			}
			*ur = *userRoleFromModel(winner)
		}
	case ur.IsPrimary && !existing.IsPrimary:
		existing.IsPrimary = true
		if _, err := tx.NewUpdate(existing).WherePK().Exec(ctx); err != nil {
			return writeErr("promote primary role", fmt.Sprintf("user %q", ur.UserID), err)
		}
		*ur = *userRoleFromModel(existing)
	default:
		*ur = *userRoleFromModel(existing)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("warrant: commit tx: %w", err)
	}
	return nil
}

func (s *Store) RevokeRole(ctx context.Context, userID string, roleID id.RoleID) error {
	res, err := s.pgdb.NewDelete((*userRoleModel)(nil)).
		Where("user_id = ?", userID).
		Where("role_id = ?", roleID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("warrant: revoke role: %w", err)
	}
	return requireRow(res, "revoke role", fmt.Sprintf("user %q role %s", userID, roleID))
}

func (s *Store) ReplaceUserRoles(ctx context.Context, userID string, urs []*userrole.UserRole) error {
	tx, err := s.pgdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("warrant: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	_, err = tx.NewDelete((*userRoleModel)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("warrant: clear user roles: %w", err)
	}
	if len(urs) > 0 {
		models := make([]userRoleModel, len(urs))
		for i, ur := range urs {
			models[i] = userRoleToModel(ur)
		}
		if _, err := tx.NewInsert(&models).Exec(ctx); err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("user %q roles: %w", userID, store.ErrNotFound)
			}
			return fmt.Errorf("warrant: replace user roles: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("warrant: commit tx: %w", err)
	}
	return nil
}

func (s *Store) ListUserRoles(ctx context.Context, userID string) ([]*userrole.UserRole, error) {
	var models []userRoleModel
	err := s.pgdb.NewSelect(&models).
		Where("user_id = ?", userID).
		OrderExpr("assigned_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("warrant: list user roles: %w", err)
	}
	return userRolesFromModels(models), nil
}

func (s *Store) GetPrimaryRole(ctx context.Context, userID string) (*userrole.UserRole, error) {
	m := new(userRoleModel)
	err := s.pgdb.NewSelect(m).
		Where("user_id = ?", userID).
		Where("is_primary = ?", true).
		Scan(ctx)
	if err != nil {
		return nil, readErr("get primary role", fmt.Sprintf("primary role of user %q", userID), err)
	}
	return userRoleFromModel(m), nil
}

func (s *Store) ListRoleMembers(ctx context.Context, roleID id.RoleID) ([]*userrole.UserRole, error) {
	var models []userRoleModel
	err := s.pgdb.NewSelect(&models).
		Where("role_id = ?", roleID.String()).
		OrderExpr("assigned_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("warrant: list role members: %w", err)
	}
	return userRolesFromModels(models), nil
}

// ──────────────────────────────────────────────────
// Override operations
// ──────────────────────────────────────────────────

func (s *Store) SetOverride(ctx context.Context, o *override.Override) error {
	_, err := s.pgdb.NewInsert(overrideToModel(o)).
		OnConflict("(user_id, permission_id) DO UPDATE").
		Set("id = excluded.id").
		Set("is_granted = excluded.is_granted").
		Set("granted_at = excluded.granted_at").
		Set("granted_by = excluded.granted_by").
		Set("expires_at = excluded.expires_at").
		Exec(ctx)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("permission %s: %w", o.PermissionID, store.ErrNotFound)
		}
		return fmt.Errorf("warrant: set override: %w", err)
	}
	return nil
}

func (s *Store) GetOverride(ctx context.Context, userID string, permID id.PermissionID) (*override.Override, error) {
	m := new(overrideModel)
	err := s.pgdb.NewSelect(m).
		Where("user_id = ?", userID).
		Where("permission_id = ?", permID.String()).
		Scan(ctx)
	if err != nil {
		return nil, readErr("get override", fmt.Sprintf("override %q/%s", userID, permID), err)
	}
	return overrideFromModel(m), nil
}

func (s *Store) DeleteOverride(ctx context.Context, userID string, permID id.PermissionID) error {
	res, err := s.pgdb.NewDelete((*overrideModel)(nil)).
		Where("user_id = ?", userID).
		Where("permission_id = ?", permID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("warrant: delete override: %w", err)
	}
	return requireRow(res, "delete override", fmt.Sprintf("override %q/%s", userID, permID))
}

func (s *Store) ListOverrides(ctx context.Context, userID string) ([]*override.Override, error) {
	var models []overrideModel
	err := s.pgdb.NewSelect(&models).
		Where("user_id = ?", userID).
		OrderExpr("permission_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("warrant: list overrides: %w", err)
	}
	result := make([]*override.Override, len(models))
	for i := range models {
		result[i] = overrideFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) DeleteExpiredOverrides(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.pgdb.NewDelete((*overrideModel)(nil)).
		Where("expires_at IS NOT NULL").
		Where("expires_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("warrant: delete expired overrides: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("warrant: delete expired overrides rows: %w", err)
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func grantModels(grants []*role.Grant) []rolePermissionModel {
	models := make([]rolePermissionModel, len(grants))
	for i, g := range grants {
		models[i] = grantToModel(g)
	}
	return models
}

func userRolesFromModels(models []userRoleModel) []*userrole.UserRole {
	result := make([]*userrole.UserRole, len(models))
	for i := range models {
		result[i] = userRoleFromModel(&models[i])
	}
	return result
}

// readErr maps sql.ErrNoRows to store.ErrNotFound.
func readErr(op, subject string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", subject, store.ErrNotFound)
	}
	return fmt.Errorf("warrant: %s: %w", op, err)
}

// writeErr maps unique violations to store.ErrDuplicate.
func writeErr(op, subject string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", subject, store.ErrDuplicate)
	}
	return fmt.Errorf("warrant: %s: %w", op, err)
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

// requireRow returns store.ErrNotFound when a write matched no rows.
func requireRow(res rowsAffecter, op, subject string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("warrant: %s rows: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", subject, store.ErrNotFound)
	}
	return nil
}
