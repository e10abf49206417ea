// Package mongo provides a MongoDB implementation of the Warrant composite
// store. Single-document operations go through grove's query builders;
// multi-document operations run inside a driver session transaction and
// therefore need a replica set or sharded cluster.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/warrant/action"
	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/module"
	"github.com/xraph/warrant/override"
	"github.com/xraph/warrant/permission"
	"github.com/xraph/warrant/role"
	"github.com/xraph/warrant/store"
	"github.com/xraph/warrant/userrole"
)

// Collection name constants.
const (
	colModules         = "warrant_modules"
	colActions         = "warrant_actions"
	colPermissions     = "warrant_permissions"
	colRoles           = "warrant_roles"
	colRolePermissions = "warrant_role_permissions"
	colUserRoles       = "warrant_user_roles"
	colOverrides       = "warrant_user_permissions"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a MongoDB implementation of the composite Warrant store.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Migrate creates indexes for all warrant collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()
	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("warrant/mongo: migrate %s indexes: %w", col, err)
		}
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

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all warrant collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colModules: {
			{
				Keys:    bson.D{{Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colActions: {
			{
				Keys:    bson.D{{Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colPermissions: {
			{
				Keys:    bson.D{{Key: "permission_key", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "module_id", Value: 1}, {Key: "action_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colRoles: {
			{
				Keys:    bson.D{{Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "sort_order", Value: 1}, {Key: "name", Value: 1}}},
		},
		colRolePermissions: {
			{
				Keys:    bson.D{{Key: "role_id", Value: 1}, {Key: "permission_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "permission_id", Value: 1}}},
		},
		colUserRoles: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "role_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "user_id", Value: 1}},
				Options: options.Index().
					SetName("user_id_primary").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"is_primary": true}),
			},
			{Keys: bson.D{{Key: "role_id", Value: 1}}},
		},
		colOverrides: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "permission_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}},
		},
	}
}

// withTx runs fn inside a driver session transaction. fn must use the
// context it is given for every collection call.
func (s *Store) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := s.mdb.Collection(colRoles).Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("warrant/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// exists reports whether a document with the given _id is in col.
func (s *Store) exists(ctx context.Context, col, docID string) (bool, error) {
	n, err := s.mdb.Collection(col).CountDocuments(ctx, bson.M{"_id": docID})
	if err != nil {
		return false, fmt.Errorf("warrant: lookup %s: %w", col, err)
	}
	return n > 0, nil
}

// ──────────────────────────────────────────────────
// Module operations
// ──────────────────────────────────────────────────

func (s *Store) CreateModule(ctx context.Context, m *module.Module) error {
	if _, err := s.mdb.NewInsert(moduleToModel(m)).Exec(ctx); err != nil {
		return writeErr("create module", fmt.Sprintf("module %q", m.Name), err)
	}
	return nil
}

func (s *Store) GetModule(ctx context.Context, moduleID id.ModuleID) (*module.Module, error) {
	var m moduleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": moduleID.String()}).
		Scan(ctx)
	if err != nil {
		return nil, readErr("get module", fmt.Sprintf("module %s", moduleID), err)
	}
	return moduleFromModel(&m), nil
}

func (s *Store) GetModuleByName(ctx context.Context, name string) (*module.Module, error) {
	var m moduleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"name": name}).
		Scan(ctx)
	if err != nil {
		return nil, readErr("get module by name", fmt.Sprintf("module %q", name), err)
	}
	return moduleFromModel(&m), nil
}

func (s *Store) UpdateModule(ctx context.Context, m *module.Module) error {
	mm := moduleToModel(m)
	res, err := s.mdb.NewUpdate(mm).
		Filter(bson.M{"_id": mm.ID}).
		Exec(ctx)
	if err != nil {
		return writeErr("update module", fmt.Sprintf("module %q", m.Name), err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("module %s: %w", m.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) ListModules(ctx context.Context, filter *module.ListFilter) ([]*module.Module, error) {
	var models []moduleModel
	f := bson.M{}
	if filter != nil && filter.ActiveOnly {
		f["is_active"] = true
	}
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "sort_order", Value: 1}, {Key: "name", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	if _, err := s.mdb.NewInsert(actionToModel(a)).Exec(ctx); err != nil {
		return writeErr("create action", fmt.Sprintf("action %q", a.Name), err)
	}
	return nil
}

func (s *Store) GetAction(ctx context.Context, actionID id.ActionID) (*action.Action, error) {
	var m actionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": actionID.String()}).
		Scan(ctx)
	if err != nil {
		return nil, readErr("get action", fmt.Sprintf("action %s", actionID), err)
	}
	return actionFromModel(&m), nil
}

func (s *Store) GetActionByName(ctx context.Context, name string) (*action.Action, error) {
	var m actionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"name": name}).
		Scan(ctx)
	if err != nil {
		return nil, readErr("get action by name", fmt.Sprintf("action %q", name), err)
	}
	return actionFromModel(&m), nil
}

func (s *Store) UpdateAction(ctx context.Context, a *action.Action) error {
	am := actionToModel(a)
	res, err := s.mdb.NewUpdate(am).
		Filter(bson.M{"_id": am.ID}).
		Exec(ctx)
	if err != nil {
		return writeErr("update action", fmt.Sprintf("action %q", a.Name), err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("action %s: %w", a.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) ListActions(ctx context.Context, filter *action.ListFilter) ([]*action.Action, error) {
	var models []actionModel
	f := bson.M{}
	if filter != nil && filter.ActiveOnly {
		f["is_active"] = true
	}
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "sort_order", Value: 1}, {Key: "name", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	if _, err := s.mdb.NewInsert(permissionToModel(p)).Exec(ctx); err != nil {
		return writeErr("create permission", fmt.Sprintf("permission %q", p.Key), err)
	}
	return nil
}

func (s *Store) GetPermission(ctx context.Context, permID id.PermissionID) (*permission.Permission, error) {
	var m permissionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": permID.String()}).
		Scan(ctx)
	if err != nil {
		return nil, readErr("get permission", fmt.Sprintf("permission %s", permID), err)
	}
	return permissionFromModel(&m), nil
}

func (s *Store) GetPermissionByKey(ctx context.Context, key string) (*permission.Permission, error) {
	var m permissionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"permission_key": key}).
		Scan(ctx)
	if err != nil {
		return nil, readErr("get permission by key", fmt.Sprintf("permission %q", key), err)
	}
	return permissionFromModel(&m), nil
}

func (s *Store) UpdatePermission(ctx context.Context, p *permission.Permission) error {
	pm := permissionToModel(p)
	res, err := s.mdb.NewUpdate(pm).
		Filter(bson.M{"_id": pm.ID}).
		Exec(ctx)
	if err != nil {
		return writeErr("update permission", fmt.Sprintf("permission %q", p.Key), err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("permission %s: %w", p.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) ListPermissions(ctx context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	var models []permissionModel
	f := bson.M{}
	if filter != nil {
		if filter.ActiveOnly {
			f["is_active"] = true
		}
		if filter.ModuleID != nil {
			f["module_id"] = filter.ModuleID.String()
		}
		if filter.ActionID != nil {
			f["action_id"] = filter.ActionID.String()
		}
	}
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "permission_key", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	return s.withTx(ctx, func(ctx context.Context) error {
		if _, err := s.mdb.Collection(colRoles).InsertOne(ctx, roleToModel(r)); err != nil {
			return writeErr("create role", fmt.Sprintf("role %q", r.Name), err)
		}
		return s.insertGrants(ctx, grants)
	})
}

func (s *Store) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	var m roleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": roleID.String()}).
		Scan(ctx)
	if err != nil {
		return nil, readErr("get role", fmt.Sprintf("role %s", roleID), err)
	}
	return roleFromModel(&m), nil
}

func (s *Store) GetRoleByName(ctx context.Context, name string) (*role.Role, error) {
	var m roleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"name": name}).
		Scan(ctx)
	if err != nil {
		return nil, readErr("get role by name", fmt.Sprintf("role %q", name), err)
	}
	return roleFromModel(&m), nil
}

func (s *Store) UpdateRole(ctx context.Context, r *role.Role) error {
	m := roleToModel(r)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return writeErr("update role", fmt.Sprintf("role %q", r.Name), err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("role %s: %w", r.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) UpdateRoleWithGrants(ctx context.Context, r *role.Role, grants []*role.Grant) error {
	return s.withTx(ctx, func(ctx context.Context) error {
		m := roleToModel(r)
		res, err := s.mdb.Collection(colRoles).ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
		if err != nil {
			return writeErr("update role", fmt.Sprintf("role %q", r.Name), err)
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("role %s: %w", r.ID, store.ErrNotFound)
		}
		_, err = s.mdb.Collection(colRolePermissions).DeleteMany(ctx, bson.M{"role_id": m.ID})
		if err != nil {
			return fmt.Errorf("warrant: clear role permissions: %w", err)
		}
		return s.insertGrants(ctx, grants)
	})
}

func (s *Store) insertGrants(ctx context.Context, grants []*role.Grant) error {
	if len(grants) == 0 {
		return nil
	}
	docs := make([]any, len(grants))
	for i, g := range grants {
		docs[i] = grantToModel(g)
	}
	if _, err := s.mdb.Collection(colRolePermissions).InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("warrant: set role permissions: %w", err)
	}
	return nil
}

func (s *Store) DeleteRole(ctx context.Context, roleID id.RoleID) error {
	return s.withTx(ctx, func(ctx context.Context) error {
		res, err := s.mdb.Collection(colRoles).DeleteOne(ctx, bson.M{"_id": roleID.String()})
		if err != nil {
			return fmt.Errorf("warrant: delete role: %w", err)
		}
		if res.DeletedCount == 0 {
			return fmt.Errorf("role %s: %w", roleID, store.ErrNotFound)
		}
		if _, err := s.mdb.Collection(colRolePermissions).DeleteMany(ctx, bson.M{"role_id": roleID.String()}); err != nil {
			return fmt.Errorf("warrant: delete role permissions: %w", err)
		}
		if _, err := s.mdb.Collection(colUserRoles).DeleteMany(ctx, bson.M{"role_id": roleID.String()}); err != nil {
			return fmt.Errorf("warrant: delete role assignments: %w", err)
		}
		return nil
	})
}

func roleFilter(filter *role.ListFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.ActiveOnly {
		f["is_active"] = true
	}
	if filter.IsSystem != nil {
		f["is_system_role"] = *filter.IsSystem
	}
	if filter.Search != "" {
		pattern := bson.M{"$regex": filter.Search, "$options": "i"}
		f["$or"] = bson.A{bson.M{"name": pattern}, bson.M{"display_name": pattern}}
	}
	return f
}

func (s *Store) ListRoles(ctx context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	var models []roleModel
	q := s.mdb.NewFind(&models).
		Filter(roleFilter(filter)).
		Sort(bson.D{{Key: "sort_order", Value: 1}, {Key: "name", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	count, err := s.mdb.NewFind((*roleModel)(nil)).
		Filter(roleFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("warrant: count roles: %w", err)
	}
	return count, nil
}

func (s *Store) ListRolePermissions(ctx context.Context, roleID id.RoleID) ([]id.PermissionID, error) {
	var models []rolePermissionModel
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"role_id": roleID.String()}).
		Scan(ctx); err != nil {
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
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"role_id": roleID.String()}).
		Sort(bson.D{{Key: "permission_id", Value: 1}}).
		Scan(ctx); err != nil {
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
	_, err := s.mdb.NewInsert(&m).Exec(ctx)
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return nil // already granted
		}
		return fmt.Errorf("warrant: grant permission: %w", err)
	}
	return nil
}

func (s *Store) RevokePermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error {
	res, err := s.mdb.NewDelete((*rolePermissionModel)(nil)).
		Filter(bson.M{"role_id": roleID.String(), "permission_id": permID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("warrant: revoke permission: %w", err)
	}
	if res.DeletedCount() == 0 {
		return fmt.Errorf("grant %s/%s: %w", roleID, permID, store.ErrNotFound)
	}
	return nil
}

// ──────────────────────────────────────────────────
// UserRole operations
// ──────────────────────────────────────────────────

func (s *Store) AssignRole(ctx context.Context, ur *userrole.UserRole) error {
	return s.withTx(ctx, func(ctx context.Context) error {
		ok, err := s.exists(ctx, colRoles, ur.RoleID.String())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("role %s: %w", ur.RoleID, store.ErrNotFound)
		}

		col := s.mdb.Collection(colUserRoles)
		var existing userRoleModel
		err = col.FindOne(ctx, bson.M{"user_id": ur.UserID, "role_id": ur.RoleID.String()}).Decode(&existing)
		found := err == nil
		if err != nil && !isNoDocuments(err) {
			return fmt.Errorf("warrant: load user role: %w", err)
		}

		if ur.IsPrimary {
			_, err := col.UpdateMany(ctx,
				bson.M{"user_id": ur.UserID, "role_id": bson.M{"$ne": ur.RoleID.String()}},
				bson.M{"$set": bson.M{"is_primary": false}})
			if err != nil {
				return fmt.Errorf("warrant: demote primary role: %w", err)
			}
		}

		if !found {
			if _, err := col.InsertOne(ctx, userRoleToModel(ur)); err != nil {
				return writeErr("assign role", fmt.Sprintf("user %q role %s", ur.UserID, ur.RoleID), err)
			}
			return nil
		}
		if ur.IsPrimary && !existing.IsPrimary {
			existing.IsPrimary = true
			_, err := col.UpdateOne(ctx, bson.M{"_id": existing.ID}, bson.M{"$set": bson.M{"is_primary": true}})
			if err != nil {
				return fmt.Errorf("warrant: promote primary role: %w", err)
			}
		}
		*ur = *userRoleFromModel(&existing)
		return nil
	})
}

func (s *Store) RevokeRole(ctx context.Context, userID string, roleID id.RoleID) error {
	res, err := s.mdb.NewDelete((*userRoleModel)(nil)).
		Filter(bson.M{"user_id": userID, "role_id": roleID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("warrant: revoke role: %w", err)
	}
	if res.DeletedCount() == 0 {
		return fmt.Errorf("user %q role %s: %w", userID, roleID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) ReplaceUserRoles(ctx context.Context, userID string, urs []*userrole.UserRole) error {
	return s.withTx(ctx, func(ctx context.Context) error {
		for _, ur := range urs {
			ok, err := s.exists(ctx, colRoles, ur.RoleID.String())
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("role %s: %w", ur.RoleID, store.ErrNotFound)
			}
		}

		col := s.mdb.Collection(colUserRoles)
		if _, err := col.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
			return fmt.Errorf("warrant: clear user roles: %w", err)
		}
		if len(urs) == 0 {
			return nil
		}
		docs := make([]any, len(urs))
		for i, ur := range urs {
			docs[i] = userRoleToModel(ur)
		}
		if _, err := col.InsertMany(ctx, docs); err != nil {
			return fmt.Errorf("warrant: replace user roles: %w", err)
		}
		return nil
	})
}

func (s *Store) ListUserRoles(ctx context.Context, userID string) ([]*userrole.UserRole, error) {
	var models []userRoleModel
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"user_id": userID}).
		Sort(bson.D{{Key: "assigned_at", Value: 1}, {Key: "_id", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("warrant: list user roles: %w", err)
	}
	return userRolesFromModels(models), nil
}

func (s *Store) GetPrimaryRole(ctx context.Context, userID string) (*userrole.UserRole, error) {
	var m userRoleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"user_id": userID, "is_primary": true}).
		Scan(ctx)
	if err != nil {
		return nil, readErr("get primary role", fmt.Sprintf("primary role of user %q", userID), err)
	}
	return userRoleFromModel(&m), nil
}

func (s *Store) ListRoleMembers(ctx context.Context, roleID id.RoleID) ([]*userrole.UserRole, error) {
	var models []userRoleModel
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"role_id": roleID.String()}).
		Sort(bson.D{{Key: "assigned_at", Value: 1}, {Key: "_id", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("warrant: list role members: %w", err)
	}
	return userRolesFromModels(models), nil
}

// ──────────────────────────────────────────────────
// Override operations
// ──────────────────────────────────────────────────

func (s *Store) SetOverride(ctx context.Context, o *override.Override) error {
	return s.withTx(ctx, func(ctx context.Context) error {
		ok, err := s.exists(ctx, colPermissions, o.PermissionID.String())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("permission %s: %w", o.PermissionID, store.ErrNotFound)
		}

		col := s.mdb.Collection(colOverrides)
		filter := bson.M{"user_id": o.UserID, "permission_id": o.PermissionID.String()}
		if _, err := col.DeleteMany(ctx, filter); err != nil {
			return fmt.Errorf("warrant: replace override: %w", err)
		}
		if _, err := col.InsertOne(ctx, overrideToModel(o)); err != nil {
			return fmt.Errorf("warrant: set override: %w", err)
		}
		return nil
	})
}

func (s *Store) GetOverride(ctx context.Context, userID string, permID id.PermissionID) (*override.Override, error) {
	var m overrideModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"user_id": userID, "permission_id": permID.String()}).
		Scan(ctx)
	if err != nil {
		return nil, readErr("get override", fmt.Sprintf("override %q/%s", userID, permID), err)
	}
	return overrideFromModel(&m), nil
}

func (s *Store) DeleteOverride(ctx context.Context, userID string, permID id.PermissionID) error {
	res, err := s.mdb.NewDelete((*overrideModel)(nil)).
		Filter(bson.M{"user_id": userID, "permission_id": permID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("warrant: delete override: %w", err)
	}
	if res.DeletedCount() == 0 {
		return fmt.Errorf("override %q/%s: %w", userID, permID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) ListOverrides(ctx context.Context, userID string) ([]*override.Override, error) {
	var models []overrideModel
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"user_id": userID}).
		Sort(bson.D{{Key: "permission_id", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("warrant: list overrides: %w", err)
	}
	result := make([]*override.Override, len(models))
	for i := range models {
		result[i] = overrideFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) DeleteExpiredOverrides(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*overrideModel)(nil)).
		Many().
		Filter(bson.M{"expires_at": bson.M{"$ne": nil, "$lt": before}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("warrant: delete expired overrides: %w", err)
	}
	return res.DeletedCount(), nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func userRolesFromModels(models []userRoleModel) []*userrole.UserRole {
	result := make([]*userrole.UserRole, len(models))
	for i := range models {
		result[i] = userRoleFromModel(&models[i])
	}
	return result
}

// readErr maps mongo.ErrNoDocuments to store.ErrNotFound.
func readErr(op, subject string, err error) error {
	if isNoDocuments(err) {
		return fmt.Errorf("%s: %w", subject, store.ErrNotFound)
	}
	return fmt.Errorf("warrant: %s: %w", op, err)
}

// writeErr maps duplicate key errors to store.ErrDuplicate.
func writeErr(op, subject string, err error) error {
	if mongod.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", subject, store.ErrDuplicate)
	}
	return fmt.Errorf("warrant: %s: %w", op, err)
}
