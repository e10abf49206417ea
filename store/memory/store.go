// Package memory provides an in-memory implementation of the Warrant composite
// store. It is intended for testing and development.
//
// A single RWMutex guards every map, so each multi-row operation is atomic:
// readers never observe a role without its grants or a user with two
// primary roles.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

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

// Store is a thread-safe in-memory store for all Warrant entities.
type Store struct {
	mu sync.RWMutex

	modules     map[string]*module.Module
	actions     map[string]*action.Action
	permissions map[string]*permission.Permission
	roles       map[string]*role.Role
	grants      map[string]map[string]*role.Grant // roleID -> permID -> grant
	userRoles   map[string]*userrole.UserRole
	overrides   map[string]*override.Override // userID|permID -> override
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		modules:     make(map[string]*module.Module),
		actions:     make(map[string]*action.Action),
		permissions: make(map[string]*permission.Permission),
		roles:       make(map[string]*role.Role),
		grants:      make(map[string]map[string]*role.Grant),
		userRoles:   make(map[string]*userrole.UserRole),
		overrides:   make(map[string]*override.Override),
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Module Store
// ──────────────────────────────────────────────────

func (s *Store) CreateModule(_ context.Context, m *module.Module) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.modules {
		if existing.Name == m.Name {
			return fmt.Errorf("module %q: %w", m.Name, store.ErrDuplicate)
		}
	}
	s.modules[m.ID.String()] = copyModule(m)
	return nil
}

func (s *Store) GetModule(_ context.Context, moduleID id.ModuleID) (*module.Module, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.modules[moduleID.String()]
	if !ok {
		return nil, fmt.Errorf("module %s: %w", moduleID, store.ErrNotFound)
	}
	return copyModule(m), nil
}

func (s *Store) GetModuleByName(_ context.Context, name string) (*module.Module, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.modules {
		if m.Name == name {
			return copyModule(m), nil
		}
	}
	return nil, fmt.Errorf("module %q: %w", name, store.ErrNotFound)
}

func (s *Store) UpdateModule(_ context.Context, m *module.Module) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.modules[m.ID.String()]; !ok {
		return fmt.Errorf("module %s: %w", m.ID, store.ErrNotFound)
	}
	for k, existing := range s.modules {
		if k != m.ID.String() && existing.Name == m.Name {
			return fmt.Errorf("module %q: %w", m.Name, store.ErrDuplicate)
		}
	}
	s.modules[m.ID.String()] = copyModule(m)
	return nil
}

func (s *Store) ListModules(_ context.Context, filter *module.ListFilter) ([]*module.Module, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*module.Module, 0, len(s.modules))
	for _, m := range s.modules {
		if filter != nil && filter.ActiveOnly && !m.IsActive {
			continue
		}
		result = append(result, copyModule(m))
	}
	slices.SortFunc(result, func(a, b *module.Module) int {
		return cmp.Or(cmp.Compare(a.SortOrder, b.SortOrder), cmp.Compare(a.Name, b.Name))
	})
	if filter != nil {
		return applyPagination(result, filter.Limit, filter.Offset), nil
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Action Store
// ──────────────────────────────────────────────────

func (s *Store) CreateAction(_ context.Context, a *action.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.actions {
		if existing.Name == a.Name {
			return fmt.Errorf("action %q: %w", a.Name, store.ErrDuplicate)
		}
	}
	s.actions[a.ID.String()] = copyAction(a)
	return nil
}

func (s *Store) GetAction(_ context.Context, actionID id.ActionID) (*action.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actions[actionID.String()]
	if !ok {
		return nil, fmt.Errorf("action %s: %w", actionID, store.ErrNotFound)
	}
	return copyAction(a), nil
}

func (s *Store) GetActionByName(_ context.Context, name string) (*action.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.actions {
		if a.Name == name {
			return copyAction(a), nil
		}
	}
	return nil, fmt.Errorf("action %q: %w", name, store.ErrNotFound)
}

func (s *Store) UpdateAction(_ context.Context, a *action.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actions[a.ID.String()]; !ok {
		return fmt.Errorf("action %s: %w", a.ID, store.ErrNotFound)
	}
	for k, existing := range s.actions {
		if k != a.ID.String() && existing.Name == a.Name {
			return fmt.Errorf("action %q: %w", a.Name, store.ErrDuplicate)
		}
	}
	s.actions[a.ID.String()] = copyAction(a)
	return nil
}

func (s *Store) ListActions(_ context.Context, filter *action.ListFilter) ([]*action.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*action.Action, 0, len(s.actions))
	for _, a := range s.actions {
		if filter != nil && filter.ActiveOnly && !a.IsActive {
			continue
		}
		result = append(result, copyAction(a))
	}
	slices.SortFunc(result, func(a, b *action.Action) int {
		return cmp.Or(cmp.Compare(a.SortOrder, b.SortOrder), cmp.Compare(a.Name, b.Name))
	})
	if filter != nil {
		return applyPagination(result, filter.Limit, filter.Offset), nil
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Permission Store
// ──────────────────────────────────────────────────

func (s *Store) CreatePermission(_ context.Context, p *permission.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.permissions {
		if existing.Key == p.Key {
			return fmt.Errorf("permission %q: %w", p.Key, store.ErrDuplicate)
		}
	}
	s.permissions[p.ID.String()] = copyPermission(p)
	return nil
}

func (s *Store) GetPermission(_ context.Context, permID id.PermissionID) (*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.permissions[permID.String()]
	if !ok {
		return nil, fmt.Errorf("permission %s: %w", permID, store.ErrNotFound)
	}
	return copyPermission(p), nil
}

func (s *Store) GetPermissionByKey(_ context.Context, key string) (*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.permissions {
		if p.Key == key {
			return copyPermission(p), nil
		}
	}
	return nil, fmt.Errorf("permission %q: %w", key, store.ErrNotFound)
}

func (s *Store) UpdatePermission(_ context.Context, p *permission.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[p.ID.String()]; !ok {
		return fmt.Errorf("permission %s: %w", p.ID, store.ErrNotFound)
	}
	s.permissions[p.ID.String()] = copyPermission(p)
	return nil
}

func (s *Store) ListPermissions(_ context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*permission.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		if filter != nil {
			if filter.ActiveOnly && !p.IsActive {
				continue
			}
			if filter.ModuleID != nil && p.ModuleID != *filter.ModuleID {
				continue
			}
			if filter.ActionID != nil && p.ActionID != *filter.ActionID {
				continue
			}
		}
		result = append(result, copyPermission(p))
	}
	slices.SortFunc(result, func(a, b *permission.Permission) int {
		return cmp.Compare(a.Key, b.Key)
	})
	if filter != nil {
		return applyPagination(result, filter.Limit, filter.Offset), nil
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Role Store
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(_ context.Context, r *role.Role, grants []*role.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roles {
		if existing.Name == r.Name {
			return fmt.Errorf("role %q: %w", r.Name, store.ErrDuplicate)
		}
	}
	rk := r.ID.String()
	s.roles[rk] = copyRole(r)
	s.grants[rk] = grantSet(grants)
	return nil
}

func (s *Store) GetRole(_ context.Context, roleID id.RoleID) (*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[roleID.String()]
	if !ok {
		return nil, fmt.Errorf("role %s: %w", roleID, store.ErrNotFound)
	}
	return copyRole(r), nil
}

func (s *Store) GetRoleByName(_ context.Context, name string) (*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.roles {
		if r.Name == name {
			return copyRole(r), nil
		}
	}
	return nil, fmt.Errorf("role %q: %w", name, store.ErrNotFound)
}

func (s *Store) UpdateRole(_ context.Context, r *role.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateRoleLocked(r)
}

func (s *Store) UpdateRoleWithGrants(_ context.Context, r *role.Role, grants []*role.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.updateRoleLocked(r); err != nil {
		return err
	}
	s.grants[r.ID.String()] = grantSet(grants)
	return nil
}

func (s *Store) updateRoleLocked(r *role.Role) error {
	rk := r.ID.String()
	if _, ok := s.roles[rk]; !ok {
		return fmt.Errorf("role %s: %w", r.ID, store.ErrNotFound)
	}
	for k, existing := range s.roles {
		if k != rk && existing.Name == r.Name {
			return fmt.Errorf("role %q: %w", r.Name, store.ErrDuplicate)
		}
	}
	s.roles[rk] = copyRole(r)
	return nil
}

func (s *Store) DeleteRole(_ context.Context, roleID id.RoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rk := roleID.String()
	if _, ok := s.roles[rk]; !ok {
		return fmt.Errorf("role %s: %w", roleID, store.ErrNotFound)
	}
	delete(s.roles, rk)
	delete(s.grants, rk)
	for k, ur := range s.userRoles {
		if ur.RoleID == roleID {
			delete(s.userRoles, k)
		}
	}
	return nil
}

func (s *Store) ListRoles(_ context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := s.filterRolesLocked(filter)
	if filter != nil {
		return applyPagination(result, filter.Limit, filter.Offset), nil
	}
	return result, nil
}

func (s *Store) CountRoles(_ context.Context, filter *role.ListFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.filterRolesLocked(filter))), nil
}

func (s *Store) filterRolesLocked(filter *role.ListFilter) []*role.Role {
	result := make([]*role.Role, 0, len(s.roles))
	for _, r := range s.roles {
		if filter != nil {
			if filter.ActiveOnly && !r.IsActive {
				continue
			}
			if filter.IsSystem != nil && r.IsSystem != *filter.IsSystem {
				continue
			}
			if filter.Search != "" && !strings.Contains(strings.ToLower(r.Name+" "+r.DisplayName), strings.ToLower(filter.Search)) {
				continue
			}
		}
		result = append(result, copyRole(r))
	}
	slices.SortFunc(result, func(a, b *role.Role) int {
		return cmp.Or(cmp.Compare(a.SortOrder, b.SortOrder), cmp.Compare(a.Name, b.Name))
	})
	return result
}

func (s *Store) ListRolePermissions(_ context.Context, roleID id.RoleID) ([]id.PermissionID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gs := s.grants[roleID.String()]
	result := make([]id.PermissionID, 0, len(gs))
	for _, g := range gs {
		result = append(result, g.PermissionID)
	}
	return result, nil
}

func (s *Store) ListGrants(_ context.Context, roleID id.RoleID) ([]*role.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gs := s.grants[roleID.String()]
	result := make([]*role.Grant, 0, len(gs))
	for _, g := range gs {
		c := *g
		result = append(result, &c)
	}
	slices.SortFunc(result, func(a, b *role.Grant) int {
		return cmp.Compare(a.PermissionID.String(), b.PermissionID.String())
	})
	return result, nil
}

func (s *Store) GrantPermission(_ context.Context, g *role.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rk := g.RoleID.String()
	if _, ok := s.roles[rk]; !ok {
		return fmt.Errorf("role %s: %w", g.RoleID, store.ErrNotFound)
	}
	if s.grants[rk] == nil {
		s.grants[rk] = make(map[string]*role.Grant)
	}
	pk := g.PermissionID.String()
	if _, exists := s.grants[rk][pk]; exists {
		return nil
	}
	c := *g
	s.grants[rk][pk] = &c
	return nil
}

func (s *Store) RevokePermission(_ context.Context, roleID id.RoleID, permID id.PermissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	gs := s.grants[roleID.String()]
	if _, ok := gs[permID.String()]; !ok {
		return fmt.Errorf("grant %s/%s: %w", roleID, permID, store.ErrNotFound)
	}
	delete(gs, permID.String())
	return nil
}

// ──────────────────────────────────────────────────
// UserRole Store
// ──────────────────────────────────────────────────

func (s *Store) AssignRole(_ context.Context, ur *userrole.UserRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[ur.RoleID.String()]; !ok {
		return fmt.Errorf("role %s: %w", ur.RoleID, store.ErrNotFound)
	}
	var existing *userrole.UserRole
	for _, cur := range s.userRoles {
		if cur.UserID == ur.UserID && cur.RoleID == ur.RoleID {
			existing = cur
			break
		}
	}
	if ur.IsPrimary {
		for _, cur := range s.userRoles {
			if cur.UserID == ur.UserID {
				cur.IsPrimary = false
			}
		}
	}
	if existing != nil {
		if ur.IsPrimary {
			existing.IsPrimary = true
		}
		*ur = *existing
		return nil
	}
	s.userRoles[ur.ID.String()] = copyUserRole(ur)
	return nil
}

func (s *Store) RevokeRole(_ context.Context, userID string, roleID id.RoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, ur := range s.userRoles {
		if ur.UserID == userID && ur.RoleID == roleID {
			delete(s.userRoles, k)
			return nil
		}
	}
	return fmt.Errorf("user %q role %s: %w", userID, roleID, store.ErrNotFound)
}

func (s *Store) ReplaceUserRoles(_ context.Context, userID string, urs []*userrole.UserRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ur := range urs {
		if _, ok := s.roles[ur.RoleID.String()]; !ok {
			return fmt.Errorf("role %s: %w", ur.RoleID, store.ErrNotFound)
		}
	}
	for k, ur := range s.userRoles {
		if ur.UserID == userID {
			delete(s.userRoles, k)
		}
	}
	for _, ur := range urs {
		s.userRoles[ur.ID.String()] = copyUserRole(ur)
	}
	return nil
}

func (s *Store) ListUserRoles(_ context.Context, userID string) ([]*userrole.UserRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*userrole.UserRole
	for _, ur := range s.userRoles {
		if ur.UserID == userID {
			result = append(result, copyUserRole(ur))
		}
	}
	sortUserRoles(result)
	return result, nil
}

func (s *Store) GetPrimaryRole(_ context.Context, userID string) (*userrole.UserRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ur := range s.userRoles {
		if ur.UserID == userID && ur.IsPrimary {
			return copyUserRole(ur), nil
		}
	}
	return nil, fmt.Errorf("primary role of user %q: %w", userID, store.ErrNotFound)
}

func (s *Store) ListRoleMembers(_ context.Context, roleID id.RoleID) ([]*userrole.UserRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*userrole.UserRole
	for _, ur := range s.userRoles {
		if ur.RoleID == roleID {
			result = append(result, copyUserRole(ur))
		}
	}
	sortUserRoles(result)
	return result, nil
}

// ──────────────────────────────────────────────────
// Override Store
// ──────────────────────────────────────────────────

func (s *Store) SetOverride(_ context.Context, o *override.Override) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[o.PermissionID.String()]; !ok {
		return fmt.Errorf("permission %s: %w", o.PermissionID, store.ErrNotFound)
	}
	s.overrides[overrideKey(o.UserID, o.PermissionID)] = copyOverride(o)
	return nil
}

func (s *Store) GetOverride(_ context.Context, userID string, permID id.PermissionID) (*override.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.overrides[overrideKey(userID, permID)]
	if !ok {
		return nil, fmt.Errorf("override %q/%s: %w", userID, permID, store.ErrNotFound)
	}
	return copyOverride(o), nil
}

func (s *Store) DeleteOverride(_ context.Context, userID string, permID id.PermissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := overrideKey(userID, permID)
	if _, ok := s.overrides[k]; !ok {
		return fmt.Errorf("override %q/%s: %w", userID, permID, store.ErrNotFound)
	}
	delete(s.overrides, k)
	return nil
}

func (s *Store) ListOverrides(_ context.Context, userID string) ([]*override.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*override.Override
	for _, o := range s.overrides {
		if o.UserID == userID {
			result = append(result, copyOverride(o))
		}
	}
	slices.SortFunc(result, func(a, b *override.Override) int {
		return cmp.Compare(a.PermissionID.String(), b.PermissionID.String())
	})
	return result, nil
}

func (s *Store) DeleteExpiredOverrides(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for k, o := range s.overrides {
		if o.ExpiresAt != nil && o.ExpiresAt.Before(before) {
			delete(s.overrides, k)
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func overrideKey(userID string, permID id.PermissionID) string {
	return userID + "|" + permID.String()
}

func grantSet(grants []*role.Grant) map[string]*role.Grant {
	set := make(map[string]*role.Grant, len(grants))
	for _, g := range grants {
		c := *g
		set[g.PermissionID.String()] = &c
	}
	return set
}

func sortUserRoles(urs []*userrole.UserRole) {
	slices.SortFunc(urs, func(a, b *userrole.UserRole) int {
		return cmp.Or(a.AssignedAt.Compare(b.AssignedAt), cmp.Compare(a.ID.String(), b.ID.String()))
	})
}

func copyModule(m *module.Module) *module.Module {
	c := *m
	return &c
}

func copyAction(a *action.Action) *action.Action {
	c := *a
	return &c
}

func copyPermission(p *permission.Permission) *permission.Permission {
	c := *p
	return &c
}

func copyRole(r *role.Role) *role.Role {
	c := *r
	return &c
}

func copyUserRole(ur *userrole.UserRole) *userrole.UserRole {
	c := *ur
	return &c
}

func copyOverride(o *override.Override) *override.Override {
	c := *o
	if o.ExpiresAt != nil {
		t := *o.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

func applyPagination[T any](items []*T, limit, offset int) []*T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset >= len(items) && offset > 0 {
		return nil
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
