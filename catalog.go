package warrant

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/xraph/warrant/action"
	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/module"
	"github.com/xraph/warrant/permission"
)

// Catalog entity kinds reported to CatalogChanged hooks.
const (
	KindModule     = "module"
	KindAction     = "action"
	KindPermission = "permission"
)

// ModuleInput describes a new module.
type ModuleInput struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	SortOrder   int    `json:"sort_order,omitempty"`
}

// ActionInput describes a new action.
type ActionInput struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	SortOrder   int    `json:"sort_order,omitempty"`
}

// CatalogUpdate holds optional changes to a module or action. Names are
// immutable because permission keys are derived from them.
type CatalogUpdate struct {
	DisplayName *string `json:"display_name,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
	SortOrder   *int    `json:"sort_order,omitempty"`
}

// PermissionUpdate holds optional changes to a permission.
type PermissionUpdate struct {
	DisplayName *string `json:"display_name,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// ──────────────────────────────────────────────────
// Modules
// ──────────────────────────────────────────────────

// CreateModule adds an active module to the catalog.
func (e *Engine) CreateModule(ctx context.Context, in *ModuleInput) (*module.Module, error) {
	name, err := catalogName("module", in.Name)
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()
	m := &module.Module{
		ID:          id.NewModuleID(),
		Name:        name,
		DisplayName: orDefault(in.DisplayName, name),
		IsActive:    true,
		SortOrder:   in.SortOrder,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.CreateModule(ctx, m); err != nil {
		return nil, fmt.Errorf("create module %q: %w", name, classifyErr(err))
	}
	e.catalogChanged(ctx, KindModule, m.ID, false)
	return m, nil
}

// UpdateModule applies upd to a module.
func (e *Engine) UpdateModule(ctx context.Context, moduleID id.ModuleID, upd *CatalogUpdate) (*module.Module, error) {
	m, err := e.store.GetModule(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", moduleID, classifyErr(err))
	}
	if upd.DisplayName != nil {
		m.DisplayName = *upd.DisplayName
	}
	if upd.IsActive != nil {
		m.IsActive = *upd.IsActive
	}
	if upd.SortOrder != nil {
		m.SortOrder = *upd.SortOrder
	}
	m.UpdatedAt = e.now().UTC()
	if err := e.store.UpdateModule(ctx, m); err != nil {
		return nil, fmt.Errorf("update module %s: %w", moduleID, classifyErr(err))
	}
	e.catalogChanged(ctx, KindModule, m.ID, true)
	return m, nil
}

// ListModules returns catalog modules.
func (e *Engine) ListModules(ctx context.Context, filter *module.ListFilter) ([]*module.Module, error) {
	ms, err := e.store.ListModules(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", classifyErr(err))
	}
	return ms, nil
}

// ──────────────────────────────────────────────────
// Actions
// ──────────────────────────────────────────────────

// CreateAction adds an active action to the catalog.
func (e *Engine) CreateAction(ctx context.Context, in *ActionInput) (*action.Action, error) {
	name, err := catalogName("action", in.Name)
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()
	a := &action.Action{
		ID:          id.NewActionID(),
		Name:        name,
		DisplayName: orDefault(in.DisplayName, name),
		IsActive:    true,
		SortOrder:   in.SortOrder,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.CreateAction(ctx, a); err != nil {
		return nil, fmt.Errorf("create action %q: %w", name, classifyErr(err))
	}
	e.catalogChanged(ctx, KindAction, a.ID, false)
	return a, nil
}

// UpdateAction applies upd to an action.
func (e *Engine) UpdateAction(ctx context.Context, actionID id.ActionID, upd *CatalogUpdate) (*action.Action, error) {
	a, err := e.store.GetAction(ctx, actionID)
	if err != nil {
		return nil, fmt.Errorf("action %s: %w", actionID, classifyErr(err))
	}
	if upd.DisplayName != nil {
		a.DisplayName = *upd.DisplayName
	}
	if upd.IsActive != nil {
		a.IsActive = *upd.IsActive
	}
	if upd.SortOrder != nil {
		a.SortOrder = *upd.SortOrder
	}
	a.UpdatedAt = e.now().UTC()
	if err := e.store.UpdateAction(ctx, a); err != nil {
		return nil, fmt.Errorf("update action %s: %w", actionID, classifyErr(err))
	}
	e.catalogChanged(ctx, KindAction, a.ID, true)
	return a, nil
}

// ListActions returns catalog actions.
func (e *Engine) ListActions(ctx context.Context, filter *action.ListFilter) ([]*action.Action, error) {
	as, err := e.store.ListActions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", classifyErr(err))
	}
	return as, nil
}

// ──────────────────────────────────────────────────
// Permissions
// ──────────────────────────────────────────────────

// CreatePermission adds the (module, action) permission, keyed
// "module:action". The pair must be unique.
func (e *Engine) CreatePermission(ctx context.Context, moduleID id.ModuleID, actionID id.ActionID, displayName string) (*permission.Permission, error) {
	m, err := e.store.GetModule(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", moduleID, classifyErr(err))
	}
	a, err := e.store.GetAction(ctx, actionID)
	if err != nil {
		return nil, fmt.Errorf("action %s: %w", actionID, classifyErr(err))
	}

	key := permission.Key(m.Name, a.Name)
	now := e.now().UTC()
	p := &permission.Permission{
		ID:          id.NewPermissionID(),
		ModuleID:    m.ID,
		ActionID:    a.ID,
		Key:         key,
		DisplayName: orDefault(displayName, key),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.CreatePermission(ctx, p); err != nil {
		return nil, fmt.Errorf("create permission %q: %w", key, classifyErr(err))
	}
	e.catalogChanged(ctx, KindPermission, p.ID, false)
	return p, nil
}

// UpdatePermission applies upd to a permission. Deactivating a permission
// removes it from every resolution without touching grants or overrides.
func (e *Engine) UpdatePermission(ctx context.Context, permID id.PermissionID, upd *PermissionUpdate) (*permission.Permission, error) {
	p, err := e.store.GetPermission(ctx, permID)
	if err != nil {
		return nil, fmt.Errorf("permission %s: %w", permID, classifyErr(err))
	}
	if upd.DisplayName != nil {
		p.DisplayName = *upd.DisplayName
	}
	if upd.IsActive != nil {
		p.IsActive = *upd.IsActive
	}
	p.UpdatedAt = e.now().UTC()
	if err := e.store.UpdatePermission(ctx, p); err != nil {
		return nil, fmt.Errorf("update permission %s: %w", permID, classifyErr(err))
	}
	e.catalogChanged(ctx, KindPermission, p.ID, true)
	return p, nil
}

// GetPermission returns a permission by ID.
func (e *Engine) GetPermission(ctx context.Context, permID id.PermissionID) (*permission.Permission, error) {
	p, err := e.store.GetPermission(ctx, permID)
	if err != nil {
		return nil, fmt.Errorf("permission %s: %w", permID, classifyErr(err))
	}
	return p, nil
}

// GetPermissionByKey returns the permission with the given key.
func (e *Engine) GetPermissionByKey(ctx context.Context, key string) (*permission.Permission, error) {
	if _, _, ok := permission.SplitKey(key); !ok {
		return nil, fmt.Errorf("%w: malformed permission key %q", ErrInvalidArgument, key)
	}
	p, err := e.store.GetPermissionByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("permission %q: %w", key, classifyErr(err))
	}
	return p, nil
}

// ListPermissions returns catalog permissions.
func (e *Engine) ListPermissions(ctx context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	ps, err := e.store.ListPermissions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", classifyErr(err))
	}
	return ps, nil
}

// permissionDetail loads a permission with its module and action.
func (e *Engine) permissionDetail(ctx context.Context, permID id.PermissionID) (*PermissionDetail, error) {
	p, err := e.GetPermission(ctx, permID)
	if err != nil {
		return nil, err
	}
	m, err := e.store.GetModule(ctx, p.ModuleID)
	if err != nil {
		return nil, fmt.Errorf("permission %q module %s: %w", p.Key, p.ModuleID, classifyErr(err))
	}
	a, err := e.store.GetAction(ctx, p.ActionID)
	if err != nil {
		return nil, fmt.Errorf("permission %q action %s: %w", p.Key, p.ActionID, classifyErr(err))
	}
	return &PermissionDetail{Permission: p, Module: m, Action: a}, nil
}

func sortDetails(ds []*PermissionDetail) {
	slices.SortFunc(ds, func(a, b *PermissionDetail) int {
		return strings.Compare(a.Permission.Key, b.Permission.Key)
	})
}

// catalogChanged logs a catalog write, drops cached resolutions when
// existing rows changed, and notifies plugins.
func (e *Engine) catalogChanged(ctx context.Context, kind string, entityID id.ID, updated bool) {
	if updated {
		e.invalidateAll(ctx)
	}
	e.logger.Info("warrant: catalog changed",
		slog.String("kind", kind),
		slog.String("id", entityID.String()),
		slog.Bool("updated", updated),
	)
	if e.plugins != nil {
		e.plugins.EmitCatalogChanged(ctx, kind, entityID)
	}
}

func catalogName(kind, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: %s name is required", ErrInvalidArgument, kind)
	}
	if strings.Contains(name, permission.KeySeparator) {
		return "", fmt.Errorf("%w: %s name %q must not contain %q", ErrInvalidArgument, kind, name, permission.KeySeparator)
	}
	return name, nil
}
