package warrant

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/xraph/warrant/action"
	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/module"
	"github.com/xraph/warrant/override"
	"github.com/xraph/warrant/permission"
	"github.com/xraph/warrant/role"
	"github.com/xraph/warrant/store"
)

// Resolve computes the effective permissions of userID together with the
// roles and overrides that produced them. This is the hot path.
//
// A user without roles or overrides resolves to an empty set. The only
// error Resolve returns is ErrStorageUnavailable (including an expired
// ResolveTimeout or a cancelled ctx); callers must treat it as a denial.
func (e *Engine) Resolve(ctx context.Context, userID string) (*Resolution, error) {
	start := time.Now()

	res, err := e.resolveShared(ctx, userID)
	if err != nil {
		e.logger.Error("warrant: resolution failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	if e.plugins != nil {
		var result any
		if res != nil {
			result = res
		}
		e.plugins.EmitAfterResolve(ctx, userID, result, time.Since(start), err)
	}
	return res, err
}

// GetEffectivePermissions returns the set of permission keys userID holds.
func (e *Engine) GetEffectivePermissions(ctx context.Context, userID string) (PermissionSet, error) {
	res, err := e.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	return res.Permissions, nil
}

// HasPermission reports whether userID holds the permission key. It does
// not materialize the full set unless a cached resolution is available,
// and always agrees with GetEffectivePermissions.
func (e *Engine) HasPermission(ctx context.Context, userID, key string) (bool, error) {
	allowed, err := e.hasPermission(ctx, userID, key)
	if err != nil {
		allowed = false
		e.logger.Error("warrant: permission check failed",
			slog.String("user_id", userID),
			slog.String("permission", key),
			slog.String("error", err.Error()),
		)
	}
	if e.plugins != nil {
		e.plugins.EmitAfterCheck(ctx, userID, key, allowed, err)
	}
	return allowed, err
}

// Enforce returns ErrAccessDenied if userID does not hold key, and any
// resolver error unchanged.
func (e *Engine) Enforce(ctx context.Context, userID, key string) error {
	ok, err := e.HasPermission(ctx, userID, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: user %q lacks %q", ErrAccessDenied, userID, key)
	}
	return nil
}

// resolveShared serves from the cache or joins the in-flight resolution
// of the same user. The shared resolution runs detached from ctx so one
// caller giving up does not fail the others; the caller still returns as
// soon as ctx is done.
func (e *Engine) resolveShared(ctx context.Context, userID string) (*Resolution, error) {
	if res, ok := e.cached(ctx, userID); ok {
		return res, nil
	}

	gen := e.gen.Load()
	ch := e.flight.DoChan(userID+":"+strconv.FormatUint(gen, 10), func() (any, error) {
		rctx, cancel := e.withResolveTimeout(context.WithoutCancel(ctx))
		defer cancel()

		res, err := e.resolve(rctx, userID)
		if err != nil {
			return nil, err
		}
		e.storeResolution(rctx, gen, res)
		return res, nil
	})

	select {
	case <-ctx.Done():
		return nil, unavailable(ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Resolution), nil //nolint:forcetypeassert // the flight function only returns *Resolution
	}
}

// cached returns a cached resolution that is still valid.
func (e *Engine) cached(ctx context.Context, userID string) (*Resolution, bool) {
	if e.cache == nil {
		return nil, false
	}
	res, ok := e.cache.Get(ctx, userID)
	if !ok || res.ExpiredAt(e.now()) {
		return nil, false
	}
	return res, true
}

func (e *Engine) withResolveTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.config.ResolveTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.config.ResolveTimeout)
}

// resolve computes Effective = (RoleDerived − active denies) ∪ active grants.
func (e *Engine) resolve(ctx context.Context, userID string) (*Resolution, error) {
	now := e.now()

	roles, err := e.activeRoles(ctx, userID)
	if err != nil {
		return nil, err
	}

	// 1. Role-derived permission IDs, keyed by string form.
	derived := make(map[string]id.PermissionID)
	for _, r := range roles {
		pids, err := e.store.ListRolePermissions(ctx, r.ID)
		if err != nil {
			return nil, unavailable(err)
		}
		for _, pid := range pids {
			derived[pid.String()] = pid
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}

	// 2. Active overrides win over role-derived status.
	overrides, err := e.store.ListOverrides(ctx, userID)
	if err != nil {
		return nil, unavailable(err)
	}
	var (
		active     []*override.Override
		validUntil *time.Time
	)
	for _, o := range overrides {
		if !o.ActiveAt(now) {
			continue
		}
		active = append(active, o)
		if o.IsGranted {
			derived[o.PermissionID.String()] = o.PermissionID
		} else {
			delete(derived, o.PermissionID.String())
		}
		if o.ExpiresAt != nil && (validUntil == nil || o.ExpiresAt.Before(*validUntil)) {
			t := *o.ExpiresAt
			validUntil = &t
		}
	}

	// 3. Map to keys, dropping anything inactive in the catalog.
	cat := newCatalogView(e.store, e.logger)
	perms := make(PermissionSet, len(derived))
	for _, pid := range derived {
		p, ok, err := cat.activePermission(ctx, pid)
		if err != nil {
			return nil, unavailable(err)
		}
		if ok {
			perms[p.Key] = struct{}{}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}

	return &Resolution{
		UserID:      userID,
		Permissions: perms,
		Roles:       roles,
		Overrides:   active,
		ResolvedAt:  now,
		ValidUntil:  validUntil,
	}, nil
}

// activeRoles returns the distinct, active roles assigned to userID,
// ordered by sort order then name. Assignments pointing at a missing role
// are skipped.
func (e *Engine) activeRoles(ctx context.Context, userID string) ([]*role.Role, error) {
	urs, err := e.store.ListUserRoles(ctx, userID)
	if err != nil {
		return nil, unavailable(err)
	}

	seen := make(map[string]struct{}, len(urs))
	roles := make([]*role.Role, 0, len(urs))
	for _, ur := range urs {
		if _, dup := seen[ur.RoleID.String()]; dup {
			continue
		}
		seen[ur.RoleID.String()] = struct{}{}

		r, err := e.store.GetRole(ctx, ur.RoleID)
		if errors.Is(err, store.ErrNotFound) {
			e.logger.Warn("warrant: user role references missing role",
				slog.String("user_id", userID),
				slog.String("role_id", ur.RoleID.String()),
			)
			continue
		}
		if err != nil {
			return nil, unavailable(err)
		}
		if r.IsActive {
			roles = append(roles, r)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}

	slices.SortFunc(roles, func(a, b *role.Role) int {
		return cmp.Or(cmp.Compare(a.SortOrder, b.SortOrder), cmp.Compare(a.Name, b.Name))
	})
	return roles, nil
}

// hasPermission answers a single-key check with targeted reads.
func (e *Engine) hasPermission(ctx context.Context, userID, key string) (bool, error) {
	if res, ok := e.cached(ctx, userID); ok {
		return res.Has(key), nil
	}

	ctx, cancel := e.withResolveTimeout(ctx)
	defer cancel()
	now := e.now()

	p, err := e.store.GetPermissionByKey(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, unavailable(err)
	}

	cat := newCatalogView(e.store, e.logger)
	if ok, err := cat.isActive(ctx, p); err != nil || !ok {
		return false, unavailableOrNil(err)
	}

	o, err := e.store.GetOverride(ctx, userID, p.ID)
	switch {
	case err == nil && o.ActiveAt(now):
		return o.IsGranted, unavailableOrNil(ctx.Err())
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return false, unavailable(err)
	}

	roles, err := e.activeRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		pids, err := e.store.ListRolePermissions(ctx, r.ID)
		if err != nil {
			return false, unavailable(err)
		}
		for _, pid := range pids {
			if pid.String() == p.ID.String() {
				return true, unavailableOrNil(ctx.Err())
			}
		}
	}
	return false, unavailableOrNil(ctx.Err())
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

func unavailableOrNil(err error) error {
	if err == nil {
		return nil
	}
	return unavailable(err)
}

// catalogView memoizes catalog reads for the duration of one resolution.
type catalogView struct {
	store   store.Store
	logger  *slog.Logger
	perms   map[string]*permission.Permission
	modules map[string]*module.Module
	actions map[string]*action.Action
}

func newCatalogView(s store.Store, logger *slog.Logger) *catalogView {
	return &catalogView{
		store:   s,
		logger:  logger,
		perms:   make(map[string]*permission.Permission),
		modules: make(map[string]*module.Module),
		actions: make(map[string]*action.Action),
	}
}

// activePermission loads a permission and reports whether it and its
// module and action are all active. Missing rows are logged and treated
// as inactive.
func (v *catalogView) activePermission(ctx context.Context, pid id.PermissionID) (*permission.Permission, bool, error) {
	p, ok := v.perms[pid.String()]
	if !ok {
		var err error
		p, err = v.store.GetPermission(ctx, pid)
		if errors.Is(err, store.ErrNotFound) {
			v.logger.Warn("warrant: grant references missing permission",
				slog.String("permission_id", pid.String()),
			)
			p = nil
		} else if err != nil {
			return nil, false, err
		}
		v.perms[pid.String()] = p
	}
	if p == nil {
		return nil, false, nil
	}
	active, err := v.isActive(ctx, p)
	return p, active, err
}

func (v *catalogView) isActive(ctx context.Context, p *permission.Permission) (bool, error) {
	if !p.IsActive {
		return false, nil
	}

	m, ok := v.modules[p.ModuleID.String()]
	if !ok {
		var err error
		m, err = v.store.GetModule(ctx, p.ModuleID)
		if errors.Is(err, store.ErrNotFound) {
			v.logger.Warn("warrant: permission references missing module",
				slog.String("permission", p.Key),
				slog.String("module_id", p.ModuleID.String()),
			)
			m = nil
		} else if err != nil {
			return false, err
		}
		v.modules[p.ModuleID.String()] = m
	}
	if m == nil || !m.IsActive {
		return false, nil
	}

	a, ok := v.actions[p.ActionID.String()]
	if !ok {
		var err error
		a, err = v.store.GetAction(ctx, p.ActionID)
		if errors.Is(err, store.ErrNotFound) {
			v.logger.Warn("warrant: permission references missing action",
				slog.String("permission", p.Key),
				slog.String("action_id", p.ActionID.String()),
			)
			a = nil
		} else if err != nil {
			return false, err
		}
		v.actions[p.ActionID.String()] = a
	}
	return a != nil && a.IsActive, nil
}
