package warrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/xraph/warrant/plugin"
	"github.com/xraph/warrant/role"
	"github.com/xraph/warrant/store"
)

// Engine is the central permission engine. It resolves effective
// permissions, administers roles, assignments, overrides and the catalog,
// keeps the optional cache consistent, and fires plugin hooks.
type Engine struct {
	store   store.Store
	cache   Cache
	plugins *plugin.Registry
	logger  *slog.Logger
	config  Config
	now     func() time.Time

	// gen is bumped by every invalidation. A resolution computed under an
	// older generation is never stored in the cache.
	gen     atomic.Uint64
	cacheMu sync.Mutex
	flight  singleflight.Group
}

// NewEngine creates a new Warrant engine with the given options.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		config: DefaultConfig(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, errors.New("warrant: store is required")
	}
	if e.config.ProtectSystemRoles == nil {
		e.config.ProtectSystemRoles = DefaultConfig().ProtectSystemRoles
	}
	return e, nil
}

// Store returns the underlying composite store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry (may be nil).
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Start performs any startup initialization.
func (e *Engine) Start(_ context.Context) error { return nil }

// Stop performs graceful shutdown.
func (e *Engine) Stop(ctx context.Context) error {
	if e.plugins != nil {
		e.plugins.EmitShutdown(ctx)
	}
	return nil
}

// invalidateUser drops one user's cached resolution.
func (e *Engine) invalidateUser(ctx context.Context, userID string) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.gen.Add(1)
	if e.cache != nil {
		e.cache.InvalidateUser(ctx, userID)
	}
}

// invalidateAll drops every cached resolution.
func (e *Engine) invalidateAll(ctx context.Context) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.gen.Add(1)
	if e.cache != nil {
		e.cache.InvalidateAll(ctx)
	}
}

// storeResolution caches res unless an invalidation happened since gen was
// read.
func (e *Engine) storeResolution(ctx context.Context, gen uint64, res *Resolution) {
	if e.cache == nil {
		return
	}
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	if e.gen.Load() != gen {
		return
	}
	e.cache.Set(ctx, res.UserID, res)
}

// classifyErr maps a store error onto the engine's sentinels.
func classifyErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("%w: %w", ErrDuplicateName, err)
	default:
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
}

// checkSystemRole refuses to mutate a system role unless ctx carries
// system authority.
func (e *Engine) checkSystemRole(ctx context.Context, r *role.Role) error {
	if r.IsSystem && e.config.systemRolesProtected() && !HasSystemAuthority(ctx) {
		return fmt.Errorf("%w: %s", ErrSystemRoleProtected, r.Name)
	}
	return nil
}
