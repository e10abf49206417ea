// Package extension provides a Forge extension entry point for Warrant.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/warrant"
	"github.com/xraph/warrant/api"
	"github.com/xraph/warrant/cache"
	"github.com/xraph/warrant/metrics"
	"github.com/xraph/warrant/plugin"
	"github.com/xraph/warrant/store"
	mongostore "github.com/xraph/warrant/store/mongo"
	pgstore "github.com/xraph/warrant/store/postgres"
	sqlitestore "github.com/xraph/warrant/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "warrant"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Role-based effective permission engine with per-user overrides"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Warrant as a Forge extension.
type Extension struct {
	config      Config
	eng         *warrant.Engine
	apiHandler  *api.API
	logger      *slog.Logger
	store       store.Store
	cache       warrant.Cache
	redis       *redis.Client
	warrantOpts []warrant.Option
	plugins     []plugin.Plugin
}

// New creates a Warrant Forge extension with the given options.
func New(opts ...ExtOption) *Extension {
	e := &Extension{config: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extension name.
func (e *Extension) Name() string { return ExtensionName }

// Description returns the extension description.
func (e *Extension) Description() string { return ExtensionDescription }

// Version returns the extension version.
func (e *Extension) Version() string { return ExtensionVersion }

// Dependencies returns the list of extension names this extension depends on.
func (e *Extension) Dependencies() []string { return []string{} }

// Engine returns the underlying Warrant engine.
func (e *Extension) Engine() *warrant.Engine { return e.eng }

// API returns the API handler.
func (e *Extension) API() *api.API { return e.apiHandler }

// Register implements [forge.Extension]. It initializes the engine,
// registers it in the DI container, and optionally registers HTTP routes.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.init(fapp); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*warrant.Engine, error) {
		return e.eng, nil
	}); err != nil {
		return fmt.Errorf("warrant: register engine in container: %w", err)
	}

	return nil
}

func (e *Extension) init(fapp forge.App) error {
	if err := e.config.validate(); err != nil {
		return err
	}

	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}

	s, err := e.resolveStore(fapp)
	if err != nil {
		return err
	}

	protect := e.config.ProtectSystemRoles
	opts := make([]warrant.Option, 0, len(e.warrantOpts)+len(e.plugins)+5)
	opts = append(opts,
		warrant.WithLogger(logger),
		warrant.WithStore(s),
		warrant.WithConfig(warrant.Config{
			ResolveTimeout:     e.config.ResolveTimeout,
			ProtectSystemRoles: &protect,
		}),
	)

	if c := e.buildCache(logger); c != nil {
		opts = append(opts, warrant.WithCache(c))
	}

	// Append user-provided options (may override store and cache).
	opts = append(opts, e.warrantOpts...)

	if e.config.Metrics {
		opts = append(opts, warrant.WithPlugin(metrics.New(nil)))
	}
	for _, x := range e.plugins {
		opts = append(opts, warrant.WithPlugin(x))
	}

	eng, err := warrant.NewEngine(opts...)
	if err != nil {
		return fmt.Errorf("warrant: create engine: %w", err)
	}
	e.eng = eng

	e.apiHandler = api.New(eng, fapp.Router())

	if !e.config.DisableRoutes {
		if err := e.apiHandler.RegisterRoutes(fapp.Router()); err != nil {
			return fmt.Errorf("warrant: register routes: %w", err)
		}
	}

	return nil
}

// resolveStore picks the store in order: WithStore, a store.Store in the
// DI container, then a store built over the container's grove.DB.
func (e *Extension) resolveStore(fapp forge.App) (store.Store, error) {
	if e.store != nil {
		return e.store, nil
	}
	if s, err := forge.Inject[store.Store](fapp.Container()); err == nil {
		return s, nil
	}
	if e.config.GroveDriver == "" {
		return nil, errors.New("warrant: no store configured")
	}

	db, err := forge.Inject[*grove.DB](fapp.Container())
	if err != nil {
		return nil, fmt.Errorf("warrant: resolve grove database: %w", err)
	}
	return storeForDriver(e.config.GroveDriver, db)
}

func storeForDriver(driver string, db *grove.DB) (store.Store, error) {
	switch driver {
	case "pg":
		return pgstore.New(db), nil
	case "sqlite":
		return sqlitestore.New(db), nil
	case "mongo":
		return mongostore.New(db), nil
	default:
		return nil, fmt.Errorf("warrant: unknown grove driver %q", driver)
	}
}

func (e *Extension) buildCache(logger *slog.Logger) warrant.Cache {
	if e.cache != nil {
		return e.cache
	}
	switch e.config.CacheBackend {
	case CacheMemory, "":
		return cache.NewMemory(cache.WithTTL(e.config.CacheTTL), cache.WithMaxSize(e.config.CacheSize))
	case CacheLRU:
		return cache.NewLRU(e.config.CacheSize, e.config.CacheTTL)
	case CacheRedis:
		e.redis = redis.NewClient(&redis.Options{Addr: e.config.RedisAddr})
		return cache.NewRedis(e.redis,
			cache.WithRedisPrefix(e.config.RedisPrefix),
			cache.WithRedisTTL(e.config.CacheTTL),
			cache.WithRedisLogger(logger),
		)
	default:
		return nil
	}
}

// Start runs migrations if enabled and starts the engine.
func (e *Extension) Start(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("warrant: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.eng.Store().Migrate(ctx); err != nil {
			return fmt.Errorf("warrant: migration failed: %w", err)
		}
	}

	return e.eng.Start(ctx)
}

// Stop gracefully shuts down the engine and releases the cache client.
func (e *Extension) Stop(ctx context.Context) error {
	if e.eng == nil {
		return nil
	}
	err := e.eng.Stop(ctx)
	if e.redis != nil {
		err = errors.Join(err, e.redis.Close())
	}
	return err
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("warrant: extension not initialized")
	}
	if err := e.eng.Store().Ping(ctx); err != nil {
		return err
	}
	if e.redis != nil {
		return e.redis.Ping(ctx).Err()
	}
	return nil
}

// Handler returns the HTTP handler for all API routes.
func (e *Extension) Handler() http.Handler {
	if e.apiHandler == nil {
		return http.NotFoundHandler()
	}
	return e.apiHandler.Handler()
}

// RegisterRoutes registers all warrant API routes into a Forge router.
func (e *Extension) RegisterRoutes(router forge.Router) error {
	if e.apiHandler != nil {
		return e.apiHandler.RegisterRoutes(router)
	}
	return nil
}
