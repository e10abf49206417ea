package extension

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Cache backends understood by the extension.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheLRU    = "lru"
	CacheRedis  = "redis"
)

// Config holds the Warrant extension configuration.
// Fields can be set programmatically via Option functions, loaded from
// YAML configuration files (under "extensions.warrant" or "warrant" keys)
// or read from the environment with LoadConfigFromEnv.
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes" envconfig:"DISABLE_ROUTES"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate" envconfig:"DISABLE_MIGRATE"`

	// GroveDriver selects the store built from the grove.DB registered in
	// the DI container: "pg", "sqlite" or "mongo". When empty the store
	// must be supplied with WithStore or registered in the container.
	GroveDriver string `json:"grove_driver" mapstructure:"grove_driver" yaml:"grove_driver" envconfig:"GROVE_DRIVER"`

	// ResolveTimeout bounds a single effective-permission resolution.
	ResolveTimeout time.Duration `json:"resolve_timeout" mapstructure:"resolve_timeout" yaml:"resolve_timeout" envconfig:"RESOLVE_TIMEOUT" default:"2s"`

	// ProtectSystemRoles requires system authority to modify system roles.
	ProtectSystemRoles bool `json:"protect_system_roles" mapstructure:"protect_system_roles" yaml:"protect_system_roles" envconfig:"PROTECT_SYSTEM_ROLES" default:"true"`

	// CacheBackend selects the resolution cache: none, memory, lru or redis.
	CacheBackend string `json:"cache_backend" mapstructure:"cache_backend" yaml:"cache_backend" envconfig:"CACHE_BACKEND" default:"memory"`

	// CacheTTL bounds how long a cached resolution is served.
	CacheTTL time.Duration `json:"cache_ttl" mapstructure:"cache_ttl" yaml:"cache_ttl" envconfig:"CACHE_TTL" default:"1m"`

	// CacheSize caps the number of cached users (memory and lru backends).
	CacheSize int `json:"cache_size" mapstructure:"cache_size" yaml:"cache_size" envconfig:"CACHE_SIZE" default:"10000"`

	// RedisAddr is the Redis address used by the redis cache backend.
	RedisAddr string `json:"redis_addr" mapstructure:"redis_addr" yaml:"redis_addr" envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`

	// RedisPrefix namespaces the redis cache keys.
	RedisPrefix string `json:"redis_prefix" mapstructure:"redis_prefix" yaml:"redis_prefix" envconfig:"REDIS_PREFIX" default:"warrant"`

	// Metrics registers the Prometheus plugin on the default registerer.
	Metrics bool `json:"metrics" mapstructure:"metrics" yaml:"metrics" envconfig:"METRICS"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-" ignored:"true"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ResolveTimeout:     2 * time.Second,
		ProtectSystemRoles: true,
		CacheBackend:       CacheMemory,
		CacheTTL:           time.Minute,
		CacheSize:          10000,
		RedisAddr:          "127.0.0.1:6379",
		RedisPrefix:        "warrant",
	}
}

// LoadConfigFromEnv reads the configuration from environment variables
// named PREFIX_FIELD, e.g. WARRANT_CACHE_BACKEND.
func LoadConfigFromEnv(prefix string) (Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("warrant: load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.CacheBackend {
	case "", CacheNone, CacheMemory, CacheLRU, CacheRedis:
	default:
		return fmt.Errorf("warrant: unknown cache backend %q", c.CacheBackend)
	}
	switch c.GroveDriver {
	case "", "pg", "sqlite", "mongo":
	default:
		return fmt.Errorf("warrant: unknown grove driver %q", c.GroveDriver)
	}
	if c.ResolveTimeout < 0 {
		return errors.New("warrant: resolve timeout must not be negative")
	}
	return nil
}
