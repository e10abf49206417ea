package warrant

import "time"

// Config holds configuration for the Warrant engine.
type Config struct {
	// ResolveTimeout bounds a single resolution. An expired timeout is
	// reported as ErrStorageUnavailable. Defaults to 2s; zero disables it.
	ResolveTimeout time.Duration `json:"resolve_timeout,omitempty"`

	// ProtectSystemRoles requires WithSystemAuthority on the context to
	// update or delete a system role. Defaults to true.
	ProtectSystemRoles *bool `json:"protect_system_roles,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	t := true
	return Config{
		ResolveTimeout:     2 * time.Second,
		ProtectSystemRoles: &t,
	}
}

func (c Config) systemRolesProtected() bool {
	return c.ProtectSystemRoles == nil || *c.ProtectSystemRoles
}
