// Package warrant resolves the effective permissions of a user from the
// roles they hold and the per-user overrides that adjust them.
//
// A permission is a (module, action) pair addressed by a key such as
// "staff:edit". Roles bundle permissions; users hold any number of roles,
// one of them primary. An override force-grants or force-denies a single
// permission for a single user, optionally until an expiry instant:
//
//	Effective = (RoleDerived − active denies) ∪ active grants
//
// Resolution is fail-closed: any storage failure is reported as
// ErrStorageUnavailable and must be treated as a denial.
//
//	eng, err := warrant.NewEngine(
//	    warrant.WithStore(memory.New()),
//	)
//	perms, err := eng.GetEffectivePermissions(ctx, "user_123")
//	ok, err := eng.HasPermission(ctx, "user_123", "staff:edit")
package warrant

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/xraph/warrant/action"
	"github.com/xraph/warrant/module"
	"github.com/xraph/warrant/override"
	"github.com/xraph/warrant/permission"
	"github.com/xraph/warrant/role"
)

// PermissionSet is a set of permission keys. It marshals to a sorted JSON
// array.
type PermissionSet map[string]struct{}

// NewPermissionSet returns a set holding the given keys.
func NewPermissionSet(keys ...string) PermissionSet {
	s := make(PermissionSet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Has reports whether the set contains key.
func (s PermissionSet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Len returns the number of keys in the set.
func (s PermissionSet) Len() int { return len(s) }

// Keys returns the keys in ascending order.
func (s PermissionSet) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// MarshalJSON implements json.Marshaler.
func (s PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Keys())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	*s = NewPermissionSet(keys...)
	return nil
}

// Resolution is the outcome of resolving one user's effective permissions.
// Resolutions may be shared between callers and cached; treat them as
// read-only.
type Resolution struct {
	UserID string `json:"user_id"`

	// Permissions holds the effective permission keys.
	Permissions PermissionSet `json:"permissions"`

	// Roles are the active roles that contributed grants.
	Roles []*role.Role `json:"roles"`

	// Overrides are the overrides that were active at ResolvedAt.
	Overrides []*override.Override `json:"overrides"`

	ResolvedAt time.Time `json:"resolved_at"`

	// ValidUntil is the earliest expiry among the active overrides. The
	// resolution must not be served at or after it.
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

// Has reports whether the resolution grants key.
func (r *Resolution) Has(key string) bool {
	return r.Permissions.Has(key)
}

// ExpiredAt reports whether an override that shaped the resolution has
// expired by t.
func (r *Resolution) ExpiredAt(t time.Time) bool {
	return r.ValidUntil != nil && !t.Before(*r.ValidUntil)
}

// PermissionDetail is a permission together with its catalog parents.
type PermissionDetail struct {
	Permission *permission.Permission `json:"permission"`
	Module     *module.Module         `json:"module"`
	Action     *action.Action         `json:"action"`
}

// RoleWithPermissions is a role and the permissions it grants.
type RoleWithPermissions struct {
	*role.Role
	Permissions []*PermissionDetail `json:"permissions"`
}
