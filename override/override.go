// Package override defines the per-user permission Override entity
// (user_permissions) and its store interface.
package override

import (
	"time"

	"github.com/xraph/warrant/id"
)

// Override force-grants (IsGranted) or force-denies a permission for one
// user, taking precedence over whatever the user's roles say. A
// (UserID, PermissionID) pair has at most one override.
type Override struct {
	ID           id.OverrideID   `json:"id" db:"id"`
	UserID       string          `json:"user_id" db:"user_id"`
	PermissionID id.PermissionID `json:"permission_id" db:"permission_id"`
	IsGranted    bool            `json:"is_granted" db:"is_granted"`
	GrantedAt    time.Time       `json:"granted_at" db:"granted_at"`
	GrantedBy    string          `json:"granted_by,omitempty" db:"granted_by"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty" db:"expires_at"`
}

// ActiveAt reports whether the override applies at instant t. An override
// without expiry is always active; otherwise it is active strictly before
// its expiry.
func (o *Override) ActiveAt(t time.Time) bool {
	return o.ExpiresAt == nil || t.Before(*o.ExpiresAt)
}
