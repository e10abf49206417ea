// Package userrole defines the UserRole assignment entity and its store
// interface. A user may hold several roles; at most one is primary.
package userrole

import (
	"time"

	"github.com/xraph/warrant/id"
)

// UserRole assigns a role to a user. A (UserID, RoleID) pair is unique.
type UserRole struct {
	ID         id.UserRoleID `json:"id" db:"id"`
	UserID     string        `json:"user_id" db:"user_id"`
	RoleID     id.RoleID     `json:"role_id" db:"role_id"`
	IsPrimary  bool          `json:"is_primary" db:"is_primary"`
	AssignedAt time.Time     `json:"assigned_at" db:"assigned_at"`
	AssignedBy string        `json:"assigned_by,omitempty" db:"assigned_by"`
}
