// Package permission defines the Permission entity and its store interface.
package permission

import (
	"strings"
	"time"

	"github.com/xraph/warrant/id"
)

// KeySeparator joins module and action names in a permission key.
const KeySeparator = ":"

// Permission is a (module, action) pair identified by a unique key such as
// "staff:edit". Deactivating a permission makes every grant and override
// that references it inert without deleting them.
type Permission struct {
	ID          id.PermissionID `json:"id" db:"id"`
	ModuleID    id.ModuleID     `json:"module_id" db:"module_id"`
	ActionID    id.ActionID     `json:"action_id" db:"action_id"`
	Key         string          `json:"permission_key" db:"permission_key"`
	DisplayName string          `json:"display_name" db:"display_name"`
	IsActive    bool            `json:"is_active" db:"is_active"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// Key derives the permission key for a module and action name.
func Key(moduleName, actionName string) string {
	return moduleName + KeySeparator + actionName
}

// SplitKey splits a permission key into its module and action names.
// It reports false when the key is not of the form "module:action".
func SplitKey(key string) (moduleName, actionName string, ok bool) {
	moduleName, actionName, ok = strings.Cut(key, KeySeparator)
	if !ok || moduleName == "" || actionName == "" || strings.Contains(actionName, KeySeparator) {
		return "", "", false
	}
	return moduleName, actionName, true
}

// ListFilter contains filters for listing permissions.
type ListFilter struct {
	ActiveOnly bool         `json:"active_only,omitempty"`
	ModuleID   *id.ModuleID `json:"module_id,omitempty"`
	ActionID   *id.ActionID `json:"action_id,omitempty"`
	Limit      int          `json:"limit,omitempty"`
	Offset     int          `json:"offset,omitempty"`
}
