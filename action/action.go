// Package action defines the Action catalog entity and its store interface.
// An action is an operation kind ("view", "edit", "delete", "admin").
package action

import (
	"time"

	"github.com/xraph/warrant/id"
)

// Action is an operation kind that can be combined with a module.
type Action struct {
	ID          id.ActionID `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	DisplayName string      `json:"display_name" db:"display_name"`
	IsActive    bool        `json:"is_active" db:"is_active"`
	SortOrder   int         `json:"sort_order" db:"sort_order"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// ListFilter contains filters for listing actions.
type ListFilter struct {
	ActiveOnly bool `json:"active_only,omitempty"`
	Limit      int  `json:"limit,omitempty"`
	Offset     int  `json:"offset,omitempty"`
}
