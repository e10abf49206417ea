// Package module defines the Module catalog entity and its store interface.
// A module is a functional area of the application ("dashboard", "billing")
// that permissions are scoped to.
package module

import (
	"time"

	"github.com/xraph/warrant/id"
)

// Module is a functional area of the application.
type Module struct {
	ID          id.ModuleID `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	DisplayName string      `json:"display_name" db:"display_name"`
	IsActive    bool        `json:"is_active" db:"is_active"`
	SortOrder   int         `json:"sort_order" db:"sort_order"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// ListFilter contains filters for listing modules.
type ListFilter struct {
	ActiveOnly bool `json:"active_only,omitempty"`
	Limit      int  `json:"limit,omitempty"`
	Offset     int  `json:"offset,omitempty"`
}
