package module

import (
	"context"

	"github.com/xraph/warrant/id"
)

// Store defines persistence operations for modules.
type Store interface {
	// CreateModule persists a new module. Names are unique.
	CreateModule(ctx context.Context, m *Module) error

	// GetModule retrieves a module by ID.
	GetModule(ctx context.Context, moduleID id.ModuleID) (*Module, error)

	// GetModuleByName retrieves a module by its unique name.
	GetModuleByName(ctx context.Context, name string) (*Module, error)

	// UpdateModule persists changes to a module.
	UpdateModule(ctx context.Context, m *Module) error

	// ListModules returns modules ordered by sort order, then name.
	ListModules(ctx context.Context, filter *ListFilter) ([]*Module, error)
}
