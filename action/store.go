package action

import (
	"context"

	"github.com/xraph/warrant/id"
)

// Store defines persistence operations for actions.
type Store interface {
	// CreateAction persists a new action. Names are unique.
	CreateAction(ctx context.Context, a *Action) error

	// GetAction retrieves an action by ID.
	GetAction(ctx context.Context, actionID id.ActionID) (*Action, error)

	// GetActionByName retrieves an action by its unique name.
	GetActionByName(ctx context.Context, name string) (*Action, error)

	// UpdateAction persists changes to an action.
	UpdateAction(ctx context.Context, a *Action) error

	// ListActions returns actions ordered by sort order, then name.
	ListActions(ctx context.Context, filter *ListFilter) ([]*Action, error)
}
