package override

import (
	"context"
	"time"

	"github.com/xraph/warrant/id"
)

// Store defines persistence operations for permission overrides.
type Store interface {
	// SetOverride upserts the override for (o.UserID, o.PermissionID),
	// replacing any prior one.
	SetOverride(ctx context.Context, o *Override) error

	// GetOverride retrieves the override for a user and permission.
	GetOverride(ctx context.Context, userID string, permID id.PermissionID) (*Override, error)

	// DeleteOverride removes the override for a user and permission.
	DeleteOverride(ctx context.Context, userID string, permID id.PermissionID) error

	// ListOverrides returns every override of a user, expired ones included.
	ListOverrides(ctx context.Context, userID string) ([]*Override, error)

	// DeleteExpiredOverrides removes overrides that expired before the given
	// time and returns how many were removed.
	DeleteExpiredOverrides(ctx context.Context, before time.Time) (int64, error)
}
