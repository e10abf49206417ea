package warrant

import "context"

// Cache stores resolutions per user. Implementations must be safe for
// concurrent use. The engine never stores a resolution past its
// ValidUntil and invalidates on every administration write.
type Cache interface {
	// Get returns a cached resolution, if available.
	Get(ctx context.Context, userID string) (*Resolution, bool)

	// Set stores a resolution in the cache.
	Set(ctx context.Context, userID string, res *Resolution)

	// InvalidateUser removes the cached resolution of one user.
	InvalidateUser(ctx context.Context, userID string)

	// InvalidateAll removes every cached resolution.
	InvalidateAll(ctx context.Context)
}
