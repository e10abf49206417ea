package warrant

import (
	"context"

	"github.com/xraph/forge"
)

// ActorFromContext returns the explicit actor set with WithActor, falling
// back to the Forge authenticated user (standalone mode has no fallback).
func ActorFromContext(ctx context.Context) string {
	if actor := actorIDFromContext(ctx); actor != "" {
		return actor
	}
	return forge.UserIDFromContext(ctx)
}
