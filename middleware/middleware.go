// Package middleware provides HTTP authorization middleware for Warrant.
package middleware

import (
	"encoding/json"

	"github.com/xraph/forge"

	"github.com/xraph/warrant"
)

// RequirePermission allows the request only if the authenticated user
// holds the permission key (module:action). Requests without a user and
// resolution failures are denied.
func RequirePermission(eng *warrant.Engine, key string) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			userID := resolveUser(ctx)
			if userID == "" {
				return denyResponse(ctx)
			}
			if err := eng.Enforce(ctx.Context(), userID, key); err != nil {
				return denyResponse(ctx)
			}
			return next(ctx)
		}
	}
}

// RequireAny allows the request if the user holds ANY of the keys.
func RequireAny(eng *warrant.Engine, keys ...string) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			userID := resolveUser(ctx)
			if userID == "" {
				return denyResponse(ctx)
			}
			set, err := eng.GetEffectivePermissions(ctx.Context(), userID)
			if err != nil {
				return denyResponse(ctx)
			}
			for _, key := range keys {
				if set.Has(key) {
					return next(ctx)
				}
			}
			return denyResponse(ctx)
		}
	}
}

// RequireAll allows the request only if the user holds ALL of the keys.
func RequireAll(eng *warrant.Engine, keys ...string) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			userID := resolveUser(ctx)
			if userID == "" {
				return denyResponse(ctx)
			}
			set, err := eng.GetEffectivePermissions(ctx.Context(), userID)
			if err != nil {
				return denyResponse(ctx)
			}
			for _, key := range keys {
				if !set.Has(key) {
					return denyResponse(ctx)
				}
			}
			return next(ctx)
		}
	}
}

// resolveUser extracts the user from context.
// Priority: Forge user ID (from Authsome) → Warrant actor.
func resolveUser(ctx forge.Context) string {
	if userID := forge.UserIDFromContext(ctx.Context()); userID != "" {
		return userID
	}
	return warrant.ActorFromContext(ctx.Context())
}

func denyResponse(ctx forge.Context) error {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Response().WriteHeader(403)
	return json.NewEncoder(ctx.Response()).Encode(map[string]string{"error": "access denied"})
}
