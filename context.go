package warrant

import "context"

type contextKey int

const (
	ctxKeyActor contextKey = iota
	ctxKeySystemAuthority
)

// WithActor returns a context naming the administrator performing a write.
// The actor is recorded as granted_by / assigned_by. Use this for
// standalone mode (without Forge).
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ctxKeyActor, actorID)
}

// WithSystemAuthority returns a context allowed to update and delete
// system roles.
func WithSystemAuthority(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKeySystemAuthority, true)
}

// HasSystemAuthority reports whether ctx carries system authority.
func HasSystemAuthority(ctx context.Context) bool {
	v, ok := ctx.Value(ctxKeySystemAuthority).(bool)
	return ok && v
}

func actorIDFromContext(ctx context.Context) string {
	v, ok := ctx.Value(ctxKeyActor).(string)
	if !ok {
		return ""
	}
	return v
}
