package auth

import "context"

// Identity is a verified caller identity. It carries no role or permission data:
// authorization is always re-derived from the store.
type Identity struct {
	UserID    string
	SessionID string
}

type identityContextKey struct{}

// WithIdentity stores the verified identity on the context for downstream consumers.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext retrieves the verified identity from the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}
