package user

import "context"

// Identity is the authenticated caller, threaded explicitly through every
// workflow function instead of being pulled from ambient request state.
type Identity struct {
	UserID int64
	Email  string
	Role   Role
}

type contextKey string

const identityKey contextKey = "identity"

func WithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

// IdentityFrom extracts the caller identity set by the auth middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	ident, ok := ctx.Value(identityKey).(Identity)
	return ident, ok
}
