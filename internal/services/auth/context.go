package auth

import "context"

type identityKey struct{}

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID int64
	SID    string
	Role   string
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}

// ViewerID returns the authenticated user id, or false for anonymous requests.
func ViewerID(ctx context.Context) (int64, bool) {
	identity, ok := IdentityFromContext(ctx)
	if !ok || identity.UserID <= 0 {
		return 0, false
	}
	return identity.UserID, true
}
