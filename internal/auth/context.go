package auth

import (
	"context"

	"github.com/kazz187/agileboard/pkg/cerr"
)

type ownerKey struct{}

func WithOwner(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ownerKey{}, claims)
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ownerKey{}).(*Claims)
	return c, ok && c != nil
}

// RequireOwner returns the id of the authenticated caller.
func RequireOwner(ctx context.Context) (string, error) {
	c, ok := ClaimsFromContext(ctx)
	if !ok || c.Subject == "" {
		return "", cerr.NewError(cerr.Unauthenticated, "sign in required", nil)
	}
	return c.Subject, nil
}
