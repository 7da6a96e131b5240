// Package auth authenticates requests with bearer tokens and enforces roles.
package auth

import (
	"context"

	"github.com/joao-fontenele/marketplace/internal/domain"
)

type userKey struct{}

func WithUser(ctx context.Context, u domain.AuthenticatedUser) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom returns the identity attached by the middleware, if any.
func UserFrom(ctx context.Context) (domain.AuthenticatedUser, bool) {
	u, ok := ctx.Value(userKey{}).(domain.AuthenticatedUser)
	return u, ok
}
