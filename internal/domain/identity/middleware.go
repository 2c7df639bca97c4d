package identity

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/remora/remora/internal/platform/apperr"
	"github.com/remora/remora/internal/platform/auth"
)

type actorKey struct{}

func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFromContext(ctx context.Context) *Actor {
	a, _ := ctx.Value(actorKey{}).(*Actor)
	return a
}

// CurrentActor returns the session actor or ErrInvalidSession.
func CurrentActor(c echo.Context) (*Actor, error) {
	if a := ActorFromContext(c.Request().Context()); a != nil {
		return a, nil
	}
	return nil, ErrInvalidSession
}

// ClaimsResolver loads the actor for verified session claims.
type ClaimsResolver interface {
	ResolveClaims(ctx context.Context, claims *auth.Claims) (*Actor, error)
}

// SessionAuth runs after auth.JWTMiddleware and loads the Actor named by the
// verified claims. Requests without claims (skipped public routes) pass
// through untouched.
func SessionAuth(resolver ClaimsResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			claims := auth.ClaimsFromContext(ctx)
			if claims == nil {
				return next(c)
			}
			a, err := resolver.ResolveClaims(ctx, claims)
			if err != nil {
				return apperr.HTTP(err)
			}
			c.SetRequest(c.Request().WithContext(WithActor(ctx, a)))
			return next(c)
		}
	}
}
