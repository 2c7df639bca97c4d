package auth

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/remora/remora/internal/platform/apperr"
)

// RequireRole returns middleware that checks the session role against the
// allowed roles. Services repeat the check on the resolved actor.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := RoleFromContext(c.Request().Context())
			for _, required := range roles {
				if role == required {
					return next(c)
				}
			}
			return apperr.HTTP(apperr.Forbidden("FORBIDDEN",
				fmt.Sprintf("required role: %s", strings.Join(roles, " or "))))
		}
	}
}
