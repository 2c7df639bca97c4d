package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout puts a deadline on the request context. Handlers observe it
// through their context-aware calls; a handler that returns with the
// deadline exceeded is answered with 504.
//
// The websocket endpoint is excluded since its connection outlives any
// request deadline.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if isLongLived(c.Request().URL.Path) {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if ctx.Err() == context.DeadlineExceeded && (err == nil || errors.Is(err, context.DeadlineExceeded)) {
				return gatewayTimeout(c, err)
			}
			return err
		}
	}
}

func isLongLived(path string) bool {
	return path == "/ws" || strings.HasPrefix(path, "/ws/")
}

func gatewayTimeout(c echo.Context, err error) error {
	if c.Response().Committed {
		return err
	}
	return c.JSON(http.StatusGatewayTimeout, map[string]string{
		"code":    "TIMEOUT",
		"message": "Request processing exceeded the allowed time limit",
	})
}
