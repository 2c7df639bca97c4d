package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

const (
	RequestIDHeader = echo.HeaderXRequestID
	requestIDKey    = "request_id"
	maxRequestIDLen = 128
)

// RequestID keeps an inbound X-Request-ID or mints a new one, and stores it
// under "request_id" for the logger and recovery middleware. Oversized
// inbound ids are replaced.
func RequestID() echo.MiddlewareFunc {
	mw := echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator:    uuid.NewString,
		TargetHeader: RequestIDHeader,
		RequestIDHandler: func(c echo.Context, rid string) {
			c.Set(requestIDKey, rid)
		},
	})
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		h := mw(next)
		return func(c echo.Context) error {
			if len(c.Request().Header.Get(RequestIDHeader)) > maxRequestIDLen {
				c.Request().Header.Del(RequestIDHeader)
			}
			return h(c)
		}
	}
}

func requestIDOf(c echo.Context) string {
	rid, _ := c.Get(requestIDKey).(string)
	return rid
}
