// Package apperr provides the error taxonomy shared by the domain services
// and its mapping onto HTTP responses.
package apperr

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
)

// Kind classifies an error for propagation to callers.
type Kind string

const (
	KindInternal        Kind = "INTERNAL"
	KindUnauthenticated Kind = "UNAUTHENTICATED"
	KindForbidden       Kind = "FORBIDDEN"
	KindNotFound        Kind = "NOT_FOUND"
	KindConflict        Kind = "CONFLICT"
	KindBadRequest      Kind = "BAD_REQUEST"
	KindUnavailable     Kind = "UNAVAILABLE"
)

// Error is a classified error carrying a machine-readable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same Kind and Code, so sentinel values
// keep matching after Wrap attaches a cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// Wrap returns a copy of e with cause attached.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: cause}
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Unauthenticated(code, message string) *Error {
	return New(KindUnauthenticated, code, message)
}

func Forbidden(code, message string) *Error {
	return New(KindForbidden, code, message)
}

func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message)
}

func BadRequest(code, message string) *Error {
	return New(KindBadRequest, code, message)
}

func Unavailable(message string, cause error) *Error {
	return &Error{Kind: KindUnavailable, Code: "STORE_UNAVAILABLE", Message: message, Err: cause}
}

// KindOf reports the Kind of err, or KindInternal for unclassified errors.
// Connection-level store failures are classified as unavailable.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if IsUnavailable(err) {
		return KindUnavailable
	}
	return KindInternal
}

// IsUnavailable reports whether err indicates the backing store could not
// be reached: either an *Error of KindUnavailable or a connection-level
// failure.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Kind == KindUnavailable {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

var statusByKind = map[Kind]int{
	KindUnauthenticated: http.StatusUnauthorized,
	KindForbidden:       http.StatusForbidden,
	KindNotFound:        http.StatusNotFound,
	KindConflict:        http.StatusConflict,
	KindBadRequest:      http.StatusBadRequest,
	KindUnavailable:     http.StatusServiceUnavailable,
}

// HTTP converts err into an *echo.HTTPError with the status matching its
// Kind. Unclassified errors become a generic 500 so internals do not leak.
func HTTP(err error) *echo.HTTPError {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	kind := KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
	var ae *Error
	if errors.As(err, &ae) {
		return echo.NewHTTPError(status, map[string]string{
			"code":    ae.Code,
			"message": ae.Message,
		}).SetInternal(err)
	}
	return echo.NewHTTPError(status, "service unavailable").SetInternal(err)
}
