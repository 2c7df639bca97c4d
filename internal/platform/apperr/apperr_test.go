package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
)

var errTest = NotFound("THING_NOT_FOUND", "thing not found")

func TestError_IsAfterWrap(t *testing.T) {
	wrapped := fmt.Errorf("lookup: %w", errTest.Wrap(errors.New("no rows")))
	if !errors.Is(wrapped, errTest) {
		t.Fatal("expected wrapped error to match sentinel")
	}
	if errors.Is(wrapped, NotFound("OTHER", "other")) {
		t.Fatal("did not expect match on a different code")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"classified", Forbidden("F", "nope"), KindForbidden},
		{"wrapped", fmt.Errorf("x: %w", BadRequest("B", "bad")), KindBadRequest},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), KindUnavailable},
		{"plain", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"classified with plain cause", Unavailable("db down", errors.New("conn refused")), true},
		{"wrapped classified", fmt.Errorf("mark: %w", Unavailable("db down", nil)), true},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), true},
		{"other kind", NotFound("N", "missing"), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUnavailable(tt.err); got != tt.want {
				t.Errorf("IsUnavailable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHTTP_StatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Unauthenticated("U", "u"), http.StatusUnauthorized},
		{Forbidden("F", "f"), http.StatusForbidden},
		{errTest, http.StatusNotFound},
		{New(KindConflict, "C", "c"), http.StatusConflict},
		{BadRequest("B", "b"), http.StatusBadRequest},
		{Unavailable("store down", errors.New("dial")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		he := HTTP(tt.err)
		if he.Code != tt.want {
			t.Errorf("HTTP(%v).Code = %d, want %d", tt.err, he.Code, tt.want)
		}
	}
}

func TestHTTP_PassesThroughEchoErrors(t *testing.T) {
	orig := echo.NewHTTPError(http.StatusTeapot, "teapot")
	if got := HTTP(orig); got != orig {
		t.Fatal("expected existing echo.HTTPError to pass through")
	}
	if HTTP(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}
