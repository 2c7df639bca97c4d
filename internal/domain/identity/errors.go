package identity

import (
	"github.com/remora/remora/internal/platform/apperr"
)

var (
	ErrInvalidSession     = apperr.Unauthenticated("INVALID_SESSION", "invalid or expired session")
	ErrUnknownActor       = apperr.Unauthenticated("UNKNOWN_ACTOR", "session actor no longer exists")
	ErrInvalidDeviceToken = apperr.Unauthenticated("INVALID_DEVICE_TOKEN", "Invalid device token")
	ErrInvalidCredentials = apperr.Unauthenticated("INVALID_CREDENTIALS", "invalid email or password")
	ErrForbidden          = apperr.Forbidden("FORBIDDEN", "operation not permitted for this role")
	ErrActorNotFound      = apperr.NotFound("ACTOR_NOT_FOUND", "actor not found")
	ErrEmailTaken         = apperr.New(apperr.KindConflict, "EMAIL_TAKEN", "email is already registered")
)

func badRequest(code, message string) error {
	return apperr.BadRequest(code, message)
}
