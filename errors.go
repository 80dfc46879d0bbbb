package authflow

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeTokenNotFound    = "RECOVERY_TOKEN_NOT_FOUND"
	TextCodeTokenExpired     = "RECOVERY_TOKEN_EXPIRED"
	TextCodeTokenAlreadyUsed = "RECOVERY_TOKEN_ALREADY_USED"
	TextCodePasswordMismatch = "PASSWORD_MISMATCH"
	TextCodeUnauthenticated  = "UNAUTHENTICATED"
	TextCodeInsufficientRole = "INSUFFICIENT_ROLE"
)

// ErrTokenNotFound is returned when a recovery token was never issued or has been evicted.
var ErrTokenNotFound = goerrors.New("recovery token not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeTokenNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrTokenExpired is returned when a recovery token is past its expiration window.
var ErrTokenExpired = goerrors.New("recovery token has expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenAlreadyUsed is returned when a recovery token was already consumed.
var ErrTokenAlreadyUsed = goerrors.New("recovery token has already been used", goerrors.CategoryConflict).
	WithTextCode(TextCodeTokenAlreadyUsed).
	WithCode(goerrors.CodeConflict)

// ErrPasswordMismatch is returned when the new password and its confirmation differ.
var ErrPasswordMismatch = goerrors.New("password confirmation does not match", goerrors.CategoryValidation).
	WithTextCode(TextCodePasswordMismatch).
	WithCode(goerrors.CodeBadRequest)

// ErrUnauthenticated is the guard decision error for anonymous sessions.
var ErrUnauthenticated = goerrors.New("session is not authenticated", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrInsufficientRole is the guard decision error for under-privileged sessions.
var ErrInsufficientRole = goerrors.New("session role does not satisfy required capability", goerrors.CategoryAuthz).
	WithTextCode(TextCodeInsufficientRole).
	WithCode(goerrors.CodeForbidden)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = goerrors.New("value must not be empty", goerrors.CategoryBadInput)

// ErrMismatchedHashAndPassword is the generic credential failure surfaced on login.
var ErrMismatchedHashAndPassword = goerrors.New("invalid credentials provided", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned when a subject is inside its login cool down window.
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryRateLimit)

// ErrSubjectNotFound is the error we return for non found subjects.
var ErrSubjectNotFound = goerrors.New("subject not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrAccessTokenExpired is returned when a session access token is past its exp claim.
var ErrAccessTokenExpired = goerrors.New("access token has expired", goerrors.CategoryAuth).
	WithTextCode("ACCESS_TOKEN_EXPIRED").
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned when a session token cannot be parsed or verified.
var ErrTokenMalformed = goerrors.New("session token is malformed", goerrors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED").
	WithCode(goerrors.CodeUnauthorized)

// IsRecoveryTokenError reports whether err belongs to the recovery token taxonomy.
// These failures are recovered locally and surface as user-facing messages.
func IsRecoveryTokenError(err error) bool {
	return goerrors.Is(err, ErrTokenNotFound) ||
		goerrors.Is(err, ErrTokenExpired) ||
		goerrors.Is(err, ErrTokenAlreadyUsed)
}
