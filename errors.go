package credentials

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes exposed to API consumers alongside structured errors.
const (
	TextCodeDuplicateEmail      = "DUPLICATE_EMAIL"
	TextCodeInvalidCreds        = "INVALID_CREDENTIALS"
	TextCodeInvalidOneTimeToken = "INVALID_OR_EXPIRED_TOKEN"
	TextCodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	TextCodeTokenExpired        = "TOKEN_EXPIRED"
	TextCodeTokenMalformed      = "TOKEN_MALFORMED"
	TextCodeTokenKindMismatch   = "TOKEN_KIND_MISMATCH"
	TextCodeAlreadyVerified     = "ALREADY_VERIFIED"
	TextCodeEmptyPassword       = "EMPTY_PASSWORD"
)

// ErrIdentityNotFound is returned when a lookup by id or email misses
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrDuplicateEmail is returned when registering an email that already exists
var ErrDuplicateEmail = goerrors.New("an account with this email already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail)

// ErrMismatchedHashAndPassword is the single error for both unknown
// identifier and wrong password, so callers cannot enumerate accounts
var ErrMismatchedHashAndPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidOrExpiredToken covers both verification and password reset
// tokens: missing, already consumed, or past expiry
var ErrInvalidOrExpiredToken = goerrors.New("invalid or expired token", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidOneTimeToken)

// ErrInvalidRefreshToken is returned when a refresh token verifies but is no
// longer a member of the active set, e.g. reuse after rotation
var ErrInvalidRefreshToken = goerrors.New("refresh token is not active", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidRefreshToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned when a signed token is past its expiry
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned when a token fails signature or structural checks
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenKindMismatch is returned when a token signed as one kind is
// presented for verification as the other
var ErrTokenKindMismatch = goerrors.New("token kind mismatch", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenKindMismatch).
	WithCode(goerrors.CodeUnauthorized)

// ErrAlreadyVerified is returned when requesting a verification resend for an
// account whose email is already verified
var ErrAlreadyVerified = goerrors.New("email address is already verified", goerrors.CategoryConflict).
	WithTextCode(TextCodeAlreadyVerified)

// ErrNoEmptyString rejects empty passwords before hashing
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
