package credentials

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// One-time token lifetimes. Verification links live a full day, password
// reset links a single hour.
const (
	VerificationTokenTTL  = 24 * time.Hour
	PasswordResetTokenTTL = time.Hour
)

const oneTimeTokenBytes = 32

// OneTimeToken is an opaque random string with an absolute expiry. It is
// persisted on the user record and cleared on first use.
type OneTimeToken struct {
	Value     string
	ExpiresAt time.Time
}

// Expired reports whether the token is no longer valid at the given instant.
// The boundary is exclusive: a token expiring exactly now is already invalid.
func (t OneTimeToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// GenerateOneTimeToken produces a cryptographically random, URL-safe opaque
// string: 32 bytes hex-encoded, 64 characters.
func GenerateOneTimeToken() (string, error) {
	buf := make([]byte, oneTimeTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate random token")
	}
	return hex.EncodeToString(buf), nil
}

// NewVerificationToken issues a fresh email verification token.
func NewVerificationToken(now time.Time) (OneTimeToken, error) {
	return newOneTimeToken(now, VerificationTokenTTL)
}

// NewPasswordResetToken issues a fresh password reset token.
func NewPasswordResetToken(now time.Time) (OneTimeToken, error) {
	return newOneTimeToken(now, PasswordResetTokenTTL)
}

func newOneTimeToken(now time.Time, ttl time.Duration) (OneTimeToken, error) {
	value, err := GenerateOneTimeToken()
	if err != nil {
		return OneTimeToken{}, err
	}

	return OneTimeToken{
		Value:     value,
		ExpiresAt: now.Add(ttl),
	}, nil
}
