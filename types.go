package credentials

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the options needed to sign and verify tokens
type Config interface {
	GetAccessSigningKey() string
	GetRefreshSigningKey() string
	GetAccessTokenExpiration() string
	GetRefreshTokenExpiration() string
	GetIssuer() string
	GetAudience() []string
}

// TokenService signs and verifies access/refresh token pairs. It is a pure
// function of secret, payload, and clock: no I/O, no persistence awareness.
type TokenService interface {
	IssueAccessToken(subjectID, email string) (string, error)
	IssueRefreshToken(subjectID, email string) (string, error)
	IssuePair(subjectID, email string) (*TokenPair, error)
	VerifyAccess(token string) (*TokenClaims, error)
	VerifyRefresh(token string) (*TokenClaims, error)
	Peek(token string) *TokenClaims
	IsExpired(token string) bool
}

// TokenPair is the shape returned to clients after login or refresh. Only the
// refresh token half is tracked server side, inside the active token set.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// NotificationSender delivers one-time tokens to users. Delivery during
// registration is best effort; explicit resend and reset requests surface
// sender failures to the caller.
type NotificationSender interface {
	SendVerification(ctx context.Context, email, firstName, token string) error
	SendPasswordReset(ctx context.Context, email, firstName, token string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] CREDENTIALS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] CREDENTIALS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] CREDENTIALS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] CREDENTIALS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
