package credentials

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind discriminates access tokens from refresh tokens. The kind is
// checked after signature verification so a long-lived refresh token can
// never be replayed as an access token, and vice versa.
type TokenKind = string

const (
	// TokenKindAccess marks short-lived tokens authorizing individual calls
	TokenKindAccess TokenKind = "access"
	// TokenKindRefresh marks long-lived tokens exchanged for new pairs
	TokenKindRefresh TokenKind = "refresh"
)

// TokenClaims is the payload carried by both token kinds.
type TokenClaims struct {
	jwt.RegisteredClaims
	UID   string    `json:"uid,omitempty"`
	Email string    `json:"email,omitempty"`
	Kind  TokenKind `json:"kind,omitempty"`
}

// UserID returns the subject user id
func (c *TokenClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// UserUUID parses the subject user id as a UUID
func (c *TokenClaims) UserUUID() (uuid.UUID, error) {
	return uuid.Parse(c.UserID())
}

// Expires returns the expiration time
func (c *TokenClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// Issued returns the issued at time
func (c *TokenClaims) Issued() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

func newTokenClaims(subjectID, email string, kind TokenKind, issuer string, audience jwt.ClaimStrings, now time.Time, ttl time.Duration) *TokenClaims {
	var aud jwt.ClaimStrings
	if len(audience) > 0 {
		aud = make(jwt.ClaimStrings, len(audience))
		copy(aud, audience)
	}

	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subjectID,
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:   subjectID,
		Email: email,
		Kind:  kind,
	}

	ensureTokenID(&claims.RegisteredClaims)

	return claims
}

// ensureTokenID gives every issued token a unique jti so otherwise identical
// pairs issued in the same second still differ.
func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
