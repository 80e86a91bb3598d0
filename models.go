package credentials

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the persisted credential record
type User struct {
	bun.BaseModel              `bun:"table:users,alias:usr"`
	ID                         uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email                      string     `bun:"email,notnull,unique" json:"email,omitempty"`
	FirstName                  string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName                   string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	PasswordHash               string     `bun:"password_hash" json:"-"`
	EmailVerified              bool       `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	EmailVerificationToken     *string    `bun:"email_verification_token,nullzero" json:"-"`
	EmailVerificationExpiresAt *time.Time `bun:"email_verification_expires_at,nullzero" json:"-"`
	PasswordResetToken         *string    `bun:"password_reset_token,nullzero" json:"-"`
	PasswordResetExpiresAt     *time.Time `bun:"password_reset_expires_at,nullzero" json:"-"`
	CreatedAt                  *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt                  *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Profile is the public projection of a user record. It never carries the
// password hash, refresh tokens, or one-time tokens.
type Profile struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	EmailVerified bool       `json:"is_email_verified"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// Profile returns the public projection of the record
func (u *User) Profile() *Profile {
	if u == nil {
		return nil
	}

	return &Profile{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// RefreshToken is one member of a user's active refresh token set. Tokens
// live in their own table so removal can be a compare-and-remove: a DELETE
// that reports whether the token was actually present.
type RefreshToken struct {
	bun.BaseModel `bun:"table:user_refresh_tokens,alias:urt"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	Token         string     `bun:"token,notnull,unique" json:"token,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// NormalizeEmail lowercases and trims an email address. All storage and
// comparison go through this so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
