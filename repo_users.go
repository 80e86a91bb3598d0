package credentials

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Multi-field transitions are single statements so no concurrent reader can
// observe a half-applied state.
var markEmailVerifiedSQL = `UPDATE "users" AS "usr"
SET
	"is_email_verified" = TRUE,
	"email_verification_token" = NULL,
	"email_verification_expires_at" = NULL,
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"usr"."id" = ?
RETURNING *;`

var setVerificationTokenSQL = `UPDATE "users" AS "usr"
SET
	"email_verification_token" = ?,
	"email_verification_expires_at" = ?,
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"usr"."id" = ?
AND
	"usr"."is_email_verified" = FALSE
RETURNING *;`

var setPasswordResetTokenSQL = `UPDATE "users" AS "usr"
SET
	"password_reset_token" = ?,
	"password_reset_expires_at" = ?,
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"usr"."id" = ?
RETURNING *;`

var resetPasswordSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"password_reset_token" = NULL,
	"password_reset_expires_at" = NULL,
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"usr"."id" = ?
RETURNING *;`

type Users interface {
	repository.Repository[*User]

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	GetByVerificationToken(ctx context.Context, token string) (*User, error)
	GetByVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error)
	GetByPasswordResetToken(ctx context.Context, token string) (*User, error)
	GetByPasswordResetTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error)

	SetVerificationToken(ctx context.Context, id uuid.UUID, token OneTimeToken) (*User, error)
	SetVerificationTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token OneTimeToken) (*User, error)
	MarkEmailVerified(ctx context.Context, id uuid.UUID) (*User, error)
	MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	SetPasswordResetToken(ctx context.Context, id uuid.UUID, token OneTimeToken) (*User, error)
	SetPasswordResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token OneTimeToken) (*User, error)
	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

// RegisterTx creates the user record, failing with ErrDuplicateEmail when the
// normalized email already exists. The unique index on email backstops the
// pre-check under concurrent registration.
func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)

	if _, err := a.GetByEmailTx(ctx, tx, user.Email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	return a.Repository.CreateTx(ctx, tx, user)
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}

	err := tx.NewSelect().Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"email": NormalizeEmail(email),
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) GetByVerificationToken(ctx context.Context, token string) (*User, error) {
	return a.GetByVerificationTokenTx(ctx, a.db, token)
}

func (a *users) GetByVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error) {
	return a.getByOneTimeToken(ctx, tx, "email_verification_token", "email_verification_expires_at", token)
}

func (a *users) GetByPasswordResetToken(ctx context.Context, token string) (*User, error) {
	return a.GetByPasswordResetTokenTx(ctx, a.db, token)
}

func (a *users) GetByPasswordResetTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error) {
	return a.getByOneTimeToken(ctx, tx, "password_reset_token", "password_reset_expires_at", token)
}

// getByOneTimeToken matches only while the expiry is strictly in the future.
func (a *users) getByOneTimeToken(ctx context.Context, tx bun.IDB, tokenColumn, expiryColumn, token string) (*User, error) {
	if token == "" {
		return nil, repository.NewRecordNotFound()
	}

	record := &User{}

	err := tx.NewSelect().Model(record).
		Where("?TableAlias."+tokenColumn+" = ?", token).
		Where("?TableAlias."+expiryColumn+" > ?", time.Now()).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

func (a *users) SetVerificationToken(ctx context.Context, id uuid.UUID, token OneTimeToken) (*User, error) {
	return a.SetVerificationTokenTx(ctx, a.db, id, token)
}

func (a *users) SetVerificationTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token OneTimeToken) (*User, error) {
	return a.rawUpdate(ctx, tx, setVerificationTokenSQL, token.Value, token.ExpiresAt, id.String())
}

func (a *users) MarkEmailVerified(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.MarkEmailVerifiedTx(ctx, a.db, id)
}

func (a *users) MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	return a.rawUpdate(ctx, tx, markEmailVerifiedSQL, id.String())
}

func (a *users) SetPasswordResetToken(ctx context.Context, id uuid.UUID, token OneTimeToken) (*User, error) {
	return a.SetPasswordResetTokenTx(ctx, a.db, id, token)
}

func (a *users) SetPasswordResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token OneTimeToken) (*User, error) {
	return a.rawUpdate(ctx, tx, setPasswordResetTokenSQL, token.Value, token.ExpiresAt, id.String())
}

func (a *users) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.ResetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *users) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	_, err := a.rawUpdate(ctx, tx, resetPasswordSQL, passwordHash, id.String())
	return err
}

func (a *users) rawUpdate(ctx context.Context, tx bun.IDB, sql string, args ...any) (*User, error) {
	res, err := a.Repository.RawTx(ctx, tx, sql, args...)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound()
	}

	return res[0], nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.Email = NormalizeEmail(record.Email)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
