package credentials

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RefreshTokens tracks the set of currently valid refresh tokens per user.
// Membership is the single source of truth for whether a session is active.
type RefreshTokens interface {
	Add(ctx context.Context, userID uuid.UUID, token string) error
	AddTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, token string) error

	// Remove is a compare-and-remove: it reports whether the token was
	// actually a member of the set.
	Remove(ctx context.Context, userID uuid.UUID, token string) (bool, error)
	RemoveTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, token string) (bool, error)

	Clear(ctx context.Context, userID uuid.UUID) error
	ClearTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error

	Has(ctx context.Context, userID uuid.UUID, token string) (bool, error)
	HasTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, token string) (bool, error)

	// Rotate atomically replaces oldToken with newToken. When oldToken is no
	// longer a member the rotation fails with a record-not-found error and
	// newToken is not added; concurrent rotations of the same token resolve
	// to exactly one winner.
	Rotate(ctx context.Context, userID uuid.UUID, oldToken, newToken string) error

	Count(ctx context.Context, userID uuid.UUID) (int, error)
}

type refreshTokens struct {
	db *bun.DB
}

var _ RefreshTokens = (*refreshTokens)(nil)

func NewRefreshTokensRepository(db *bun.DB) RefreshTokens {
	return &refreshTokens{db: db}
}

func (r *refreshTokens) Add(ctx context.Context, userID uuid.UUID, token string) error {
	return r.AddTx(ctx, r.db, userID, token)
}

func (r *refreshTokens) AddTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, token string) error {
	record := &RefreshToken{
		ID:     uuid.New(),
		UserID: userID,
		Token:  token,
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist refresh token")
	}

	return nil
}

func (r *refreshTokens) Remove(ctx context.Context, userID uuid.UUID, token string) (bool, error) {
	return r.RemoveTx(ctx, r.db, userID, token)
}

func (r *refreshTokens) RemoveTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, token string) (bool, error) {
	res, err := tx.NewDelete().Model((*RefreshToken)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.token = ?", token).
		Exec(ctx)

	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove refresh token")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read removal result")
	}

	return affected > 0, nil
}

func (r *refreshTokens) Clear(ctx context.Context, userID uuid.UUID) error {
	return r.ClearTx(ctx, r.db, userID)
}

func (r *refreshTokens) ClearTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	_, err := tx.NewDelete().Model((*RefreshToken)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear refresh tokens")
	}

	return nil
}

func (r *refreshTokens) Has(ctx context.Context, userID uuid.UUID, token string) (bool, error) {
	return r.HasTx(ctx, r.db, userID, token)
}

func (r *refreshTokens) HasTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, token string) (bool, error) {
	exists, err := tx.NewSelect().Model((*RefreshToken)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.token = ?", token).
		Exists(ctx)

	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check refresh token membership")
	}

	return exists, nil
}

func (r *refreshTokens) Rotate(ctx context.Context, userID uuid.UUID, oldToken, newToken string) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		removed, err := r.RemoveTx(ctx, tx, userID, oldToken)
		if err != nil {
			return err
		}

		if !removed {
			return repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"user_id": userID.String(),
				})
		}

		return r.AddTx(ctx, tx, userID, newToken)
	})
}

func (r *refreshTokens) Count(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := r.db.NewSelect().Model((*RefreshToken)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Count(ctx)

	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to count refresh tokens")
	}

	return count, nil
}
