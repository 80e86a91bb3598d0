package credentials

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type ResendVerificationMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *ResendVerificationResponse)
}

func (e ResendVerificationMessage) Type() string { return "credentials.resend_verification" }

type ResendVerificationResponse struct {
	User *Profile
}

// ResendVerificationHandler issues a fresh verification token, overwriting
// any previous one with a new 24h expiry. Unlike registration, delivery
// failure here is surfaced to the caller.
type ResendVerificationHandler struct {
	repo   RepositoryManager
	sender NotificationSender
	logger Logger
}

// NewResendVerificationHandler creates a handler with sane defaults.
func NewResendVerificationHandler(repo RepositoryManager, sender NotificationSender) *ResendVerificationHandler {
	return &ResendVerificationHandler{
		repo:   repo,
		sender: normalizeSender(sender),
		logger: defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *ResendVerificationHandler) WithLogger(logger Logger) *ResendVerificationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ResendVerificationHandler) Execute(ctx context.Context, event ResendVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification resend",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResendVerificationHandler) execute(ctx context.Context, event ResendVerificationMessage) error {
	user := &User{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	verification, err := NewVerificationToken(time.Now())
	if err != nil {
		return err
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err = h.repo.Users().GetByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
				return ErrIdentityNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for verification resend")
		}

		if user.EmailVerified {
			return ErrAlreadyVerified
		}

		user, err = h.repo.Users().SetVerificationTokenTx(ctx, tx, user.ID, verification)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist verification token")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resend verification")
	}

	// Explicit resend: delivery failure is a hard error for the caller.
	if err := h.sender.SendVerification(ctx, user.Email, user.FirstName, verification.Value); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to deliver verification email")
	}

	if event.OnResponse != nil {
		event.OnResponse(&ResendVerificationResponse{User: user.Profile()})
	}

	return nil
}
