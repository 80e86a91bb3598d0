package credentials

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type RequestPasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *RequestPasswordResetResponse)
}

func (e RequestPasswordResetMessage) Type() string { return "credentials.password_reset_request" }

type RequestPasswordResetResponse struct {
	Success bool
}

// RequestPasswordResetHandler attaches a 1h reset token to the account and
// triggers delivery. An unknown email reports success without doing anything:
// the response must be indistinguishable from the real one so it cannot be
// used for account enumeration.
type RequestPasswordResetHandler struct {
	repo     RepositoryManager
	sender   NotificationSender
	activity ActivitySink
	logger   Logger
}

// NewRequestPasswordResetHandler creates a handler with sane defaults.
func NewRequestPasswordResetHandler(repo RepositoryManager, sender NotificationSender) *RequestPasswordResetHandler {
	return &RequestPasswordResetHandler{
		repo:     repo,
		sender:   normalizeSender(sender),
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit reset request events.
func (h *RequestPasswordResetHandler) WithActivitySink(sink ActivitySink) *RequestPasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RequestPasswordResetHandler) WithLogger(logger Logger) *RequestPasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RequestPasswordResetHandler) Execute(ctx context.Context, event RequestPasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestPasswordResetHandler) execute(ctx context.Context, event RequestPasswordResetMessage) error {
	user := &User{}
	found := true

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	reset, err := NewPasswordResetToken(time.Now())
	if err != nil {
		return err
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err = h.repo.Users().GetByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
				found = false
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
		}

		user, err = h.repo.Users().SetPasswordResetTokenTx(ctx, tx, user.ID, reset)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist reset token")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	if found {
		if err := h.sender.SendPasswordReset(ctx, user.Email, user.FirstName, reset.Value); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to deliver password reset email")
		}

		h.recordActivity(ctx, user)
	}

	if event.OnResponse != nil {
		event.OnResponse(&RequestPasswordResetResponse{Success: true})
	}

	return nil
}

func (h *RequestPasswordResetHandler) recordActivity(ctx context.Context, user *User) {
	if user == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventPasswordResetRequest,
		Actor: ActorRef{
			ID:   user.ID.String(),
			Type: "user",
		},
		UserID:     user.ID.String(),
		Metadata:   map[string]any{},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during password reset request: %v", err)
	}
}
