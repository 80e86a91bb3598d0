package credentials

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// LoginResult is what a successful login or refresh returns to the caller.
type LoginResult struct {
	User   *Profile   `json:"user"`
	Tokens *TokenPair `json:"tokens"`
}

// SessionManager orchestrates login, refresh, logout, and logout-everywhere.
// It is the only component that mutates the active refresh token set.
type SessionManager struct {
	repo         RepositoryManager
	tokenService TokenService
	hasher       PasswordAuthenticator
	logger       Logger
	activitySink ActivitySink
}

// NewSessionManager returns a new SessionManager
func NewSessionManager(repo RepositoryManager, tokenService TokenService) *SessionManager {
	return &SessionManager{
		repo:         repo,
		tokenService: tokenService,
		hasher:       BcryptHasher{},
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *SessionManager) WithLogger(logger Logger) *SessionManager {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting session events.
func (s *SessionManager) WithActivitySink(sink ActivitySink) *SessionManager {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithHasher overrides the password authenticator.
func (s *SessionManager) WithHasher(hasher PasswordAuthenticator) *SessionManager {
	if hasher != nil {
		s.hasher = hasher
	}
	return s
}

// TokenService returns the TokenService instance used by this manager
func (s *SessionManager) TokenService() TokenService {
	return s.tokenService
}

// Login verifies the credentials and issues a fresh token pair, adding the
// new refresh token to the user's active set. Unknown email and wrong
// password produce the identical error so callers cannot enumerate accounts.
func (s *SessionManager) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			s.emitSessionEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
				"email": NormalizeEmail(email),
			})
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during login")
	}

	if err := s.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		s.emitSessionEvent(ctx, ActivityEventLoginFailure, s.actorForUser(user), user.ID.String(), map[string]any{
			"email": user.Email,
		})
		return nil, ErrMismatchedHashAndPassword
	}

	pair, err := s.tokenService.IssuePair(user.ID.String(), user.Email)
	if err != nil {
		s.logger.Error("Login failed to issue token pair: %v", err)
		return nil, err
	}

	if err := s.repo.RefreshTokens().Add(ctx, user.ID, pair.RefreshToken); err != nil {
		s.logger.Error("Login failed to persist refresh token: %v", err)
		return nil, err
	}

	s.emitSessionEvent(ctx, ActivityEventLoginSuccess, s.actorForUser(user), user.ID.String(), map[string]any{
		"email": user.Email,
	})

	return &LoginResult{
		User:   user.Profile(),
		Tokens: pair,
	}, nil
}

// Refresh exchanges an active refresh token for a new pair, rotating the old
// token out of the active set. Rotation is one shot: two concurrent calls
// presenting the same token resolve so exactly one succeeds.
func (s *SessionManager) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.tokenService.VerifyRefresh(refreshToken)
	if err != nil {
		s.logger.Error("Refresh token verification failed: %v", err)
		return nil, err
	}

	userID, err := claims.UserUUID()
	if err != nil {
		return nil, ErrTokenMalformed
	}

	user, err := s.repo.Users().GetByID(ctx, claims.UserID())
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during refresh")
	}

	// Membership check catches reuse of a rotated-out token before we mint a
	// replacement; the rotation below re-checks atomically to settle races.
	active, err := s.repo.RefreshTokens().Has(ctx, userID, refreshToken)
	if err != nil {
		return nil, err
	}
	if !active {
		s.emitSessionEvent(ctx, ActivityEventLoginFailure, s.actorForUser(user), user.ID.String(), map[string]any{
			"reason": "refresh token reuse",
		})
		return nil, ErrInvalidRefreshToken
	}

	pair, err := s.tokenService.IssuePair(user.ID.String(), user.Email)
	if err != nil {
		s.logger.Error("Refresh failed to issue token pair: %v", err)
		return nil, err
	}

	if err := s.repo.RefreshTokens().Rotate(ctx, userID, refreshToken, pair.RefreshToken); err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			// lost the rotation race to a concurrent refresh
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	s.emitSessionEvent(ctx, ActivityEventTokenRefresh, s.actorForUser(user), user.ID.String(), nil)

	return &LoginResult{
		User:   user.Profile(),
		Tokens: pair,
	}, nil
}

// Logout removes exactly one refresh token from the active set. Removing a
// token that is not a member is not an error.
func (s *SessionManager) Logout(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	removed, err := s.repo.RefreshTokens().Remove(ctx, userID, refreshToken)
	if err != nil {
		return err
	}

	s.emitSessionEvent(ctx, ActivityEventLogout, ActorRef{ID: userID.String(), Type: "user"}, userID.String(), map[string]any{
		"removed": removed,
	})

	return nil
}

// LogoutAll clears the user's entire active refresh token set.
func (s *SessionManager) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.RefreshTokens().Clear(ctx, userID); err != nil {
		return err
	}

	s.emitSessionEvent(ctx, ActivityEventLogoutAll, ActorRef{ID: userID.String(), Type: "user"}, userID.String(), nil)

	return nil
}

// GetProfile returns the public projection of the user record.
func (s *SessionManager) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.repo.Users().GetByID(ctx, userID)
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user profile")
	}

	return user.Profile(), nil
}

func (s *SessionManager) emitSessionEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func (s *SessionManager) actorForUser(user *User) ActorRef {
	if user == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   user.ID.String(),
		Type: "user",
	}
}
