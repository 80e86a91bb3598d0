package credentials_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	credentials "github.com/goliatone/go-credentials"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// memUsers is an in-memory Users implementation. Methods outside the
// surface exercised by the managers are left to the embedded interface and
// panic if called.
type memUsers struct {
	credentials.Users

	mu      sync.Mutex
	records map[uuid.UUID]*credentials.User
}

func newMemUsers() *memUsers {
	return &memUsers{
		records: map[uuid.UUID]*credentials.User{},
	}
}

func (m *memUsers) clone(u *credentials.User) *credentials.User {
	if u == nil {
		return nil
	}
	copied := *u
	return &copied
}

func (m *memUsers) Register(ctx context.Context, user *credentials.User) (*credentials.User, error) {
	return m.RegisterTx(ctx, nil, user)
}

func (m *memUsers) RegisterTx(ctx context.Context, tx bun.IDB, user *credentials.User) (*credentials.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user.Email = credentials.NormalizeEmail(user.Email)

	for _, existing := range m.records {
		if existing.Email == user.Email {
			return nil, credentials.ErrDuplicateEmail
		}
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	now := time.Now()
	user.CreatedAt = &now
	user.UpdatedAt = &now

	m.records[user.ID] = m.clone(user)
	return m.clone(user), nil
}

func (m *memUsers) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*credentials.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, repository.NewRecordNotFound()
	}

	user, ok := m.records[uid]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}

	return m.clone(user), nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*credentials.User, error) {
	return m.GetByEmailTx(ctx, nil, email)
}

func (m *memUsers) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*credentials.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	normalized := credentials.NormalizeEmail(email)
	for _, user := range m.records {
		if user.Email == normalized {
			return m.clone(user), nil
		}
	}

	return nil, repository.NewRecordNotFound()
}

func (m *memUsers) GetByVerificationToken(ctx context.Context, token string) (*credentials.User, error) {
	return m.GetByVerificationTokenTx(ctx, nil, token)
}

func (m *memUsers) GetByVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*credentials.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.records {
		if user.EmailVerificationToken != nil && *user.EmailVerificationToken == token &&
			user.EmailVerificationExpiresAt != nil && time.Now().Before(*user.EmailVerificationExpiresAt) {
			return m.clone(user), nil
		}
	}

	return nil, repository.NewRecordNotFound()
}

func (m *memUsers) GetByPasswordResetToken(ctx context.Context, token string) (*credentials.User, error) {
	return m.GetByPasswordResetTokenTx(ctx, nil, token)
}

func (m *memUsers) GetByPasswordResetTokenTx(ctx context.Context, tx bun.IDB, token string) (*credentials.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.records {
		if user.PasswordResetToken != nil && *user.PasswordResetToken == token &&
			user.PasswordResetExpiresAt != nil && time.Now().Before(*user.PasswordResetExpiresAt) {
			return m.clone(user), nil
		}
	}

	return nil, repository.NewRecordNotFound()
}

func (m *memUsers) SetVerificationToken(ctx context.Context, id uuid.UUID, token credentials.OneTimeToken) (*credentials.User, error) {
	return m.SetVerificationTokenTx(ctx, nil, id, token)
}

func (m *memUsers) SetVerificationTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token credentials.OneTimeToken) (*credentials.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.records[id]
	if !ok || user.EmailVerified {
		return nil, repository.NewRecordNotFound()
	}

	value := token.Value
	expiresAt := token.ExpiresAt
	user.EmailVerificationToken = &value
	user.EmailVerificationExpiresAt = &expiresAt
	m.touch(user)

	return m.clone(user), nil
}

func (m *memUsers) MarkEmailVerified(ctx context.Context, id uuid.UUID) (*credentials.User, error) {
	return m.MarkEmailVerifiedTx(ctx, nil, id)
}

func (m *memUsers) MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*credentials.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.records[id]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}

	user.EmailVerified = true
	user.EmailVerificationToken = nil
	user.EmailVerificationExpiresAt = nil
	m.touch(user)

	return m.clone(user), nil
}

func (m *memUsers) SetPasswordResetToken(ctx context.Context, id uuid.UUID, token credentials.OneTimeToken) (*credentials.User, error) {
	return m.SetPasswordResetTokenTx(ctx, nil, id, token)
}

func (m *memUsers) SetPasswordResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token credentials.OneTimeToken) (*credentials.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.records[id]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}

	value := token.Value
	expiresAt := token.ExpiresAt
	user.PasswordResetToken = &value
	user.PasswordResetExpiresAt = &expiresAt
	m.touch(user)

	return m.clone(user), nil
}

func (m *memUsers) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return m.ResetPasswordTx(ctx, nil, id, passwordHash)
}

func (m *memUsers) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.records[id]
	if !ok {
		return repository.NewRecordNotFound()
	}

	user.PasswordHash = passwordHash
	user.PasswordResetToken = nil
	user.PasswordResetExpiresAt = nil
	m.touch(user)

	return nil
}

func (m *memUsers) touch(user *credentials.User) {
	now := time.Now()
	user.UpdatedAt = &now
}

// memRefreshTokens is an in-memory RefreshTokens implementation with
// compare-and-remove semantics under a single lock.
type memRefreshTokens struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]map[string]bool
}

func newMemRefreshTokens() *memRefreshTokens {
	return &memRefreshTokens{
		tokens: map[uuid.UUID]map[string]bool{},
	}
}

func (m *memRefreshTokens) Add(ctx context.Context, userID uuid.UUID, token string) error {
	return m.AddTx(ctx, nil, userID, token)
}

func (m *memRefreshTokens) AddTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tokens[userID] == nil {
		m.tokens[userID] = map[string]bool{}
	}
	m.tokens[userID][token] = true
	return nil
}

func (m *memRefreshTokens) Remove(ctx context.Context, userID uuid.UUID, token string) (bool, error) {
	return m.RemoveTx(ctx, nil, userID, token)
}

func (m *memRefreshTokens) RemoveTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.removeLocked(userID, token), nil
}

func (m *memRefreshTokens) removeLocked(userID uuid.UUID, token string) bool {
	set, ok := m.tokens[userID]
	if !ok || !set[token] {
		return false
	}
	delete(set, token)
	return true
}

func (m *memRefreshTokens) Clear(ctx context.Context, userID uuid.UUID) error {
	return m.ClearTx(ctx, nil, userID)
}

func (m *memRefreshTokens) ClearTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.tokens, userID)
	return nil
}

func (m *memRefreshTokens) Has(ctx context.Context, userID uuid.UUID, token string) (bool, error) {
	return m.HasTx(ctx, nil, userID, token)
}

func (m *memRefreshTokens) HasTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.tokens[userID][token], nil
}

func (m *memRefreshTokens) Rotate(ctx context.Context, userID uuid.UUID, oldToken, newToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.removeLocked(userID, oldToken) {
		return repository.NewRecordNotFound()
	}

	if m.tokens[userID] == nil {
		m.tokens[userID] = map[string]bool{}
	}
	m.tokens[userID][newToken] = true
	return nil
}

func (m *memRefreshTokens) Count(ctx context.Context, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.tokens[userID]), nil
}

// memRepoManager wires the in-memory repositories behind the
// RepositoryManager contract. RunInTx just invokes the function: the fakes
// are individually atomic.
type memRepoManager struct {
	users         *memUsers
	refreshTokens *memRefreshTokens
}

func newMemRepoManager() *memRepoManager {
	return &memRepoManager{
		users:         newMemUsers(),
		refreshTokens: newMemRefreshTokens(),
	}
}

func (m *memRepoManager) Validate() error { return nil }

func (m *memRepoManager) MustValidate() {}

func (m *memRepoManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return f(ctx, bun.Tx{})
	}
}

func (m *memRepoManager) Users() credentials.Users { return m.users }

func (m *memRepoManager) RefreshTokens() credentials.RefreshTokens { return m.refreshTokens }

// plainHasher keeps manager tests fast by skipping bcrypt.
type plainHasher struct{}

func (plainHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", credentials.ErrNoEmptyString
	}
	return "plain:" + password, nil
}

func (plainHasher) ComparePasswordAndHash(password, hash string) error {
	if "plain:"+password != hash {
		return credentials.ErrMismatchedHashAndPassword
	}
	return nil
}

// capturingSender records notification calls; fail toggles hard failures.
type capturingSender struct {
	mu            sync.Mutex
	fail          error
	verifications []sentNotification
	resets        []sentNotification
	delivered     chan sentNotification
}

type sentNotification struct {
	Email     string
	FirstName string
	Token     string
}

func newCapturingSender() *capturingSender {
	return &capturingSender{
		delivered: make(chan sentNotification, 16),
	}
}

func (s *capturingSender) failWith(err error) *capturingSender {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
	return s
}

func (s *capturingSender) SendVerification(ctx context.Context, email, firstName, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail != nil {
		return s.fail
	}

	n := sentNotification{Email: email, FirstName: firstName, Token: token}
	s.verifications = append(s.verifications, n)
	s.delivered <- n
	return nil
}

func (s *capturingSender) SendPasswordReset(ctx context.Context, email, firstName, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail != nil {
		return s.fail
	}

	n := sentNotification{Email: email, FirstName: firstName, Token: token}
	s.resets = append(s.resets, n)
	s.delivered <- n
	return nil
}

func (s *capturingSender) verificationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.verifications)
}

func (s *capturingSender) resetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resets)
}

// capturingSink records activity events.
type capturingSink struct {
	mu     sync.Mutex
	events []credentials.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt credentials.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) eventTypes() []credentials.ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()

	types := make([]credentials.ActivityEventType, 0, len(c.events))
	for _, evt := range c.events {
		types = append(types, evt.EventType)
	}
	return types
}

// testConfig implements the Config interface for tests.
type testConfig struct {
	accessKey  string
	refreshKey string
	accessTTL  string
	refreshTTL string
	issuer     string
	audience   []string
}

func newTestConfig() *testConfig {
	return &testConfig{
		accessKey:  "test-access-signing-key",
		refreshKey: "test-refresh-signing-key",
		accessTTL:  "15m",
		refreshTTL: "168h",
		issuer:     "test-issuer",
		audience:   []string{"test-audience"},
	}
}

func (c *testConfig) GetAccessSigningKey() string { return c.accessKey }

func (c *testConfig) GetRefreshSigningKey() string { return c.refreshKey }

func (c *testConfig) GetAccessTokenExpiration() string { return c.accessTTL }

func (c *testConfig) GetRefreshTokenExpiration() string { return c.refreshTTL }

func (c *testConfig) GetIssuer() string { return c.issuer }

func (c *testConfig) GetAudience() []string { return c.audience }
