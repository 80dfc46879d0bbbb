package authflow_test

import (
	"context"
	"sync"
	"time"

	authflow "github.com/goliatone/go-authflow"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockSubjectStore implements authflow.SubjectStore
type MockSubjectStore struct {
	mock.Mock
}

func (m *MockSubjectStore) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*authflow.User, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authflow.User), args.Error(1)
}

// MockNotifier implements authflow.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendRecoveryLink(ctx context.Context, email, token string) error {
	args := m.Called(ctx, email, token)
	return args.Error(0)
}

// MockCredentialStore implements authflow.CredentialStore
type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

// MockLogoutNotifier implements authflow.LogoutNotifier
type MockLogoutNotifier struct {
	mock.Mock
}

func (m *MockLogoutNotifier) InvalidateRefreshToken(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

// stubExchanger resolves login exchanges with canned results, optionally
// blocking until released so tests can race a logout against the resolution.
type stubExchanger struct {
	subject *authflow.SessionSubject
	tokens  authflow.TokenPair
	err     error
	block   chan struct{}
}

func (s *stubExchanger) Exchange(ctx context.Context, identifier, password string) (*authflow.SessionSubject, authflow.TokenPair, error) {
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return nil, authflow.TokenPair{}, s.err
	}
	return s.subject, s.tokens, nil
}

// capturingSink collects activity events for assertions.
type capturingSink struct {
	mu     sync.Mutex
	events []authflow.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt authflow.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) Events() []authflow.ActivityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]authflow.ActivityEvent, len(c.events))
	copy(out, c.events)
	return out
}

// TestIdentity implements authflow.Identity
type TestIdentity struct {
	id       string
	username string
	email    string
	role     string
}

func (t TestIdentity) ID() string       { return t.id }
func (t TestIdentity) Username() string { return t.username }
func (t TestIdentity) Email() string    { return t.email }
func (t TestIdentity) Role() string     { return t.role }

func newTestConfig() authflow.SimpleConfig {
	return authflow.SimpleConfig{
		SigningKey:            "test-signing-key",
		Issuer:                "authflow-test",
		Audience:              []string{"test"},
		TokenExpiration:       1,
		ExtendedTokenDuration: 24,
	}
}

func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
