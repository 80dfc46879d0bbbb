package authflow

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an identity
type Identity interface {
	ID() string
	Username() string
	Email() string
	Role() string
}

// Config holds authflow options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetTokenExpiration() int
	GetExtendedTokenDuration() int
	GetRecoveryTokenTTL() time.Duration
	GetSweepInterval() time.Duration
	GetInactivityThreshold() time.Duration
	GetActivityTickInterval() time.Duration
}

// SubjectStore ensures we have a store to retrieve recovery subjects
type SubjectStore interface {
	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error)
}

// CredentialStore persists updated credentials once a recovery token is consumed
type CredentialStore interface {
	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// Notifier delivers the recovery link to the subject, e.g. over email
type Notifier interface {
	SendRecoveryLink(ctx context.Context, email, token string) error
}

// IdentityProvider verifies credentials during the login exchange
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error)
	FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error)
}

// LogoutNotifier tells the server to invalidate a refresh token. Failures are
// swallowed: local logout must never be blocked by network failure.
type LogoutNotifier interface {
	InvalidateRefreshToken(ctx context.Context, refreshToken string) error
}

// LoginExchanger performs the credential exchange that backs a login dispatch.
type LoginExchanger interface {
	Exchange(ctx context.Context, identifier, password string) (*SessionSubject, TokenPair, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTHFLOW "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTHFLOW "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTHFLOW "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTHFLOW "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
