package authflow

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// SubjectTracker is a store we can use to verify subjects during login
type SubjectTracker interface {
	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error)
	TrackAttemptedLogin(ctx context.Context, user *User) error
	TrackSucccessfulLogin(ctx context.Context, user *User) error
}

// MaxLoginAttempts is the maximum number of attempts a subject gets
// in a period
var MaxLoginAttempts = 5

// CoolDownPeriod is the period in which we enforce a cool down
var CoolDownPeriod = "24h"

// SubjectProvider verifies credentials against the subject store
type SubjectProvider struct {
	store  SubjectTracker
	logger Logger
}

var _ IdentityProvider = (*SubjectProvider)(nil)

// NewSubjectProvider will create a new SubjectProvider
func NewSubjectProvider(store SubjectTracker) *SubjectProvider {
	return &SubjectProvider{
		store:  store,
		logger: defLogger{},
	}
}

// WithLogger overrides the logger used by the provider.
func (p *SubjectProvider) WithLogger(logger Logger) *SubjectProvider {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// VerifyIdentity will find the subject, compare the password, and return the identity
func (p *SubjectProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	user, err := p.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve subject during verification")
	}

	if user.LoginAttemptAt != nil {
		expired, err := IsOutsideThresholdPeriod(*user.LoginAttemptAt, CoolDownPeriod)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to calculate login attempt cooldown")
		}

		if expired {
			user.LoginAttempts = 0
		}
	}

	// if we have too many attempts in the given window, cool off!
	if user.LoginAttempts > MaxLoginAttempts {
		return nil, ErrTooManyLoginAttempts
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if err2 := p.store.TrackAttemptedLogin(ctx, user); err2 != nil {
			return nil, errors.Wrap(err2, errors.CategoryInternal, "failed to track login attempt")
		}

		return nil, ErrMismatchedHashAndPassword
	}

	if err := p.store.TrackSucccessfulLogin(ctx, user); err != nil {
		p.logger.Error("failed to track successful login: %v", err)
	}

	return identityFromUser(user), nil
}

// FindIdentityByIdentifier looks up a subject without verifying credentials
func (p *SubjectProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	user, err := p.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrSubjectNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve subject")
	}

	return identityFromUser(user), nil
}

type authIdentity struct {
	id       string
	username string
	email    string
	role     string
}

func (a authIdentity) ID() string       { return a.id }
func (a authIdentity) Username() string { return a.username }
func (a authIdentity) Email() string    { return a.email }
func (a authIdentity) Role() string     { return a.role }

func identityFromUser(user *User) Identity {
	return authIdentity{
		id:       user.ID.String(),
		username: user.Username,
		email:    user.Email,
		role:     string(user.Role),
	}
}
