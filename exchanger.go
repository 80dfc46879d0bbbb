package authflow

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// CredentialExchanger is the default LoginExchanger: it verifies credentials
// through an IdentityProvider and mints the session token pair.
type CredentialExchanger struct {
	provider IdentityProvider
	tokens   TokenService
	logger   Logger
	activity ActivitySink
}

var _ LoginExchanger = (*CredentialExchanger)(nil)

// NewCredentialExchanger creates an exchanger with sane defaults.
func NewCredentialExchanger(provider IdentityProvider, tokens TokenService) *CredentialExchanger {
	return &CredentialExchanger{
		provider: provider,
		tokens:   tokens,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
}

// WithLogger overrides the logger used by the exchanger.
func (e *CredentialExchanger) WithLogger(logger Logger) *CredentialExchanger {
	if logger != nil {
		e.logger = logger
	}
	return e
}

// WithActivitySink sets the sink used to emit login events.
func (e *CredentialExchanger) WithActivitySink(sink ActivitySink) *CredentialExchanger {
	e.activity = normalizeActivitySink(sink)
	return e
}

// Exchange implements LoginExchanger.
func (e *CredentialExchanger) Exchange(ctx context.Context, identifier, password string) (*SessionSubject, TokenPair, error) {
	identity, err := e.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		e.emitEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return nil, TokenPair{}, err
	}

	if identity == nil {
		e.emitEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
		})
		return nil, TokenPair{}, ErrMismatchedHashAndPassword
	}

	pair, err := e.tokens.GeneratePair(identity)
	if err != nil {
		return nil, TokenPair{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mint session tokens")
	}

	role, valid := ParseRole(identity.Role())
	if !valid {
		role = RoleGuest
	}

	subject := &SessionSubject{
		ID:       identity.ID(),
		Username: identity.Username(),
		Email:    identity.Email(),
		Role:     role,
	}

	e.emitEvent(ctx, ActivityEventLoginSuccess, ActorRef{ID: identity.ID(), Type: "user"}, identity.ID(), nil)

	return subject, pair, nil
}

func (e *CredentialExchanger) emitEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, subjectID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Actor:      actor,
		SubjectID:  subjectID,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(e.activity).Record(ctx, event); err != nil {
		e.logger.Warn("exchanger activity sink error: %v", err)
	}
}
