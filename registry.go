package authflow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	// DefaultRecoveryTokenTTL is the validity window fixed at issuance.
	DefaultRecoveryTokenTTL = 15 * time.Minute
	// DefaultSweepInterval is how often the background sweep runs.
	DefaultSweepInterval = 5 * time.Minute

	recoveryTokenBytes = 32
	maxIssueAttempts   = 5
)

// RecoveryToken is a single-use credential permitting exactly one password
// reset within a bounded time window.
type RecoveryToken struct {
	Token     string
	SubjectID uuid.UUID
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Consumed  bool
}

// ResetTokenRegistry owns the mapping from opaque token string to recovery
// request record. A single mutex guards the map so Consume is atomic with
// respect to concurrent Consume and Sweep calls on the same token.
type ResetTokenRegistry struct {
	mu            sync.Mutex
	tokens        map[string]*RecoveryToken
	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	logger        Logger
	activitySink  ActivitySink
}

// RegistryOption customizes registry construction.
type RegistryOption func(*ResetTokenRegistry)

// WithRegistryClock injects a custom clock (useful for tests).
func WithRegistryClock(clock func() time.Time) RegistryOption {
	return func(r *ResetTokenRegistry) {
		if clock != nil {
			r.now = clock
		}
	}
}

// WithRegistryTTL overrides the token validity window.
func WithRegistryTTL(ttl time.Duration) RegistryOption {
	return func(r *ResetTokenRegistry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithRegistrySweepInterval overrides how often StartSweeping runs a pass.
func WithRegistrySweepInterval(interval time.Duration) RegistryOption {
	return func(r *ResetTokenRegistry) {
		if interval > 0 {
			r.sweepInterval = interval
		}
	}
}

// WithRegistryLogger overrides the logger used for sweep diagnostics.
func WithRegistryLogger(logger Logger) RegistryOption {
	return func(r *ResetTokenRegistry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRegistryActivitySink sets the sink used to publish token lifecycle events.
func WithRegistryActivitySink(sink ActivitySink) RegistryOption {
	return func(r *ResetTokenRegistry) {
		r.activitySink = normalizeActivitySink(sink)
	}
}

// NewResetTokenRegistry returns an in-memory, mutex-guarded token registry.
func NewResetTokenRegistry(opts ...RegistryOption) *ResetTokenRegistry {
	registry := &ResetTokenRegistry{
		tokens:        map[string]*RecoveryToken{},
		ttl:           DefaultRecoveryTokenTTL,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		logger:        defLogger{},
		activitySink:  noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(registry)
		}
	}

	return registry
}

// Issue generates a new unique token and stores an unconsumed record expiring
// at now + TTL. On the (negligible) chance of a collision with a live entry we
// re-roll rather than overwrite.
func (r *ResetTokenRegistry) Issue(ctx context.Context, subjectID uuid.UUID, email string) (string, error) {
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		token, err := generateRecoveryToken()
		if err != nil {
			return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate recovery token")
		}

		r.mu.Lock()
		if _, exists := r.tokens[token]; exists {
			r.mu.Unlock()
			continue
		}

		now := r.now()
		r.tokens[token] = &RecoveryToken{
			Token:     token,
			SubjectID: subjectID,
			Email:     email,
			IssuedAt:  now,
			ExpiresAt: now.Add(r.ttl),
		}
		r.mu.Unlock()

		r.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventTokenIssued,
			SubjectID: subjectID.String(),
			Metadata:  map[string]any{"email": email},
		})

		return token, nil
	}

	return "", goerrors.New("could not generate a unique recovery token", goerrors.CategoryInternal)
}

// Verify looks up a token without consuming it. Consumed tokens are retained
// until the next sweep; expired tokens are eagerly evicted so a subsequent
// Verify reports them as not found.
func (r *ResetTokenRegistry) Verify(ctx context.Context, token string) (RecoveryToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.tokens[token]
	if !ok {
		return RecoveryToken{}, ErrTokenNotFound
	}

	if record.Consumed {
		return RecoveryToken{}, ErrTokenAlreadyUsed
	}

	if r.now().After(record.ExpiresAt) {
		delete(r.tokens, token)
		return RecoveryToken{}, ErrTokenExpired
	}

	return *record, nil
}

// Consume atomically transitions a valid, unconsumed, unexpired token to
// consumed. If two callers race on the same token exactly one succeeds.
func (r *ResetTokenRegistry) Consume(ctx context.Context, token string) error {
	r.mu.Lock()

	record, ok := r.tokens[token]
	if !ok {
		r.mu.Unlock()
		return ErrTokenNotFound
	}

	if record.Consumed {
		r.mu.Unlock()
		return ErrTokenAlreadyUsed
	}

	if r.now().After(record.ExpiresAt) {
		delete(r.tokens, token)
		r.mu.Unlock()
		return ErrTokenExpired
	}

	record.Consumed = true
	subjectID := record.SubjectID
	r.mu.Unlock()

	r.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventTokenConsumed,
		SubjectID: subjectID.String(),
	})

	return nil
}

// Sweep removes all expired or consumed entries and reports how many were
// evicted. Running it twice with no intervening issuance removes nothing the
// second time.
func (r *ResetTokenRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for token, record := range r.tokens {
		if record.Consumed || now.After(record.ExpiresAt) {
			delete(r.tokens, token)
			removed++
		}
	}

	return removed
}

// Len reports how many entries the registry currently holds.
func (r *ResetTokenRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}

// StartSweeping runs Sweep on a fixed interval until the returned stop
// function is called or ctx is cancelled. It is never invoked inline with
// user-facing requests; a failing pass is logged and skipped for that cycle.
func (r *ResetTokenRegistry) StartSweeping(ctx context.Context) func() {
	sweepCtx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(r.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				r.sweepCycle()
			}
		}
	}()

	return cancel
}

func (r *ResetTokenRegistry) sweepCycle() {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("recovery token sweep skipped: %v", rec)
		}
	}()

	if removed := r.Sweep(); removed > 0 {
		r.logger.Debug("recovery token sweep evicted %d entries", removed)
	}
}

func (r *ResetTokenRegistry) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = r.now()
	}

	if err := normalizeActivitySink(r.activitySink).Record(ctx, event); err != nil {
		r.logger.Warn("registry activity sink error: %v", err)
	}
}

func generateRecoveryToken() (string, error) {
	buf := make([]byte, recoveryTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
