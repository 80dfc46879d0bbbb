package authflow

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// SessionStore is a single-writer state container for the client-held
// authentication state. Transitions are applied strictly in dispatch order and
// subscriber callbacks always observe a fully-updated state. Subscribers run
// on the dispatching goroutine and must not dispatch synchronously.
type SessionStore struct {
	mu             sync.Mutex
	state          SessionState
	generation     uint64
	listeners      map[int]func(SessionState)
	nextListenerID int

	storage        SessionStorage
	exchanger      LoginExchanger
	logoutNotifier LogoutNotifier
	tokenService   TokenService
	logger         Logger
	activitySink   ActivitySink
	now            func() time.Time
}

// SessionStoreOption customizes store construction.
type SessionStoreOption func(*SessionStore)

// WithSessionStorage sets the durable client storage the store persists to.
func WithSessionStorage(storage SessionStorage) SessionStoreOption {
	return func(s *SessionStore) {
		if storage != nil {
			s.storage = storage
		}
	}
}

// WithLoginExchanger sets the exchanger that backs Login dispatches.
func WithLoginExchanger(exchanger LoginExchanger) SessionStoreOption {
	return func(s *SessionStore) {
		s.exchanger = exchanger
	}
}

// WithLogoutNotifier sets the best-effort server-side logout notification.
func WithLogoutNotifier(notifier LogoutNotifier) SessionStoreOption {
	return func(s *SessionStore) {
		s.logoutNotifier = notifier
	}
}

// WithSessionTokenService sets the validator used when hydrating a persisted
// access token. Without it persisted tokens are trusted as-is.
func WithSessionTokenService(service TokenService) SessionStoreOption {
	return func(s *SessionStore) {
		s.tokenService = service
	}
}

// WithSessionClock injects a custom clock (useful for tests).
func WithSessionClock(clock func() time.Time) SessionStoreOption {
	return func(s *SessionStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithSessionLogger overrides the logger used for effect failures.
func WithSessionLogger(logger Logger) SessionStoreOption {
	return func(s *SessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSessionActivitySink sets the sink used to publish session events.
func WithSessionActivitySink(sink ActivitySink) SessionStoreOption {
	return func(s *SessionStore) {
		s.activitySink = normalizeActivitySink(sink)
	}
}

// NewSessionStore constructs the store and hydrates any persisted credential.
func NewSessionStore(opts ...SessionStoreOption) *SessionStore {
	store := &SessionStore{
		state:        SessionState{Status: SessionUnauthenticated},
		listeners:    map[int]func(SessionState){},
		storage:      NewMemorySessionStorage(),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	store.hydrate()

	return store
}

// GetState returns a copy of the current session state.
func (s *SessionStore) GetState() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyState(s.state)
}

// Subscribe registers a listener invoked after every applied transition. The
// returned function removes the subscription.
func (s *SessionStore) Subscribe(listener func(SessionState)) func() {
	if listener == nil {
		return func() {}
	}

	s.mu.Lock()
	id := s.nextListenerID
	s.nextListenerID++
	s.listeners[id] = listener
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Dispatch applies a session event. Stale login resolutions, i.e. events whose
// generation no longer matches the current exchange, are discarded.
func (s *SessionStore) Dispatch(event SessionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatchLocked(context.Background(), event)
}

// Login guards and runs the credential exchange: it dispatches LoginStart,
// performs the exchange off the dispatch path, and resolves it with a
// generation-tagged LoginSuccess or LoginFailure.
func (s *SessionStore) Login(ctx context.Context, identifier, password string) {
	s.mu.Lock()
	if s.state.Status == SessionAuthenticating {
		s.mu.Unlock()
		return
	}
	if s.exchanger == nil {
		s.mu.Unlock()
		s.logger.Error("session store has no login exchanger configured")
		return
	}

	s.dispatchLocked(ctx, LoginStart{})
	generation := s.generation
	exchanger := s.exchanger
	s.mu.Unlock()

	go func() {
		subject, tokens, err := exchanger.Exchange(ctx, identifier, password)
		if err != nil {
			s.Dispatch(LoginFailure{Message: err.Error(), Generation: generation})
			return
		}
		s.Dispatch(LoginSuccess{Subject: subject, Tokens: tokens, Generation: generation})
	}()
}

// Logout clears the session on behalf of the user.
func (s *SessionStore) Logout() {
	s.Dispatch(Logout{Reason: LogoutReasonUser})
}

func (s *SessionStore) dispatchLocked(ctx context.Context, event SessionEvent) {
	switch ev := event.(type) {
	case LoginStart:
		s.generation++
	case LoginSuccess:
		if ev.Generation != 0 && ev.Generation != s.generation {
			s.logger.Debug("discarding stale login success (generation %d)", ev.Generation)
			return
		}
	case LoginFailure:
		if ev.Generation != 0 && ev.Generation != s.generation {
			s.logger.Debug("discarding stale login failure (generation %d)", ev.Generation)
			return
		}
	case Logout:
		// supersede any in-flight exchange
		s.generation++
	}

	prev := s.state
	next, effects := ReduceSession(s.state, event, s.now())
	s.state = next

	s.runEffects(ctx, prev, next, event, effects)

	snapshot := copyState(next)
	for _, listener := range s.listeners {
		listener(snapshot)
	}
}

func (s *SessionStore) runEffects(ctx context.Context, prev, next SessionState, event SessionEvent, effects []SessionEffect) {
	for _, effect := range effects {
		switch effect {
		case EffectPersistSession:
			if err := s.storage.Save(encodeStoredSession(next)); err != nil {
				s.logger.Warn("failed to persist session: %v", err)
			}

		case EffectClearStorage:
			if err := s.storage.Clear(); err != nil {
				s.logger.Warn("failed to clear persisted session: %v", err)
			}

		case EffectNotifyLogout:
			s.notifyLogout(prev.RefreshToken)
			s.recordLogout(ctx, prev, event)

		case EffectBeginExchange:
			// the exchange itself is launched by Login so that a bare
			// LoginStart dispatch stays side effect free
		}
	}
}

// notifyLogout is best-effort: local state has already been cleared and a
// network failure here is swallowed.
func (s *SessionStore) notifyLogout(refreshToken string) {
	if s.logoutNotifier == nil || refreshToken == "" {
		return
	}

	notifier := s.logoutNotifier
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := notifier.InvalidateRefreshToken(ctx, refreshToken); err != nil {
			s.logger.Warn("logout notification failed: %v", err)
		}
	}()
}

func (s *SessionStore) recordLogout(ctx context.Context, prev SessionState, event SessionEvent) {
	reason := LogoutReasonUser
	if ev, ok := event.(Logout); ok && ev.Reason != "" {
		reason = ev.Reason
	}

	eventType := ActivityEventLogout
	if reason == LogoutReasonInactivity {
		eventType = ActivityEventSessionExpired
	}

	activity := ActivityEvent{
		EventType:  eventType,
		Actor:      ActorRef{Type: "user"},
		Metadata:   map[string]any{"reason": string(reason)},
		OccurredAt: s.now(),
	}
	if prev.Subject != nil {
		activity.SubjectID = prev.Subject.ID
		activity.Actor.ID = prev.Subject.ID
	}

	if err := normalizeActivitySink(s.activitySink).Record(ctx, activity); err != nil {
		s.logger.Warn("session activity sink error: %v", err)
	}
}

func (s *SessionStore) hydrate() {
	stored, err := s.storage.Load()
	if err != nil {
		s.logger.Warn("failed to load persisted session: %v", err)
		return
	}

	if stored.IsEmpty() || stored.AccessToken == "" {
		return
	}

	subject := &SessionSubject{}
	if err := json.Unmarshal([]byte(stored.Subject), subject); err != nil || subject.ID == "" {
		s.logger.Warn("discarding persisted session with unreadable subject")
		s.clearStorageQuiet()
		return
	}

	if s.tokenService != nil {
		if _, err := s.tokenService.Validate(stored.AccessToken); err != nil {
			s.logger.Info("discarding persisted session: %v", err)
			s.clearStorageQuiet()
			return
		}
	}

	lastActivity := s.now()
	if stored.LastActivity != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, stored.LastActivity); err == nil {
			lastActivity = parsed
		}
	}

	s.state = SessionState{
		Status:         SessionAuthenticated,
		Subject:        subject,
		AccessToken:    stored.AccessToken,
		RefreshToken:   stored.RefreshToken,
		LastActivityAt: lastActivity,
	}
}

func (s *SessionStore) clearStorageQuiet() {
	if err := s.storage.Clear(); err != nil {
		s.logger.Warn("failed to clear persisted session: %v", err)
	}
}

func encodeStoredSession(state SessionState) StoredSession {
	stored := StoredSession{
		AccessToken:  state.AccessToken,
		RefreshToken: state.RefreshToken,
	}

	if state.Subject != nil {
		if raw, err := json.Marshal(state.Subject); err == nil {
			stored.Subject = string(raw)
		}
	}

	if !state.LastActivityAt.IsZero() {
		stored.LastActivity = state.LastActivityAt.Format(time.RFC3339Nano)
	}

	return stored
}

func copyState(state SessionState) SessionState {
	if state.Subject != nil {
		subject := *state.Subject
		state.Subject = &subject
	}
	return state
}
