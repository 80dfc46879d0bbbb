package authflow_test

import (
	"context"
	"testing"
	"time"

	authflow "github.com/goliatone/go-authflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testSubject() *authflow.SessionSubject {
	return &authflow.SessionSubject{
		ID:       "7d0efc21-6c5d-4de0-9ae7-9e13c231cd52",
		Username: "pepe.rone",
		Email:    "pepe.rone@example.com",
		Role:     authflow.RoleMember,
	}
}

func testTokens() authflow.TokenPair {
	return authflow.TokenPair{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
	}
}

func TestReduceSessionLoginSuccessFromUnauthenticated(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	state := authflow.SessionState{Status: authflow.SessionUnauthenticated}

	next, effects := authflow.ReduceSession(state, authflow.LoginSuccess{
		Subject: testSubject(),
		Tokens:  testTokens(),
	}, now)

	assert.Equal(t, authflow.SessionAuthenticated, next.Status)
	assert.True(t, next.IsAuthenticated())
	assert.Equal(t, now, next.LastActivityAt)
	assert.Empty(t, next.Error)
	assert.False(t, next.Loading)
	assert.Equal(t, []authflow.SessionEffect{authflow.EffectPersistSession}, effects)
}

func TestReduceSessionLoginFailure(t *testing.T) {
	now := time.Now()
	state := authflow.SessionState{Status: authflow.SessionAuthenticating, Loading: true}

	next, effects := authflow.ReduceSession(state, authflow.LoginFailure{Message: "invalid credentials"}, now)

	assert.Equal(t, authflow.SessionFailed, next.Status)
	assert.False(t, next.Loading)
	assert.Equal(t, "invalid credentials", next.Error)
	assert.Empty(t, effects)
}

func TestReduceSessionLoginFailureIgnoredOutsideAuthenticating(t *testing.T) {
	now := time.Now()
	state := authflow.SessionState{Status: authflow.SessionUnauthenticated}

	next, effects := authflow.ReduceSession(state, authflow.LoginFailure{Message: "boom"}, now)

	assert.Equal(t, state, next)
	assert.Empty(t, effects)
}

func TestReduceSessionSecondLoginStartIgnored(t *testing.T) {
	now := time.Now()
	state := authflow.SessionState{Status: authflow.SessionAuthenticating, Loading: true}

	next, effects := authflow.ReduceSession(state, authflow.LoginStart{}, now)

	assert.Equal(t, state, next)
	assert.Empty(t, effects)
}

func TestReduceSessionLogoutClearsEverything(t *testing.T) {
	now := time.Now()
	state := authflow.SessionState{
		Status:         authflow.SessionAuthenticated,
		Subject:        testSubject(),
		AccessToken:    "access-token",
		RefreshToken:   "refresh-token",
		LastActivityAt: now.Add(-time.Minute),
	}

	next, effects := authflow.ReduceSession(state, authflow.Logout{Reason: authflow.LogoutReasonUser}, now)

	assert.Equal(t, authflow.SessionUnauthenticated, next.Status)
	assert.Nil(t, next.Subject)
	assert.Empty(t, next.AccessToken)
	assert.Empty(t, next.RefreshToken)
	assert.True(t, next.LastActivityAt.IsZero())
	assert.Equal(t, []authflow.SessionEffect{
		authflow.EffectClearStorage,
		authflow.EffectNotifyLogout,
	}, effects)
}

func TestReduceSessionTouchActivityOnlyAdvances(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	state := authflow.SessionState{
		Status:         authflow.SessionAuthenticated,
		Subject:        testSubject(),
		AccessToken:    "access-token",
		LastActivityAt: base,
	}

	next, _ := authflow.ReduceSession(state, authflow.TouchActivity{}, base.Add(time.Minute))
	assert.Equal(t, base.Add(time.Minute), next.LastActivityAt)

	// the watermark never moves backwards
	next, effects := authflow.ReduceSession(next, authflow.TouchActivity{}, base)
	assert.Equal(t, base.Add(time.Minute), next.LastActivityAt)
	assert.Empty(t, effects)
}

func TestReduceSessionClearError(t *testing.T) {
	state := authflow.SessionState{Status: authflow.SessionFailed, Error: "bad login"}

	next, _ := authflow.ReduceSession(state, authflow.ClearError{}, time.Now())

	assert.Equal(t, authflow.SessionUnauthenticated, next.Status)
	assert.Empty(t, next.Error)
}

func TestSessionStoreDispatchPersistsOnLogin(t *testing.T) {
	storage := authflow.NewMemorySessionStorage()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := authflow.NewSessionStore(
		authflow.WithSessionStorage(storage),
		authflow.WithSessionClock(func() time.Time { return now }),
	)

	store.Dispatch(authflow.LoginSuccess{Subject: testSubject(), Tokens: testTokens()})

	state := store.GetState()
	require.True(t, state.IsAuthenticated())
	assert.Equal(t, "pepe.rone", state.Subject.Username)

	stored, err := storage.Load()
	require.NoError(t, err)
	assert.Equal(t, "access-token", stored.AccessToken)
	assert.Equal(t, "refresh-token", stored.RefreshToken)
	assert.Contains(t, stored.Subject, "pepe.rone")
	assert.NotEmpty(t, stored.LastActivity)
}

func TestSessionStoreLogoutClearsStorageAndNotifies(t *testing.T) {
	storage := authflow.NewMemorySessionStorage()
	notifier := &MockLogoutNotifier{}
	notifier.On("InvalidateRefreshToken", mock.Anything, "refresh-token").Return(nil).Once()

	store := authflow.NewSessionStore(
		authflow.WithSessionStorage(storage),
		authflow.WithLogoutNotifier(notifier),
	)

	store.Dispatch(authflow.LoginSuccess{Subject: testSubject(), Tokens: testTokens()})
	store.Logout()

	state := store.GetState()
	assert.Equal(t, authflow.SessionUnauthenticated, state.Status)
	assert.Nil(t, state.Subject)

	stored, err := storage.Load()
	require.NoError(t, err)
	assert.True(t, stored.IsEmpty())

	require.True(t, waitFor(time.Second, func() bool {
		return len(notifier.Calls) == 1
	}))
	notifier.AssertExpectations(t)
}

func TestSessionStoreLogoutSurvivesNotifierFailure(t *testing.T) {
	storage := authflow.NewMemorySessionStorage()
	notifier := &MockLogoutNotifier{}
	notifier.On("InvalidateRefreshToken", mock.Anything, mock.Anything).
		Return(assert.AnError)

	store := authflow.NewSessionStore(
		authflow.WithSessionStorage(storage),
		authflow.WithLogoutNotifier(notifier),
	)

	store.Dispatch(authflow.LoginSuccess{Subject: testSubject(), Tokens: testTokens()})
	store.Logout()

	// local state clears unconditionally even though the notification failed
	assert.Equal(t, authflow.SessionUnauthenticated, store.GetState().Status)
	stored, err := storage.Load()
	require.NoError(t, err)
	assert.True(t, stored.IsEmpty())
}

func TestSessionStoreSubscribersSeeUpdatedState(t *testing.T) {
	store := authflow.NewSessionStore()

	var seen []authflow.SessionStatus
	unsubscribe := store.Subscribe(func(state authflow.SessionState) {
		seen = append(seen, state.Status)
	})

	store.Dispatch(authflow.LoginStart{})
	store.Dispatch(authflow.LoginSuccess{Subject: testSubject(), Tokens: testTokens()})

	unsubscribe()
	store.Logout()

	assert.Equal(t, []authflow.SessionStatus{
		authflow.SessionAuthenticating,
		authflow.SessionAuthenticated,
	}, seen)
}

func TestSessionStoreLoginExchangeSuccess(t *testing.T) {
	exchanger := &stubExchanger{subject: testSubject(), tokens: testTokens()}
	store := authflow.NewSessionStore(
		authflow.WithLoginExchanger(exchanger),
	)

	store.Login(context.Background(), "pepe.rone@example.com", "password123")

	require.True(t, waitFor(time.Second, func() bool {
		return store.GetState().IsAuthenticated()
	}))
}

func TestSessionStoreLoginExchangeFailure(t *testing.T) {
	exchanger := &stubExchanger{err: assert.AnError}
	store := authflow.NewSessionStore(
		authflow.WithLoginExchanger(exchanger),
	)

	store.Login(context.Background(), "pepe.rone@example.com", "wrong")

	require.True(t, waitFor(time.Second, func() bool {
		return store.GetState().Status == authflow.SessionFailed
	}))
	assert.Equal(t, assert.AnError.Error(), store.GetState().Error)
}

func TestSessionStoreStaleLoginResolutionDiscarded(t *testing.T) {
	release := make(chan struct{})
	exchanger := &stubExchanger{
		subject: testSubject(),
		tokens:  testTokens(),
		block:   release,
	}
	store := authflow.NewSessionStore(
		authflow.WithLoginExchanger(exchanger),
	)

	store.Login(context.Background(), "pepe.rone@example.com", "password123")
	require.Equal(t, authflow.SessionAuthenticating, store.GetState().Status)

	// the user logs out while the exchange is still in flight
	store.Logout()
	close(release)

	// the eventual resolution must be a no-op
	time.Sleep(50 * time.Millisecond)
	state := store.GetState()
	assert.Equal(t, authflow.SessionUnauthenticated, state.Status)
	assert.Nil(t, state.Subject)
}

func TestSessionStoreIgnoresConcurrentLogin(t *testing.T) {
	release := make(chan struct{})
	exchanger := &stubExchanger{
		subject: testSubject(),
		tokens:  testTokens(),
		block:   release,
	}
	store := authflow.NewSessionStore(
		authflow.WithLoginExchanger(exchanger),
	)

	store.Login(context.Background(), "pepe.rone@example.com", "password123")
	store.Login(context.Background(), "pepe.rone@example.com", "password123")

	close(release)

	require.True(t, waitFor(time.Second, func() bool {
		return store.GetState().IsAuthenticated()
	}))
}

func TestSessionStoreHydratesFromStorage(t *testing.T) {
	storage := authflow.NewMemorySessionStorage()
	require.NoError(t, storage.Save(authflow.StoredSession{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		Subject:      `{"id":"abc","username":"pepe.rone","role":"member"}`,
		LastActivity: time.Now().Add(-time.Minute).Format(time.RFC3339Nano),
	}))

	store := authflow.NewSessionStore(
		authflow.WithSessionStorage(storage),
	)

	state := store.GetState()
	require.True(t, state.IsAuthenticated())
	assert.Equal(t, "abc", state.Subject.ID)
	assert.Equal(t, authflow.RoleMember, state.Subject.Role)
	assert.False(t, state.LastActivityAt.IsZero())
}

func TestSessionStoreDiscardsExpiredPersistedToken(t *testing.T) {
	cfg := newTestConfig()
	service := authflow.NewTokenServiceFromConfig(cfg, nil)

	past := time.Now().Add(-48 * time.Hour)
	expiredService := authflow.NewTokenServiceFromConfig(cfg, nil).
		WithClock(func() time.Time { return past })

	pair, err := expiredService.GeneratePair(TestIdentity{id: "abc", role: "member"})
	require.NoError(t, err)

	storage := authflow.NewMemorySessionStorage()
	require.NoError(t, storage.Save(authflow.StoredSession{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Subject:      `{"id":"abc","role":"member"}`,
	}))

	store := authflow.NewSessionStore(
		authflow.WithSessionStorage(storage),
		authflow.WithSessionTokenService(service),
	)

	assert.Equal(t, authflow.SessionUnauthenticated, store.GetState().Status)
	stored, err := storage.Load()
	require.NoError(t, err)
	assert.True(t, stored.IsEmpty())
}

func TestSessionStoreRecordsLogoutActivity(t *testing.T) {
	sink := &capturingSink{}
	store := authflow.NewSessionStore(
		authflow.WithSessionActivitySink(sink),
	)

	store.Dispatch(authflow.LoginSuccess{Subject: testSubject(), Tokens: testTokens()})
	store.Dispatch(authflow.Logout{Reason: authflow.LogoutReasonInactivity})

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, authflow.ActivityEventSessionExpired, events[0].EventType)
	assert.Equal(t, "inactivity", events[0].Metadata["reason"])
}
