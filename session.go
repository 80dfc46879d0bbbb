package authflow

import (
	"time"
)

// SessionStatus enumerates the client session states.
type SessionStatus string

const (
	SessionUnauthenticated SessionStatus = "unauthenticated"
	SessionAuthenticating  SessionStatus = "authenticating"
	SessionAuthenticated   SessionStatus = "authenticated"
	// SessionFailed is transient: it collapses back to unauthenticated once
	// the error has been read and cleared.
	SessionFailed SessionStatus = "authentication_failed"
)

// LogoutReason distinguishes user-initiated logout from forced expiry.
type LogoutReason string

const (
	LogoutReasonUser       LogoutReason = "user"
	LogoutReasonInactivity LogoutReason = "inactivity"
)

// SessionSubject is the identity the session is held for.
type SessionSubject struct {
	ID       string   `json:"id"`
	Username string   `json:"username,omitempty"`
	Email    string   `json:"email,omitempty"`
	Role     UserRole `json:"role"`
}

// SessionState is the sole source of truth for authorization decisions in the
// client process.
type SessionState struct {
	Status         SessionStatus
	Subject        *SessionSubject
	AccessToken    string
	RefreshToken   string
	LastActivityAt time.Time
	Loading        bool
	Error          string
}

// IsAuthenticated reports whether the session holds a live authenticated subject.
func (s SessionState) IsAuthenticated() bool {
	return s.Status == SessionAuthenticated && s.Subject != nil && s.AccessToken != ""
}

// SessionEvent is a dispatchable transition of the session state machine.
type SessionEvent interface {
	sessionEvent()
}

// LoginStart moves the session into the authenticating state.
type LoginStart struct{}

// LoginSuccess resolves an exchange with the authenticated subject and tokens.
// Generation ties the resolution to the exchange that produced it; zero means
// untagged.
type LoginSuccess struct {
	Subject    *SessionSubject
	Tokens     TokenPair
	Generation uint64
}

// LoginFailure resolves an exchange with a user-facing failure message.
type LoginFailure struct {
	Message    string
	Generation uint64
}

// Logout clears the session from any state.
type Logout struct {
	Reason LogoutReason
}

// TouchActivity advances the last-activity watermark while authenticated.
type TouchActivity struct{}

// ClearError collapses a failed session back to unauthenticated.
type ClearError struct{}

func (LoginStart) sessionEvent()    {}
func (LoginSuccess) sessionEvent()  {}
func (LoginFailure) sessionEvent()  {}
func (Logout) sessionEvent()        {}
func (TouchActivity) sessionEvent() {}
func (ClearError) sessionEvent()    {}

// SessionEffect names a side effect the store must perform after a transition.
// Effects are enumerated by the reducer, never interleaved with state
// computation, so the transition table stays deterministic.
type SessionEffect string

const (
	EffectPersistSession SessionEffect = "persist_session"
	EffectClearStorage   SessionEffect = "clear_storage"
	EffectNotifyLogout   SessionEffect = "notify_logout"
	EffectBeginExchange  SessionEffect = "begin_exchange"
)

// ReduceSession is the pure transition function of the session state machine:
// (currentState, event) -> (nextState, effects). It performs no I/O.
func ReduceSession(state SessionState, event SessionEvent, now time.Time) (SessionState, []SessionEffect) {
	switch ev := event.(type) {
	case LoginStart:
		// a login in flight must not race a second exchange
		if state.Status == SessionAuthenticating {
			return state, nil
		}
		state.Status = SessionAuthenticating
		state.Loading = true
		state.Error = ""
		return state, []SessionEffect{EffectBeginExchange}

	case LoginSuccess:
		if ev.Subject == nil || ev.Tokens.AccessToken == "" {
			return state, nil
		}
		if state.Status != SessionAuthenticating && state.Status != SessionUnauthenticated {
			return state, nil
		}
		state.Status = SessionAuthenticated
		state.Subject = ev.Subject
		state.AccessToken = ev.Tokens.AccessToken
		state.RefreshToken = ev.Tokens.RefreshToken
		state.LastActivityAt = now
		state.Loading = false
		state.Error = ""
		return state, []SessionEffect{EffectPersistSession}

	case LoginFailure:
		if state.Status != SessionAuthenticating {
			return state, nil
		}
		// previously persisted tokens are left alone: a failed re-login must
		// not destroy an unrelated existing session
		state.Status = SessionFailed
		state.Loading = false
		state.Error = ev.Message
		return state, nil

	case Logout:
		next := SessionState{Status: SessionUnauthenticated}
		return next, []SessionEffect{EffectClearStorage, EffectNotifyLogout}

	case TouchActivity:
		if state.Status != SessionAuthenticated {
			return state, nil
		}
		// the watermark only ever advances forward
		if now.After(state.LastActivityAt) {
			state.LastActivityAt = now
			return state, []SessionEffect{EffectPersistSession}
		}
		return state, nil

	case ClearError:
		if state.Status != SessionFailed {
			return state, nil
		}
		state.Status = SessionUnauthenticated
		state.Error = ""
		return state, nil
	}

	return state, nil
}
