package authflow

// Capability is the requirement a protected operation declares.
type Capability string

const (
	CapabilityNone          Capability = "none"
	CapabilityAuthenticated Capability = "authenticated"
	CapabilityAdmin         Capability = "role:admin"
)

// Decision is the outcome of an authorization check.
type Decision string

const (
	DecisionAllow                Decision = "allow"
	DecisionDenyUnauthenticated  Decision = "deny:unauthenticated"
	DecisionDenyInsufficientRole Decision = "deny:insufficient_role"
)

// Allowed reports whether the decision grants access.
func (d Decision) Allowed() bool {
	return d == DecisionAllow
}

// Err maps a deny decision onto the error taxonomy; Allow yields nil.
func (d Decision) Err() error {
	switch d {
	case DecisionDenyUnauthenticated:
		return ErrUnauthenticated
	case DecisionDenyInsufficientRole:
		return ErrInsufficientRole
	default:
		return nil
	}
}

// Authorize evaluates a required capability against the session state. It is
// pure and synchronous so route-entry checks and UI rendering decisions can
// share it and never disagree.
func Authorize(state SessionState, required Capability) Decision {
	switch required {
	case CapabilityNone, "":
		return DecisionAllow

	case CapabilityAuthenticated:
		if !state.IsAuthenticated() {
			return DecisionDenyUnauthenticated
		}
		return DecisionAllow

	case CapabilityAdmin:
		if !state.IsAuthenticated() {
			return DecisionDenyUnauthenticated
		}
		if !state.Subject.Role.IsAtLeast(RoleAdmin) {
			return DecisionDenyInsufficientRole
		}
		return DecisionAllow
	}

	// unknown capabilities fail closed
	if !state.IsAuthenticated() {
		return DecisionDenyUnauthenticated
	}
	return DecisionDenyInsufficientRole
}

// AccessGuard binds Authorize to a session store so callers can check the
// current state without reading it first.
type AccessGuard struct {
	store *SessionStore
}

// NewAccessGuard creates a guard bound to the given store.
func NewAccessGuard(store *SessionStore) *AccessGuard {
	return &AccessGuard{store: store}
}

// Authorize checks the required capability against the store's current state.
func (g *AccessGuard) Authorize(required Capability) Decision {
	return Authorize(g.store.GetState(), required)
}
