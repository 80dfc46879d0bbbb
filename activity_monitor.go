package authflow

import (
	"context"
	"time"
)

// ActivitySignal is a user interaction kind observed by the monitor.
type ActivitySignal string

const (
	SignalPointer  ActivitySignal = "pointer"
	SignalKeyboard ActivitySignal = "keyboard"
	SignalScroll   ActivitySignal = "scroll"
	SignalTouch    ActivitySignal = "touch"
)

const (
	// DefaultInactivityThreshold forces a logout after this much silence.
	DefaultInactivityThreshold = 30 * time.Minute
	// DefaultActivityTickInterval is how often session freshness is re-evaluated.
	DefaultActivityTickInterval = 60 * time.Second
)

// ActivityMonitor observes interaction signals and periodically re-evaluates
// session freshness against the inactivity threshold, forcing a logout with a
// distinct reason when the session has gone stale.
type ActivityMonitor struct {
	store        *SessionStore
	threshold    time.Duration
	tickInterval time.Duration
	now          func() time.Time
	logger       Logger
	onExpired    func(reason LogoutReason)
}

// MonitorOption customizes monitor construction.
type MonitorOption func(*ActivityMonitor)

// WithMonitorClock injects a custom clock (useful for tests).
func WithMonitorClock(clock func() time.Time) MonitorOption {
	return func(m *ActivityMonitor) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithMonitorThreshold overrides the inactivity threshold.
func WithMonitorThreshold(threshold time.Duration) MonitorOption {
	return func(m *ActivityMonitor) {
		if threshold > 0 {
			m.threshold = threshold
		}
	}
}

// WithMonitorTickInterval overrides the re-evaluation interval.
func WithMonitorTickInterval(interval time.Duration) MonitorOption {
	return func(m *ActivityMonitor) {
		if interval > 0 {
			m.tickInterval = interval
		}
	}
}

// WithMonitorLogger overrides the monitor logger.
func WithMonitorLogger(logger Logger) MonitorOption {
	return func(m *ActivityMonitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMonitorExpiredHandler registers the presentation-layer callback invoked
// when a session is expired for inactivity, distinguished from user logout.
func WithMonitorExpiredHandler(handler func(reason LogoutReason)) MonitorOption {
	return func(m *ActivityMonitor) {
		m.onExpired = handler
	}
}

// NewActivityMonitor creates a monitor bound to the given session store.
func NewActivityMonitor(store *SessionStore, opts ...MonitorOption) *ActivityMonitor {
	monitor := &ActivityMonitor{
		store:        store,
		threshold:    DefaultInactivityThreshold,
		tickInterval: DefaultActivityTickInterval,
		now:          time.Now,
		logger:       defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(monitor)
		}
	}

	return monitor
}

// Observe reports a user interaction signal. While authenticated it advances
// the session's activity watermark; in any other state it is a no-op.
func (m *ActivityMonitor) Observe(signal ActivitySignal) {
	if !m.store.GetState().IsAuthenticated() {
		return
	}

	m.store.Dispatch(TouchActivity{})
	m.logger.Debug("activity signal observed: %s", signal)
}

// CheckIdle re-evaluates session freshness once. It returns true when the
// inactivity threshold was exceeded and a forced logout was dispatched.
func (m *ActivityMonitor) CheckIdle() bool {
	state := m.store.GetState()
	if !state.IsAuthenticated() {
		return false
	}

	idle := m.now().Sub(state.LastActivityAt)
	if idle <= m.threshold {
		return false
	}

	m.logger.Info("session idle for %s, forcing logout", idle)
	m.store.Dispatch(Logout{Reason: LogoutReasonInactivity})

	if m.onExpired != nil {
		m.onExpired(LogoutReasonInactivity)
	}

	return true
}

// Start runs the periodic freshness check until the returned stop function is
// called or ctx is cancelled.
func (m *ActivityMonitor) Start(ctx context.Context) func() {
	monitorCtx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(m.tickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				m.CheckIdle()
			}
		}
	}()

	return cancel
}
