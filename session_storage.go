package authflow

import (
	"sync"
)

// StoredSession is the persisted client state layout: three independent string
// slots plus a last-activity timestamp string, all invalidated together.
type StoredSession struct {
	AccessToken  string
	RefreshToken string
	Subject      string
	LastActivity string
}

// IsEmpty reports whether no session has been persisted.
func (s StoredSession) IsEmpty() bool {
	return s.AccessToken == "" && s.RefreshToken == "" && s.Subject == ""
}

// SessionStorage is the durable client storage the session store persists
// credentials to. Implementations should treat Save and Clear as atomic over
// the whole record.
type SessionStorage interface {
	Save(session StoredSession) error
	Load() (StoredSession, error)
	Clear() error
}

// MemorySessionStorage is an in-process SessionStorage, useful for tests and
// for clients that opt out of durable persistence.
type MemorySessionStorage struct {
	mu      sync.Mutex
	session StoredSession
}

// NewMemorySessionStorage creates an empty in-memory storage.
func NewMemorySessionStorage() *MemorySessionStorage {
	return &MemorySessionStorage{}
}

// Save implements SessionStorage.
func (m *MemorySessionStorage) Save(session StoredSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = session
	return nil
}

// Load implements SessionStorage.
func (m *MemorySessionStorage) Load() (StoredSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, nil
}

// Clear implements SessionStorage.
func (m *MemorySessionStorage) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = StoredSession{}
	return nil
}
