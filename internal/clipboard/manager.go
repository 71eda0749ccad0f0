package clipboard

import (
	"sync"
	"time"
)

type session struct {
	store      *Store
	lastAccess time.Time
}

// Manager keeps one clipboard per user session and expires idle ones.
type Manager struct {
	mu            sync.Mutex
	sessions      map[string]*session
	ttl           time.Duration
	singleStorage bool
	now           func() time.Time
}

// NewManager creates a manager. A zero ttl defaults to 24 hours.
func NewManager(ttl time.Duration, singleStorage bool) *Manager {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		sessions:      make(map[string]*session),
		ttl:           ttl,
		singleStorage: singleStorage,
		now:           time.Now,
	}
}

// Store returns the clipboard of sessionID, creating it on first use. An
// expired clipboard is replaced by an empty one.
func (m *Manager) Store(sessionID string) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s, ok := m.sessions[sessionID]
	if !ok || now.Sub(s.lastAccess) > m.ttl {
		s = &session{store: NewStore(m.singleStorage)}
		m.sessions[sessionID] = s
	}
	s.lastAccess = now
	return s.store
}

// Delete drops the clipboard of sessionID.
func (m *Manager) Delete(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// CleanupExpired removes idle clipboards and returns how many were removed.
func (m *Manager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	cutoff := m.now().Add(-m.ttl)
	for id, s := range m.sessions {
		if s.lastAccess.Before(cutoff) {
			delete(m.sessions, id)
			count++
		}
	}
	return count
}
