package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"cleanreel/internal/domain"
)

// Manager owns the in-memory session registry. Sessions are keyed by
// UUID and evicted after a period of inactivity by the controller's
// sweep loop.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Create registers a fresh idle session and returns it.
func (m *Manager) Create(now time.Time) *Session {
	s := newSession(uuid.NewString(), now)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.id] = s
	return s
}

// Get looks up a session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

// Delete removes a session from the registry and reports whether it was
// present.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

// Len reports the number of registered sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// expired removes and returns sessions whose last activity predates
// cutoff.
func (m *Manager) expired(cutoff time.Time) []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			out = append(out, s)
		}
	}
	return out
}
