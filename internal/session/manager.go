package session

import (
	"sync"

	"go.uber.org/zap"
)

// Manager is the per-process registry of live sessions, keyed by user id.
// One user holds at most one session; attaching again replaces the previous
// session after detaching it from its room.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	deps     Deps
	logger   *zap.Logger
}

// NewManager creates an empty session registry sharing one set of
// collaborators across all sessions.
func NewManager(deps Deps) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		deps:     deps,
		logger:   deps.Logger.Named("SessionManager"),
	}
}

// Attach creates and registers a session for an authenticated identity. A
// previous session for the same user is detached first.
func (m *Manager) Attach(identity Identity) *Session {
	s := New(identity, m.deps)

	m.mu.Lock()
	prev := m.sessions[identity.UserID]
	m.sessions[identity.UserID] = s
	m.mu.Unlock()

	if prev != nil {
		prev.Leave()
		m.logger.Info("replaced existing session", zap.String("userID", identity.UserID))
	}
	return s
}

// Get returns the live session for a user, or nil.
func (m *Manager) Get(userID string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[userID]
}

// Detach removes a user's session and unsubscribes it from its room.
func (m *Manager) Detach(userID string) {
	m.mu.Lock()
	s := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if s != nil {
		s.Leave()
	}
}

// Shutdown detaches every live session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Leave()
	}
	m.logger.Info("all sessions detached", zap.Int("count", len(sessions)))
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
