package main

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionManager hands out a session ID per websocket connection and
// expires idle sessions, adapted from server/session.go's single-token
// acquire/release flow — generalized here to multiple concurrent
// sessions (one per connected companion UI) using uuid.New, the same
// ID scheme the teacher uses for its remote-device and client IDs
// (nfc/remotenfc/manager.go, server/consumerserver/server.go).
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*time.Timer
	timeout  time.Duration
}

// NewSessionManager creates a manager that expires sessions after timeout
// of inactivity.
func NewSessionManager(timeout time.Duration) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*time.Timer),
		timeout:  timeout,
	}
}

// Open allocates a new session ID and starts its expiry timer.
func (m *SessionManager) Open() string {
	id := uuid.New().String()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = time.AfterFunc(m.timeout, func() {
		m.Close(id)
		log.Printf("[session] %s expired", id[:8])
	})
	return id
}

// Touch resets a session's expiry timer. It reports whether the session
// was still open.
func (m *SessionManager) Touch(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.sessions[id]
	if !ok {
		return false
	}
	t.Reset(m.timeout)
	return true
}

// Close ends a session, stopping its expiry timer.
func (m *SessionManager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.sessions[id]; ok {
		t.Stop()
		delete(m.sessions, id)
	}
}

// Count reports how many sessions are currently open.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
