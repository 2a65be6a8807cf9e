package server

import (
	"sync"

	"github.com/rustyguts/vroom/internal/wire"
)

// session is the server-side state associated with one connected client
// for the lifetime of its TCP connection.
// The room registry keys membership off ClientID alone; UserID is cached
// here purely for rendering LIST_ROOMS and is refreshed from every
// inbound ControlMessage, since the protocol carries no separate login
// step.
type session struct {
	clientID string
	conn     *wire.Conn

	mu      sync.RWMutex
	userID  string
	muted   bool
}

func newSession(clientID string, conn *wire.Conn) *session {
	return &session{clientID: clientID, conn: conn}
}

func (s *session) setUserID(userID string) {
	if userID == "" {
		return
	}
	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()
}

func (s *session) displayID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.userID != "" {
		return s.userID
	}
	return s.clientID
}

func (s *session) setMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
}

func (s *session) isMuted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.muted
}
