package apiclient

import "sync"

// Session holds the bearer token for the remote customer API. Whoever performs
// network calls receives it explicitly; OnUnauthorized fires when the remote
// side rejects the token.
type Session struct {
	mu             sync.RWMutex
	token          string
	onUnauthorized func()
}

func NewSession(onUnauthorized func()) *Session {
	return &Session{onUnauthorized: onUnauthorized}
}

func (s *Session) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

func (s *Session) Clear() {
	s.SetToken("")
}

// invalidate clears the token and notifies the owner.
func (s *Session) invalidate() {
	s.Clear()
	if s.onUnauthorized != nil {
		s.onUnauthorized()
	}
}
