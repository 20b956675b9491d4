package session

import "sync"

// Status is the authentication state of the session.
type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusAwaitingScan    Status = "awaiting-scan"
	StatusReady           Status = "ready"
)

// State holds the session status and the latest token. The engine is the
// only writer; the HTTP handlers read it.
type State struct {
	mu     sync.RWMutex
	status Status
	token  string
}

func NewState() *State {
	return &State{status: StatusUnauthenticated}
}

// Token returns the current token. It is only present while awaiting a scan.
func (s *State) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status != StatusAwaitingScan || s.token == "" {
		return "", false
	}
	return s.token, true
}

func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// IssueToken replaces any previous token.
func (s *State) IssueToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.status = StatusAwaitingScan
}

// MarkReady records a completed authentication and drops the token.
func (s *State) MarkReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.status = StatusReady
}

// Reset returns to unauthenticated, e.g. after a logout or an expired pairing.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.status = StatusUnauthenticated
}
