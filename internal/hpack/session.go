package hpack

import "sync"

// Session holds state shared across both directions of a single HPACK
// session: the never-index set (§3, §9 "thread safety of the HPACK
// session"). It may be shared across multiple connections/contexts that
// should agree on which header names are confidentiality-sensitive.
type Session struct {
	mu         sync.Mutex
	neverIndex map[string]struct{}
}

// NewSession returns an empty, ready-to-use Session.
func NewSession() *Session {
	return &Session{neverIndex: make(map[string]struct{})}
}

// MarkNeverIndex records name as never-index for the lifetime of the
// session. Safe for concurrent use.
func (s *Session) MarkNeverIndex(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.neverIndex[name] = struct{}{}
}

// IsNeverIndex reports whether name has been marked never-index.
func (s *Session) IsNeverIndex(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.neverIndex[name]
	return ok
}
