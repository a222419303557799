package pipeline

import "sync"

// Session tracks the last accepted upload filename for one client session.
// Re-presenting the same filename back to back is treated as a duplicate and
// skipped, regardless of content. The guard is name-based on purpose: it
// mirrors how upload widgets re-deliver the selected file on every
// interaction.
type Session struct {
	mu       sync.Mutex
	lastName string
}

func NewSession() *Session {
	return &Session{}
}

// Seen reports whether name matches the previously accepted upload.
func (s *Session) Seen(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return name != "" && name == s.lastName
}

// Mark records name as the last accepted upload.
func (s *Session) Mark(name string) {
	s.mu.Lock()
	s.lastName = name
	s.mu.Unlock()
}
