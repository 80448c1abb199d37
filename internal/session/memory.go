package session

import "sync"

// MemoryStore is an in-process Store for tests and short-lived tooling.
type MemoryStore struct {
	mu       sync.Mutex
	tokens   Tokens
	present  bool
	clearGen uint64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save overwrites the stored pair.
func (s *MemoryStore) Save(tokens Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = tokens
	s.present = true
	return nil
}

// Generation returns the current clear generation.
func (s *MemoryStore) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearGen
}

// SaveIfCurrent saves the pair only if no Clear happened since gen.
func (s *MemoryStore) SaveIfCurrent(tokens Tokens, gen uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clearGen != gen {
		return false, nil
	}
	s.tokens = tokens
	s.present = true
	return true, nil
}

// Load returns the stored pair.
func (s *MemoryStore) Load() (Tokens, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.present {
		return Tokens{}, false, nil
	}
	return s.tokens, true, nil
}

// Clear removes the stored pair.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = Tokens{}
	s.present = false
	s.clearGen++
	return nil
}
