package core

import "sync/atomic"

// MemoryTokenStore keeps the access token behind an atomic pointer swap.
// Readers observe either the previous or the newly set value, never a torn
// one; the process lifetime is the value lifetime.
type MemoryTokenStore struct {
	value atomic.Pointer[string]
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Get() (string, bool) {
	if s == nil {
		return "", false
	}
	token := s.value.Load()
	if token == nil || *token == "" {
		return "", false
	}
	return *token, true
}

func (s *MemoryTokenStore) Set(token string) {
	if s == nil {
		return
	}
	s.value.Store(&token)
}

func (s *MemoryTokenStore) Reset() {
	if s == nil {
		return
	}
	s.value.Store(nil)
}

var _ TokenStore = (*MemoryTokenStore)(nil)
