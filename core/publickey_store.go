package core

import (
	"sync/atomic"
	"time"
)

// MemoryKeyStore keeps the verification key behind an atomic pointer swap.
// Expiry is not enforced here; the verifier checks ValidUntil at use time.
type MemoryKeyStore struct {
	value atomic.Pointer[PublicKeyMaterial]
}

func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{}
}

func (s *MemoryKeyStore) Get() (PublicKeyMaterial, bool) {
	if s == nil {
		return PublicKeyMaterial{}, false
	}
	material := s.value.Load()
	if material == nil || len(material.DER) == 0 {
		return PublicKeyMaterial{}, false
	}
	return *material, true
}

func (s *MemoryKeyStore) Set(der []byte, validUntil time.Time) {
	if s == nil {
		return
	}
	copied := make([]byte, len(der))
	copy(copied, der)
	s.value.Store(&PublicKeyMaterial{
		DER:        copied,
		ValidUntil: validUntil,
	})
}

// Reset clears the stored key, forcing the next refresh cycle to fetch
// immediately. Used for test isolation and operator-forced re-fetch.
func (s *MemoryKeyStore) Reset() {
	if s == nil {
		return
	}
	s.value.Store(nil)
}

var _ KeyStore = (*MemoryKeyStore)(nil)
