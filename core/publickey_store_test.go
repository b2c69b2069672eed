package core

import (
	"testing"
	"time"
)

func TestMemoryKeyStore_EmptyUntilSet(t *testing.T) {
	store := NewMemoryKeyStore()
	if _, ok := store.Get(); ok {
		t.Fatalf("expected empty store to report no key")
	}

	validUntil := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	store.Set([]byte{0x30, 0x82}, validUntil)
	material, ok := store.Get()
	if !ok {
		t.Fatalf("expected key after set")
	}
	if !material.ValidUntil.Equal(validUntil) {
		t.Fatalf("expected validUntil %v, got %v", validUntil, material.ValidUntil)
	}
}

func TestMemoryKeyStore_SetCopiesDER(t *testing.T) {
	store := NewMemoryKeyStore()
	der := []byte{0x30, 0x82, 0x01}
	store.Set(der, time.Time{})
	der[0] = 0xff

	material, _ := store.Get()
	if material.DER[0] != 0x30 {
		t.Fatalf("expected stored DER to be isolated from caller mutation")
	}
}

func TestMemoryKeyStore_ResetClears(t *testing.T) {
	store := NewMemoryKeyStore()
	store.Set([]byte{0x30}, time.Time{})
	store.Reset()
	if _, ok := store.Get(); ok {
		t.Fatalf("expected reset store to report no key")
	}
}

func TestMemoryKeyStore_EmptyDERTreatedAsMissing(t *testing.T) {
	store := NewMemoryKeyStore()
	store.Set(nil, time.Now())
	if _, ok := store.Get(); ok {
		t.Fatalf("expected empty DER to report no key")
	}
}
