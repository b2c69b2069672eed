package core

import "testing"

func TestMemoryTokenStore_EmptyUntilSet(t *testing.T) {
	store := NewMemoryTokenStore()
	if _, ok := store.Get(); ok {
		t.Fatalf("expected empty store to report no token")
	}

	store.Set("tok_1")
	token, ok := store.Get()
	if !ok {
		t.Fatalf("expected token after set")
	}
	if token != "tok_1" {
		t.Fatalf("expected tok_1, got %q", token)
	}
}

func TestMemoryTokenStore_SetReplacesAtomically(t *testing.T) {
	store := NewMemoryTokenStore()
	store.Set("tok_1")
	store.Set("tok_2")
	if token, _ := store.Get(); token != "tok_2" {
		t.Fatalf("expected tok_2, got %q", token)
	}
}

func TestMemoryTokenStore_ResetClears(t *testing.T) {
	store := NewMemoryTokenStore()
	store.Set("tok_1")
	store.Reset()
	if _, ok := store.Get(); ok {
		t.Fatalf("expected reset store to report no token")
	}
}
