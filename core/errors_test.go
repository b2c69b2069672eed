package core

import (
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestErrorConstructors_CarryTextCodes(t *testing.T) {
	cases := []struct {
		err      error
		textCode string
		code     int
	}{
		{NewAuthorityUnavailable("authority down", nil), ErrorAuthorityUnavailable, http.StatusBadGateway},
		{NewSignatureInvalid("signature mismatch"), ErrorSignatureInvalid, http.StatusBadRequest},
		{NewTimestampTooOld("stale delivery"), ErrorTimestampTooOld, http.StatusBadRequest},
		{NewTimestampTooNew("future delivery"), ErrorTimestampTooNew, http.StatusBadRequest},
		{NewPublicKeyMissing("no key loaded"), ErrorPublicKeyMissing, http.StatusInternalServerError},
		{NewPublicKeyExpired("key past validity"), ErrorPublicKeyExpired, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := TextCode(tc.err); got != tc.textCode {
			t.Fatalf("expected text code %q, got %q", tc.textCode, got)
		}
		var rich *goerrors.Error
		if !goerrors.As(tc.err, &rich) {
			t.Fatalf("expected rich error for %v", tc.err)
		}
		if rich.Code != tc.code {
			t.Fatalf("expected code %d for %q, got %d", tc.code, tc.textCode, rich.Code)
		}
	}
}

func TestErrorPredicates(t *testing.T) {
	if !IsAuthorityUnavailable(NewAuthorityUnavailable("down", nil)) {
		t.Fatalf("expected authority-unavailable predicate to match")
	}
	if IsSignatureInvalid(NewTimestampTooOld("stale")) {
		t.Fatalf("expected predicate not to match a different kind")
	}
	if IsPublicKeyExpired(nil) {
		t.Fatalf("expected nil error to match nothing")
	}
}

func TestNewAuthorityUnavailable_WrapsSource(t *testing.T) {
	source := fmt.Errorf("connection refused")
	err := NewAuthorityUnavailable("token issuance failed", source)
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected rich error")
	}
	if rich.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %v", rich.Category)
	}
	if TextCode(err) != ErrorAuthorityUnavailable {
		t.Fatalf("expected authority-unavailable text code, got %q", TextCode(err))
	}
}

func TestTextCode_PlainErrorHasNone(t *testing.T) {
	if got := TextCode(fmt.Errorf("plain")); got != "" {
		t.Fatalf("expected no text code, got %q", got)
	}
}
