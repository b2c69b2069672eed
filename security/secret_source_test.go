package security

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-riskauth/core"
)

func TestStaticSecretSource(t *testing.T) {
	source := StaticSecretSource{
		SecretAPIKey: "  key_1  ",
		"empty":      "   ",
	}

	value, err := source.Resolve(context.Background(), SecretAPIKey)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if value != "key_1" {
		t.Fatalf("expected trimmed value, got %q", value)
	}
	if _, err := source.Resolve(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error for missing secret")
	}
	if _, err := source.Resolve(context.Background(), "empty"); err == nil {
		t.Fatalf("expected blank values to be treated as unset")
	}
}

func TestEnvSecretSource(t *testing.T) {
	t.Setenv("RISKAUTH_API_KEY", "env_key")
	source := EnvSecretSource{Prefix: "RISKAUTH_"}

	value, err := source.Resolve(context.Background(), SecretAPIKey)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if value != "env_key" {
		t.Fatalf("expected env value, got %q", value)
	}
	if _, err := source.Resolve(context.Background(), SecretClientID); err == nil {
		t.Fatalf("expected error for unset variable")
	}
}

func TestFailoverSecretSource_StrictPolicyNeverFallsBack(t *testing.T) {
	source, err := NewFailoverSecretSource(StaticSecretSource{})
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	if _, err := source.Resolve(context.Background(), SecretAPIKey); err == nil {
		t.Fatalf("expected strict policy to fail without consulting a fallback")
	}
}

func TestFailoverSecretSource_FallbackPolicyRequiresFallback(t *testing.T) {
	if _, err := NewFailoverSecretSource(StaticSecretSource{}, WithFailurePolicy(FailurePolicyFallback)); err == nil {
		t.Fatalf("expected constructor to reject fallback policy without a fallback source")
	}
}

func TestFailoverSecretSource_FallsBackAndEmitsDiagnostics(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	var events []Diagnostic
	source, err := NewFailoverSecretSource(
		StaticSecretSource{},
		WithFallbackSecretSource(StaticSecretSource{SecretAPIKey: "fallback_key"}),
		WithFailurePolicy(FailurePolicyFallback),
		WithDiagnostics(func(event Diagnostic) { events = append(events, event) }),
		WithFailoverClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("new source: %v", err)
	}

	value, err := source.Resolve(context.Background(), SecretAPIKey)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if value != "fallback_key" {
		t.Fatalf("expected fallback value, got %q", value)
	}
	if len(events) != 2 {
		t.Fatalf("expected primary_failed and fallback_succeeded diagnostics, got %d", len(events))
	}
	if events[0].Outcome != "primary_failed" || events[1].Outcome != "fallback_succeeded" {
		t.Fatalf("unexpected outcomes: %q, %q", events[0].Outcome, events[1].Outcome)
	}
	if !events[0].OccurredAt.Equal(now) {
		t.Fatalf("expected injected clock on diagnostics, got %v", events[0].OccurredAt)
	}
}

func TestFailoverSecretSource_BothSourcesFailing(t *testing.T) {
	source, err := NewFailoverSecretSource(
		StaticSecretSource{},
		WithFallbackSecretSource(StaticSecretSource{}),
		WithFailurePolicy(FailurePolicyFallback),
	)
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	if _, err := source.Resolve(context.Background(), SecretAPIKey); err == nil {
		t.Fatalf("expected error when both sources miss")
	}
}

func TestLoadCredentials(t *testing.T) {
	source := StaticSecretSource{
		SecretAPIKey:   "key_1",
		SecretClientID: "client_1",
	}
	cfg := &core.Config{}

	if err := LoadCredentials(context.Background(), source, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIKey != "key_1" || cfg.ClientID != "client_1" {
		t.Fatalf("expected credentials filled, got %+v", cfg)
	}
	if cfg.FallbackPublicKey != "" {
		t.Fatalf("expected optional fallback key to stay empty")
	}
}

func TestLoadCredentials_KeepsExistingValues(t *testing.T) {
	source := StaticSecretSource{
		SecretAPIKey:   "source_key",
		SecretClientID: "source_client",
	}
	cfg := &core.Config{APIKey: "preset_key", ClientID: "preset_client"}

	if err := LoadCredentials(context.Background(), source, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIKey != "preset_key" || cfg.ClientID != "preset_client" {
		t.Fatalf("expected preset credentials preserved, got %+v", cfg)
	}
}

func TestLoadCredentials_RequiredSecretMissing(t *testing.T) {
	source := StaticSecretSource{SecretAPIKey: "key_1"}
	cfg := &core.Config{}

	if err := LoadCredentials(context.Background(), source, cfg); err == nil {
		t.Fatalf("expected missing client id to fail")
	}
}

func TestLoadCredentials_OptionalFallbackKey(t *testing.T) {
	source := StaticSecretSource{
		SecretAPIKey:            "key_1",
		SecretClientID:          "client_1",
		SecretFallbackPublicKey: "ZmFrZS1kZXI=",
	}
	cfg := &core.Config{}

	if err := LoadCredentials(context.Background(), source, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.FallbackPublicKey != "ZmFrZS1kZXI=" {
		t.Fatalf("expected fallback key filled, got %q", cfg.FallbackPublicKey)
	}
}
