package command

import (
	"context"
	"fmt"
	"testing"

	"github.com/goliatone/go-riskauth/webhooks"
)

type stubTokenIssuer struct {
	token string
	err   error
	calls int
}

func (s *stubTokenIssuer) Issue(context.Context) (string, error) {
	s.calls++
	return s.token, s.err
}

type stubKeyIssuer struct {
	err   error
	calls int
}

func (s *stubKeyIssuer) Issue(context.Context) error {
	s.calls++
	return s.err
}

type stubFallbackInstaller struct {
	err   error
	calls int
}

func (s *stubFallbackInstaller) InstallFallback() error {
	s.calls++
	return s.err
}

func TestRefreshTokenCommand(t *testing.T) {
	issuer := &stubTokenIssuer{token: "tok_1"}
	cmd := NewRefreshTokenCommand(issuer)

	if err := cmd.Execute(context.Background(), RefreshTokenMessage{}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if issuer.calls != 1 {
		t.Fatalf("expected one issue call, got %d", issuer.calls)
	}
}

func TestRefreshTokenCommand_PropagatesIssuerError(t *testing.T) {
	issuer := &stubTokenIssuer{err: fmt.Errorf("authority down")}
	cmd := NewRefreshTokenCommand(issuer)

	if err := cmd.Execute(context.Background(), RefreshTokenMessage{}); err == nil {
		t.Fatalf("expected issuer error to propagate")
	}
}

func TestRefreshTokenCommand_RequiresIssuer(t *testing.T) {
	cmd := NewRefreshTokenCommand(nil)
	if err := cmd.Execute(context.Background(), RefreshTokenMessage{}); err == nil {
		t.Fatalf("expected dependency error")
	}
}

func TestRefreshPublicKeyCommand(t *testing.T) {
	issuer := &stubKeyIssuer{}
	cmd := NewRefreshPublicKeyCommand(issuer)

	if err := cmd.Execute(context.Background(), RefreshPublicKeyMessage{}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if issuer.calls != 1 {
		t.Fatalf("expected one issue call, got %d", issuer.calls)
	}

	if err := NewRefreshPublicKeyCommand(nil).Execute(context.Background(), RefreshPublicKeyMessage{}); err == nil {
		t.Fatalf("expected dependency error")
	}
}

func TestInstallFallbackKeyCommand(t *testing.T) {
	installer := &stubFallbackInstaller{}
	cmd := NewInstallFallbackKeyCommand(installer)

	if err := cmd.Execute(context.Background(), InstallFallbackKeyMessage{}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if installer.calls != 1 {
		t.Fatalf("expected one install call, got %d", installer.calls)
	}

	installer.err = fmt.Errorf("no fallback configured")
	if err := cmd.Execute(context.Background(), InstallFallbackKeyMessage{}); err == nil {
		t.Fatalf("expected installer error to propagate")
	}
}

func TestVerifyDeliveryCommand_RequiresProcessor(t *testing.T) {
	cmd := NewVerifyDeliveryCommand(nil)
	msg := VerifyDeliveryMessage{Request: webhooks.InboundRequest{Signature: "sig", Timestamp: "ts"}}
	if err := cmd.Execute(context.Background(), msg); err == nil {
		t.Fatalf("expected dependency error")
	}
}

func TestVerifyDeliveryMessage_Validate(t *testing.T) {
	cases := []struct {
		name    string
		request webhooks.InboundRequest
		wantErr bool
	}{
		{"valid", webhooks.InboundRequest{Signature: "sig", Timestamp: "2026-08-29T12:00:00Z"}, false},
		{"missing signature", webhooks.InboundRequest{Timestamp: "2026-08-29T12:00:00Z"}, true},
		{"missing timestamp", webhooks.InboundRequest{Signature: "sig"}, true},
		{"whitespace signature", webhooks.InboundRequest{Signature: "  ", Timestamp: "2026-08-29T12:00:00Z"}, true},
	}
	for _, tc := range cases {
		err := VerifyDeliveryMessage{Request: tc.request}.Validate()
		if tc.wantErr && err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
	}
}

func TestMessageTypes(t *testing.T) {
	if got := (RefreshTokenMessage{}).Type(); got != TypeRefreshToken {
		t.Fatalf("unexpected type %q", got)
	}
	if got := (VerifyDeliveryMessage{}).Type(); got != TypeVerifyDelivery {
		t.Fatalf("unexpected type %q", got)
	}
}
