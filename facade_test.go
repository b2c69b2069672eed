package riskauth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	riskcmd "github.com/goliatone/go-riskauth/command"
	"github.com/goliatone/go-riskauth/security"
	"github.com/goliatone/go-riskauth/webhooks"
)

type authorityFixture struct {
	server     *httptest.Server
	signingKey *rsa.PrivateKey
	tokenCalls int
	keyCalls   int
}

func newAuthorityFixture(t *testing.T) *authorityFixture {
	t.Helper()
	signingKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&signingKey.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}

	fixture := &authorityFixture{signingKey: signingKey}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		fixture.tokenCalls++
		token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte("authority-secret"))
		if err != nil {
			t.Errorf("sign token: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": signed,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/public-key", func(w http.ResponseWriter, r *http.Request) {
		fixture.keyCalls++
		json.NewEncoder(w).Encode(map[string]string{
			"publicKey":  base64.StdEncoding.EncodeToString(der),
			"validUntil": time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
		})
	})
	fixture.server = httptest.NewServer(mux)
	t.Cleanup(fixture.server.Close)
	return fixture
}

func (f *authorityFixture) config() Config {
	cfg := DefaultConfig()
	cfg.APIKey = "api_key"
	cfg.ClientID = "client_1"
	cfg.TokenURL = f.server.URL + "/token"
	cfg.PublicKeyURLTemplate = f.server.URL + "/public-key"
	cfg.ManagePublicKey = true
	return cfg
}

func (f *authorityFixture) signDelivery(t *testing.T, timestamp string, payload []byte) string {
	t.Helper()
	hasher := sha256.New()
	hasher.Write([]byte(timestamp))
	hasher.Write(payload)
	signature, err := rsa.SignPKCS1v15(rand.Reader, f.signingKey, crypto.SHA256, hasher.Sum(nil))
	if err != nil {
		t.Fatalf("sign delivery: %v", err)
	}
	return base64.StdEncoding.EncodeToString(signature)
}

func TestFacade_LifecycleAndVerification(t *testing.T) {
	fixture := newAuthorityFixture(t)
	handled := 0
	facade, err := New(fixture.config(),
		WithWebhookHandler(webhooks.HandlerFunc(func(_ context.Context, _ []byte) error {
			handled++
			return nil
		})),
	)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	if err := facade.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer facade.Stop(context.Background())

	token, ok := facade.Token()
	if !ok || token == "" {
		t.Fatalf("expected bootstrapped token")
	}
	if fixture.tokenCalls < 1 {
		t.Fatalf("expected token endpoint hit")
	}
	if fixture.keyCalls < 1 {
		t.Fatalf("expected public key endpoint hit")
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	payload := []byte(`{"id":"evt_1"}`)
	result, err := facade.VerifyDelivery(context.Background(), webhooks.InboundRequest{
		DeliveryID: "evt_1",
		Signature:  fixture.signDelivery(t, timestamp, payload),
		Timestamp:  timestamp,
		Payload:    payload,
	})
	if err != nil {
		t.Fatalf("verify delivery: %v", err)
	}
	if !result.Accepted || result.Status != http.StatusOK {
		t.Fatalf("expected accepted delivery, got %+v", result)
	}
	if handled != 1 {
		t.Fatalf("expected handler invoked once, got %d", handled)
	}

	if err := facade.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestFacade_RejectsForgedDelivery(t *testing.T) {
	fixture := newAuthorityFixture(t)
	facade, err := New(fixture.config())
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	if err := facade.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer facade.Stop(context.Background())

	timestamp := time.Now().UTC().Format(time.RFC3339)
	_, err = facade.VerifyDelivery(context.Background(), webhooks.InboundRequest{
		Signature: base64.StdEncoding.EncodeToString([]byte("forged")),
		Timestamp: timestamp,
		Payload:   []byte(`{"id":"evt_1"}`),
	})
	if err == nil {
		t.Fatalf("expected forged delivery to be rejected")
	}
}

func TestFacade_APIClientCarriesToken(t *testing.T) {
	fixture := newAuthorityFixture(t)
	var gotAuth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer api.Close()

	facade, err := New(fixture.config())
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	if err := facade.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer facade.Stop(context.Background())

	res, err := facade.APIClient().Get(api.URL)
	if err != nil {
		t.Fatalf("api call: %v", err)
	}
	res.Body.Close()
	token, _ := facade.Token()
	if gotAuth != "Bearer "+token {
		t.Fatalf("expected managed token on api call, got %q", gotAuth)
	}
}

func TestFacade_CommandsAreAssembled(t *testing.T) {
	fixture := newAuthorityFixture(t)
	facade, err := New(fixture.config())
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	commands := facade.Commands()
	if commands.RefreshToken == nil || commands.RefreshPublicKey == nil ||
		commands.InstallFallbackKey == nil || commands.VerifyDelivery == nil {
		t.Fatalf("expected all commands assembled, got %+v", commands)
	}

	if err := commands.RefreshToken.Execute(context.Background(), riskcmd.RefreshTokenMessage{}); err != nil {
		t.Fatalf("refresh token command: %v", err)
	}
	if token, ok := facade.Token(); !ok || token == "" {
		t.Fatalf("expected command to store a token")
	}
}

func TestFacade_SecretSourceFillsCredentials(t *testing.T) {
	fixture := newAuthorityFixture(t)
	cfg := fixture.config()
	cfg.APIKey = ""
	cfg.ClientID = ""

	facade, err := New(cfg, WithSecretSource(security.StaticSecretSource{
		security.SecretAPIKey:   "vault_api_key",
		security.SecretClientID: "vault_client",
	}))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	resolved := facade.Service().Config()
	if resolved.APIKey != "vault_api_key" || resolved.ClientID != "vault_client" {
		t.Fatalf("expected secret source to fill credentials, got %q / %q", resolved.APIKey, resolved.ClientID)
	}
}

func TestFacade_SecretSourceDoesNotOverrideConfig(t *testing.T) {
	fixture := newAuthorityFixture(t)
	cfg := fixture.config()

	facade, err := New(cfg, WithSecretSource(security.StaticSecretSource{
		security.SecretAPIKey:   "vault_api_key",
		security.SecretClientID: "vault_client",
	}))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	resolved := facade.Service().Config()
	if resolved.APIKey != "api_key" || resolved.ClientID != "client_1" {
		t.Fatalf("expected configured credentials to win, got %q / %q", resolved.APIKey, resolved.ClientID)
	}
}

func TestFacade_SecretSourceMissingSecretFails(t *testing.T) {
	fixture := newAuthorityFixture(t)
	cfg := fixture.config()
	cfg.APIKey = ""
	cfg.ClientID = ""

	if _, err := New(cfg, WithSecretSource(security.StaticSecretSource{
		security.SecretAPIKey: "vault_api_key",
	})); err == nil {
		t.Fatalf("expected assembly to fail when a required secret is missing")
	}
}
