package riskauth

import (
	"context"
	"net/http"

	"github.com/goliatone/go-riskauth/authority"
	riskcmd "github.com/goliatone/go-riskauth/command"
	"github.com/goliatone/go-riskauth/core"
	"github.com/goliatone/go-riskauth/ratelimit"
	"github.com/goliatone/go-riskauth/security"
	"github.com/goliatone/go-riskauth/transport"
	"github.com/goliatone/go-riskauth/webhooks"
)

// Commands exposes the lifecycle operations as go-command handlers.
type Commands struct {
	RefreshToken       *riskcmd.RefreshTokenCommand
	RefreshPublicKey   *riskcmd.RefreshPublicKeyCommand
	InstallFallbackKey *riskcmd.InstallFallbackKeyCommand
	VerifyDelivery     *riskcmd.VerifyDeliveryCommand
}

// Facade wires the authority clients, the webhook verifier, and the refresh
// service into one assembled unit. Callers that need finer control compose
// the core and authority packages directly.
type Facade struct {
	service   *core.Service
	keyClient *authority.PublicKeyClient
	verifier  *webhooks.Verifier
	processor *webhooks.Processor
	commands  Commands
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	httpClient     core.HTTPDoer
	handler        webhooks.Handler
	ledger         webhooks.ReplayLedger
	secretSource   security.SecretSource
	serviceOptions []Option
}

// WithServiceOptions forwards options to the underlying service constructor.
func WithServiceOptions(opts ...Option) FacadeOption {
	return func(options *facadeOptions) {
		options.serviceOptions = append(options.serviceOptions, opts...)
	}
}

// WithHTTPClient replaces the HTTP client used for authority calls.
func WithHTTPClient(client core.HTTPDoer) FacadeOption {
	return func(options *facadeOptions) {
		options.httpClient = client
	}
}

// WithWebhookHandler sets the consumer invoked for verified deliveries.
func WithWebhookHandler(handler webhooks.Handler) FacadeOption {
	return func(options *facadeOptions) {
		options.handler = handler
	}
}

// WithReplayLedger replaces the in-memory delivery dedupe ledger.
func WithReplayLedger(ledger webhooks.ReplayLedger) FacadeOption {
	return func(options *facadeOptions) {
		options.ledger = ledger
	}
}

// WithSecretSource resolves credentials left empty in the config (API key,
// client ID, and optionally the fallback public key) from the given source
// before the service is assembled. Values already present in the config win.
func WithSecretSource(source security.SecretSource) FacadeOption {
	return func(options *facadeOptions) {
		options.secretSource = source
	}
}

// New assembles a Facade. Core options are forwarded to the service
// constructor; issuers not supplied through them are built from the resolved
// config against the Kount authority endpoints.
func New(cfg Config, opts ...FacadeOption) (*Facade, error) {
	assembly := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&assembly)
	}

	if assembly.secretSource != nil {
		if err := security.LoadCredentials(context.Background(), assembly.secretSource, &cfg); err != nil {
			return nil, err
		}
	}

	tokenRef := &tokenIssuerRef{}
	keyRef := &keyIssuerRef{}
	options := append([]Option{
		core.WithTokenIssuer(tokenRef),
		core.WithKeyIssuer(keyRef),
	}, assembly.serviceOptions...)

	svc, err := core.NewService(cfg, options...)
	if err != nil {
		return nil, err
	}
	resolved := svc.Config()

	throttle := ratelimit.NewAdaptivePolicy()

	tokenClient := authority.NewTokenClient(authority.TokenClientConfig{
		TokenURL:       resolved.TokenURL,
		APIKey:         resolved.APIKey,
		Scope:          resolved.Scope,
		RequestTimeout: resolved.RequestTimeout,
		MaxAttempts:    resolved.RetryMaxAttempts,
	}, svc.TokenStore(), assembly.httpClient)
	tokenClient.Throttle = throttle
	tokenRef.issuer = tokenClient

	keyClient := authority.NewPublicKeyClient(authority.PublicKeyClientConfig{
		URL:                 resolved.PublicKeyURL(),
		FallbackPublicKey:   resolved.FallbackPublicKey,
		FallbackKeyValidity: resolved.FallbackKeyValidity,
		RequestTimeout:      resolved.RequestTimeout,
		MaxAttempts:         resolved.RetryMaxAttempts,
	}, svc.KeyStore(), svc.TokenStore(), svc.TokenIssuer(), assembly.httpClient)
	keyClient.Throttle = throttle
	keyRef.issuer = keyClient

	verifier := webhooks.NewVerifier(svc.KeyStore())
	verifier.Grace = resolved.GraceWindow

	ledger := assembly.ledger
	if ledger == nil {
		ledger = webhooks.NewMemoryReplayLedger(resolved.GraceWindow)
	}
	processor := webhooks.NewProcessor(verifier, assembly.handler)
	processor.Ledger = ledger
	processor.DedupTTL = resolved.GraceWindow

	facade := &Facade{
		service:   svc,
		keyClient: keyClient,
		verifier:  verifier,
		processor: processor,
	}
	facade.commands = Commands{
		RefreshToken:       riskcmd.NewRefreshTokenCommand(svc.TokenIssuer()),
		RefreshPublicKey:   riskcmd.NewRefreshPublicKeyCommand(svc.KeyIssuer()),
		InstallFallbackKey: riskcmd.NewInstallFallbackKeyCommand(keyClient),
		VerifyDelivery:     riskcmd.NewVerifyDeliveryCommand(processor),
	}
	return facade, nil
}

// Start performs the initial blocking credential fetch and launches the
// background refresh loops.
func (f *Facade) Start(ctx context.Context) error {
	if f == nil || f.service == nil {
		return core.NewAuthorityUnavailable("facade is not assembled", nil)
	}
	return f.service.Start(ctx)
}

// Stop cancels the refresh loops and waits for them to exit.
func (f *Facade) Stop(ctx context.Context) error {
	if f == nil || f.service == nil {
		return nil
	}
	return f.service.Stop(ctx)
}

// Token returns the current bearer token.
func (f *Facade) Token() (string, bool) {
	if f == nil || f.service == nil || f.service.TokenStore() == nil {
		return "", false
	}
	return f.service.TokenStore().Get()
}

// VerifyDelivery runs one inbound webhook through verification, dedupe, and
// the configured handler.
func (f *Facade) VerifyDelivery(ctx context.Context, req webhooks.InboundRequest) (webhooks.InboundResult, error) {
	if f == nil || f.processor == nil {
		err := core.NewPublicKeyMissing("facade is not assembled")
		return webhooks.InboundResult{Status: webhooks.StatusForError(err)}, err
	}
	return f.processor.Process(ctx, req)
}

// APIClient returns an HTTP client whose outbound requests carry the managed
// bearer token, reissuing it once on a 401.
func (f *Facade) APIClient() *http.Client {
	if f == nil || f.service == nil {
		return nil
	}
	return transport.NewHTTPClient(f.service.TokenStore(), f.service.TokenIssuer())
}

// Verifier exposes the signature verifier for callers that manage their own
// transport plumbing.
func (f *Facade) Verifier() *webhooks.Verifier {
	if f == nil {
		return nil
	}
	return f.verifier
}

func (f *Facade) Service() *core.Service {
	if f == nil {
		return nil
	}
	return f.service
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

// tokenIssuerRef defers issuer binding until the authority client is built
// from the resolved config.
type tokenIssuerRef struct {
	issuer core.TokenIssuer
}

func (r *tokenIssuerRef) Issue(ctx context.Context) (string, error) {
	if r == nil || r.issuer == nil {
		return "", core.NewAuthorityUnavailable("token issuer is not bound", nil)
	}
	return r.issuer.Issue(ctx)
}

type keyIssuerRef struct {
	issuer core.KeyIssuer
}

func (r *keyIssuerRef) Issue(ctx context.Context) error {
	if r == nil || r.issuer == nil {
		return core.NewAuthorityUnavailable("public key issuer is not bound", nil)
	}
	return r.issuer.Issue(ctx)
}
