package security

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-riskauth/core"
)

// Canonical secret names the credential loader asks for.
const (
	SecretAPIKey            = "api_key"
	SecretClientID          = "client_id"
	SecretFallbackPublicKey = "fallback_public_key"
)

// SecretSource resolves a named secret. Missing secrets return an error; an
// empty value is never a valid secret.
type SecretSource interface {
	Resolve(ctx context.Context, name string) (string, error)
}

type StaticSecretSource map[string]string

func (s StaticSecretSource) Resolve(_ context.Context, name string) (string, error) {
	value, ok := s[strings.TrimSpace(name)]
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("security: secret %q is not set", name)
	}
	return strings.TrimSpace(value), nil
}

// EnvSecretSource resolves secrets from the process environment. The name is
// upper-cased and the prefix prepended, so "api_key" with prefix "RISKAUTH_"
// reads RISKAUTH_API_KEY.
type EnvSecretSource struct {
	Prefix string
}

func (s EnvSecretSource) Resolve(_ context.Context, name string) (string, error) {
	variable := s.Prefix + strings.ToUpper(strings.TrimSpace(name))
	value := strings.TrimSpace(os.Getenv(variable))
	if value == "" {
		return "", fmt.Errorf("security: environment variable %q is not set", variable)
	}
	return value, nil
}

type FailurePolicy string

const (
	FailurePolicyStrict   FailurePolicy = "strict_fail"
	FailurePolicyFallback FailurePolicy = "fallback_allowed"
)

type Diagnostic struct {
	OccurredAt time.Time
	Secret     string
	Policy     FailurePolicy
	Outcome    string
	Error      string
}

type DiagnosticHook func(event Diagnostic)

type FailoverOption func(*FailoverSecretSource)

// FailoverSecretSource consults a primary source and, when policy allows,
// falls back to a secondary one. Diagnostics record every failover so a
// silently degraded primary stays visible.
type FailoverSecretSource struct {
	primary        SecretSource
	fallback       SecretSource
	policy         FailurePolicy
	diagnosticHook DiagnosticHook
	now            func() time.Time

	mu sync.Mutex
}

func NewFailoverSecretSource(primary SecretSource, opts ...FailoverOption) (*FailoverSecretSource, error) {
	if primary == nil {
		return nil, fmt.Errorf("security: primary secret source is required")
	}
	source := &FailoverSecretSource{
		primary: primary,
		policy:  FailurePolicyStrict,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(source)
	}
	source.policy = normalizeFailurePolicy(source.policy)
	if source.policy == FailurePolicyFallback && source.fallback == nil {
		return nil, fmt.Errorf("security: fallback policy requires a configured fallback secret source")
	}
	return source, nil
}

func WithFallbackSecretSource(fallback SecretSource) FailoverOption {
	return func(s *FailoverSecretSource) {
		if s == nil {
			return
		}
		s.fallback = fallback
	}
}

func WithFailurePolicy(policy FailurePolicy) FailoverOption {
	return func(s *FailoverSecretSource) {
		if s == nil {
			return
		}
		s.policy = normalizeFailurePolicy(policy)
	}
}

func WithDiagnostics(hook DiagnosticHook) FailoverOption {
	return func(s *FailoverSecretSource) {
		if s == nil {
			return
		}
		s.diagnosticHook = hook
	}
}

func WithFailoverClock(now func() time.Time) FailoverOption {
	return func(s *FailoverSecretSource) {
		if s == nil || now == nil {
			return
		}
		s.now = now
	}
}

func (s *FailoverSecretSource) Resolve(ctx context.Context, name string) (string, error) {
	if s == nil || s.primary == nil {
		return "", fmt.Errorf("security: secret source is not configured")
	}
	value, err := s.primary.Resolve(ctx, name)
	if err == nil {
		return value, nil
	}
	s.emit(name, "primary_failed", err)
	if s.policy == FailurePolicyStrict || s.fallback == nil {
		return "", fmt.Errorf("security: primary resolve failed with %s policy: %w", s.policy, err)
	}
	value, fallbackErr := s.fallback.Resolve(ctx, name)
	if fallbackErr != nil {
		s.emit(name, "fallback_failed", fallbackErr)
		return "", fmt.Errorf("security: primary resolve failed: %v; fallback resolve failed: %w", err, fallbackErr)
	}
	s.emit(name, "fallback_succeeded", err)
	return value, nil
}

func (s *FailoverSecretSource) emit(secret string, outcome string, cause error) {
	s.mu.Lock()
	hook := s.diagnosticHook
	now := s.now
	s.mu.Unlock()
	if hook == nil {
		return
	}
	event := Diagnostic{
		Secret:  secret,
		Policy:  s.policy,
		Outcome: outcome,
	}
	if now != nil {
		event.OccurredAt = now().UTC()
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	hook(event)
}

func normalizeFailurePolicy(policy FailurePolicy) FailurePolicy {
	switch FailurePolicy(strings.TrimSpace(strings.ToLower(string(policy)))) {
	case FailurePolicyFallback:
		return FailurePolicyFallback
	default:
		return FailurePolicyStrict
	}
}

// LoadCredentials fills the credential fields of cfg that are still empty.
// The API key and client ID are required; the fallback public key is optional
// and a miss there is not an error.
func LoadCredentials(ctx context.Context, source SecretSource, cfg *core.Config) error {
	if source == nil {
		return fmt.Errorf("security: secret source is required")
	}
	if cfg == nil {
		return fmt.Errorf("security: config is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		value, err := source.Resolve(ctx, SecretAPIKey)
		if err != nil {
			return err
		}
		cfg.APIKey = value
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		value, err := source.Resolve(ctx, SecretClientID)
		if err != nil {
			return err
		}
		cfg.ClientID = value
	}
	if strings.TrimSpace(cfg.FallbackPublicKey) == "" {
		if value, err := source.Resolve(ctx, SecretFallbackPublicKey); err == nil {
			cfg.FallbackPublicKey = value
		}
	}
	return nil
}

var (
	_ SecretSource = (StaticSecretSource)(nil)
	_ SecretSource = (EnvSecretSource{})
	_ SecretSource = (*FailoverSecretSource)(nil)
)
