package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/config"
)

const (
	DefaultScope = "k1_integration_api"

	DefaultRefreshBuffer       = 2 * time.Minute
	DefaultGraceWindow         = 5 * time.Minute
	DefaultRequestTimeout      = 10 * time.Second
	DefaultFallbackKeyValidity = 365 * 24 * time.Hour
	DefaultTokenRetryInterval  = 10 * time.Second
	DefaultRetryMaxAttempts    = 3
)

const (
	defaultTokenURL = "https://login.kount.com/oauth2/ausdppkujzCPQuIrY357/v1/token"

	sandboxPublicKeyURLTemplate    = "https://app-sandbox.kount.com/api/developer/ens/client/%s/public-key"
	productionPublicKeyURLTemplate = "https://app.kount.com/api/developer/ens/client/%s/public-key"
)

// Config carries every startup input the lifecycle manager needs. It is
// loaded once and threaded through constructors; no component performs
// ambient environment lookups.
type Config struct {
	ServiceName string `koanf:"service_name" mapstructure:"service_name"`

	// APIKey is the pre-shared, base64-encoded client credential sent as the
	// Basic authorization header on token issuance.
	APIKey string `koanf:"api_key" mapstructure:"api_key"`

	// ClientID identifies this integration to the key distribution endpoint.
	ClientID string `koanf:"client_id" mapstructure:"client_id"`

	// Sandbox selects the sandbox key distribution endpoint. Leaving it unset
	// means sandbox; set it to false explicitly to target production.
	Sandbox *config.OptionalBool `koanf:"sandbox" mapstructure:"sandbox"`

	// Scope is the fixed integration scope requested with the
	// client-credentials grant.
	Scope string `koanf:"scope" mapstructure:"scope"`

	// TokenURL overrides the authority token endpoint.
	TokenURL string `koanf:"token_url" mapstructure:"token_url"`

	// PublicKeyURLTemplate overrides the key distribution endpoint. It may
	// contain a single %s placeholder for the client ID. When empty, the
	// sandbox/production template is selected by the Sandbox flag.
	PublicKeyURLTemplate string `koanf:"public_key_url_template" mapstructure:"public_key_url_template"`

	// FallbackPublicKey is an optional operator-provided base64 DER key,
	// installed only when the authority withholds the current key.
	FallbackPublicKey string `koanf:"fallback_public_key" mapstructure:"fallback_public_key"`

	// ManagePublicKey enables the public key fetch and refresh loop. Token
	// management is always on; key management is opt-in for deployments that
	// do not consume webhooks.
	ManagePublicKey bool `koanf:"manage_public_key" mapstructure:"manage_public_key"`

	RefreshBuffer       time.Duration `koanf:"refresh_buffer" mapstructure:"refresh_buffer"`
	GraceWindow         time.Duration `koanf:"grace_window" mapstructure:"grace_window"`
	RequestTimeout      time.Duration `koanf:"request_timeout" mapstructure:"request_timeout"`
	FallbackKeyValidity time.Duration `koanf:"fallback_key_validity" mapstructure:"fallback_key_validity"`
	TokenRetryInterval  time.Duration `koanf:"token_retry_interval" mapstructure:"token_retry_interval"`
	RetryMaxAttempts    int           `koanf:"retry_max_attempts" mapstructure:"retry_max_attempts"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:         "riskauth",
		Sandbox:             config.NewOptionalBool(true),
		Scope:               DefaultScope,
		TokenURL:            defaultTokenURL,
		RefreshBuffer:       DefaultRefreshBuffer,
		GraceWindow:         DefaultGraceWindow,
		RequestTimeout:      DefaultRequestTimeout,
		FallbackKeyValidity: DefaultFallbackKeyValidity,
		TokenRetryInterval:  DefaultTokenRetryInterval,
		RetryMaxAttempts:    DefaultRetryMaxAttempts,
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("core: config is nil")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("core: api key is required")
	}
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("core: client id is required")
	}
	if strings.TrimSpace(c.TokenURL) == "" {
		return fmt.Errorf("core: token url is required")
	}
	if c.RefreshBuffer < 0 {
		return fmt.Errorf("core: refresh buffer must not be negative")
	}
	if c.GraceWindow < 0 {
		return fmt.Errorf("core: grace window must not be negative")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("core: request timeout must not be negative")
	}
	if c.RetryMaxAttempts < 0 {
		return fmt.Errorf("core: retry max attempts must not be negative")
	}
	return nil
}

// SandboxEnabled reports whether the sandbox endpoints are in effect. An
// unset selector counts as sandbox so a zero Config never reaches production.
func (c Config) SandboxEnabled() bool {
	return c.Sandbox.BoolOr(true)
}

// PublicKeyURL resolves the key distribution endpoint for the configured
// client, honoring the sandbox selector when no template override is set.
func (c Config) PublicKeyURL() string {
	template := strings.TrimSpace(c.PublicKeyURLTemplate)
	if template == "" {
		if c.SandboxEnabled() {
			template = sandboxPublicKeyURLTemplate
		} else {
			template = productionPublicKeyURLTemplate
		}
	}
	if strings.Contains(template, "%s") {
		return fmt.Sprintf(template, strings.TrimSpace(c.ClientID))
	}
	return template
}

func (c Config) refreshBuffer() time.Duration {
	if c.RefreshBuffer > 0 {
		return c.RefreshBuffer
	}
	return DefaultRefreshBuffer
}

func (c Config) tokenRetryInterval() time.Duration {
	if c.TokenRetryInterval > 0 {
		return c.TokenRetryInterval
	}
	return DefaultTokenRetryInterval
}
