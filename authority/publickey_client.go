package authority

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-riskauth/core"
)

const defaultKeyResponseBodyLimit int64 = 1 << 20 // 1 MiB

type PublicKeyClientConfig struct {
	URL                 string
	FallbackPublicKey   string
	FallbackKeyValidity time.Duration
	RequestTimeout      time.Duration
	MaxAttempts         int
}

// PublicKeyClient fetches the webhook verification key from the key
// distribution endpoint, authenticating with the current access token. When
// the authority withholds the key and an operator-provided fallback exists,
// the fallback is installed with a long validity window instead of failing.
type PublicKeyClient struct {
	Config      PublicKeyClientConfig
	Client      core.HTTPDoer
	Keys        core.KeyStore
	Tokens      core.TokenStore
	TokenIssuer core.TokenIssuer
	Backoff     core.BackoffScheduler
	Throttle    ThrottlePolicy
	Now         func() time.Time
}

func NewPublicKeyClient(
	cfg PublicKeyClientConfig,
	keys core.KeyStore,
	tokens core.TokenStore,
	tokenIssuer core.TokenIssuer,
	client core.HTTPDoer,
) *PublicKeyClient {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = core.DefaultRequestTimeout
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = core.DefaultRetryMaxAttempts
	}
	if cfg.FallbackKeyValidity <= 0 {
		cfg.FallbackKeyValidity = core.DefaultFallbackKeyValidity
	}
	return &PublicKeyClient{
		Config:      cfg,
		Client:      client,
		Keys:        keys,
		Tokens:      tokens,
		TokenIssuer: tokenIssuer,
	}
}

// keyWithheldError marks the two authority statuses that mean "key exists
// but is temporarily not distributed". It must escape the retry loop
// immediately so the fallback policy can run.
type keyWithheldError struct {
	status int
}

func (e *keyWithheldError) Error() string {
	return fmt.Sprintf("authority: public key withheld (status %d)", e.status)
}

func isKeyWithheld(err error) bool {
	var withheld *keyWithheldError
	return errors.As(err, &withheld)
}

func (c *PublicKeyClient) Issue(ctx context.Context) error {
	if c == nil || c.Client == nil {
		return authorityError(
			"authority: public key client requires an http client",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	if c.Keys == nil {
		return authorityError(
			"authority: key store is required",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	if strings.TrimSpace(c.Config.URL) == "" {
		return authorityError(
			"authority: public key url is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			nil,
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	token, err := c.resolveToken(ctx)
	if err != nil {
		return err
	}

	_, err = core.RunWithRetry(ctx, c.Config.MaxAttempts, c.Backoff, keyFetchRetryable, func(ctx context.Context) error {
		return c.requestKey(ctx, token)
	})
	if err == nil {
		return nil
	}
	if isKeyWithheld(err) {
		return c.installFallback(err)
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	return core.NewAuthorityUnavailable("authority: public key fetch failed", err)
}

func keyFetchRetryable(err error) bool {
	if isKeyWithheld(err) {
		return false
	}
	return core.IsRetryable(err)
}

func (c *PublicKeyClient) resolveToken(ctx context.Context) (string, error) {
	if c.Tokens != nil {
		if token, ok := c.Tokens.Get(); ok {
			return token, nil
		}
	}
	if c.TokenIssuer == nil {
		return "", authorityError(
			"authority: no access token available and no token issuer configured",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	return c.TokenIssuer.Issue(ctx)
}

// InstallFallback installs the operator-provided fallback key with the
// configured long validity window. Exposed for operator-forced installs; the
// fetch path calls it when the authority withholds the key.
func (c *PublicKeyClient) InstallFallback() error {
	return c.installFallback(nil)
}

func (c *PublicKeyClient) installFallback(cause error) error {
	fallback := strings.TrimSpace(c.Config.FallbackPublicKey)
	if fallback == "" {
		return core.NewAuthorityUnavailable("authority: public key withheld and no fallback key configured", cause)
	}
	der, err := base64.StdEncoding.DecodeString(fallback)
	if err != nil {
		return authorityWrapError(
			err,
			goerrors.CategoryBadInput,
			"authority: fallback public key is not valid base64",
			http.StatusBadRequest,
			nil,
		)
	}
	c.Keys.Set(der, c.clock().Add(c.Config.FallbackKeyValidity))
	return nil
}

func (c *PublicKeyClient) requestKey(ctx context.Context, token string) error {
	if c.Throttle != nil {
		if err := c.Throttle.BeforeCall(EndpointPublicKey); err != nil {
			return err
		}
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.Config.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, c.Config.URL, nil)
	if err != nil {
		return authorityWrapError(
			err,
			goerrors.CategoryBadInput,
			"authority: build public key request",
			http.StatusBadRequest,
			map[string]any{"endpoint": c.Config.URL},
		)
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	req.Header.Set("Content-Type", "application/json")

	res, err := c.Client.Do(req)
	if err != nil {
		return authorityWrapError(
			err,
			goerrors.CategoryExternal,
			"authority: public key endpoint unreachable",
			0,
			map[string]any{"endpoint": c.Config.URL},
		)
	}
	defer res.Body.Close()

	if c.Throttle != nil {
		if err := c.Throttle.AfterCall(EndpointPublicKey, res.StatusCode, res.Header); err != nil {
			return err
		}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, defaultKeyResponseBodyLimit))
	if err != nil {
		return authorityWrapError(
			err,
			goerrors.CategoryExternal,
			"authority: read public key response",
			http.StatusBadGateway,
			map[string]any{"endpoint": c.Config.URL, "status_code": res.StatusCode},
		)
	}
	if res.StatusCode == http.StatusForbidden || res.StatusCode == http.StatusTeapot {
		return &keyWithheldError{status: res.StatusCode}
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return authorityError(
			fmt.Sprintf("authority: public key endpoint returned status %d", res.StatusCode),
			goerrors.CategoryExternal,
			res.StatusCode,
			map[string]any{"endpoint": c.Config.URL, "status_code": res.StatusCode},
		)
	}

	var payload struct {
		PublicKey  string `json:"publicKey"`
		ValidUntil string `json:"validUntil"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return authorityWrapError(
			err,
			goerrors.CategoryExternal,
			"authority: decode public key response",
			http.StatusBadGateway,
			map[string]any{"endpoint": c.Config.URL},
		)
	}
	der, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload.PublicKey))
	if err != nil || len(der) == 0 {
		return authorityWrapError(
			err,
			goerrors.CategoryExternal,
			"authority: public key response is not valid base64",
			http.StatusBadGateway,
			map[string]any{"endpoint": c.Config.URL},
		)
	}
	validUntil, err := time.Parse(time.RFC3339, strings.TrimSpace(payload.ValidUntil))
	if err != nil {
		return authorityWrapError(
			err,
			goerrors.CategoryExternal,
			"authority: public key response carries an invalid validUntil",
			http.StatusBadGateway,
			map[string]any{"endpoint": c.Config.URL, "valid_until": payload.ValidUntil},
		)
	}

	c.Keys.Set(der, validUntil.UTC())
	return nil
}

func (c *PublicKeyClient) clock() time.Time {
	if c != nil && c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

var _ core.KeyIssuer = (*PublicKeyClient)(nil)
