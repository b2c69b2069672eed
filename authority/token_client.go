package authority

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-riskauth/core"
)

const defaultTokenResponseBodyLimit int64 = 1 << 20 // 1 MiB

const (
	EndpointToken     = "token"
	EndpointPublicKey = "publickey"
)

// ThrottlePolicy gates calls against one authority endpoint. BeforeCall
// reports an error while the endpoint is inside a throttle window; AfterCall
// records the response so the window can be derived from Retry-After.
type ThrottlePolicy interface {
	BeforeCall(endpoint string) error
	AfterCall(endpoint string, statusCode int, headers http.Header) error
}

type TokenClientConfig struct {
	TokenURL       string
	APIKey         string
	Scope          string
	RequestTimeout time.Duration
	MaxAttempts    int
}

// TokenClient obtains access tokens with the client-credentials grant. Each
// request is bounded by its own timeout, independent of the retry backoff, so
// a hung socket never blocks a scheduler indefinitely.
type TokenClient struct {
	Config   TokenClientConfig
	Client   core.HTTPDoer
	Store    core.TokenStore
	Backoff  core.BackoffScheduler
	Throttle ThrottlePolicy
}

func NewTokenClient(cfg TokenClientConfig, store core.TokenStore, client core.HTTPDoer) *TokenClient {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = core.DefaultRequestTimeout
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = core.DefaultRetryMaxAttempts
	}
	if strings.TrimSpace(cfg.Scope) == "" {
		cfg.Scope = core.DefaultScope
	}
	return &TokenClient{
		Config: cfg,
		Client: client,
		Store:  store,
	}
}

// Issue fetches a new token, stores it, and returns it. Transient authority
// failures are absorbed by the retry policy; whatever survives it surfaces
// as an authority-unavailable error.
func (c *TokenClient) Issue(ctx context.Context) (string, error) {
	if c == nil || c.Client == nil {
		return "", authorityError(
			"authority: token client requires an http client",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	if strings.TrimSpace(c.Config.TokenURL) == "" {
		return "", authorityError(
			"authority: token url is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			nil,
		)
	}
	if strings.TrimSpace(c.Config.APIKey) == "" {
		return "", authorityError(
			"authority: api key is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			nil,
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var token string
	_, err := core.RunWithRetry(ctx, c.Config.MaxAttempts, c.Backoff, core.IsRetryable, func(ctx context.Context) error {
		issued, attemptErr := c.requestToken(ctx)
		if attemptErr != nil {
			return attemptErr
		}
		token = issued
		return nil
	})
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return "", err
		}
		return "", core.NewAuthorityUnavailable("authority: token issuance failed", err)
	}

	if c.Store != nil {
		c.Store.Set(token)
	}
	return token, nil
}

func (c *TokenClient) requestToken(ctx context.Context) (string, error) {
	if c.Throttle != nil {
		if err := c.Throttle.BeforeCall(EndpointToken); err != nil {
			return "", err
		}
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", c.Config.Scope)

	requestCtx, cancel := context.WithTimeout(ctx, c.Config.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, c.Config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", authorityWrapError(
			err,
			goerrors.CategoryBadInput,
			"authority: build token request",
			http.StatusBadRequest,
			map[string]any{"endpoint": c.Config.TokenURL},
		)
	}
	req.Header.Set("Authorization", "Basic "+strings.TrimSpace(c.Config.APIKey))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.Client.Do(req)
	if err != nil {
		return "", authorityWrapError(
			err,
			goerrors.CategoryExternal,
			"authority: token endpoint unreachable",
			0,
			map[string]any{"endpoint": c.Config.TokenURL},
		)
	}
	defer res.Body.Close()

	if c.Throttle != nil {
		if err := c.Throttle.AfterCall(EndpointToken, res.StatusCode, res.Header); err != nil {
			return "", err
		}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, defaultTokenResponseBodyLimit))
	if err != nil {
		return "", authorityWrapError(
			err,
			goerrors.CategoryExternal,
			"authority: read token response",
			http.StatusBadGateway,
			map[string]any{"endpoint": c.Config.TokenURL, "status_code": res.StatusCode},
		)
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return "", authorityError(
			fmt.Sprintf("authority: token endpoint returned status %d", res.StatusCode),
			goerrors.CategoryExternal,
			res.StatusCode,
			map[string]any{"endpoint": c.Config.TokenURL, "status_code": res.StatusCode},
		)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", authorityWrapError(
			err,
			goerrors.CategoryExternal,
			"authority: decode token response",
			http.StatusBadGateway,
			map[string]any{"endpoint": c.Config.TokenURL},
		)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return "", authorityError(
			"authority: token response is missing access_token",
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			map[string]any{"endpoint": c.Config.TokenURL},
		)
	}
	return payload.AccessToken, nil
}

var _ core.TokenIssuer = (*TokenClient)(nil)
