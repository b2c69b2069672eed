package transport

import (
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-riskauth/core"
)

const defaultClientTimeout = 30 * time.Second

// BearerTransport injects the managed access token into outbound API calls.
// On a 401 the token is reissued once and the request replayed, which covers
// a token revoked between refresh cycles.
type BearerTransport struct {
	Base   http.RoundTripper
	Tokens core.TokenStore
	Issuer core.TokenIssuer
}

func NewBearerTransport(tokens core.TokenStore, issuer core.TokenIssuer) *BearerTransport {
	return &BearerTransport{
		Base:   http.DefaultTransport,
		Tokens: tokens,
		Issuer: issuer,
	}
}

// NewHTTPClient returns a client whose requests carry the managed token.
func NewHTTPClient(tokens core.TokenStore, issuer core.TokenIssuer) *http.Client {
	return &http.Client{
		Transport: NewBearerTransport(tokens, issuer),
		Timeout:   defaultClientTimeout,
	}
}

func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t == nil {
		return nil, transportError("transport: bearer transport is not configured", goerrors.CategoryInternal, http.StatusInternalServerError, nil)
	}
	token, err := t.resolveToken(req)
	if err != nil {
		return nil, err
	}

	res, err := t.base().RoundTrip(withBearer(req, token))
	if err != nil {
		return nil, transportWrapError(err, goerrors.CategoryExternal, "transport: request failed", http.StatusBadGateway, map[string]any{
			"host": req.URL.Host,
		})
	}
	if res.StatusCode != http.StatusUnauthorized || t.Issuer == nil {
		return res, nil
	}
	if req.GetBody == nil && req.Body != nil {
		return res, nil
	}

	res.Body.Close()
	fresh, err := t.Issuer.Issue(req.Context())
	if err != nil {
		return nil, err
	}
	retry := req
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, transportWrapError(err, goerrors.CategoryInternal, "transport: rewind request body", http.StatusInternalServerError, nil)
		}
		retry = req.Clone(req.Context())
		retry.Body = body
	}
	res, err = t.base().RoundTrip(withBearer(retry, fresh))
	if err != nil {
		return nil, transportWrapError(err, goerrors.CategoryExternal, "transport: request failed after reauth", http.StatusBadGateway, map[string]any{
			"host": req.URL.Host,
		})
	}
	return res, nil
}

func (t *BearerTransport) resolveToken(req *http.Request) (string, error) {
	if t.Tokens != nil {
		if token, ok := t.Tokens.Get(); ok && strings.TrimSpace(token) != "" {
			return token, nil
		}
	}
	if t.Issuer == nil {
		return "", transportError("transport: no token available and no issuer configured", goerrors.CategoryOperation, http.StatusInternalServerError, nil)
	}
	return t.Issuer.Issue(req.Context())
}

func (t *BearerTransport) base() http.RoundTripper {
	if t != nil && t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func withBearer(req *http.Request, token string) *http.Request {
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+token)
	return out
}

var _ http.RoundTripper = (*BearerTransport)(nil)
