package query

import (
	"context"
	"time"

	"github.com/goliatone/go-riskauth/core"
)

// CredentialStatus is a point-in-time snapshot of what the stores hold.
type CredentialStatus struct {
	HasToken       bool
	TokenExpiresAt time.Time
	TokenDecodable bool
	HasPublicKey   bool
	KeyValidUntil  time.Time
	KeyExpired     bool
}

type GetTokenQuery struct {
	tokens core.TokenStore
}

func NewGetTokenQuery(tokens core.TokenStore) *GetTokenQuery {
	return &GetTokenQuery{tokens: tokens}
}

func (q *GetTokenQuery) Query(_ context.Context, _ GetTokenMessage) (string, error) {
	if q == nil || q.tokens == nil {
		return "", queryDependencyError("query: token store is required")
	}
	token, ok := q.tokens.Get()
	if !ok {
		return "", queryNotFoundError("query: no token has been issued")
	}
	return token, nil
}

type GetPublicKeyQuery struct {
	keys core.KeyStore
}

func NewGetPublicKeyQuery(keys core.KeyStore) *GetPublicKeyQuery {
	return &GetPublicKeyQuery{keys: keys}
}

func (q *GetPublicKeyQuery) Query(_ context.Context, _ GetPublicKeyMessage) (core.PublicKeyMaterial, error) {
	if q == nil || q.keys == nil {
		return core.PublicKeyMaterial{}, queryDependencyError("query: key store is required")
	}
	material, ok := q.keys.Get()
	if !ok {
		return core.PublicKeyMaterial{}, queryNotFoundError("query: no public key has been loaded")
	}
	return material, nil
}

type CredentialStatusQuery struct {
	tokens core.TokenStore
	keys   core.KeyStore
	now    func() time.Time
}

func NewCredentialStatusQuery(tokens core.TokenStore, keys core.KeyStore) *CredentialStatusQuery {
	return &CredentialStatusQuery{
		tokens: tokens,
		keys:   keys,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (q *CredentialStatusQuery) Query(_ context.Context, _ CredentialStatusMessage) (CredentialStatus, error) {
	if q == nil || (q.tokens == nil && q.keys == nil) {
		return CredentialStatus{}, queryDependencyError("query: credential stores are required")
	}
	status := CredentialStatus{}
	if q.tokens != nil {
		if token, ok := q.tokens.Get(); ok {
			status.HasToken = true
			status.TokenExpiresAt, status.TokenDecodable = core.DecodeTokenExpiry(token)
		}
	}
	if q.keys != nil {
		if material, ok := q.keys.Get(); ok {
			status.HasPublicKey = true
			status.KeyValidUntil = material.ValidUntil
			if !material.ValidUntil.IsZero() {
				status.KeyExpired = q.clock().After(material.ValidUntil)
			}
		}
	}
	return status, nil
}

func (q *CredentialStatusQuery) clock() time.Time {
	if q != nil && q.now != nil {
		return q.now().UTC()
	}
	return time.Now().UTC()
}
