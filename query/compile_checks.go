package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-riskauth/core"
)

var (
	_ gocmd.Querier[GetTokenMessage, string]                     = (*GetTokenQuery)(nil)
	_ gocmd.Querier[GetPublicKeyMessage, core.PublicKeyMaterial] = (*GetPublicKeyQuery)(nil)
	_ gocmd.Querier[CredentialStatusMessage, CredentialStatus]   = (*CredentialStatusQuery)(nil)
)
