package command

import (
	"strings"

	"github.com/goliatone/go-riskauth/webhooks"
)

const (
	TypeRefreshToken       = "riskauth.command.token.refresh"
	TypeRefreshPublicKey   = "riskauth.command.publickey.refresh"
	TypeInstallFallbackKey = "riskauth.command.publickey.install_fallback"
	TypeVerifyDelivery     = "riskauth.command.delivery.verify"
)

type RefreshTokenMessage struct{}

func (RefreshTokenMessage) Type() string { return TypeRefreshToken }

func (RefreshTokenMessage) Validate() error { return nil }

type RefreshPublicKeyMessage struct{}

func (RefreshPublicKeyMessage) Type() string { return TypeRefreshPublicKey }

func (RefreshPublicKeyMessage) Validate() error { return nil }

type InstallFallbackKeyMessage struct{}

func (InstallFallbackKeyMessage) Type() string { return TypeInstallFallbackKey }

func (InstallFallbackKeyMessage) Validate() error { return nil }

type VerifyDeliveryMessage struct {
	Request webhooks.InboundRequest
}

func (VerifyDeliveryMessage) Type() string { return TypeVerifyDelivery }

func (m VerifyDeliveryMessage) Validate() error {
	if strings.TrimSpace(m.Request.Signature) == "" {
		return commandInvalidInputError("command: delivery signature is required")
	}
	if strings.TrimSpace(m.Request.Timestamp) == "" {
		return commandInvalidInputError("command: delivery timestamp is required")
	}
	return nil
}
