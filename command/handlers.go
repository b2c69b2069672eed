package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-riskauth/core"
	"github.com/goliatone/go-riskauth/webhooks"
)

// FallbackInstaller loads the locally configured public key when the
// authority withholds the distributed one.
type FallbackInstaller interface {
	InstallFallback() error
}

type RefreshTokenCommand struct {
	issuer core.TokenIssuer
}

func NewRefreshTokenCommand(issuer core.TokenIssuer) *RefreshTokenCommand {
	return &RefreshTokenCommand{issuer: issuer}
}

func (c *RefreshTokenCommand) Execute(ctx context.Context, _ RefreshTokenMessage) error {
	if c == nil || c.issuer == nil {
		return commandDependencyError("command: token issuer is required")
	}
	token, err := c.issuer.Issue(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, token)
	return nil
}

type RefreshPublicKeyCommand struct {
	issuer core.KeyIssuer
}

func NewRefreshPublicKeyCommand(issuer core.KeyIssuer) *RefreshPublicKeyCommand {
	return &RefreshPublicKeyCommand{issuer: issuer}
}

func (c *RefreshPublicKeyCommand) Execute(ctx context.Context, _ RefreshPublicKeyMessage) error {
	if c == nil || c.issuer == nil {
		return commandDependencyError("command: public key issuer is required")
	}
	return c.issuer.Issue(ctx)
}

type InstallFallbackKeyCommand struct {
	installer FallbackInstaller
}

func NewInstallFallbackKeyCommand(installer FallbackInstaller) *InstallFallbackKeyCommand {
	return &InstallFallbackKeyCommand{installer: installer}
}

func (c *InstallFallbackKeyCommand) Execute(_ context.Context, _ InstallFallbackKeyMessage) error {
	if c == nil || c.installer == nil {
		return commandDependencyError("command: fallback installer is required")
	}
	return c.installer.InstallFallback()
}

type VerifyDeliveryCommand struct {
	processor *webhooks.Processor
}

func NewVerifyDeliveryCommand(processor *webhooks.Processor) *VerifyDeliveryCommand {
	return &VerifyDeliveryCommand{processor: processor}
}

func (c *VerifyDeliveryCommand) Execute(ctx context.Context, msg VerifyDeliveryMessage) error {
	if c == nil || c.processor == nil {
		return commandDependencyError("command: delivery processor is required")
	}
	out, err := c.processor.Process(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
