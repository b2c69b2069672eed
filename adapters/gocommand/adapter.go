package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"

	riskcmd "github.com/goliatone/go-riskauth/command"
	"github.com/goliatone/go-riskauth/core"
	"github.com/goliatone/go-riskauth/webhooks"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// MountDeps carries the concrete lifecycle pieces the command handlers act on.
type MountDeps struct {
	TokenIssuer       core.TokenIssuer
	KeyIssuer         core.KeyIssuer
	FallbackInstaller riskcmd.FallbackInstaller
	Processor         *webhooks.Processor
}

// Mount registers and subscribes a command handler for each dependency that is
// present. Missing dependencies are skipped rather than failing the mount.
func Mount(adapter *RegistryAdapter, deps MountDeps, runnerOpts ...runner.Option) ([]commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	subscriptions := []commanddispatcher.Subscription{}
	unsubscribeAll := func() {
		for _, sub := range subscriptions {
			if sub != nil {
				sub.Unsubscribe()
			}
		}
	}
	if deps.TokenIssuer != nil {
		sub, err := RegisterAndSubscribe(adapter, riskcmd.NewRefreshTokenCommand(deps.TokenIssuer), runnerOpts...)
		if err != nil {
			unsubscribeAll()
			return nil, err
		}
		subscriptions = append(subscriptions, sub)
	}
	if deps.KeyIssuer != nil {
		sub, err := RegisterAndSubscribe(adapter, riskcmd.NewRefreshPublicKeyCommand(deps.KeyIssuer), runnerOpts...)
		if err != nil {
			unsubscribeAll()
			return nil, err
		}
		subscriptions = append(subscriptions, sub)
	}
	if deps.FallbackInstaller != nil {
		sub, err := RegisterAndSubscribe(adapter, riskcmd.NewInstallFallbackKeyCommand(deps.FallbackInstaller), runnerOpts...)
		if err != nil {
			unsubscribeAll()
			return nil, err
		}
		subscriptions = append(subscriptions, sub)
	}
	if deps.Processor != nil {
		sub, err := RegisterAndSubscribe(adapter, riskcmd.NewVerifyDeliveryCommand(deps.Processor), runnerOpts...)
		if err != nil {
			unsubscribeAll()
			return nil, err
		}
		subscriptions = append(subscriptions, sub)
	}
	return subscriptions, nil
}
