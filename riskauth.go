package riskauth

import "github.com/goliatone/go-riskauth/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type TokenStore = core.TokenStore
type KeyStore = core.KeyStore
type TokenIssuer = core.TokenIssuer
type KeyIssuer = core.KeyIssuer
type PublicKeyMaterial = core.PublicKeyMaterial
type BackoffScheduler = core.BackoffScheduler
type MetricsRecorder = core.MetricsRecorder
type HTTPDoer = core.HTTPDoer

var (
	WithLogger           = core.WithLogger
	WithLoggerProvider   = core.WithLoggerProvider
	WithMetricsRecorder  = core.WithMetricsRecorder
	WithErrorFactory     = core.WithErrorFactory
	WithErrorMapper      = core.WithErrorMapper
	WithConfigProvider   = core.WithConfigProvider
	WithOptionsResolver  = core.WithOptionsResolver
	WithTokenStore       = core.WithTokenStore
	WithKeyStore         = core.WithKeyStore
	WithTokenIssuer      = core.WithTokenIssuer
	WithKeyIssuer        = core.WithKeyIssuer
	WithBackoffScheduler = core.WithBackoffScheduler
	WithNow              = core.WithNow
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
