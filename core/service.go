package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service owns the credential lifecycle: the blocking startup fetches, the
// two proactive refresh loops, and cooperative shutdown. Stores are injected
// rather than global so there is exactly one logical instance per process
// without hidden mutable state.
type Service struct {
	config           Config
	logger           Logger
	loggerProvider   LoggerProvider
	metricsRecorder  MetricsRecorder
	errorFactory     ErrorFactory
	errorMapper      ErrorMapper
	configProvider   ConfigProvider
	optionsResolver  OptionsResolver
	tokenStore       TokenStore
	keyStore         KeyStore
	tokenIssuer      TokenIssuer
	keyIssuer        KeyIssuer
	backoffScheduler BackoffScheduler
	now              func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	loops   sync.WaitGroup
	started bool
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("riskauth", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("riskauth"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.tokenStore == nil {
		builder.tokenStore = NewMemoryTokenStore()
	}
	if builder.keyStore == nil {
		builder.keyStore = NewMemoryKeyStore()
	}
	if builder.backoffScheduler == nil {
		builder.backoffScheduler = ExponentialBackoffScheduler{
			Initial: defaultRetryInitialBackoff,
			Max:     defaultRetryMaxBackoff,
		}
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:           finalConfig,
		logger:           logger,
		loggerProvider:   provider,
		metricsRecorder:  builder.metricsRecorder,
		errorFactory:     builder.errorFactory,
		errorMapper:      builder.errorMapper,
		configProvider:   builder.configProvider,
		optionsResolver:  builder.optionsResolver,
		tokenStore:       builder.tokenStore,
		keyStore:         builder.keyStore,
		tokenIssuer:      builder.tokenIssuer,
		keyIssuer:        builder.keyIssuer,
		backoffScheduler: builder.backoffScheduler,
		now:              builder.now,
	}, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) TokenStore() TokenStore {
	if s == nil {
		return nil
	}
	return s.tokenStore
}

func (s *Service) TokenIssuer() TokenIssuer {
	if s == nil {
		return nil
	}
	return s.tokenIssuer
}

func (s *Service) KeyIssuer() KeyIssuer {
	if s == nil {
		return nil
	}
	return s.keyIssuer
}

func (s *Service) KeyStore() KeyStore {
	if s == nil {
		return nil
	}
	return s.keyStore
}

// Start performs the blocking startup fetches and launches the refresh loops.
// The initial token fetch must succeed for startup to complete; the key fetch
// participates only when key management is enabled.
func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("core: service is nil")
	}
	if s.tokenIssuer == nil {
		return s.mapError(fmt.Errorf("core: token issuer is required"))
	}
	if s.config.ManagePublicKey && s.keyIssuer == nil {
		return s.mapError(fmt.Errorf("core: key issuer is required when public key management is enabled"))
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return s.mapError(fmt.Errorf("core: service already started"))
	}
	s.started = true
	s.mu.Unlock()

	startedAt := s.clock()
	if _, err := s.tokenIssuer.Issue(ctx); err != nil {
		s.markStopped()
		s.observeOperation(ctx, startedAt, "token.bootstrap", err, nil)
		return err
	}
	s.observeOperation(ctx, startedAt, "token.bootstrap", nil, nil)

	if s.config.ManagePublicKey {
		keyStartedAt := s.clock()
		if err := s.keyIssuer.Issue(ctx); err != nil {
			s.markStopped()
			s.observeOperation(ctx, keyStartedAt, "publickey.bootstrap", err, nil)
			return err
		}
		s.observeOperation(ctx, keyStartedAt, "publickey.bootstrap", nil, nil)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.loops.Add(1)
	go func() {
		defer s.loops.Done()
		s.refreshTokenLoop(loopCtx)
	}()

	if s.config.ManagePublicKey {
		s.loops.Add(1)
		go func() {
			defer s.loops.Done()
			s.refreshPublicKeyLoop(loopCtx)
		}()
	}
	return nil
}

// Stop signals both loops and waits for them to observe the cancellation,
// bounded by ctx. Cancellation is not surfaced as a loop error.
func (s *Service) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.started = false
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.loops.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return s.mapError(ctx.Err())
	}
}

func (s *Service) markStopped() {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
}

func (s *Service) clock() time.Time {
	if s != nil && s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	if mapped := s.errorMapper(err); mapped != nil {
		return mapped
	}
	return err
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return err
}
