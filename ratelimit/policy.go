package ratelimit

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-riskauth/core"
)

var ErrStateNotFound = errors.New("ratelimit: state not found")

// State tracks the throttle posture of one authority endpoint.
type State struct {
	Endpoint       string
	RetryAfter     *time.Duration
	ThrottledUntil *time.Time
	LastStatus     int
	Attempts       int
	UpdatedAt      time.Time
}

type StateStore interface {
	Get(endpoint string) (State, error)
	Upsert(state State) error
}

type ThrottledError struct {
	Endpoint   string
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf("ratelimit: endpoint %q throttled for %s", strings.TrimSpace(e.Endpoint), e.RetryAfter)
}

func (e ThrottledError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{
		"endpoint": strings.TrimSpace(e.Endpoint),
	}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.ErrorRateLimited).
		WithMetadata(metadata)
}

// AdaptivePolicy suppresses calls to an endpoint that answered 429 until the
// advertised or computed backoff elapses. The authority publishes Retry-After
// on throttled responses; when it is absent the backoff grows per attempt.
type AdaptivePolicy struct {
	Store          StateStore
	Now            func() time.Time
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewAdaptivePolicy() *AdaptivePolicy {
	return &AdaptivePolicy{
		Store:          NewMemoryStateStore(),
		Now:            func() time.Time { return time.Now().UTC() },
		InitialBackoff: time.Second,
		MaxBackoff:     time.Minute,
	}
}

// BeforeCall reports a ThrottledError while the endpoint is in a throttle
// window, otherwise nil.
func (p *AdaptivePolicy) BeforeCall(endpoint string) error {
	if p == nil || p.Store == nil {
		return nil
	}
	state, err := p.Store.Get(normalizeEndpoint(endpoint))
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil
		}
		return err
	}
	now := p.now()
	if until := state.ThrottledUntil; until != nil && now.Before(*until) {
		return ThrottledError{Endpoint: state.Endpoint, RetryAfter: until.Sub(now)}.ToServiceError()
	}
	return nil
}

// AfterCall records the response posture for the endpoint.
func (p *AdaptivePolicy) AfterCall(endpoint string, statusCode int, headers http.Header) error {
	if p == nil || p.Store == nil {
		return nil
	}
	endpoint = normalizeEndpoint(endpoint)
	now := p.now()
	state, err := p.Store.Get(endpoint)
	if err != nil && !errors.Is(err, ErrStateNotFound) {
		return err
	}
	if errors.Is(err, ErrStateNotFound) {
		state = State{Endpoint: endpoint}
	}

	state.LastStatus = statusCode
	state.UpdatedAt = now

	retryAfter, hasRetryAfter := parseRetryAfter(headers, now)
	if hasRetryAfter {
		state.RetryAfter = &retryAfter
	} else {
		state.RetryAfter = nil
	}

	if statusCode == http.StatusTooManyRequests {
		state.Attempts++
		delay := retryAfter
		if !hasRetryAfter {
			delay = p.nextBackoff(state.Attempts)
		}
		until := now.Add(delay)
		state.ThrottledUntil = &until
		return p.Store.Upsert(state)
	}

	state.Attempts = 0
	state.ThrottledUntil = nil
	return p.Store.Upsert(state)
}

func (p *AdaptivePolicy) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *AdaptivePolicy) nextBackoff(attempt int) time.Duration {
	initial := p.InitialBackoff
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.MaxBackoff
	if maximum <= 0 {
		maximum = time.Minute
	}
	if attempt <= 0 {
		return initial
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

func parseRetryAfter(headers http.Header, now time.Time) (time.Duration, bool) {
	raw := strings.TrimSpace(headers.Get("Retry-After"))
	if raw == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if retryAt, err := httpDate(raw); err == nil && retryAt.After(now) {
		return retryAt.Sub(now), true
	}
	return 0, false
}

func httpDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("ratelimit: empty date")
	}
	if parsed, err := time.Parse(time.RFC1123, value); err == nil {
		return parsed.UTC(), nil
	}
	if parsed, err := time.Parse(time.RFC1123Z, value); err == nil {
		return parsed.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("ratelimit: invalid http date")
}

func normalizeEndpoint(endpoint string) string {
	return strings.TrimSpace(strings.ToLower(endpoint))
}

type MemoryStateStore struct {
	mu    sync.RWMutex
	items map[string]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{items: map[string]State{}}
}

func (s *MemoryStateStore) Get(endpoint string) (State, error) {
	if s == nil {
		return State{}, fmt.Errorf("ratelimit: state store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.items[normalizeEndpoint(endpoint)]
	if !ok {
		return State{}, ErrStateNotFound
	}
	return state, nil
}

func (s *MemoryStateStore) Upsert(state State) error {
	if s == nil {
		return fmt.Errorf("ratelimit: state store is nil")
	}
	state.Endpoint = normalizeEndpoint(state.Endpoint)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[state.Endpoint] = state
	return nil
}

var _ StateStore = (*MemoryStateStore)(nil)
