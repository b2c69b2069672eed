package core

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	defaultRetryInitialBackoff = 500 * time.Millisecond
	defaultRetryMaxBackoff     = 10 * time.Second
	defaultRetryJitter         = 0.2
)

// RetryableStatus reports whether an authority response status is in the
// transient overload/timeout/auth-propagation class worth retrying.
func RetryableStatus(status int) bool {
	switch status {
	case 403, 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// IsRetryable is the retryable-failure predicate applied to remote authority
// calls. Errors carrying a transport status retry only on the transient
// class; errors with no status (network-level failures) retry when they are
// external-category.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if richErr.Code != 0 {
			return RetryableStatus(richErr.Code)
		}
		return richErr.Category == goerrors.CategoryExternal
	}
	return false
}

type BackoffScheduler interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoffScheduler doubles from Initial up to Max and smears each
// delay with a random jitter fraction so concurrent retries do not align.
type ExponentialBackoffScheduler struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  float64
	Rand    func() float64
}

func (s ExponentialBackoffScheduler) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := s.Initial
	if initial <= 0 {
		initial = defaultRetryInitialBackoff
	}
	max := s.Max
	if max <= 0 {
		max = defaultRetryMaxBackoff
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			delay = max
			break
		}
	}

	jitter := s.Jitter
	if jitter < 0 {
		jitter = 0
	}
	if jitter == 0 {
		jitter = defaultRetryJitter
	}
	random := s.Rand
	if random == nil {
		random = rand.Float64
	}
	delay += time.Duration(float64(delay) * jitter * random())
	if delay > max {
		return max
	}
	return delay
}

// RunWithRetry applies the bounded retry policy to op: up to maxAttempts
// calls, backoff waits that observe cancellation, and immediate surfacing of
// non-retryable failures.
func RunWithRetry(
	ctx context.Context,
	maxAttempts int,
	scheduler BackoffScheduler,
	retryable func(error) bool,
	op func(ctx context.Context) error,
) (int, error) {
	if op == nil {
		return 0, fmt.Errorf("core: retry operation is required")
	}
	if maxAttempts < 1 {
		maxAttempts = DefaultRetryMaxAttempts
	}
	if scheduler == nil {
		scheduler = ExponentialBackoffScheduler{}
	}
	if retryable == nil {
		retryable = IsRetryable
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		if !retryable(err) {
			return attempt, err
		}
		if attempt == maxAttempts {
			return attempt, err
		}
		if waitErr := waitWithContext(ctx, scheduler.NextDelay(attempt)); waitErr != nil {
			return attempt, waitErr
		}
	}
	return maxAttempts, lastErr
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
