// Package retry runs calls against hosted APIs with bounded exponential
// backoff. Shared by the embedder pool and the answer generator.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

const maxBackoff = 30 * time.Second

// Policy bounds how a call is retried.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BaseDelay is doubled on every attempt.
	BaseDelay time.Duration

	// Timeout bounds each individual attempt. Zero means no per-attempt timeout.
	Timeout time.Duration

	// Retryable decides whether an error is transient. Nil retries everything
	// except context cancellation.
	Retryable func(error) bool
}

// CalculateBackoff returns exponential backoff with jitter.
// Base delay is doubled each attempt, with random jitter up to 25%.
func CalculateBackoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 || baseDelay <= 0 {
		return 0
	}
	// Cap attempt to avoid overflow in bit shift
	if attempt > 30 {
		attempt = 30
	}
	backoff := baseDelay * time.Duration(1<<uint(attempt))
	if backoff > maxBackoff || backoff <= 0 {
		backoff = maxBackoff
	}
	jitter := time.Duration(rand.Int64N(int64(backoff)/2+1)) - backoff/4
	return backoff + jitter
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// policy's retries are exhausted. It returns the number of attempts made and
// the last error.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) (int, error) {
	retries := max(p.MaxRetries, 0)

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, CalculateBackoff(p.BaseDelay, attempt)); err != nil {
				return attempt, lastErr
			}
		}

		err := call(ctx, p.Timeout, fn)
		if err == nil {
			return attempt + 1, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return attempt + 1, perm.err
		}
		lastErr = err

		if ctx.Err() != nil || !p.retryable(err) {
			return attempt + 1, err
		}
	}
	return retries + 1, lastErr
}

func call(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	// Per-attempt timeouts are always transient.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return p.Retryable(err)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
