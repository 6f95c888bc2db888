package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrRetriesExhausted is returned by [Retry] once every attempt of an episode
// has failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryConfig bounds one retry episode.
type RetryConfig struct {
	// Name is a label used in log messages.
	Name string

	// InitialBackoff is the wait after the first failure. Default: 1s.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between attempts. Default: 30s.
	MaxBackoff time.Duration

	// MaxAttempts is the number of calls made before giving up. Default: 10.
	MaxAttempts int

	// Retryable reports whether an error is worth another attempt. When nil
	// every error is retried.
	Retryable func(error) bool

	// OnRetry, if set, is called before each wait with the failed attempt
	// number (starting at 1) and its error.
	OnRetry func(attempt int, err error)
}

// WithDefaults fills zero fields.
func (c RetryConfig) WithDefaults() RetryConfig {
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	return c
}

// Backoff returns the wait after the given failed attempt (1-based): the
// initial backoff doubled per attempt and capped at MaxBackoff.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	c = c.WithDefaults()
	d := c.InitialBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	return d
}

// Retry calls fn until it succeeds, returns a non-retryable error, ctx ends or
// MaxAttempts calls have failed. Waits between attempts grow exponentially.
// An exhausted episode returns [ErrRetriesExhausted] wrapping the last error.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	cfg = cfg.WithDefaults()
	var zero T
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return zero, err
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		wait := cfg.Backoff(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}
		slog.Warn("retrying after failure",
			"name", cfg.Name,
			"attempt", attempt,
			"backoff", wait,
			"error", err)
		if err := Sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, cfg.MaxAttempts, lastErr)
}

// Sleep waits for d or until ctx ends, returning ctx.Err in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
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
