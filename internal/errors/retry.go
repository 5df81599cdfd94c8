package errors

import (
	"context"
	"errors"
	"math"
	"time"
)

const (
	MaxRetries        = 3
	InitialBackoff    = 100 * time.Millisecond
	MaxBackoff        = 5 * time.Second
	BackoffMultiplier = 2.0
)

// RetryOptions tunes WithRetryOptions. Zero backoffs fall back to the package defaults;
// MaxRetries of zero means a single attempt.
type RetryOptions struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// WithRetry calls fn until it succeeds, fails with a non-retryable error, or the attempts run out.
func WithRetry(ctx context.Context, fn func() error) error {
	return WithRetryOptions(ctx, RetryOptions{MaxRetries: MaxRetries}, fn)
}

// WithRetryOptions is WithRetry with explicit limits.
func WithRetryOptions(ctx context.Context, opts RetryOptions, fn func() error) error {
	if fn == nil {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	opts = opts.withDefaults()

	var err error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err = fn()
		if err == nil {
			return nil
		}

		if !IsRetryable(err) {
			return err
		}

		if attempt == opts.MaxRetries {
			return err
		}

		timer := time.NewTimer(opts.backoff(attempt + 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}

	return err
}

func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Retryable
	}

	return false
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = InitialBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = MaxBackoff
	}
	return o
}

func (o RetryOptions) backoff(attempt int) time.Duration {
	delay := float64(o.InitialBackoff) * math.Pow(BackoffMultiplier, float64(attempt-1))
	backoff := time.Duration(delay)
	if backoff > o.MaxBackoff {
		return o.MaxBackoff
	}

	return backoff
}
