package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Proton-105/pricechek-rider/pkg/metrics"
)

// AdaptiveLimiter delegates to a primary (Redis) limiter and falls back to
// a stricter in-memory limiter when the primary fails. A nil primary means
// Redis is disabled and the fallback applies the full limit.
type AdaptiveLimiter struct {
	primary  Limiter
	fallback Limiter
	log      *slog.Logger
}

// NewAdaptiveLimiter creates a limiter that adapts between Redis and in-memory backends.
func NewAdaptiveLimiter(primary, fallback Limiter, log *slog.Logger) *AdaptiveLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &AdaptiveLimiter{
		primary:  primary,
		fallback: fallback,
		log:      log,
	}
}

// Check evaluates the limit using the primary backend, falling back to memory on errors.
// Over-limit results are returned together with ErrLimitExceeded.
func (a *AdaptiveLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if a.primary == nil {
		return a.checkFallback(ctx, key, limit, window, "memory")
	}

	result, err := a.primary.Check(ctx, key, limit, window)
	if err == nil || errors.Is(err, ErrLimitExceeded) {
		metrics.RecordRateLimitCheck("redis", result != nil && result.Allowed)
		if result == nil || !result.Allowed {
			return result, ErrLimitExceeded
		}
		return result, nil
	}

	a.log.Warn("redis limiter failed, falling back to in-memory", slog.String("key", key), slog.Any("error", err))

	fallbackLimit := limit / 2
	if fallbackLimit <= 0 {
		fallbackLimit = 1
	}

	return a.checkFallback(ctx, key, fallbackLimit, window, "fallback")
}

func (a *AdaptiveLimiter) checkFallback(ctx context.Context, key string, limit int, window time.Duration, backend string) (*Result, error) {
	result, err := a.fallback.Check(ctx, key, limit, window)
	if err != nil && !errors.Is(err, ErrLimitExceeded) {
		return result, err
	}

	allowed := err == nil && result != nil && result.Allowed
	metrics.RecordRateLimitCheck(backend, allowed)
	if !allowed {
		return result, ErrLimitExceeded
	}

	return result, nil
}
