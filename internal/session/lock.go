package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	customerLockKeyPattern = "customer:lock:%s"
	defaultLockTTL         = 5 * time.Second
)

// ErrStateLocked indicates that a concurrent message from the same phone holds the lock.
var ErrStateLocked = errors.New("state is locked, try again later")

// Locker serializes conversation updates per phone number with a Redis SETNX lock.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// NewLocker creates a Locker. A nil client makes every Lock a no-op.
func NewLocker(client *redis.Client, ttl time.Duration, log *slog.Logger) *Locker {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}

	return &Locker{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

// Lock acquires the lock for phone and returns the function releasing it.
func (l *Locker) Lock(ctx context.Context, phone string) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}

	key := fmt.Sprintf(customerLockKeyPattern, phone)
	acquired, err := l.client.SetNX(ctx, key, 1, l.ttl).Result()
	if err != nil {
		l.log.Error("failed to acquire customer state lock", slog.String("phone", phone), slog.Any("error", err))
		return nil, fmt.Errorf("acquire state lock: %w", err)
	}

	if !acquired {
		l.log.Warn("customer state lock already held", slog.String("phone", phone))
		return nil, ErrStateLocked
	}

	return func() {
		// the request context may already be done; release regardless
		if err := l.client.Del(context.WithoutCancel(ctx), key).Err(); err != nil {
			l.log.Error("failed to release customer state lock", slog.String("phone", phone), slog.Any("error", err))
		}
	}, nil
}
