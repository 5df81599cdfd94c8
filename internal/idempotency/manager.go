// Package idempotency replays the stored result of an operation for repeated keys,
// such as a gateway redelivering the same inbound SMS.
package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var ErrRequestInProgress = errors.New("request with this key is already in progress")

const (
	defaultLockTTL  = time.Minute
	defaultMaxWait  = 5 * time.Second
	defaultPollWait = 100 * time.Millisecond
)

// Operation produces the serialized response to cache.
type Operation func(ctx context.Context) ([]byte, error)

type Result struct {
	Response  []byte
	FromCache bool
}

type Manager interface {
	Execute(
		ctx context.Context,
		key string,
		ttl time.Duration,
		fn Operation,
	) (*Result, error)
}

type manager struct {
	store   Store
	lockTTL time.Duration
	maxWait time.Duration
	poll    time.Duration
	log     *slog.Logger
}

func NewManager(store Store, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		store:   store,
		lockTTL: defaultLockTTL,
		maxWait: defaultMaxWait,
		poll:    defaultPollWait,
		log:     log,
	}
}

// Execute runs fn once per key within ttl. A concurrent caller with the same key waits
// for the first to finish and gets its response, or ErrRequestInProgress after maxWait.
// Failed operations are not cached.
func (m *manager) Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if fn == nil {
		return nil, errors.New("operation fn cannot be nil")
	}

	deadline := time.Now().Add(m.maxWait)
	for {
		if cached, err := m.completed(ctx, key); err != nil || cached != nil {
			return cached, err
		}

		locked, err := m.store.Lock(ctx, key, m.lockTTL)
		if err != nil {
			return nil, err
		}
		if locked {
			break
		}

		if time.Now().After(deadline) {
			return nil, ErrRequestInProgress
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.poll):
		}
	}

	defer func() {
		_ = m.store.ReleaseLock(context.WithoutCancel(ctx), key)
	}()

	// the previous holder may have finished between our read and the lock
	if cached, err := m.completed(ctx, key); err != nil || cached != nil {
		return cached, err
	}

	response, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	if err := m.store.Set(ctx, key, &Record{
		Status:   StatusCompleted,
		Response: response,
	}, ttl); err != nil {
		// the operation already ran; losing the cache entry only weakens dedupe
		m.log.Error("failed to cache idempotent response", slog.String("key", key), slog.Any("error", err))
	}

	return &Result{Response: response}, nil
}

func (m *manager) completed(ctx context.Context, key string) (*Result, error) {
	record, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if record == nil || record.Status != StatusCompleted {
		return nil, nil
	}

	return &Result{Response: record.Response, FromCache: true}, nil
}
