// Package lifecycle sequences process shutdown and readiness.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// stopHook releases one resource the rider service holds, such as the HTTP
// listener, the Redis client or the database pool.
type stopHook struct {
	name string
	stop func(ctx context.Context) error
}

// Shutdown runs named hooks in registration order. Later hooks may depend on
// resources that earlier hooks stop using, e.g. the HTTP server before the database.
type Shutdown struct {
	mu    sync.Mutex
	hooks []stopHook
	log   *slog.Logger
}

func NewShutdown(log *slog.Logger) *Shutdown {
	if log == nil {
		log = slog.Default()
	}

	return &Shutdown{log: log}
}

// Register adds a named shutdown hook.
func (s *Shutdown) Register(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, stopHook{name: name, stop: fn})
}

// Execute runs every hook even when an earlier one fails, and joins the failures.
// Hooks still pending when ctx expires are skipped.
func (s *Shutdown) Execute(ctx context.Context) error {
	s.mu.Lock()
	hooks := append([]stopHook(nil), s.hooks...)
	s.mu.Unlock()

	start := time.Now()
	s.log.Info("shutdown sequence started", slog.Int("hook_count", len(hooks)))

	var errs []error
	for _, h := range hooks {
		if err := ctx.Err(); err != nil {
			s.log.Error("shutdown hook skipped", slog.String("hook", h.name), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}

		s.log.Info("running shutdown hook", slog.String("hook", h.name))
		if err := h.stop(ctx); err != nil {
			s.log.Error("shutdown hook failed", slog.String("hook", h.name), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		s.log.Info("shutdown hook completed", slog.String("hook", h.name))
	}

	s.log.Info("shutdown sequence finished", slog.Duration("elapsed", time.Since(start)))

	return errors.Join(errs...)
}
