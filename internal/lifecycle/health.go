package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/Proton-105/pricechek-rider/internal/health"
)

// ErrShuttingDown is reported by Readiness once Drain was called.
var ErrShuttingDown = errors.New("service is shutting down")

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) (map[string]string, error)
}

// Probes answers liveness unconditionally and readiness from the component checker.
type Probes struct {
	checker  *health.Checker
	draining atomic.Bool
	log      *slog.Logger
}

func NewProbes(checker *health.Checker, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{checker: checker, log: log}
}

func (p *Probes) Liveness(ctx context.Context) error {
	return nil
}

// Readiness returns per-component results and an error when any component failed
// or the service is draining.
func (p *Probes) Readiness(ctx context.Context) (map[string]string, error) {
	results := map[string]string{}
	if p.checker != nil {
		results = p.checker.Check(ctx)
	}

	if p.draining.Load() {
		return results, ErrShuttingDown
	}
	if !health.Healthy(results) {
		p.log.Warn("readiness probe failed", slog.Any("components", results))
		return results, errors.New("one or more components are unhealthy")
	}

	return results, nil
}

// Drain makes Readiness fail so load balancers stop routing new callbacks.
func (p *Probes) Drain(context.Context) error {
	p.draining.Store(true)
	p.log.Info("readiness switched to draining")
	return nil
}
