package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Proton-105/pricechek-rider/pkg/config"
)

// Rules encapsulates the configured per-phone limit and whitelist.
type Rules struct {
	enabled   bool
	limit     int
	window    time.Duration
	whitelist map[string]struct{}
}

// NewRules constructs rate limiting rules from configuration settings.
func NewRules(cfg config.RateLimitConfig) (*Rules, error) {
	limit, window, err := parseRule(cfg.PerPhone)
	if err != nil && cfg.Enabled {
		return nil, fmt.Errorf("ratelimit per_phone: %w", err)
	}

	whitelist := make(map[string]struct{}, len(cfg.Whitelist))
	for _, phone := range cfg.Whitelist {
		whitelist[normalize(phone)] = struct{}{}
	}

	return &Rules{
		enabled:   cfg.Enabled,
		limit:     limit,
		window:    window,
		whitelist: whitelist,
	}, nil
}

// IsWhitelisted returns true if the phone bypasses rate limits.
func (r *Rules) IsWhitelisted(phone string) bool {
	_, ok := r.whitelist[normalize(phone)]
	return ok
}

// PerPhone returns the per-phone rate limiting rule.
func (r *Rules) PerPhone() (int, time.Duration) {
	return r.limit, r.window
}

func parseRule(rule config.RateLimitRule) (int, time.Duration, error) {
	if rule.Window == "" {
		return rule.Limit, 0, errors.New("window duration is not set")
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return 0, 0, err
	}
	return rule.Limit, window, nil
}

func normalize(phone string) string {
	return strings.TrimPrefix(strings.TrimSpace(phone), "+")
}

// Guard applies Rules through a Limiter.
type Guard struct {
	rules   *Rules
	limiter Limiter
}

func NewGuard(rules *Rules, limiter Limiter) *Guard {
	return &Guard{rules: rules, limiter: limiter}
}

// Allow checks phone against the per-phone limit. It returns ErrLimitExceeded with the
// result when the phone is over its limit. Disabled rules, whitelisted phones and empty
// phone numbers always pass.
func (g *Guard) Allow(ctx context.Context, phone string) (*Result, error) {
	if g == nil || g.rules == nil || !g.rules.enabled || phone == "" || g.rules.IsWhitelisted(phone) {
		return &Result{Allowed: true}, nil
	}

	limit, window := g.rules.PerPhone()
	return g.limiter.Check(ctx, "phone:"+normalize(phone), limit, window)
}
