package search

import (
	"context"
	"time"

	"github.com/fleetops/fleetops/internal/model"
	"github.com/fleetops/fleetops/internal/resilience"
	"github.com/fleetops/fleetops/pkg/geocode"
)

// GuardConfig sets the retry and circuit breaker limits around a geocoder.
type GuardConfig struct {
	Retries          int
	BreakerThreshold int
	BreakerReset     time.Duration
}

// guarded retries transient geocoder failures and stops calling a provider
// that keeps failing.
type guarded struct {
	next    geocode.Client
	policy  resilience.Policy
	breaker *resilience.Breaker
}

// Guard wraps c with retries and a circuit breaker. An open breaker
// surfaces as an ordinary geocoder error.
func Guard(c geocode.Client, cfg GuardConfig) geocode.Client {
	if _, ok := c.(geocode.Disabled); ok {
		return c
	}
	policy := resilience.PolicyFor(cfg.Retries)
	policy.OnRetry = resilience.LogRetry(c.Name())
	return &guarded{
		next:    c,
		policy:  policy,
		breaker: resilience.NewBreaker(c.Name(), cfg.BreakerThreshold, cfg.BreakerReset),
	}
}

func (g *guarded) Name() string { return g.next.Name() }

func (g *guarded) Forward(ctx context.Context, text string, near *model.Point) ([]model.DisplayRecord, error) {
	return resilience.Guard(ctx, g.breaker, func(ctx context.Context) ([]model.DisplayRecord, error) {
		return resilience.Retry(ctx, g.policy, func(ctx context.Context) ([]model.DisplayRecord, error) {
			return g.next.Forward(ctx, text, near)
		})
	})
}

func (g *guarded) Reverse(ctx context.Context, at model.Point, text string) ([]model.DisplayRecord, error) {
	return resilience.Guard(ctx, g.breaker, func(ctx context.Context) ([]model.DisplayRecord, error) {
		return resilience.Retry(ctx, g.policy, func(ctx context.Context) ([]model.DisplayRecord, error) {
			return g.next.Reverse(ctx, at, text)
		})
	})
}
