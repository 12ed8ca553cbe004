package distance

import (
	"addris-route-service/internal/domain"
	"addris-route-service/internal/platform/metrics"
	"addris-route-service/internal/ports"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Chain asks ranked matrix providers in turn and always ends with Haversine,
// so Matrix only fails when the caller's context is done.
type Chain struct {
	providers []ports.DistanceMatrixProvider
	timeout   time.Duration
	metrics   *metrics.Collector
}

func NewChain(timeout time.Duration, m *metrics.Collector, providers ...ports.DistanceMatrixProvider) *Chain {
	ps := make([]ports.DistanceMatrixProvider, 0, len(providers)+1)
	for _, p := range providers {
		if p == nil || p.Name() == "haversine" {
			continue
		}
		ps = append(ps, p)
	}
	ps = append(ps, NewHaversine())

	return &Chain{providers: ps, timeout: timeout, metrics: m}
}

func (c *Chain) Name() string { return "chain" }

// Providers returns the provider names in priority order.
func (c *Chain) Providers() []string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return names
}

func (c *Chain) Matrix(ctx context.Context, points []domain.Stop) (domain.DistanceMatrix, error) {
	logger := zerolog.Ctx(ctx)

	for i, p := range c.providers {
		if i > 0 {
			c.metrics.IncFallback("distance")
		}

		m, err := c.try(ctx, p, points)
		if err == nil {
			return m, nil
		}
		if ctx.Err() != nil {
			return domain.DistanceMatrix{}, ctx.Err()
		}
		logger.Warn().
			Str("provider", p.Name()).
			Int("nodes", len(points)).
			Err(err).
			Msg("distance provider fallback")
	}

	// unreachable: haversine never fails
	return domain.DistanceMatrix{}, errors.New("distance chain: no provider answered")
}

func (c *Chain) try(ctx context.Context, p ports.DistanceMatrixProvider, points []domain.Stop) (domain.DistanceMatrix, error) {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	m, err := p.Matrix(callCtx, points)
	if err == nil {
		err = m.Validate(len(points))
	}
	if err != nil {
		c.metrics.ObserveProviderCall("distance", p.Name(), time.Since(start), "error")
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = &domain.ProviderTimeoutError{Provider: p.Name(), Err: err}
		}
		return domain.DistanceMatrix{}, fmt.Errorf("%s matrix: %w", p.Name(), err)
	}

	c.metrics.ObserveProviderCall("distance", p.Name(), time.Since(start), "ok")
	m.Provider = p.Name()
	return m, nil
}
