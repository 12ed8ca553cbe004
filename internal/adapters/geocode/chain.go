package geocode

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

// Chain tries a ranked list of geocoders. A provider that errors, times out,
// is rate limited or finds nothing hands over to the next one.
type Chain struct {
	providers []ports.Geocoder
	timeout   time.Duration
	metrics   *metrics.Collector
}

func NewChain(timeout time.Duration, m *metrics.Collector, providers ...ports.Geocoder) *Chain {
	return &Chain{providers: providers, timeout: timeout, metrics: m}
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

func (c *Chain) Geocode(ctx context.Context, query string) (domain.GeocodeResult, error) {
	return c.GeocodeFirst(ctx, []string{query})
}

// GeocodeFirst asks each provider for every query variant in order and
// returns the first match. A provider error skips that provider's remaining
// variants. When nothing matches, the joined provider errors are returned
// (nil if every provider simply found nothing).
func (c *Chain) GeocodeFirst(ctx context.Context, queries []string) (domain.GeocodeResult, error) {
	if len(c.providers) == 0 {
		return domain.GeocodeResult{}, &domain.ConfigurationError{Key: "GEOCODER_PROVIDERS", Msg: "no geocoder configured"}
	}

	logger := zerolog.Ctx(ctx)
	var errs []error

	for i, p := range c.providers {
		if i > 0 {
			c.metrics.IncFallback("geocode")
		}

		res, err := c.tryProvider(ctx, p, queries)
		if err != nil {
			if ctx.Err() != nil {
				return domain.GeocodeResult{}, ctx.Err()
			}
			logger.Warn().Str("provider", p.Name()).Err(err).Msg("geocoder failed, trying next")
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		if res.Found() {
			return res, nil
		}
		logger.Debug().Str("provider", p.Name()).Msg("geocoder found no match")
	}

	return notFound(""), errors.Join(errs...)
}

func (c *Chain) tryProvider(ctx context.Context, p ports.Geocoder, queries []string) (domain.GeocodeResult, error) {
	for _, q := range queries {
		if q == "" {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		start := time.Now()
		res, err := p.Geocode(callCtx, q)
		cancel()

		switch {
		case err != nil:
			c.metrics.ObserveProviderCall("geocode", p.Name(), time.Since(start), "error")
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				err = &domain.ProviderTimeoutError{Provider: p.Name(), Err: err}
			}
			return domain.GeocodeResult{}, err
		case res.Found():
			c.metrics.ObserveProviderCall("geocode", p.Name(), time.Since(start), "ok")
			return res, nil
		default:
			c.metrics.ObserveProviderCall("geocode", p.Name(), time.Since(start), "empty")
		}
	}
	return notFound(p.Name()), nil
}
