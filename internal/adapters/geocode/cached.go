package geocode

import (
	"addris-route-service/internal/domain"
	"addris-route-service/internal/ports"
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Cached wraps a geocoder with a result cache. Only matches are stored and
// cache failures never fail the lookup.
type Cached struct {
	inner ports.Geocoder
	cache ports.GeocodeCache
}

func NewCached(inner ports.Geocoder, cache ports.GeocodeCache) *Cached {
	return &Cached{inner: inner, cache: cache}
}

func (c *Cached) Name() string { return c.inner.Name() }

func (c *Cached) Geocode(ctx context.Context, query string) (domain.GeocodeResult, error) {
	key := cacheKey(c.inner.Name(), query)
	logger := zerolog.Ctx(ctx)

	if res, ok, err := c.cache.Get(ctx, key); err != nil {
		logger.Warn().Err(err).Str("provider", c.inner.Name()).Msg("geocode cache read failed")
	} else if ok {
		return res, nil
	}

	res, err := c.inner.Geocode(ctx, query)
	if err != nil || !res.Found() {
		return res, err
	}

	if err := c.cache.Put(ctx, key, res); err != nil {
		logger.Warn().Err(err).Str("provider", c.inner.Name()).Msg("geocode cache write failed")
	}
	return res, nil
}

// cacheKey normalizes whitespace and case so equivalent queries share an entry.
func cacheKey(provider, query string) string {
	return provider + "|" + strings.ToLower(strings.Join(strings.Fields(query), " "))
}
