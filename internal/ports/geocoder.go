package ports

import (
	"addris-route-service/internal/domain"
	"context"
)

// Contract for resolving an address query to coordinates.
// A query with no match returns a result with tier none and a nil error.
type Geocoder interface {
	Name() string
	Geocode(ctx context.Context, query string) (domain.GeocodeResult, error)
}

// Store for geocode results keyed by normalized query.
type GeocodeCache interface {
	Get(ctx context.Context, query string) (domain.GeocodeResult, bool, error)
	Put(ctx context.Context, query string, result domain.GeocodeResult) error
}

// Optional extension of Geocoder that tries several phrasings of one address
// and returns the first match.
type VariantGeocoder interface {
	Geocoder
	GeocodeFirst(ctx context.Context, queries []string) (domain.GeocodeResult, error)
}
