package ports

import (
	"addris-route-service/internal/domain"
	"context"
)

// Contract for computing pairwise travel data among a set of points.
type DistanceMatrixProvider interface {
	// Name identifies the provider in route results and metrics.
	Name() string
	// Return the full directed matrix over points, indexed as given.
	Matrix(ctx context.Context, points []domain.Stop) (domain.DistanceMatrix, error)
}

// Distance and travel duration between two locations.
type DistanceResult struct {
	DistanceMeters  int
	DurationSeconds int
}

// Persistent store for origin->destination rows keyed by coordinate strings.
type DistanceCache interface {
	GetMany(ctx context.Context, origin string, destinations []string) (map[string]DistanceResult, error)
	PutMany(ctx context.Context, origin string, results map[string]DistanceResult) error
}
