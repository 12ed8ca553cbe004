package ports

import (
	"addris-route-service/internal/domain"
	"context"
)

// One of the configured ways of turning an image into raw candidates.
type ExtractionStrategy interface {
	Name() string
	Extract(ctx context.Context, image []byte) ([]domain.RawCandidate, error)
}

// Fire-and-forget publisher for operation summaries.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}
