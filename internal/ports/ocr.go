package ports

import (
	"addris-route-service/internal/domain"
	"context"
)

// Contract for turning an image into recognised text spans.
type TextExtractor interface {
	Name() string
	ExtractSpans(ctx context.Context, image []byte) ([]domain.TextSpan, error)
}
