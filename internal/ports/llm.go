package ports

import (
	"addris-route-service/internal/domain"
	"context"
)

// Contract for language-model address extraction.
type AddressLLM interface {
	Name() string
	// Extract structured addresses from free text.
	ExtractFromText(ctx context.Context, text string) ([]domain.RawCandidate, error)
	// Extract structured addresses directly from an image.
	ExtractFromImage(ctx context.Context, image []byte, mimeType string) ([]domain.RawCandidate, error)
}
