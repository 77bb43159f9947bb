package video

import (
	"context"

	"cleanreel/internal/domain"
)

// GenerateRequest carries everything one reconstruction attempt needs. It is
// built immediately before submission and not retained afterwards.
type GenerateRequest struct {
	Frame       domain.ExtractedFrame
	Description string
	AspectRatio domain.AspectRatio
}

// Asset is the downloaded generation result.
type Asset struct {
	Data      []byte
	MimeType  string
	SourceURI string
}

// Generator resolves a generation request into a downloaded video asset.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Asset, error)
}
