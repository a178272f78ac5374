package feed

import (
	"context"
	"image"

	"github.com/kailas-cloud/imgdetect/internal/domain"
)

// DocumentUpserter writes one image document to the index.
type DocumentUpserter interface {
	Upsert(ctx context.Context, namespace, docType string, doc domain.ImageDocument) error
}

// Embedder vectorizes a normalized image.
type Embedder interface {
	Embed(ctx context.Context, img image.Image) (domain.EmbeddingResult, error)
}
