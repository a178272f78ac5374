package detect

import (
	"context"
	"image"

	"github.com/kailas-cloud/imgdetect/internal/domain"
)

// Searcher runs nearest-neighbor queries against the index.
type Searcher interface {
	Search(ctx context.Context, req domain.SearchRequest) ([]domain.Hit, error)
}

// Embedder vectorizes a normalized image.
type Embedder interface {
	Embed(ctx context.Context, img image.Image) (domain.EmbeddingResult, error)
}
