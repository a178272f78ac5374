package embedding

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/imgdetect/internal/domain"
	"github.com/kailas-cloud/imgdetect/internal/imaging"
)

// EmbedFile loads, normalizes and embeds the image at path.
// Decode failures wrap domain.ErrImageDecode, provider failures domain.ErrEmbeddingProviderError.
func EmbedFile(ctx context.Context, e domain.Embedder, path string) ([]float32, error) {
	img, err := imaging.LoadNormalized(path)
	if err != nil {
		return nil, err
	}
	res, err := e.Embed(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("embed %q: %w", path, err)
	}
	return res.Embedding, nil
}
