package domain

import (
	"context"
	"fmt"
	"image"
	"math"
)

// EmbeddingDimensions is the vector size produced by the image model and expected by the index.
const EmbeddingDimensions = 768

// UnitNormTolerance is the accepted deviation of an embedding's L2 norm from 1.0.
const UnitNormTolerance = 1e-5

// Embedder is the shared image vectorization contract between layers.
// Implementations receive an already normalized (opaque RGB) image.
type Embedder interface {
	Embed(ctx context.Context, img image.Image) (EmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// L2Norm returns the Euclidean norm of v, accumulated in float64.
func L2Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of v.
// A zero (or non-finite) vector has no direction and is rejected.
func Normalize(v []float32) ([]float32, error) {
	norm := L2Norm(v)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, fmt.Errorf("cannot normalize vector with norm %v: %w", norm, ErrEmbeddingProviderError)
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}

// IsUnit reports whether v has L2 norm 1 within UnitNormTolerance.
func IsUnit(v []float32) bool {
	return math.Abs(L2Norm(v)-1) <= UnitNormTolerance
}
