package embedding

import (
	"context"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/imgdetect/internal/domain"
	"github.com/kailas-cloud/imgdetect/internal/metrics"
)

// InstrumentedEmbedder wraps an Embedder with output validation and logging.
// Transport metrics (requests, duration) are recorded in transport/openai.
// This layer owns the vector contract: configured dimensionality and unit length.
type InstrumentedEmbedder struct {
	inner      domain.Embedder
	provider   string
	model      string
	dimensions int
	logger     *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder with validation and observability.
// dimensions <= 0 disables the length check.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string, dimensions int, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:      inner,
		provider:   provider,
		model:      model,
		dimensions: dimensions,
		logger:     logger,
	}
}

// Embed delegates to the inner embedder and rejects vectors that break the contract.
func (p *InstrumentedEmbedder) Embed(
	ctx context.Context, img image.Image,
) (domain.EmbeddingResult, error) {
	start := time.Now()

	result, err := p.inner.Embed(ctx, img)

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	if p.dimensions > 0 && len(result.Embedding) != p.dimensions {
		metrics.EmbeddingErrorsTotal.WithLabelValues(p.provider, p.model, "dimension_mismatch").Inc()
		p.logger.Error("Embedding has unexpected dimensionality",
			zap.String("model", p.model),
			zap.Int("expected", p.dimensions),
			zap.Int("got", len(result.Embedding)),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embedding has %d dimensions, expected %d: %w",
			len(result.Embedding), p.dimensions, domain.ErrVectorDimMismatch)
	}

	if !domain.IsUnit(result.Embedding) {
		metrics.EmbeddingErrorsTotal.WithLabelValues(p.provider, p.model, "not_normalized").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("embedding norm %.6f is not 1: %w",
			domain.L2Norm(result.Embedding), domain.ErrEmbeddingProviderError)
	}

	domain.UsageFromContext(ctx).AddTokens(result.TotalTokens)

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}
