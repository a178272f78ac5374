package detect

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/kailas-cloud/imgdetect/internal/domain"
	"github.com/kailas-cloud/imgdetect/internal/domain/verdict"
	"github.com/kailas-cloud/imgdetect/internal/imaging"
	"github.com/kailas-cloud/imgdetect/internal/logger"
	"github.com/kailas-cloud/imgdetect/internal/metrics"
	"github.com/kailas-cloud/imgdetect/internal/usecase/embedding"
)

// Options tunes the nearest-neighbor query. Zero values select the defaults.
type Options struct {
	Hits           int
	TargetHits     int
	RankingProfile string
}

// Service classifies images by similarity to indexed ones.
type Service struct {
	embed  Embedder
	search Searcher
	opts   Options
}

// New creates a detect service.
func New(embed Embedder, search Searcher, opts Options) *Service {
	if opts.Hits <= 0 {
		opts.Hits = domain.DefaultHits
	}
	if opts.TargetHits <= 0 {
		opts.TargetHits = domain.DefaultTargetHits
	}
	if opts.RankingProfile == "" {
		opts.RankingProfile = domain.DefaultRankingProfile
	}
	return &Service{embed: embed, search: search, opts: opts}
}

// DetectFile loads the image at path and classifies it against docType.
func (s *Service) DetectFile(ctx context.Context, path, docType string) (verdict.Result, error) {
	docType, err := resolveDocType(docType)
	if err != nil {
		return verdict.Result{}, err
	}
	vec, err := embedding.EmbedFile(ctx, s.embed, path)
	if err != nil {
		return verdict.Result{}, err
	}
	return s.classify(ctx, vec, docType)
}

// DetectBytes decodes an in-memory image and classifies it against docType.
func (s *Service) DetectBytes(ctx context.Context, data []byte, docType string) (verdict.Result, error) {
	img, err := imaging.DecodeNormalized(data)
	if err != nil {
		return verdict.Result{}, err
	}
	return s.DetectImage(ctx, img, docType)
}

// DetectImage embeds an already normalized image, queries its nearest neighbors and scores them.
// Search failures are returned as is; there is no retry.
func (s *Service) DetectImage(ctx context.Context, img image.Image, docType string) (verdict.Result, error) {
	docType, err := resolveDocType(docType)
	if err != nil {
		return verdict.Result{}, err
	}

	emb, err := s.embed.Embed(ctx, img)
	if err != nil {
		return verdict.Result{}, fmt.Errorf("embed query image: %w", err)
	}
	return s.classify(ctx, emb.Embedding, docType)
}

func resolveDocType(docType string) (string, error) {
	if docType == "" {
		docType = domain.DefaultDocType
	}
	if err := domain.ValidateDocType(docType); err != nil {
		return "", err
	}
	return docType, nil
}

// classify queries the nearest neighbors of vec and scores them.
func (s *Service) classify(ctx context.Context, vec []float32, docType string) (verdict.Result, error) {
	hits, err := s.search.Search(ctx, domain.SearchRequest{
		DocType:        docType,
		Tensor:         domain.TensorLiteral(vec),
		Hits:           s.opts.Hits,
		TargetHits:     s.opts.TargetHits,
		RankingProfile: s.opts.RankingProfile,
	})
	if err != nil {
		return verdict.Result{}, fmt.Errorf("search %s: %w", docType, err)
	}

	res := verdict.Score(hits)

	metrics.VerdictsTotal.WithLabelValues(docType, string(res.Category())).Inc()
	if res.Category() != verdict.NoHits {
		metrics.VerdictConfidence.WithLabelValues(docType).Observe(res.Confidence())
	}

	logger.FromContext(ctx).Info("Detection finished",
		zap.String("doc_type", docType),
		zap.String("category", string(res.Category())),
		zap.Float64("confidence", res.Confidence()),
		zap.Int("hits", len(hits)),
	)

	return res, nil
}
