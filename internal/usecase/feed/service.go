package feed

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/imgdetect/internal/domain"
	domfeed "github.com/kailas-cloud/imgdetect/internal/domain/feed"
	"github.com/kailas-cloud/imgdetect/internal/imaging"
	"github.com/kailas-cloud/imgdetect/internal/logger"
	"github.com/kailas-cloud/imgdetect/internal/metrics"
)

// Request describes one feed run.
type Request struct {
	Folder         string
	Namespace      string
	DocType        string
	SkipDuplicates bool
	// OnResult, if set, is called after every processed file.
	OnResult func(domfeed.Result)
}

// Service embeds every image of a folder and writes it to the index.
type Service struct {
	embed        Embedder
	docs         DocumentUpserter
	logger       *zap.Logger
	dupThreshold int
}

// New creates a feed service.
func New(embed Embedder, docs DocumentUpserter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		embed:        embed,
		docs:         docs,
		logger:       logger,
		dupThreshold: imaging.DefaultDuplicateThreshold,
	}
}

// WithDuplicateThreshold configures the dHash distance used when SkipDuplicates is set.
func (s *Service) WithDuplicateThreshold(n int) *Service {
	if n > 0 {
		s.dupThreshold = n
	}
	return s
}

// Feed processes the regular files directly inside req.Folder, one at a time, in directory order.
//
// A file that cannot be decoded or embedded aborts the run: the results gathered so far are
// returned together with the error. A failed upsert is recorded and the run continues.
func (s *Service) Feed(ctx context.Context, req Request) ([]domfeed.Result, error) {
	if req.Folder == "" {
		return nil, fmt.Errorf("images folder is required: %w", domain.ErrInvalidArgument)
	}
	if req.Namespace == "" {
		req.Namespace = domain.DefaultNamespace
	}
	if req.DocType == "" {
		req.DocType = domain.DefaultDocType
	}
	if err := domain.ValidateDocType(req.DocType); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(req.Folder)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("images folder %q: %w", req.Folder, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("list images folder %q: %w", req.Folder, err)
	}

	runID := uuid.NewString()
	ctx, log := logger.With(ctx, s.logger,
		zap.String("run_id", runID),
		zap.String("namespace", req.Namespace),
		zap.String("doc_type", req.DocType),
	)
	log.Info("Feed started", zap.String("folder", req.Folder), zap.Int("entries", len(entries)))

	var dups *imaging.DuplicateFilter
	if req.SkipDuplicates {
		dups = imaging.NewDuplicateFilter(s.dupThreshold)
	}

	results := make([]domfeed.Result, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("feed interrupted: %w", err)
		}

		// concatenated, not joined: identifiers must match earlier runs byte for byte
		path := req.Folder + "/" + entry.Name()

		// Stat follows symlinks; ReadDir entries do not.
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			log.Debug("Skipping non-regular entry", zap.String("path", path))
			continue
		}

		res, err := s.feedFile(ctx, log, req, path, dups)
		if err != nil {
			metrics.FeedFilesTotal.WithLabelValues(req.DocType, "aborted").Inc()
			log.Error("Feed aborted", zap.String("path", path), zap.Error(err))
			return results, err
		}

		metrics.FeedFilesTotal.WithLabelValues(req.DocType, string(res.Status())).Inc()
		results = append(results, res)
		if req.OnResult != nil {
			req.OnResult(res)
		}
	}

	sum := domfeed.Summarize(results)
	log.Info("Feed finished",
		zap.Int("ok", sum.OK),
		zap.Int("failed", sum.Failed),
		zap.Int("skipped", sum.Skipped),
	)
	return results, nil
}

// feedFile returns a non-nil error only for failures that must stop the run.
func (s *Service) feedFile(
	ctx context.Context, log *zap.Logger, req Request, path string, dups *imaging.DuplicateFilter,
) (domfeed.Result, error) {
	img, err := imaging.LoadNormalized(path)
	if err != nil {
		return domfeed.Result{}, err
	}

	docID := domain.StableID(path)

	if dups != nil {
		if first, dup := dups.Check(path, img); dup {
			log.Info("Skipping duplicate image",
				zap.String("path", path),
				zap.String("docid", docID),
				zap.String("duplicate_of", first),
			)
			return domfeed.NewSkipped(path, docID, "duplicate of "+first), nil
		}
	}

	emb, err := s.embed.Embed(ctx, img)
	if err != nil {
		return domfeed.Result{}, fmt.Errorf("embed %q: %w", path, err)
	}

	doc := domain.ImageDocument{ID: docID, SourcePath: path, Embedding: emb.Embedding}
	if err := s.docs.Upsert(ctx, req.Namespace, req.DocType, doc); err != nil {
		log.Error("Upsert failed",
			zap.String("path", path),
			zap.String("docid", docID),
			zap.Error(err),
		)
		return domfeed.NewError(path, docID, err), nil
	}

	log.Debug("Upserted", zap.String("path", path), zap.String("docid", docID))
	return domfeed.NewOK(path, docID), nil
}
