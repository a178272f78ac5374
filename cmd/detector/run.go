package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/imgdetect/internal/config"
	"github.com/kailas-cloud/imgdetect/internal/db"
	dbRedis "github.com/kailas-cloud/imgdetect/internal/db/redis"
	"github.com/kailas-cloud/imgdetect/internal/domain"
	domfeed "github.com/kailas-cloud/imgdetect/internal/domain/feed"
	logpkg "github.com/kailas-cloud/imgdetect/internal/logger"
	"github.com/kailas-cloud/imgdetect/internal/metrics"
	"github.com/kailas-cloud/imgdetect/internal/repository/embcache"
	chiTransport "github.com/kailas-cloud/imgdetect/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/imgdetect/internal/transport/openai"
	"github.com/kailas-cloud/imgdetect/internal/transport/vespa"
	"github.com/kailas-cloud/imgdetect/internal/usecase/detect"
	embeddinguc "github.com/kailas-cloud/imgdetect/internal/usecase/embedding"
	"github.com/kailas-cloud/imgdetect/internal/usecase/feed"
	healthuc "github.com/kailas-cloud/imgdetect/internal/usecase/health"
	"github.com/kailas-cloud/imgdetect/internal/version"
)

const embeddingProvider = "openai"

// app is the composition root shared by every mode.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	vespa    *vespa.Client
	base     *openaiEmb.Embedder
	embedder domain.Embedder
	cache    db.Store
}

func run(ctx context.Context, stdout, stderr io.Writer, opts *options, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := logpkg.NewLogger(opts.env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting detector",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", opts.env),
		zap.String("mode", opts.mode),
		zap.String("vespa_url", cfg.Vespa.URL),
		zap.String("doc_type", cfg.Vespa.DocType),
	)

	metrics.Register()

	a := newApp(ctx, cfg, logger)
	defer a.close()

	switch opts.mode {
	case modeFeed:
		return a.feed(ctx, stdout, stderr, opts.imagesFolder)
	case modeDetect:
		return a.detect(ctx, stdout, opts.image)
	default:
		return a.serve()
	}
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) *app {
	a := &app{cfg: cfg, logger: logger}

	a.vespa = vespa.NewClient(vespa.Config{
		BaseURL:       cfg.Vespa.URL,
		FeedTimeout:   cfg.Vespa.FeedTimeout(),
		SearchTimeout: cfg.Vespa.SearchTimeout(),
		Logger:        logger,
	})

	if cfg.Cache.Enabled {
		a.cache = openCache(ctx, cfg.Cache, logger)
	}

	a.base, a.embedder = buildEmbedder(cfg.Embedding, a.cache, time.Duration(cfg.Cache.TTLHours)*time.Hour, logger)
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", a.cache != nil),
	)
	return a
}

func (a *app) close() {
	if a.cache != nil {
		a.cache.Close()
	}
}

// openCache connects the embedding cache. An unreachable cache is logged and skipped.
func openCache(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) db.Store {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Addrs,
		Password: cfg.Password,
	})
	if err != nil {
		logger.Warn("Embedding cache disabled", zap.String("driver", cfg.Driver), zap.Error(err))
		return nil
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		logger.Warn("Embedding cache not ready, continuing without it", zap.Error(err))
		store.Close()
		return nil
	}
	logger.Info("Connected to embedding cache",
		zap.String("driver", cfg.Driver),
		zap.Strings("addrs", cfg.Addrs),
	)
	return store
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
func buildEmbedder(
	cfg config.EmbeddingConfig, store db.Store, ttl time.Duration, logger *zap.Logger,
) (*openaiEmb.Embedder, domain.Embedder) {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Model:    cfg.Model,
		Provider: embeddingProvider,
		Timeout:  time.Duration(cfg.TimeoutSec) * time.Second,
		Logger:   logger,
	})

	var embedder domain.Embedder = base
	if store != nil {
		embedder = embcache.New(base, store, cfg.Model, ttl, metrics.EmbeddingCacheTotal, logger)
	}

	return base, embeddinguc.NewInstrumentedEmbedder(
		embedder, embeddingProvider, cfg.Model, cfg.Dimensions, logger,
	)
}

func (a *app) feed(ctx context.Context, stdout, stderr io.Writer, folder string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := feed.New(a.embedder, a.vespa, a.logger).
		WithDuplicateThreshold(a.cfg.Feed.DuplicateThreshold)

	results, err := svc.Feed(ctx, feed.Request{
		Folder:         folder,
		Namespace:      a.cfg.Vespa.Namespace,
		DocType:        a.cfg.Vespa.DocType,
		SkipDuplicates: a.cfg.Feed.SkipDuplicates,
		OnResult:       func(r domfeed.Result) { printResult(stdout, stderr, r) },
	})
	if err != nil {
		return err
	}

	sum := domfeed.Summarize(results)
	a.logger.Info("Feed summary",
		zap.Int("ok", sum.OK),
		zap.Int("failed", sum.Failed),
		zap.Int("skipped", sum.Skipped),
	)
	return nil
}

// printResult writes one feed outcome: successes to stdout, failures to stderr.
func printResult(stdout, stderr io.Writer, r domfeed.Result) {
	switch r.Status() {
	case domfeed.StatusOK:
		fmt.Fprintf(stdout, "OK  %s  -> docid=%s\n", r.Path(), r.DocID())
	case domfeed.StatusSkipped:
		fmt.Fprintf(stdout, "SKIP %s -> %v\n", r.Path(), r.Err())
	default:
		fmt.Fprintf(stderr, "FAIL %s -> %v\n", r.Path(), r.Err())
	}
}

func (a *app) detect(ctx context.Context, stdout io.Writer, path string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = logpkg.ContextWithLogger(ctx, a.logger)
	res, err := a.detectService().DetectFile(ctx, path, a.cfg.Vespa.DocType)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, res.Message())
	return nil
}

func (a *app) detectService() *detect.Service {
	return detect.New(a.embedder, a.vespa, detect.Options{
		Hits:           a.cfg.Vespa.Hits,
		TargetHits:     a.cfg.Vespa.TargetHits,
		RankingProfile: a.cfg.Vespa.RankingProfile,
	})
}

func (a *app) serve() error {
	// Pass nil interface (not typed nil pointer!) when the cache is off.
	var cachePinger healthuc.CachePinger
	if a.cache != nil {
		cachePinger = a.cache
	}
	healthSvc := healthuc.New(a.vespa, a.base, cachePinger)

	server := chiTransport.NewServer(a.detectService(), healthSvc, chiTransport.Options{
		DefaultDocType: a.cfg.Vespa.DocType,
		MaxBodyBytes:   a.cfg.HTTP.MaxBodyBytes,
		APIKeys:        a.cfg.Auth.APIKeys,
	}, a.logger)

	addr := fmt.Sprintf(":%d", a.cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(a.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-quit:
		a.logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Error during shutdown", zap.Error(err))
	}

	a.logger.Info("Server stopped gracefully")
	return nil
}
