// Package chi exposes detection over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	chirouter "github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/imgdetect/internal/domain"
	"github.com/kailas-cloud/imgdetect/internal/domain/verdict"
	"github.com/kailas-cloud/imgdetect/internal/metrics"
	healthuc "github.com/kailas-cloud/imgdetect/internal/usecase/health"
)

// imageField is the multipart form field carrying the query image.
const imageField = "image"

// Detector classifies an encoded image.
type Detector interface {
	DetectBytes(ctx context.Context, data []byte, docType string) (verdict.Result, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Options configures the HTTP layer.
type Options struct {
	DefaultDocType string
	MaxBodyBytes   int64
	APIKeys        []string
}

// Server serves the detection API.
type Server struct {
	detect        Detector
	health        HealthChecker
	opts          Options
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(detect Detector, health HealthChecker, opts Options, logger *zap.Logger) *Server {
	if opts.DefaultDocType == "" {
		opts.DefaultDocType = domain.DefaultDocType
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 20 << 20
	}
	s := &Server{
		detect: detect,
		health: health,
		opts:   opts,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidArgument, http.StatusBadRequest, CodeBadRequest),
		sentinelHandler(domain.ErrImageDecode, http.StatusUnprocessableEntity, CodeImageDecodeFailed),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadGateway, CodeVectorDimMismatch),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProvider),
		sentinelHandler(domain.ErrSearchFailed, http.StatusBadGateway, CodeSearchFailed),
	}
	return s
}

// Router builds the chi router with the full middleware stack.
func (s *Server) Router() http.Handler {
	r := chirouter.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(s.opts.APIKeys))
	r.Use(metrics.Middleware())

	r.Post("/detect", s.Detect)
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}

// Detect handles POST /detect.
// The image is the raw request body or the multipart field "image".
func (s *Server) Detect(w http.ResponseWriter, r *http.Request) {
	docType := r.URL.Query().Get("doc_type")
	if docType == "" {
		docType = s.opts.DefaultDocType
	}

	data, err := s.readImage(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
				fmt.Sprintf("image exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.detect.DetectBytes(ctx, data, docType)
	if usage.Calls > 0 {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, detectToResponse(docType, res))
}

func (s *Server) readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	r.Body = body

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		f, _, err := r.FormFile(imageField)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, err
			}
			return nil, fmt.Errorf("multipart field %q: %w", imageField, err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("read multipart image: %w", err)
		}
		return data, nil
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("request body is empty")
	}
	return data, nil
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

func detectToResponse(docType string, res verdict.Result) DetectResponse {
	hits := make([]HitResponse, len(res.Hits()))
	for i, h := range res.Hits() {
		hits[i] = HitResponse{ItemID: h.ItemID, SourcePath: h.SourcePath, Relevance: h.Relevance}
	}
	return DetectResponse{
		DocType:    docType,
		Category:   string(res.Category()),
		Confidence: res.Confidence(),
		Message:    res.Message(),
		Hits:       hits,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidArgument,
		domain.ErrImageDecode,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingProviderError,
		domain.ErrSearchFailed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
