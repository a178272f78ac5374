// Package vespa is a minimal client for the Vespa document and query APIs.
package vespa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/imgdetect/internal/domain"
	"github.com/kailas-cloud/imgdetect/internal/metrics"
)

// Operation names used in errors and metrics.
const (
	OpUpsert = "upsert"
	OpSearch = "search"
	OpHealth = "health"
)

const maxErrorBody = 4 << 10

// Client talks to a single Vespa container cluster.
// It is safe for concurrent use.
type Client struct {
	baseURL       string
	http          *http.Client
	feedTimeout   time.Duration
	searchTimeout time.Duration
	logger        *zap.Logger
}

// Config holds the Vespa client settings.
type Config struct {
	BaseURL       string
	FeedTimeout   time.Duration // per upsert, default 30s
	SearchTimeout time.Duration // per query, default 10s
	HTTPClient    *http.Client
	Logger        *zap.Logger
}

// NewClient creates a Vespa client.
func NewClient(cfg Config) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		http:          cfg.HTTPClient,
		feedTimeout:   cfg.FeedTimeout,
		searchTimeout: cfg.SearchTimeout,
		logger:        cfg.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.feedTimeout <= 0 {
		c.feedTimeout = 30 * time.Second
	}
	if c.searchTimeout <= 0 {
		c.searchTimeout = 10 * time.Second
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// StatusError is a non-2xx answer from Vespa.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vespa %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Unwrap maps the failed operation to its domain sentinel.
func (e *StatusError) Unwrap() error {
	switch e.Op {
	case OpUpsert:
		return domain.ErrUpsertFailed
	case OpSearch:
		return domain.ErrSearchFailed
	default:
		return nil
	}
}

type documentBody struct {
	Fields documentFields `json:"fields"`
}

type documentFields struct {
	ItemID         string    `json:"item_id"`
	SourcePath     string    `json:"source_path"`
	ImageEmbedding []float32 `json:"image_embedding"`
}

// Upsert writes doc as {namespace}/{docType}/docid/{doc.ID}.
// Transport failures, timeouts and non-2xx answers wrap domain.ErrUpsertFailed.
func (c *Client) Upsert(ctx context.Context, namespace, docType string, doc domain.ImageDocument) error {
	body, err := json.Marshal(documentBody{Fields: documentFields{
		ItemID:         doc.ID,
		SourcePath:     doc.SourcePath,
		ImageEmbedding: doc.Embedding,
	}})
	if err != nil {
		return fmt.Errorf("marshal document: %w: %w", domain.ErrUpsertFailed, err)
	}

	endpoint := c.baseURL + "/document/v1/" +
		url.PathEscape(namespace) + "/" + url.PathEscape(docType) + "/docid/" + url.PathEscape(doc.ID)

	ctx, cancel := context.WithTimeout(ctx, c.feedTimeout)
	defer cancel()

	if _, err := c.do(ctx, OpUpsert, http.MethodPost, endpoint, body); err != nil {
		return err
	}
	return nil
}

type searchBody struct {
	YQL            string `json:"yql"`
	Hits           int    `json:"hits"`
	RankingProfile string `json:"ranking.profile"`
	QueryTensor    string `json:"input.query(q)"`
}

type searchResponse struct {
	Root struct {
		Children []struct {
			ID        string   `json:"id"`
			Relevance *float64 `json:"relevance"`
			Fields    struct {
				ItemID     string `json:"item_id"`
				SourcePath string `json:"source_path"`
			} `json:"fields"`
		} `json:"children"`
	} `json:"root"`
}

// YQL builds the nearest-neighbor query over the image_embedding field.
func YQL(docType string, targetHits int) string {
	return "select item_id, source_path from " + docType +
		" where ({targetHits: " + strconv.Itoa(targetHits) + "}nearestNeighbor(image_embedding, q));"
}

// Search runs a nearest-neighbor query and returns hits in Vespa rank order.
// A missing relevance is reported as 0. Failures wrap domain.ErrSearchFailed.
func (c *Client) Search(ctx context.Context, req domain.SearchRequest) ([]domain.Hit, error) {
	hits := req.Hits
	if hits <= 0 {
		hits = domain.DefaultHits
	}
	targetHits := req.TargetHits
	if targetHits <= 0 {
		targetHits = domain.DefaultTargetHits
	}
	profile := req.RankingProfile
	if profile == "" {
		profile = domain.DefaultRankingProfile
	}

	body, err := json.Marshal(searchBody{
		YQL:            YQL(req.DocType, targetHits),
		Hits:           hits,
		RankingProfile: profile,
		QueryTensor:    req.Tensor,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w: %w", domain.ErrSearchFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.searchTimeout)
	defer cancel()

	raw, err := c.do(ctx, OpSearch, http.MethodPost, c.baseURL+"/search/", body)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("vespa search: decode response: %w: %w", domain.ErrSearchFailed, err)
	}

	out := make([]domain.Hit, 0, len(resp.Root.Children))
	for _, ch := range resp.Root.Children {
		h := domain.Hit{ItemID: ch.Fields.ItemID, SourcePath: ch.Fields.SourcePath}
		if ch.Relevance != nil {
			h.Relevance = *ch.Relevance
		}
		out = append(out, h)
	}
	return out, nil
}

// HealthCheck queries the container state API.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.searchTimeout)
	defer cancel()

	if _, err := c.do(ctx, OpHealth, http.MethodGet, c.baseURL+"/state/v1/health", nil); err != nil {
		return err
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, wrapOp(op, fmt.Errorf("build request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.VespaRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.VespaRequestsTotal.WithLabelValues(op, "error").Inc()
		return nil, wrapOp(op, err)
	}
	defer resp.Body.Close()

	metrics.VespaRequestsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapOp(op, fmt.Errorf("read body: %w", err))
	}
	return raw, nil
}

func wrapOp(op string, err error) error {
	var sentinel error
	switch op {
	case OpUpsert:
		sentinel = domain.ErrUpsertFailed
	case OpSearch:
		sentinel = domain.ErrSearchFailed
	}
	if sentinel == nil || errors.Is(err, sentinel) {
		return fmt.Errorf("vespa %s: %w", op, err)
	}
	return fmt.Errorf("vespa %s: %w: %w", op, sentinel, err)
}
