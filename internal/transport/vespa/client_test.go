package vespa

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/imgdetect/internal/domain"
	"github.com/kailas-cloud/imgdetect/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

func TestClient_Upsert(t *testing.T) {
	doc := domain.NewImageDocument("images/a.jpg", []float32{0.6, 0.8})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		want := "/document/v1/vinted/forbidden/docid/" + doc.ID
		if r.URL.Path != want {
			t.Errorf("path = %s, want %s", r.URL.Path, want)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}

		var body struct {
			Fields struct {
				ItemID         string    `json:"item_id"`
				SourcePath     string    `json:"source_path"`
				ImageEmbedding []float32 `json:"image_embedding"`
			} `json:"fields"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Fields.ItemID != doc.ID || body.Fields.SourcePath != "images/a.jpg" {
			t.Errorf("unexpected fields: %+v", body.Fields)
		}
		if len(body.Fields.ImageEmbedding) != 2 {
			t.Errorf("expected 2-dim embedding, got %d", len(body.Fields.ImageEmbedding))
		}
		w.Write([]byte(`{"id":"id:vinted:forbidden::x"}`))
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL + "/"})
	if err := c.Upsert(context.Background(), "vinted", "forbidden", doc); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
}

func TestClient_UpsertNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"bad tensor"}`))
	}))
	defer server.Close()

	before := testutil.ToFloat64(metrics.VespaRequestsTotal.WithLabelValues(OpUpsert, "400"))

	c := NewClient(Config{BaseURL: server.URL})
	err := c.Upsert(context.Background(), "vinted", "forbidden", domain.NewImageDocument("x", []float32{1}))
	if !errors.Is(err, domain.ErrUpsertFailed) {
		t.Fatalf("expected ErrUpsertFailed, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %T", err)
	}
	if se.StatusCode != 400 || se.Body != `{"message":"bad tensor"}` {
		t.Errorf("unexpected status error: %+v", se)
	}

	after := testutil.ToFloat64(metrics.VespaRequestsTotal.WithLabelValues(OpUpsert, "400"))
	if after-before != 1 {
		t.Errorf("expected upsert/400 counter to grow by 1, got %f", after-before)
	}
}

func TestClient_UpsertTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := NewClient(Config{BaseURL: server.URL, FeedTimeout: 50 * time.Millisecond})
	err := c.Upsert(context.Background(), "vinted", "forbidden", domain.NewImageDocument("x", []float32{1}))
	if !errors.Is(err, domain.ErrUpsertFailed) {
		t.Fatalf("expected ErrUpsertFailed, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded in chain, got %v", err)
	}
}

func TestClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		wantYQL := "select item_id, source_path from forbidden where ({targetHits: 10}nearestNeighbor(image_embedding, q));"
		if body["yql"] != wantYQL {
			t.Errorf("yql = %v, want %v", body["yql"], wantYQL)
		}
		if body["hits"] != float64(3) {
			t.Errorf("hits = %v, want 3", body["hits"])
		}
		if body["ranking.profile"] != "closeness" {
			t.Errorf("ranking.profile = %v", body["ranking.profile"])
		}
		if body["input.query(q)"] != "tensor<float>(x[1]):[1.0000000]" {
			t.Errorf("input.query(q) = %v", body["input.query(q)"])
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"root":{"children":[
			{"relevance":0.9,"fields":{"item_id":"a","source_path":"images/a.jpg"}},
			{"fields":{"item_id":"b","source_path":"images/b.jpg"}}
		]}}`))
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL})
	hits, err := c.Search(context.Background(), domain.SearchRequest{
		DocType: "forbidden",
		Tensor:  domain.TensorLiteral([]float32{1}),
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ItemID != "a" || hits[0].Relevance != 0.9 || hits[0].SourcePath != "images/a.jpg" {
		t.Errorf("unexpected first hit: %+v", hits[0])
	}
	if hits[1].Relevance != 0 {
		t.Errorf("missing relevance must read as 0, got %f", hits[1].Relevance)
	}
}

func TestClient_SearchEmptyRoot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"root":{"id":"toplevel","fields":{"totalCount":0}}}`))
	}))
	defer server.Close()

	hits, err := NewClient(Config{BaseURL: server.URL}).Search(context.Background(), domain.SearchRequest{DocType: "forbidden"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits, got %d", len(hits))
	}
}

func TestClient_SearchNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewClient(Config{BaseURL: server.URL}).Search(context.Background(), domain.SearchRequest{DocType: "forbidden"})
	if !errors.Is(err, domain.ErrSearchFailed) {
		t.Fatalf("expected ErrSearchFailed, got %v", err)
	}
}

func TestClient_SearchTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(Config{BaseURL: url}).Search(context.Background(), domain.SearchRequest{DocType: "forbidden"})
	if !errors.Is(err, domain.ErrSearchFailed) {
		t.Fatalf("expected ErrSearchFailed, got %v", err)
	}
}

func TestClient_HealthCheck(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/state/v1/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":{"code":"up"}}`))
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL})
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("expected healthy, got %v", err)
	}

	healthy.Store(false)
	err := c.HealthCheck(context.Background())
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 StatusError, got %v", err)
	}
}

func TestYQL(t *testing.T) {
	got := YQL("weapons", 25)
	want := "select item_id, source_path from weapons where ({targetHits: 25}nearestNeighbor(image_embedding, q));"
	if got != want {
		t.Errorf("YQL = %q, want %q", got, want)
	}
}
