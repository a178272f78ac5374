package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/kailas-cloud/imgdetect/internal/domain"
	domfeed "github.com/kailas-cloud/imgdetect/internal/domain/feed"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()

	if cmd.Use != "detector" {
		t.Errorf("Use = %q, want %q", cmd.Use, "detector")
	}
	if cmd.Short == "" || cmd.Long == "" {
		t.Error("descriptions should not be empty")
	}
	if cmd.Version == "" {
		t.Error("Version should be set")
	}
}

func TestRootCmd_Flags(t *testing.T) {
	t.Setenv("ENV", "")
	cmd := NewRootCmd()

	tests := []struct {
		flagName string
		defValue string
	}{
		{"mode", ""},
		{"vespa-url", "http://localhost:8080"},
		{"doc-type", "forbidden"},
		{"images-folder", ""},
		{"image", ""},
		{"hits", "3"},
		{"skip-duplicates", "false"},
		{"env", "local"},
		{"config", ""},
	}

	for _, tt := range tests {
		t.Run(tt.flagName, func(t *testing.T) {
			flag := cmd.Flags().Lookup(tt.flagName)
			if flag == nil {
				t.Fatalf("--%s flag not found", tt.flagName)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("--%s default = %q, want %q", tt.flagName, flag.DefValue, tt.defValue)
			}
		})
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    options
		wantErr string
	}{
		{"feed ok", options{mode: "feed", imagesFolder: "images", docType: "forbidden", hits: 3}, ""},
		{"detect ok", options{mode: "detect", image: "q.jpg", docType: "forbidden", hits: 3}, ""},
		{"serve ok", options{mode: "serve", docType: "forbidden", hits: 3}, ""},
		{"feed without folder", options{mode: "feed"}, "--images-folder is required when mode=feed"},
		{"detect without image", options{mode: "detect"}, "--image is required when mode=detect"},
		{"missing mode", options{}, "--mode is required"},
		{"unknown mode", options{mode: "index"}, `invalid --mode "index"`},
		{"negative hits", options{mode: "serve", hits: -1}, "--hits must be positive"},
		{"zero hits", options{mode: "serve", hits: 0}, "--hits must be positive"},
		{"bad doc type", options{mode: "serve", docType: "x where true", hits: 3}, "invalid --doc-type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			var ue *usageError
			if !errors.As(err, &ue) {
				t.Errorf("expected usageError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestRootCmd_UsageErrorPrintsUsage(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--mode", "feed"})

	err := cmd.Execute()
	var ue *usageError
	if !errors.As(err, &ue) {
		t.Fatalf("expected usageError, got %v", err)
	}
	if !strings.Contains(out.String(), "Usage:") {
		t.Errorf("expected usage output, got %q", out.String())
	}
}

func TestRootCmd_UnknownFlag(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--nope"})

	var ue *usageError
	if err := cmd.Execute(); !errors.As(err, &ue) {
		t.Fatalf("expected usageError, got %v", err)
	}
}

func TestVersionCmd(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "detector ") {
		t.Errorf("unexpected output: %q", out.String())
	}
}

func TestApplyFlags(t *testing.T) {
	path := writeConfig(t, "vespa:\n  url: http://vespa:8080\n  doc_type: weapons\n")

	t.Run("config values kept when flags unset", func(t *testing.T) {
		cmd := NewRootCmd()
		if err := cmd.ParseFlags([]string{"--mode", "serve", "--config", path}); err != nil {
			t.Fatal(err)
		}
		cfg, err := loadConfig(cmd, &options{configPath: path})
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Vespa.URL != "http://vespa:8080" || cfg.Vespa.DocType != "weapons" {
			t.Errorf("unexpected vespa config: %+v", cfg.Vespa)
		}
		if cfg.Vespa.Namespace != domain.DefaultNamespace {
			t.Errorf("namespace = %q, want %q", cfg.Vespa.Namespace, domain.DefaultNamespace)
		}
	})

	t.Run("explicit flags override", func(t *testing.T) {
		cmd := NewRootCmd()
		args := []string{"--mode", "serve", "--vespa-url", "http://other:9090", "--doc-type", "drugs", "--hits", "20"}
		if err := cmd.ParseFlags(args); err != nil {
			t.Fatal(err)
		}
		opts := &options{configPath: path, vespaURL: "http://other:9090", docType: "drugs", hits: 20}
		cfg, err := loadConfig(cmd, opts)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Vespa.URL != "http://other:9090" || cfg.Vespa.DocType != "drugs" {
			t.Errorf("flags not applied: %+v", cfg.Vespa)
		}
		if cfg.Vespa.Hits != 20 || cfg.Vespa.TargetHits != 10 {
			t.Errorf("hits = %d, targetHits = %d, want 20/10", cfg.Vespa.Hits, cfg.Vespa.TargetHits)
		}
	})
}

func TestPrintResult(t *testing.T) {
	var stdout, stderr bytes.Buffer

	printResult(&stdout, &stderr, domfeed.NewOK("images/a.jpg", "abc"))
	printResult(&stdout, &stderr, domfeed.NewError("images/b.jpg", "def", errors.New("503 busy")))

	if got := stdout.String(); got != "OK  images/a.jpg  -> docid=abc\n" {
		t.Errorf("stdout = %q", got)
	}
	if got := stderr.String(); got != "FAIL images/b.jpg -> 503 busy\n" {
		t.Errorf("stderr = %q", got)
	}
}

func TestRun_FeedAndDetect(t *testing.T) {
	emb := embeddingStub(t)
	defer emb.Close()

	var (
		mu      sync.Mutex
		upserts []string
		queries []map[string]any
	)
	vespaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/document/v1/vinted/forbidden/docid/"):
			mu.Lock()
			upserts = append(upserts, strings.TrimPrefix(r.URL.Path, "/document/v1/vinted/forbidden/docid/"))
			mu.Unlock()
			w.Write([]byte(`{}`))
		case r.URL.Path == "/search/":
			var q map[string]any
			json.NewDecoder(r.Body).Decode(&q)
			mu.Lock()
			queries = append(queries, q)
			mu.Unlock()
			w.Write([]byte(`{"root":{"children":[{"relevance":0.9},{"relevance":0.8}]}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer vespaSrv.Close()

	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"))
	cfgPath := writeConfig(t, "embedding:\n  base_url: "+emb.URL+"/v1\n")

	t.Run("feed", func(t *testing.T) {
		cmd := NewRootCmd()
		var stdout, stderr bytes.Buffer
		cmd.SetOut(&stdout)
		cmd.SetErr(&stderr)
		cmd.SetArgs([]string{"--mode", "feed", "--images-folder", dir, "--config", cfgPath, "--vespa-url", vespaSrv.URL})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("execute: %v", err)
		}
		path := dir + "/a.png"
		want := "OK  " + path + "  -> docid=" + domain.StableID(path) + "\n"
		if stdout.String() != want {
			t.Errorf("stdout = %q, want %q", stdout.String(), want)
		}
		if len(upserts) != 1 || upserts[0] != domain.StableID(path) {
			t.Errorf("upserts = %v", upserts)
		}
	})

	t.Run("detect", func(t *testing.T) {
		cmd := NewRootCmd()
		var stdout bytes.Buffer
		cmd.SetOut(&stdout)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--mode", "detect", "--image", filepath.Join(dir, "a.png"), "--config", cfgPath, "--vespa-url", vespaSrv.URL})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("execute: %v", err)
		}
		if got := stdout.String(); got != "Forbidden with 85.0% confidence.\n" {
			t.Errorf("stdout = %q", got)
		}
	})

	t.Run("hits flag keeps candidate pool", func(t *testing.T) {
		mu.Lock()
		queries = nil
		mu.Unlock()

		cmd := NewRootCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{
			"--mode", "detect", "--image", filepath.Join(dir, "a.png"),
			"--config", cfgPath, "--vespa-url", vespaSrv.URL, "--hits", "15",
		})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("execute: %v", err)
		}
		if len(queries) != 1 {
			t.Fatalf("expected 1 query, got %d", len(queries))
		}
		if got := queries[0]["hits"]; got != float64(15) {
			t.Errorf("hits = %v, want 15", got)
		}
		yql, _ := queries[0]["yql"].(string)
		if !strings.Contains(yql, "{targetHits: 10}") {
			t.Errorf("yql = %q, want targetHits 10", yql)
		}
	})
}

// --- helpers ---

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 90, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

// embeddingStub serves a fixed unit vector from an OpenAI-compatible /embeddings endpoint.
func embeddingStub(t *testing.T) *httptest.Server {
	t.Helper()
	vec := make([]float32, domain.EmbeddingDimensions)
	v := float32(1 / math.Sqrt(float64(len(vec))))
	for i := range vec {
		vec[i] = v
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "test",
			"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": vec}},
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
}
