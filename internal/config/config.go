package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/imgdetect/internal/domain"
)

// Config holds the detector configuration.
type Config struct {
	Vespa     VespaConfig     `yaml:"vespa"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cache     CacheConfig     `yaml:"cache"`
	Feed      FeedConfig      `yaml:"feed"`
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// VespaConfig holds search engine endpoint and query settings.
type VespaConfig struct {
	URL              string `yaml:"url"`
	Namespace        string `yaml:"namespace"`
	DocType          string `yaml:"doc_type"`
	Hits             int    `yaml:"hits"`
	TargetHits       int    `yaml:"target_hits"` // candidate pool, independent of Hits
	RankingProfile   string `yaml:"ranking_profile"`
	FeedTimeoutSec   int    `yaml:"feed_timeout_sec"`
	SearchTimeoutSec int    `yaml:"search_timeout_sec"`
}

// FeedTimeout is the per-document upsert deadline.
func (v VespaConfig) FeedTimeout() time.Duration {
	return time.Duration(v.FeedTimeoutSec) * time.Second
}

// SearchTimeout is the per-query deadline.
func (v VespaConfig) SearchTimeout() time.Duration {
	return time.Duration(v.SearchTimeoutSec) * time.Second
}

// EmbeddingConfig holds image embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// CacheConfig holds the optional embedding cache settings.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	TTLHours         int      `yaml:"ttl_hours"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// FeedConfig holds feed pipeline settings.
type FeedConfig struct {
	SkipDuplicates     bool `yaml:"skip_duplicates"`
	DuplicateThreshold int  `yaml:"duplicate_threshold"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int   `yaml:"port"`
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `yaml:"write_timeout_sec"`
	ShutdownSec     int   `yaml:"shutdown_timeout_sec"`
	MaxBodyBytes    int64 `yaml:"max_body_bytes"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A missing file yields the defaults so the CLI works without any config on disk.
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(filepath.Clean(configPath))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// defaults only
	case err != nil:
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	default:
		// Substitute env variables of the form ${VAR}
		data = expandEnvVars(data)
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Vespa.URL == "" {
		c.Vespa.URL = "http://localhost:8080"
	}
	if c.Vespa.Namespace == "" {
		c.Vespa.Namespace = domain.DefaultNamespace
	}
	if c.Vespa.DocType == "" {
		c.Vespa.DocType = domain.DefaultDocType
	}
	if c.Vespa.Hits <= 0 {
		c.Vespa.Hits = domain.DefaultHits
	}
	if c.Vespa.TargetHits <= 0 {
		c.Vespa.TargetHits = domain.DefaultTargetHits
	}
	if c.Vespa.RankingProfile == "" {
		c.Vespa.RankingProfile = domain.DefaultRankingProfile
	}
	if c.Vespa.FeedTimeoutSec <= 0 {
		c.Vespa.FeedTimeoutSec = 30
	}
	if c.Vespa.SearchTimeoutSec <= 0 {
		c.Vespa.SearchTimeoutSec = 10
	}

	vc := domain.DefaultVectorConfig()
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = "http://localhost:7997/v1/"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = vc.Model
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = vc.Dimensions
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 60
	}

	if c.Cache.Driver == "" {
		c.Cache.Driver = "valkey"
	}
	if c.Cache.TTLHours <= 0 {
		c.Cache.TTLHours = 24 * 7
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}

	if c.Feed.DuplicateThreshold <= 0 {
		c.Feed.DuplicateThreshold = 10
	}

	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8090
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 20 << 20
	}

	// unset ${API_KEY} expands to an empty list entry
	keys := c.Auth.APIKeys[:0]
	for _, k := range c.Auth.APIKeys {
		if k != "" {
			keys = append(keys, k)
		}
	}
	c.Auth.APIKeys = keys
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if !strings.HasPrefix(c.Vespa.URL, "http://") && !strings.HasPrefix(c.Vespa.URL, "https://") {
		return fmt.Errorf("vespa.url must be an http(s) URL, got %q", c.Vespa.URL)
	}
	if c.Embedding.Dimensions != domain.EmbeddingDimensions {
		return fmt.Errorf("embedding.dimensions must be %d, got %d", domain.EmbeddingDimensions, c.Embedding.Dimensions)
	}
	if c.Cache.Enabled {
		switch c.Cache.Driver {
		case "valkey", "redis":
			// ok
		default:
			return fmt.Errorf("cache.driver must be \"valkey\" or \"redis\", got %q", c.Cache.Driver)
		}
		if len(c.Cache.Addrs) == 0 {
			return fmt.Errorf("cache.addrs is required when cache is enabled")
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
