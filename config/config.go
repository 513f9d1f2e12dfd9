package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the retrieval core. It is loaded
// once, validated, and passed into components at construction; nothing
// reads configuration from the environment at query time.
type Config struct {
	Ingest    IngestConfig    `yaml:"ingest"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Gate      GateConfig      `yaml:"gate"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Vector    VectorConfig    `yaml:"vector"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retry     RetryConfig     `yaml:"retry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// IngestConfig holds directory-ingestion configuration.
type IngestConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
	Workers  int      `yaml:"workers"`
}

// ChunkingConfig holds chunk boundary configuration, in tokens.
type ChunkingConfig struct {
	TargetTokens  int `yaml:"target_tokens"`
	OverlapTokens int `yaml:"overlap_tokens"`
	MaxTokens     int `yaml:"max_tokens"`
}

// GateConfig holds quality-gate configuration.
type GateConfig struct {
	QualityWeight       float64            `yaml:"quality_weight"`
	NoveltyWeight       float64            `yaml:"novelty_weight"`
	ActionabilityWeight float64            `yaml:"actionability_weight"`
	RecencyWeight       float64            `yaml:"recency_weight"`
	RecencyHalflifeDays float64            `yaml:"recency_halflife_days"`
	ActionabilityFloor  float64            `yaml:"actionability_floor"`
	NoveltyNeighbors    int                `yaml:"novelty_neighbors"`
	Thresholds          map[string]float64 `yaml:"thresholds"`
	DefaultThreshold    float64            `yaml:"default_threshold"`
	Watchlist           []string           `yaml:"watchlist"`
}

// RetrieveConfig holds query-time retrieval configuration.
type RetrieveConfig struct {
	TopK          int     `yaml:"top_k"`
	FusionAlpha   float64 `yaml:"fusion_alpha"`
	FusionBeta    float64 `yaml:"fusion_beta"`
	MMRLambda     float64 `yaml:"mmr_lambda"`
	DedupSim      float64 `yaml:"dedup_sim"`
	TitleBoost    float64 `yaml:"title_boost"`
	HeadingBoost  float64 `yaml:"heading_boost"`
	K1            float64 `yaml:"k1"`
	B             float64 `yaml:"b"`
	TimeoutMillis int     `yaml:"timeout_millis"`
	CacheSize     int     `yaml:"cache_size"`
	CacheTTLSecs  int     `yaml:"cache_ttl_secs"`
}

// RerankConfig holds cross-encoder reranker configuration.
type RerankConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Model         string `yaml:"model"`
	APIKeyEnv     string `yaml:"api_key_env"`
	BaseURL       string `yaml:"base_url"`
	TimeoutMillis int    `yaml:"timeout_millis"`
}

// VectorConfig holds dense-index configuration. An empty URL selects
// the local bbolt-backed store.
type VectorConfig struct {
	URL        string `yaml:"url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Collection string `yaml:"collection"`
	RateLimit  int    `yaml:"rate_limit"` // requests per second, 0 = unlimited
}

// EmbeddingConfig holds embedder configuration.
type EmbeddingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Provider  string `yaml:"provider"` // "openai", "ollama", "mock"
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// RetryConfig holds the shared retry policy for external calls.
type RetryConfig struct {
	MaxRetries      int `yaml:"max_retries"`
	BaseDelayMillis int `yaml:"base_delay_millis"`
	JitterMillis    int `yaml:"jitter_millis"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			Includes: []string{"**/*.md", "**/*.txt", "**/*.eml"},
			Excludes: []string{"**/.recall/**", "**/node_modules/**", "**/.git/**"},
			Workers:  4,
		},
		Chunking: ChunkingConfig{
			TargetTokens:  512,
			OverlapTokens: 50,
			MaxTokens:     1024,
		},
		Gate: GateConfig{
			QualityWeight:       0.35,
			NoveltyWeight:       0.25,
			ActionabilityWeight: 0.2,
			RecencyWeight:       0.2,
			RecencyHalflifeDays: 182, // ~6 months
			ActionabilityFloor:  0.3,
			NoveltyNeighbors:    5,
			Thresholds:          map[string]float64{},
			DefaultThreshold:    0.4,
		},
		Retrieve: RetrieveConfig{
			TopK:          10,
			FusionAlpha:   0.5,
			FusionBeta:    0.5,
			MMRLambda:     0.5,
			DedupSim:      0.85,
			TitleBoost:    0.5,
			HeadingBoost:  0.25,
			K1:            1.2,
			B:             0.75,
			TimeoutMillis: 5000,
			CacheSize:     100,
			CacheTTLSecs:  300,
		},
		Rerank: RerankConfig{
			Enabled:       false,
			Model:         "rerank-english-v3.0",
			APIKeyEnv:     "COHERE_API_KEY",
			BaseURL:       "https://api.cohere.ai/v1",
			TimeoutMillis: 2000,
		},
		Vector: VectorConfig{
			Collection: "recall",
			RateLimit:  10,
		},
		Embedding: EmbeddingConfig{
			Enabled:   false,
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
			BatchSize: 100,
		},
		Retry: RetryConfig{
			MaxRetries:      2,
			BaseDelayMillis: 200,
			JitterMillis:    100,
		},
		Logging: LoggingConfig{
			Verbose: false,
		},
	}
}

// Validate checks cross-field constraints that the zero value and YAML
// parsing cannot enforce.
func (c *Config) Validate() error {
	ch := c.Chunking
	if ch.TargetTokens <= 0 || ch.MaxTokens <= 0 {
		return fmt.Errorf("chunking sizes must be positive")
	}
	if ch.TargetTokens > ch.MaxTokens {
		return fmt.Errorf("chunking target_tokens (%d) exceeds max_tokens (%d)", ch.TargetTokens, ch.MaxTokens)
	}
	if ch.OverlapTokens < 0 || ch.OverlapTokens >= ch.TargetTokens {
		return fmt.Errorf("chunking overlap_tokens (%d) must be in [0, target_tokens)", ch.OverlapTokens)
	}

	g := c.Gate
	weightSum := g.QualityWeight + g.NoveltyWeight + g.ActionabilityWeight + g.RecencyWeight
	if math.Abs(weightSum-1.0) > 0.001 {
		return fmt.Errorf("gate weights must sum to 1, got %.3f", weightSum)
	}
	if g.RecencyHalflifeDays <= 0 {
		return fmt.Errorf("gate recency_halflife_days must be positive")
	}

	r := c.Retrieve
	if r.FusionAlpha < 0 || r.FusionBeta < 0 || r.FusionAlpha+r.FusionBeta == 0 {
		return fmt.Errorf("fusion weights must be non-negative and not both zero")
	}
	if r.MMRLambda < 0 || r.MMRLambda > 1 {
		return fmt.Errorf("mmr_lambda must be in [0,1], got %.3f", r.MMRLambda)
	}
	if r.TopK <= 0 {
		return fmt.Errorf("top_k must be positive")
	}

	return nil
}

// QueryTimeout returns the query-pipeline deadline.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Retrieve.TimeoutMillis) * time.Millisecond
}

// RerankTimeout returns the cross-encoder call deadline.
func (c *Config) RerankTimeout() time.Duration {
	return time.Duration(c.Rerank.TimeoutMillis) * time.Millisecond
}

// Threshold returns the gate threshold for a document type.
func (g GateConfig) Threshold(docType string) float64 {
	if t, ok := g.Thresholds[docType]; ok {
		return t
	}
	return g.DefaultThreshold
}

// Load loads configuration from a YAML file, applying defaults for
// absent keys.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for
// recall.yaml, then .recall/config.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "recall.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".recall", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// IndexDBPath returns the path to the index database.
func IndexDBPath(dir string) string {
	return filepath.Join(dir, ".recall", "index.db")
}

// EnsureDataDir ensures the .recall directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".recall"), 0755)
}
