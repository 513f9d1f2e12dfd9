package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"recall/config"
	"recall/internal/adapter/analyzer"
	"recall/internal/adapter/cache"
	"recall/internal/adapter/chunker"
	"recall/internal/adapter/embedding"
	"recall/internal/adapter/fs"
	"recall/internal/adapter/gate"
	"recall/internal/adapter/retriever"
	"recall/internal/adapter/store"
	"recall/internal/adapter/vector"
	"recall/internal/port"
	"recall/internal/retry"
	"recall/internal/usecase"
)

// app bundles the wired components for one CLI invocation.
type app struct {
	store    *store.BoltStore
	vectors  port.VectorIndex
	ingester *usecase.Ingester
	searcher *usecase.Searcher

	closers []func() error
}

func (a *app) Close() {
	for _, close := range a.closers {
		close()
	}
}

// openApp builds the component graph from configuration. The dense
// side is optional: without an embedder the system runs sparse-only.
func openApp() (*app, error) {
	if err := config.EnsureDataDir(rootDir); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.NewBoltStore(config.IndexDBPath(rootDir))
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	a := &app{store: st}
	a.closers = append(a.closers, st.Close)

	policy := retry.Policy{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  time.Duration(cfg.Retry.BaseDelayMillis) * time.Millisecond,
		Jitter:     time.Duration(cfg.Retry.JitterMillis) * time.Millisecond,
	}

	embedder, err := buildEmbedder(cfg, policy)
	if err != nil {
		a.Close()
		return nil, err
	}

	if embedder != nil {
		if cfg.Vector.URL != "" {
			a.vectors = vector.NewHTTPIndex(cfg.Vector.URL, cfg.Vector.Collection, cfg.Vector.APIKeyEnv, cfg.Vector.RateLimit, policy)
		} else {
			local, err := vector.NewLocalIndex(filepath.Join(rootDir, ".recall", "vectors.db"))
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("failed to open vector store: %w", err)
			}
			a.vectors = local
			a.closers = append(a.closers, local.Close)
		}
	}

	tokenizer := analyzer.NewTokenizer(true)
	g := gate.NewQualityGate(cfg.Gate, a.vectors, embedder)

	a.ingester = usecase.NewIngester(
		st,
		chunker.NewSectionChunker(cfg.Chunking.TargetTokens, cfg.Chunking.OverlapTokens, cfg.Chunking.MaxTokens, tokenizer),
		g,
		embedder,
		a.vectors,
		fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes),
		cfg.Ingest,
	)

	sparse := retriever.NewBM25Retriever(st, tokenizer, cfg.Retrieve.K1, cfg.Retrieve.B, cfg.Retrieve.TitleBoost, cfg.Retrieve.HeadingBoost)
	hybrid := retriever.NewHybridRetriever(sparse, a.vectors, embedder, st, cfg.Retrieve.FusionAlpha, cfg.Retrieve.FusionBeta)

	var crossEncoder port.CrossEncoder
	if cfg.Rerank.Enabled {
		rc := cfg.Rerank
		crossEncoder = retriever.NewLazyCrossEncoder(func() (port.CrossEncoder, error) {
			return retriever.NewCohereCrossEncoder(rc.APIKeyEnv, rc.Model, rc.BaseURL)
		})
	}

	a.searcher = usecase.NewSearcher(
		st,
		hybrid,
		retriever.NewMMRDiversifier(cfg.Retrieve.MMRLambda, cfg.Retrieve.DedupSim),
		crossEncoder,
		retriever.NewBooster(st),
		g,
		cache.NewQueryCache(cfg.Retrieve.CacheSize, time.Duration(cfg.Retrieve.CacheTTLSecs)*time.Second),
		cfg,
	)

	return a, nil
}

func buildEmbedder(cfg *config.Config, policy retry.Policy) (port.Embedder, error) {
	if !cfg.Embedding.Enabled {
		return nil, nil
	}

	switch cfg.Embedding.Provider {
	case "openai", "ollama":
		return embedding.NewOpenAIEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, cfg.Embedding.BaseURL, cfg.Embedding.Dimension, cfg.Embedding.BatchSize, policy)
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
}
