package retriever

import (
	"context"
	"fmt"
	"sort"

	"recall/internal/domain"
	"recall/internal/logger"
	"recall/internal/port"
)

// HybridRetriever fuses sparse BM25 scores with dense similarity.
// Both sides run concurrently over an over-fetched candidate pool,
// scores are min-max normalized independently, and the fused score is
// a weighted sum. A side that fails degrades the query to the other
// side instead of failing it.
type HybridRetriever struct {
	sparse   *BM25Retriever
	vectors  port.VectorIndex
	embedder port.Embedder
	store    port.IndexStore
	alpha    float64
	beta     float64
}

func NewHybridRetriever(sparse *BM25Retriever, vectors port.VectorIndex, embedder port.Embedder, store port.IndexStore, alpha, beta float64) *HybridRetriever {
	return &HybridRetriever{
		sparse:   sparse,
		vectors:  vectors,
		embedder: embedder,
		store:    store,
		alpha:    alpha,
		beta:     beta,
	}
}

func (r *HybridRetriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.Candidate, error) {
	poolK := topK * 3
	if poolK < 20 {
		poolK = 20
	}

	type sparseOut struct {
		candidates []domain.Candidate
		err        error
	}
	type denseOut struct {
		matches []port.VectorMatch
		err     error
	}

	sparseCh := make(chan sparseOut, 1)
	denseCh := make(chan denseOut, 1)

	go func() {
		candidates, err := r.sparse.Retrieve(ctx, query, poolK)
		sparseCh <- sparseOut{candidates, err}
	}()

	go func() {
		if r.vectors == nil || r.embedder == nil {
			denseCh <- denseOut{nil, nil}
			return
		}
		matches, err := r.denseSearch(ctx, query, poolK)
		denseCh <- denseOut{matches, err}
	}()

	sp := <-sparseCh
	dn := <-denseCh

	if sp.err != nil && dn.err != nil {
		return nil, fmt.Errorf("both retrieval sides failed: sparse: %v, dense: %w", sp.err, dn.err)
	}
	if sp.err != nil {
		logger.Degraded("sparse", "lexical search failed, dense only: %v", sp.err)
		sp.candidates = nil
	}
	if dn.err != nil {
		logger.Degraded("dense", "vector search failed, sparse only: %v", dn.err)
		dn.matches = nil
	}

	candidates := r.fuse(sp.candidates, dn.matches)
	if len(candidates) > poolK {
		candidates = candidates[:poolK]
	}
	return candidates, nil
}

func (r *HybridRetriever) denseSearch(ctx context.Context, query string, k int) ([]port.VectorMatch, error) {
	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, nil
	}
	return r.vectors.Query(ctx, embeddings[0], k)
}

// fuse merges the two sides. Each side's scores are normalized to
// [0,1] independently; a chunk absent from a side contributes 0 for
// that side.
func (r *HybridRetriever) fuse(sparse []domain.Candidate, dense []port.VectorMatch) []domain.Candidate {
	merged := make(map[string]*domain.Candidate, len(sparse)+len(dense))

	for _, c := range sparse {
		cc := c
		merged[c.Chunk.ID] = &cc
	}
	for _, m := range dense {
		if c, ok := merged[m.ChunkID]; ok {
			c.DenseScore = m.Similarity
			c.Vector = m.Vector
			continue
		}
		chunk, err := r.store.GetChunk(m.ChunkID)
		if err != nil {
			// Vector store may lag behind a deletion.
			continue
		}
		merged[m.ChunkID] = &domain.Candidate{
			Chunk:      chunk,
			DenseScore: m.Similarity,
			Vector:     m.Vector,
		}
	}

	candidates := make([]domain.Candidate, 0, len(merged))
	for _, c := range merged {
		candidates = append(candidates, *c)
	}

	normalize(candidates, func(c *domain.Candidate) float64 { return c.SparseScore },
		func(c *domain.Candidate, v float64) { c.SparseNorm = v })
	normalize(candidates, func(c *domain.Candidate) float64 { return c.DenseScore },
		func(c *domain.Candidate, v float64) { c.DenseNorm = v })

	for i := range candidates {
		candidates[i].FusedScore = r.alpha*candidates[i].SparseNorm + r.beta*candidates[i].DenseNorm
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].FusedScore != candidates[j].FusedScore {
			return candidates[i].FusedScore > candidates[j].FusedScore
		}
		return candidates[i].Chunk.ID < candidates[j].Chunk.ID
	})

	return candidates
}

// normalize min-max scales one score dimension to [0,1]. Chunks that
// did not appear on that side stay at 0; a degenerate range maps every
// nonzero score to 1.
func normalize(candidates []domain.Candidate, get func(*domain.Candidate) float64, set func(*domain.Candidate, float64)) {
	lo, hi := 0.0, 0.0
	first := true
	for i := range candidates {
		v := get(&candidates[i])
		if v == 0 {
			continue
		}
		if first || v < lo {
			lo = v
		}
		if first || v > hi {
			hi = v
		}
		first = false
	}
	if first {
		return
	}

	for i := range candidates {
		v := get(&candidates[i])
		if v == 0 {
			continue
		}
		if hi == lo {
			set(&candidates[i], 1)
			continue
		}
		set(&candidates[i], (v-lo)/(hi-lo))
	}
}
