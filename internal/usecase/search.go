package usecase

import (
	"context"
	"time"

	"recall/config"
	"recall/internal/adapter/cache"
	"recall/internal/adapter/gate"
	"recall/internal/adapter/retriever"
	"recall/internal/domain"
	"recall/internal/logger"
	"recall/internal/port"
)

// Searcher runs the query pipeline: retrieve, diversify, rerank,
// boost. Every stage after retrieval is allowed to degrade; the query
// itself never fails because an optional stage did.
type Searcher struct {
	store        port.IndexStore
	hybrid       port.Retriever
	mmr          *retriever.MMRDiversifier
	crossEncoder port.CrossEncoder
	booster      *retriever.Booster
	gate         *gate.QualityGate
	queryCache   *cache.QueryCache
	queryTimeout time.Duration
	rerankBudget time.Duration
}

func NewSearcher(store port.IndexStore, hybrid port.Retriever, mmr *retriever.MMRDiversifier, crossEncoder port.CrossEncoder, booster *retriever.Booster, g *gate.QualityGate, queryCache *cache.QueryCache, cfg *config.Config) *Searcher {
	return &Searcher{
		store:        store,
		hybrid:       hybrid,
		mmr:          mmr,
		crossEncoder: crossEncoder,
		booster:      booster,
		gate:         g,
		queryCache:   queryCache,
		queryTimeout: cfg.QueryTimeout(),
		rerankBudget: cfg.RerankTimeout(),
	}
}

// Search returns the topK results for a query. filters, when present,
// restrict results to the named document types.
func (u *Searcher) Search(ctx context.Context, query string, topK int, filters []string) ([]domain.ScoredResult, error) {
	stats, err := u.store.GetStats()
	if err != nil {
		return nil, err
	}

	if u.queryCache != nil {
		if cached, hit := u.queryCache.Get(query, topK, filters, stats.IndexGen); hit {
			return cached, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, u.queryTimeout)
	defer cancel()

	candidates, err := u.hybrid.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []domain.ScoredResult{}, nil
	}

	candidates = u.applyFilters(candidates, filters)
	u.fillRecency(candidates)

	candidates = u.mmr.Select(candidates, topK)
	u.rerank(ctx, query, candidates)
	candidates = u.booster.Boost(candidates)

	results := make([]domain.ScoredResult, len(candidates))
	for i, c := range candidates {
		results[i] = domain.ScoredResult{
			ChunkID:      c.Chunk.ID,
			DocID:        c.Chunk.DocID,
			Text:         c.Chunk.Text,
			SectionTitle: c.Chunk.SectionTitle,
			Type:         c.Chunk.Type,
			Score:        c.FinalScore,
			Pinned:       c.Pinned,
		}
	}

	if u.queryCache != nil {
		u.queryCache.Put(query, topK, filters, stats.IndexGen, results)
	}
	return results, nil
}

func (u *Searcher) applyFilters(candidates []domain.Candidate, filters []string) []domain.Candidate {
	if len(filters) == 0 {
		return candidates
	}

	allowed := make(map[string]struct{}, len(filters))
	for _, f := range filters {
		allowed[f] = struct{}{}
	}

	docTypes := make(map[string]string)
	filtered := candidates[:0]
	for _, c := range candidates {
		docType, ok := docTypes[c.Chunk.DocID]
		if !ok {
			doc, err := u.store.GetDoc(c.Chunk.DocID)
			if err != nil {
				continue
			}
			docType = doc.Type
			docTypes[c.Chunk.DocID] = docType
		}
		if _, ok := allowed[docType]; ok {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// fillRecency recomputes recency from each document's CreatedAt at
// query time.
func (u *Searcher) fillRecency(candidates []domain.Candidate) {
	byDoc := make(map[string]float64)
	for i := range candidates {
		docID := candidates[i].Chunk.DocID
		recency, ok := byDoc[docID]
		if !ok {
			doc, err := u.store.GetDoc(docID)
			if err != nil {
				continue
			}
			recency = u.gate.Recency(doc.CreatedAt)
			byDoc[docID] = recency
		}
		candidates[i].Recency = recency
	}
}

// rerank scores candidates with the cross-encoder inside its own
// budget, bounded by whatever remains of the query deadline. Any
// failure leaves RerankScore zero, so boosting falls back to the
// fused score.
func (u *Searcher) rerank(ctx context.Context, query string, candidates []domain.Candidate) {
	if u.crossEncoder == nil || len(candidates) == 0 {
		return
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= 0 {
		logger.Degraded("rerank", "query deadline exhausted, returning fused order")
		return
	}

	rctx, cancel := context.WithTimeout(ctx, u.rerankBudget)
	defer cancel()

	passages := make([]string, len(candidates))
	for i, c := range candidates {
		passages[i] = c.Chunk.Text
	}

	scores, err := u.crossEncoder.Score(rctx, query, passages)
	if err != nil {
		logger.Degraded("rerank", "cross-encoder failed, returning fused order: %v", err)
		return
	}
	if len(scores) != len(candidates) {
		logger.Degraded("rerank", "cross-encoder returned %d scores for %d candidates", len(scores), len(candidates))
		return
	}

	for i := range candidates {
		candidates[i].RerankScore = scores[i]
	}
}
