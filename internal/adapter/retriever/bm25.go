// Package retriever implements the query-time pipeline stages: sparse
// BM25 scoring, hybrid fusion with the dense side, MMR diversification,
// cross-encoder reranking and final boosting.
package retriever

import (
	"context"
	"math"
	"sort"
	"strings"

	"recall/internal/domain"
	"recall/internal/port"
)

// BM25Retriever scores chunks against the inverted index. Title and
// heading matches multiply the base score so structural hits outrank
// body-only hits without drowning them.
type BM25Retriever struct {
	store        port.IndexStore
	tokenizer    port.Tokenizer
	k1           float64
	b            float64
	titleBoost   float64
	headingBoost float64
}

func NewBM25Retriever(store port.IndexStore, tokenizer port.Tokenizer, k1, b, titleBoost, headingBoost float64) *BM25Retriever {
	return &BM25Retriever{
		store:        store,
		tokenizer:    tokenizer,
		k1:           k1,
		b:            b,
		titleBoost:   titleBoost,
		headingBoost: headingBoost,
	}
}

// Retrieve returns the topK highest-scoring candidates with
// SparseScore populated. An empty or all-stopword query yields no
// candidates and no error.
func (r *BM25Retriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.Candidate, error) {
	queryTokens := r.tokenizer.Tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	stats, err := r.store.GetStats()
	if err != nil {
		return nil, err
	}
	if stats.TotalChunks == 0 {
		return nil, nil
	}

	querySet := make(map[string]struct{}, len(queryTokens))
	for _, t := range queryTokens {
		querySet[t] = struct{}{}
	}

	scores := make(map[string]float64)
	chunks := make(map[string]domain.Chunk)

	for _, term := range queryTokens {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		postings, err := r.store.GetPostings(term)
		if err != nil || len(postings) == 0 {
			continue
		}

		n := float64(len(postings))
		N := float64(stats.TotalChunks)
		idf := math.Log((N-n+0.5)/(n+0.5) + 1)

		for _, posting := range postings {
			chunk, ok := chunks[posting.ChunkID]
			if !ok {
				chunk, err = r.store.GetChunk(posting.ChunkID)
				if err != nil {
					continue
				}
				chunks[posting.ChunkID] = chunk
			}

			dl := float64(len(chunk.Tokens))
			avgDl := stats.AvgChunkLen
			if avgDl == 0 {
				avgDl = 1
			}
			tf := float64(posting.TF)

			scores[posting.ChunkID] += idf * (tf * (r.k1 + 1)) / (tf + r.k1*(1-r.b+r.b*dl/avgDl))
		}
	}

	candidates := make([]domain.Candidate, 0, len(scores))
	for chunkID, score := range scores {
		chunk := chunks[chunkID]
		boost := 1 + r.titleBoost*r.fieldMatch(chunk.SectionTitle, querySet) +
			r.headingBoost*r.fieldMatch(strings.Join(chunk.HeadingPath, " "), querySet)
		candidates = append(candidates, domain.Candidate{
			Chunk:       chunk,
			SparseScore: score * boost,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].SparseScore != candidates[j].SparseScore {
			return candidates[i].SparseScore > candidates[j].SparseScore
		}
		return candidates[i].Chunk.ID < candidates[j].Chunk.ID
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	return candidates, nil
}

// fieldMatch returns the fraction of query terms present in the field
// text, 0 when either side is empty.
func (r *BM25Retriever) fieldMatch(field string, querySet map[string]struct{}) float64 {
	if field == "" || len(querySet) == 0 {
		return 0
	}
	fieldSet := make(map[string]struct{})
	for _, t := range r.tokenizer.Tokenize(field) {
		fieldSet[t] = struct{}{}
	}
	matches := 0
	for t := range querySet {
		if _, ok := fieldSet[t]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(querySet))
}
