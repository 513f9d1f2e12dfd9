package retriever

import (
	"sort"

	"recall/internal/domain"
	"recall/internal/port"
)

// recencyWeight caps the fresh-over-stale advantage at 20%.
const recencyWeight = 0.2

// Booster applies the final deterministic ordering pass: recency and
// feedback multipliers on the relevance score, pinned results first.
type Booster struct {
	feedback port.FeedbackStore
}

func NewBooster(feedback port.FeedbackStore) *Booster {
	return &Booster{feedback: feedback}
}

// Boost computes FinalScore for each candidate and sorts. The base is
// RerankScore when reranking ran, FusedScore otherwise. Order: pinned
// candidates first in pin order, then by final score, ties broken by
// recency then chunk ID so the ordering is stable across runs.
func (b *Booster) Boost(candidates []domain.Candidate) []domain.Candidate {
	for i := range candidates {
		c := &candidates[i]

		base := c.FusedScore
		if c.RerankScore > 0 {
			base = c.RerankScore
		}
		score := base * (1 + recencyWeight*c.Recency)

		if b.feedback != nil {
			if fb, ok := b.lookupFeedback(c); ok {
				if fb.Correctness != nil {
					score *= 1 + *fb.Correctness
				}
				c.Pinned = fb.Pinned
				c.PinOrder = fb.PinOrder
			}
		}

		c.FinalScore = score
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, c := candidates[i], candidates[j]
		if a.Pinned != c.Pinned {
			return a.Pinned
		}
		if a.Pinned && c.Pinned && a.PinOrder != c.PinOrder {
			return a.PinOrder < c.PinOrder
		}
		if a.FinalScore != c.FinalScore {
			return a.FinalScore > c.FinalScore
		}
		if a.Recency != c.Recency {
			return a.Recency > c.Recency
		}
		return a.Chunk.ID < c.Chunk.ID
	})

	return candidates
}

// lookupFeedback checks the chunk first, then its document, so
// document-level feedback covers all of its chunks.
func (b *Booster) lookupFeedback(c *domain.Candidate) (domain.Feedback, bool) {
	if fb, ok := b.feedback.Lookup(c.Chunk.ID); ok {
		return fb, true
	}
	return b.feedback.Lookup(c.Chunk.DocID)
}
