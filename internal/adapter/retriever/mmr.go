package retriever

import (
	"recall/internal/adapter/vector"
	"recall/internal/domain"
)

// MMRDiversifier selects a diverse subset of fused candidates using
// Maximal Marginal Relevance:
//
//	mmr(c) = lambda*fused(c) - (1-lambda)*maxSim(c, selected)
//
// Similarity is embedding cosine when both candidates carry vectors,
// token Jaccard otherwise. Candidates above the dedup threshold
// against any selected candidate are skipped outright.
type MMRDiversifier struct {
	lambda   float64
	dedupSim float64
}

func NewMMRDiversifier(lambda, dedupSim float64) *MMRDiversifier {
	return &MMRDiversifier{lambda: lambda, dedupSim: dedupSim}
}

func (m *MMRDiversifier) Select(candidates []domain.Candidate, k int) []domain.Candidate {
	if len(candidates) == 0 || k <= 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	selected := make([]domain.Candidate, 0, k)
	remaining := make([]domain.Candidate, len(candidates))
	copy(remaining, candidates)

	for len(selected) < k && len(remaining) > 0 {
		bestIdx := -1
		bestMMR := 0.0

		for i := range remaining {
			maxSim := 0.0
			for j := range selected {
				sim := candidateSimilarity(remaining[i], selected[j])
				if sim > maxSim {
					maxSim = sim
				}
			}
			if maxSim >= m.dedupSim && len(selected) > 0 {
				continue
			}

			mmr := m.lambda*remaining[i].FusedScore - (1-m.lambda)*maxSim
			if bestIdx == -1 || mmr > bestMMR {
				bestMMR = mmr
				bestIdx = i
			}
		}

		if bestIdx == -1 {
			break
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}

func candidateSimilarity(a, b domain.Candidate) float64 {
	if len(a.Vector) > 0 && len(a.Vector) == len(b.Vector) {
		return vector.CosineSimilarity(a.Vector, b.Vector)
	}
	return jaccardSimilarity(a.Chunk.Tokens, b.Chunk.Tokens)
}

// jaccardSimilarity compares two token multisets as sets.
func jaccardSimilarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}

	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}
