package retriever

import (
	"testing"

	"recall/internal/domain"
)

type mapFeedback map[string]domain.Feedback

func (m mapFeedback) Lookup(id string) (domain.Feedback, bool) {
	fb, ok := m[id]
	return fb, ok
}

func boostCand(id string, fused, recency float64) domain.Candidate {
	return domain.Candidate{
		Chunk:      domain.Chunk{ID: id, DocID: "doc-" + id},
		FusedScore: fused,
		Recency:    recency,
	}
}

func TestBoostRecencyBreaksNearTies(t *testing.T) {
	b := NewBooster(mapFeedback{})

	fresh := boostCand("fresh", 0.80, 1.0)
	stale := boostCand("stale", 0.82, 0.0)

	out := b.Boost([]domain.Candidate{stale, fresh})
	// 0.80*1.2 = 0.96 beats 0.82*1.0 = 0.82.
	if out[0].Chunk.ID != "fresh" {
		t.Errorf("recency must lift the near-tied fresh result, got %s first", out[0].Chunk.ID)
	}
}

func TestBoostRecencyCapped(t *testing.T) {
	b := NewBooster(mapFeedback{})

	strong := boostCand("strong", 1.0, 0.0)
	weak := boostCand("weak", 0.5, 1.0)

	out := b.Boost([]domain.Candidate{weak, strong})
	// 0.5*1.2 = 0.6 never overtakes 1.0: recency is a nudge, not a sort key.
	if out[0].Chunk.ID != "strong" {
		t.Errorf("recency must not dominate relevance, got %s first", out[0].Chunk.ID)
	}
}

func TestBoostMonotonicInRecency(t *testing.T) {
	b := NewBooster(mapFeedback{})

	newer := boostCand("newer", 0.7, 0.9)
	older := boostCand("older", 0.7, 0.2)

	out := b.Boost([]domain.Candidate{older, newer})
	if out[0].Chunk.ID != "newer" {
		t.Error("equal relevance must order by recency")
	}
	if out[0].FinalScore <= out[1].FinalScore {
		t.Error("final score must grow with recency at fixed relevance")
	}
}

func TestBoostFeedbackCorrectness(t *testing.T) {
	up := 1.0
	down := -0.5
	b := NewBooster(mapFeedback{
		"liked":    {TargetID: "liked", Correctness: &up},
		"disliked": {TargetID: "disliked", Correctness: &down},
	})

	liked := boostCand("liked", 0.5, 0)
	disliked := boostCand("disliked", 0.5, 0)
	neutral := boostCand("neutral", 0.5, 0)

	out := b.Boost([]domain.Candidate{disliked, neutral, liked})
	if got := resultIDs(out); got[0] != "liked" || got[1] != "neutral" || got[2] != "disliked" {
		t.Errorf("expected [liked neutral disliked], got %v", got)
	}
	if out[0].FinalScore != 1.0 || out[2].FinalScore != 0.25 {
		t.Errorf("correctness multiplier wrong: %f, %f", out[0].FinalScore, out[2].FinalScore)
	}
}

func TestBoostDocLevelFeedbackCoversChunks(t *testing.T) {
	up := 0.5
	b := NewBooster(mapFeedback{
		"doc-covered": {TargetID: "doc-covered", Correctness: &up},
	})

	covered := boostCand("covered", 0.5, 0)
	plain := boostCand("plain", 0.5, 0)

	out := b.Boost([]domain.Candidate{plain, covered})
	if out[0].Chunk.ID != "covered" {
		t.Error("document-level feedback must apply to the document's chunks")
	}
}

func TestBoostPinnedFirstInPinOrder(t *testing.T) {
	b := NewBooster(mapFeedback{
		"pin2": {TargetID: "pin2", Pinned: true, PinOrder: 2},
		"pin1": {TargetID: "pin1", Pinned: true, PinOrder: 1},
	})

	top := boostCand("top", 0.99, 1.0)
	pin1 := boostCand("pin1", 0.01, 0)
	pin2 := boostCand("pin2", 0.02, 0)

	out := b.Boost([]domain.Candidate{top, pin2, pin1})
	if got := resultIDs(out); got[0] != "pin1" || got[1] != "pin2" || got[2] != "top" {
		t.Errorf("pinned results must lead in pin order, got %v", got)
	}
}

func TestBoostDeterministicTieBreak(t *testing.T) {
	b := NewBooster(mapFeedback{})

	x := boostCand("bbb", 0.5, 0.5)
	y := boostCand("aaa", 0.5, 0.5)

	out1 := b.Boost([]domain.Candidate{x, y})
	out2 := b.Boost([]domain.Candidate{y, x})
	if out1[0].Chunk.ID != "aaa" || out2[0].Chunk.ID != "aaa" {
		t.Error("full ties must break on chunk ID for stable ordering")
	}
}

func TestBoostUsesRerankScoreWhenPresent(t *testing.T) {
	b := NewBooster(mapFeedback{})

	reranked := boostCand("reranked", 0.2, 0)
	reranked.RerankScore = 0.9
	fusedOnly := boostCand("fused", 0.5, 0)

	out := b.Boost([]domain.Candidate{fusedOnly, reranked})
	if out[0].Chunk.ID != "reranked" {
		t.Error("rerank score must replace fused score as the boost base")
	}
}
