package retriever

import (
	"testing"

	"recall/internal/domain"
)

func cand(id string, fused float64, tokens ...string) domain.Candidate {
	return domain.Candidate{
		Chunk:      domain.Chunk{ID: id, Tokens: tokens},
		FusedScore: fused,
	}
}

func TestMMRPicksHighestFirst(t *testing.T) {
	m := NewMMRDiversifier(0.5, 0.95)
	candidates := []domain.Candidate{
		cand("low", 0.3, "alpha", "beta"),
		cand("high", 0.9, "gamma", "delta"),
		cand("mid", 0.6, "epsilon", "zeta"),
	}

	selected := m.Select(candidates, 3)
	if len(selected) != 3 {
		t.Fatalf("expected 3 selected, got %d", len(selected))
	}
	if selected[0].Chunk.ID != "high" {
		t.Errorf("first pick must be the top fused score, got %s", selected[0].Chunk.ID)
	}
}

func TestMMRPrefersDiverseRunnerUp(t *testing.T) {
	// near-dup shares almost all tokens with the top hit; diverse does
	// not. With lambda 0.5 the diverse candidate wins the second slot
	// despite the lower fused score.
	m := NewMMRDiversifier(0.5, 0.99)
	candidates := []domain.Candidate{
		cand("top", 1.0, "budget", "meeting", "quarterly", "review"),
		cand("near-dup", 0.95, "budget", "meeting", "quarterly", "summary"),
		cand("diverse", 0.6, "kitchen", "remodel", "contractor", "quote"),
	}

	selected := m.Select(candidates, 2)
	if len(selected) != 2 {
		t.Fatalf("expected 2 selected, got %d", len(selected))
	}
	if selected[0].Chunk.ID != "top" || selected[1].Chunk.ID != "diverse" {
		t.Errorf("expected [top diverse], got %v", resultIDs(selected))
	}
}

func TestMMRDedupThresholdSkipsNearDuplicates(t *testing.T) {
	m := NewMMRDiversifier(0.9, 0.8)
	candidates := []domain.Candidate{
		cand("top", 1.0, "budget", "meeting", "quarterly", "review"),
		cand("dup", 0.99, "budget", "meeting", "quarterly", "review"),
		cand("other", 0.1, "kitchen", "remodel", "quote", "contractor"),
	}

	selected := m.Select(candidates, 3)
	for _, c := range selected {
		if c.Chunk.ID == "dup" {
			t.Error("candidate above the dedup threshold must be skipped")
		}
	}
	if len(selected) != 2 {
		t.Errorf("expected 2 survivors, got %v", resultIDs(selected))
	}
}

func TestMMRUsesVectorsWhenPresent(t *testing.T) {
	// Identical vectors mean similarity 1 regardless of tokens.
	m := NewMMRDiversifier(0.5, 0.95)
	a := cand("a", 1.0, "completely", "different", "words", "here")
	a.Vector = []float32{1, 0}
	b := cand("b", 0.9, "nothing", "shared", "at", "all")
	b.Vector = []float32{1, 0}
	c := cand("c", 0.5, "also", "unrelated", "token", "set")
	c.Vector = []float32{0, 1}

	selected := m.Select([]domain.Candidate{a, b, c}, 2)
	if len(selected) != 2 {
		t.Fatalf("expected 2 selected, got %d", len(selected))
	}
	if selected[1].Chunk.ID != "c" {
		t.Errorf("orthogonal vector must win second slot, got %s", selected[1].Chunk.ID)
	}
}

func TestMMREmptyAndSmallInput(t *testing.T) {
	m := NewMMRDiversifier(0.5, 0.9)
	if got := m.Select(nil, 5); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}

	one := []domain.Candidate{cand("only", 0.5, "a", "b")}
	if got := m.Select(one, 5); len(got) != 1 {
		t.Errorf("expected the single candidate back, got %v", resultIDs(got))
	}
}

func TestJaccardSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want float64
	}{
		{"identical", []string{"a", "b"}, []string{"a", "b"}, 1.0},
		{"disjoint", []string{"a"}, []string{"b"}, 0.0},
		{"half", []string{"a", "b"}, []string{"b", "c"}, 1.0 / 3.0},
		{"both empty", nil, nil, 1.0},
		{"one empty", []string{"a"}, nil, 0.0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := jaccardSimilarity(tc.a, tc.b); got != tc.want {
				t.Errorf("jaccardSimilarity() = %f, want %f", got, tc.want)
			}
		})
	}
}
