package retriever

import (
	"context"
	"errors"
	"testing"

	"recall/internal/adapter/analyzer"
	"recall/internal/domain"
	"recall/internal/port"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int    { return len(f.vec) }
func (f *fakeEmbedder) ModelName() string { return "fake" }

type fakeVectorIndex struct {
	matches []port.VectorMatch
	err     error
}

func (f *fakeVectorIndex) Upsert(context.Context, []port.VectorItem) error { return nil }
func (f *fakeVectorIndex) DeleteDoc(context.Context, string) error         { return nil }
func (f *fakeVectorIndex) Query(context.Context, []float32, int) ([]port.VectorMatch, error) {
	return f.matches, f.err
}

func TestHybridFusesBothSides(t *testing.T) {
	s := newBM25Store(t)
	indexChunks(t, s, "d1", []domain.Chunk{
		{ID: "lexical", DocID: "d1", Sequence: 0, Tokens: tok("budget", "review", "quarterly", "spend")},
		{ID: "both", DocID: "d1", Sequence: 1, Tokens: tok("budget", "planning", "targets", "goals")},
		{ID: "semantic", DocID: "d1", Sequence: 2, Tokens: tok("spending", "money", "allocation", "funds")},
	})

	sparse := NewBM25Retriever(s, analyzer.NewTokenizer(false), 1.2, 0.75, 0, 0)
	vectors := &fakeVectorIndex{matches: []port.VectorMatch{
		{ChunkID: "both", Similarity: 0.9, Vector: []float32{1, 0}},
		{ChunkID: "semantic", Similarity: 0.8, Vector: []float32{0.9, 0.1}},
	}}
	h := NewHybridRetriever(sparse, vectors, &fakeEmbedder{vec: []float32{1, 0}}, s, 0.5, 0.5)

	results, err := h.Retrieve(context.Background(), "budget", 10)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 candidates, got %d: %v", len(results), resultIDs(results))
	}

	byID := map[string]domain.Candidate{}
	for _, c := range results {
		byID[c.Chunk.ID] = c
	}

	// Present on both sides beats single-side hits.
	if results[0].Chunk.ID != "both" {
		t.Errorf("expected chunk on both sides to rank first, got %s", results[0].Chunk.ID)
	}
	if byID["lexical"].DenseNorm != 0 {
		t.Error("chunk missing from dense side must contribute 0 dense score")
	}
	if byID["semantic"].SparseNorm != 0 {
		t.Error("chunk missing from sparse side must contribute 0 sparse score")
	}
	if got := byID["both"].FusedScore; got <= byID["lexical"].FusedScore || got <= byID["semantic"].FusedScore {
		t.Errorf("fused score for both-sides chunk too low: %f", got)
	}
}

func TestHybridNormalizesToUnitRange(t *testing.T) {
	s := newBM25Store(t)
	indexChunks(t, s, "d1", []domain.Chunk{
		{ID: "a", DocID: "d1", Sequence: 0, Tokens: tok("budget", "budget", "budget", "spend")},
		{ID: "b", DocID: "d1", Sequence: 1, Tokens: tok("budget", "notes", "other", "words")},
	})

	sparse := NewBM25Retriever(s, analyzer.NewTokenizer(false), 1.2, 0.75, 0, 0)
	h := NewHybridRetriever(sparse, &fakeVectorIndex{}, &fakeEmbedder{vec: []float32{1}}, s, 1.0, 0.0)

	results, err := h.Retrieve(context.Background(), "budget", 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range results {
		if c.SparseNorm < 0 || c.SparseNorm > 1 {
			t.Errorf("normalized score out of range: %f", c.SparseNorm)
		}
	}
}

func TestHybridDegradesToSparseOnDenseFailure(t *testing.T) {
	s := newBM25Store(t)
	indexChunks(t, s, "d1", []domain.Chunk{
		{ID: "c1", DocID: "d1", Sequence: 0, Tokens: tok("budget", "review", "spend", "plan")},
	})

	sparse := NewBM25Retriever(s, analyzer.NewTokenizer(false), 1.2, 0.75, 0, 0)
	vectors := &fakeVectorIndex{err: errors.New("connection refused")}
	h := NewHybridRetriever(sparse, vectors, &fakeEmbedder{vec: []float32{1}}, s, 0.5, 0.5)

	results, err := h.Retrieve(context.Background(), "budget", 10)
	if err != nil {
		t.Fatalf("dense failure must not fail the query: %v", err)
	}
	if len(results) != 1 || results[0].Chunk.ID != "c1" {
		t.Fatalf("expected sparse-only result, got %v", resultIDs(results))
	}
	if results[0].FusedScore <= 0 {
		t.Error("sparse-only candidate must keep a positive fused score")
	}
}

func TestHybridWithoutDenseSide(t *testing.T) {
	s := newBM25Store(t)
	indexChunks(t, s, "d1", []domain.Chunk{
		{ID: "c1", DocID: "d1", Sequence: 0, Tokens: tok("budget", "review", "spend", "plan")},
	})

	sparse := NewBM25Retriever(s, analyzer.NewTokenizer(false), 1.2, 0.75, 0, 0)
	h := NewHybridRetriever(sparse, nil, nil, s, 0.5, 0.5)

	results, err := h.Retrieve(context.Background(), "budget", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected sparse result without dense side, got %d", len(results))
	}
}
