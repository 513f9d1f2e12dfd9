package gate

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"recall/config"
	"recall/internal/domain"
	"recall/internal/port"
)

type stubEmbedder struct{ err error }

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}
func (s *stubEmbedder) Dimension() int    { return 2 }
func (s *stubEmbedder) ModelName() string { return "stub" }

type stubVectors struct {
	matches []port.VectorMatch
	err     error
}

func (s *stubVectors) Upsert(context.Context, []port.VectorItem) error { return nil }
func (s *stubVectors) DeleteDoc(context.Context, string) error         { return nil }
func (s *stubVectors) Query(context.Context, []float32, int) ([]port.VectorMatch, error) {
	return s.matches, s.err
}

func gateConfig() config.GateConfig {
	cfg := config.DefaultConfig().Gate
	cfg.Thresholds = map[string]float64{"email": 0.60}
	return cfg
}

func freshDoc(docType string) domain.Document {
	return domain.Document{
		ID:        "doc-1",
		Text:      "quarterly budget numbers and action items",
		Type:      docType,
		CreatedAt: time.Now(),
	}
}

func TestGateHoldsBelowThreshold(t *testing.T) {
	// Weighted sum for a fresh email with quality 0.5 and novelty 0.25:
	// 0.35*0.5 + 0.25*0.25 + 0.2*0.3 + 0.2*1.0 = 0.4975 < 0.60.
	g := NewQualityGate(gateConfig(), &stubVectors{matches: []port.VectorMatch{
		{ChunkID: "other-chunk", Similarity: 0.75},
	}}, &stubEmbedder{})

	scores, err := g.Score(context.Background(), freshDoc("email"), nil, 0.5)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if scores.DoIndex {
		t.Errorf("signalness %.3f must not pass the 0.60 email threshold", scores.Signalness)
	}
	if scores.NeedsReview {
		t.Error("a clean below-threshold decision is not a review case")
	}
}

func TestGatePassesAboveDefaultThreshold(t *testing.T) {
	// Same document as a note gets the 0.4 default threshold.
	g := NewQualityGate(gateConfig(), &stubVectors{matches: []port.VectorMatch{
		{ChunkID: "other-chunk", Similarity: 0.75},
	}}, &stubEmbedder{})

	scores, err := g.Score(context.Background(), freshDoc("note"), nil, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if !scores.DoIndex {
		t.Errorf("signalness %.3f must pass the default threshold", scores.Signalness)
	}
}

func TestGateDuplicateHasLowNovelty(t *testing.T) {
	g := NewQualityGate(gateConfig(), &stubVectors{matches: []port.VectorMatch{
		{ChunkID: "existing", Similarity: 0.99},
	}}, &stubEmbedder{})

	scores, err := g.Score(context.Background(), freshDoc("note"), nil, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if scores.Novelty > 0.02 {
		t.Errorf("near-duplicate novelty = %.3f, want about 0", scores.Novelty)
	}
}

func TestGateIgnoresOwnChunksForNovelty(t *testing.T) {
	g := NewQualityGate(gateConfig(), &stubVectors{matches: []port.VectorMatch{
		{ChunkID: "doc-1-c0", Similarity: 1.0},
	}}, &stubEmbedder{})

	scores, err := g.Score(context.Background(), freshDoc("note"), nil, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if scores.Novelty != 1.0 {
		t.Errorf("own chunks must not count against novelty, got %.3f", scores.Novelty)
	}
}

func TestGateNoveltyFailureHoldsForReview(t *testing.T) {
	g := NewQualityGate(gateConfig(), &stubVectors{err: errors.New("unreachable")}, &stubEmbedder{})

	scores, err := g.Score(context.Background(), freshDoc("note"), nil, 1.0)
	if err != nil {
		t.Fatalf("novelty failure must not error: %v", err)
	}
	if scores.DoIndex {
		t.Error("novelty failure must never index silently")
	}
	if !scores.NeedsReview {
		t.Error("novelty failure must flag the document for review")
	}
}

func TestGateWatchlistActionability(t *testing.T) {
	cfg := gateConfig()
	cfg.Watchlist = []string{"kitchen remodel"}
	g := NewQualityGate(cfg, &stubVectors{}, &stubEmbedder{})

	doc := freshDoc("note")
	doc.Text = "got the Kitchen Remodel quote back from the contractor"
	scores, err := g.Score(context.Background(), doc, nil, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if scores.Actionability != 1.0 {
		t.Errorf("watchlist match actionability = %.3f, want 1", scores.Actionability)
	}

	doc.Text = "unrelated grocery list"
	scores, err = g.Score(context.Background(), doc, nil, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if scores.Actionability != cfg.ActionabilityFloor {
		t.Errorf("non-match actionability = %.3f, want floor %.3f", scores.Actionability, cfg.ActionabilityFloor)
	}
}

func TestRecencyHalflife(t *testing.T) {
	g := NewQualityGate(gateConfig(), nil, nil)

	now := g.Recency(time.Now())
	if now < 0.99 {
		t.Errorf("fresh document recency = %.3f, want about 1", now)
	}

	halflifeAgo := g.Recency(time.Now().AddDate(0, 0, -182))
	if math.Abs(halflifeAgo-0.5) > 0.01 {
		t.Errorf("half-life-old recency = %.3f, want about 0.5", halflifeAgo)
	}

	ancient := g.Recency(time.Now().AddDate(-10, 0, 0))
	if ancient > 0.01 {
		t.Errorf("decade-old recency = %.3f, want about 0", ancient)
	}
}

func TestGateWithoutDenseSideTreatsAllAsNovel(t *testing.T) {
	g := NewQualityGate(gateConfig(), nil, nil)

	scores, err := g.Score(context.Background(), freshDoc("note"), nil, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if scores.Novelty != 1.0 {
		t.Errorf("without a dense side novelty = %.3f, want 1", scores.Novelty)
	}
	if scores.NeedsReview {
		t.Error("missing dense side is a configuration choice, not a failure")
	}
}
