// Package gate decides whether a scored document enters the
// searchable corpus or gets held for manual review.
package gate

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"recall/config"
	"recall/internal/domain"
	"recall/internal/logger"
	"recall/internal/port"
)

// QualityGate combines externally supplied quality with computed
// novelty, actionability and recency into a single signalness score
// checked against the per-document-type threshold.
//
// Quality itself comes from the enrichment collaborator; the gate only
// consumes it.
type QualityGate struct {
	cfg      config.GateConfig
	vectors  port.VectorIndex
	embedder port.Embedder
	now      func() time.Time
}

func NewQualityGate(cfg config.GateConfig, vectors port.VectorIndex, embedder port.Embedder) *QualityGate {
	return &QualityGate{
		cfg:      cfg,
		vectors:  vectors,
		embedder: embedder,
		now:      time.Now,
	}
}

// Score computes QualityScores for a chunked document. A failed
// novelty lookup never indexes silently: the document is flagged for
// review with DoIndex false.
func (g *QualityGate) Score(ctx context.Context, doc domain.Document, chunks []domain.Chunk, quality float64) (domain.QualityScores, error) {
	scores := domain.QualityScores{
		DocID:         doc.ID,
		Quality:       clamp01(quality),
		Actionability: g.actionability(doc),
		Recency:       g.Recency(doc.CreatedAt),
	}

	novelty, err := g.novelty(ctx, doc, chunks)
	if err != nil {
		logger.Degraded("gate", "novelty lookup failed for %s, holding for review: %v", doc.ID, err)
		scores.NeedsReview = true
		scores.DoIndex = false
		return scores, nil
	}
	scores.Novelty = novelty

	scores.Signalness = g.cfg.QualityWeight*scores.Quality +
		g.cfg.NoveltyWeight*scores.Novelty +
		g.cfg.ActionabilityWeight*scores.Actionability +
		g.cfg.RecencyWeight*scores.Recency

	scores.DoIndex = scores.Signalness >= g.cfg.Threshold(doc.Type)
	return scores, nil
}

// novelty is 1 minus the best similarity against the existing corpus.
// A re-ingested duplicate lands near 0.
func (g *QualityGate) novelty(ctx context.Context, doc domain.Document, chunks []domain.Chunk) (float64, error) {
	if g.vectors == nil || g.embedder == nil {
		// No dense side configured: nothing to compare against, treat
		// everything as novel rather than holding every document.
		return 1, nil
	}

	text := doc.Text
	if len(text) > 8000 {
		text = text[:8000]
	}
	embeddings, err := g.embedder.Embed(ctx, []string{text})
	if err != nil {
		return 0, fmt.Errorf("embedding for novelty failed: %w", err)
	}
	if len(embeddings) == 0 {
		return 1, nil
	}

	matches, err := g.vectors.Query(ctx, embeddings[0], g.cfg.NoveltyNeighbors)
	if err != nil {
		return 0, fmt.Errorf("novelty lookup failed: %w", err)
	}

	maxSim := 0.0
	for _, m := range matches {
		// Skip the document's own chunks on re-scoring.
		if strings.HasPrefix(m.ChunkID, doc.ID) {
			continue
		}
		if m.Similarity > maxSim {
			maxSim = m.Similarity
		}
	}
	return clamp01(1 - maxSim), nil
}

func (g *QualityGate) actionability(doc domain.Document) float64 {
	text := strings.ToLower(doc.Text)
	for _, term := range g.cfg.Watchlist {
		if term != "" && strings.Contains(text, strings.ToLower(term)) {
			return 1
		}
	}
	return g.cfg.ActionabilityFloor
}

// Recency is exponential decay from CreatedAt with a configurable
// half-life. Computed fresh on every call, never stored frozen.
func (g *QualityGate) Recency(createdAt time.Time) float64 {
	ageDays := g.now().Sub(createdAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	halflife := g.cfg.RecencyHalflifeDays
	if halflife <= 0 {
		halflife = 182
	}
	lambda := math.Ln2 / halflife
	return math.Exp(-lambda * ageDays)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
