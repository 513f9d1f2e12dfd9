package port

import "context"

// CrossEncoder scores (query, passage) pairs jointly. The backing model
// is loaded lazily exactly once and shared read-only across concurrent
// queries.
type CrossEncoder interface {
	// Score returns one relevance score per passage, aligned by index.
	Score(ctx context.Context, query string, passages []string) ([]float64, error)

	// ModelName returns the name of the reranking model.
	ModelName() string
}
