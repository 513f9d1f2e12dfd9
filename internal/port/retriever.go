package port

import (
	"context"

	"recall/internal/domain"
)

// Retriever searches the indexed corpus and returns scored candidates.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]domain.Candidate, error)
}
