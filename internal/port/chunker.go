package port

import "recall/internal/domain"

// Chunker splits a document's text into ordered, semantically bounded
// chunks. Chunking is deterministic: identical input yields identical
// boundaries.
type Chunker interface {
	Chunk(doc domain.Document) ([]domain.Chunk, error)
}
