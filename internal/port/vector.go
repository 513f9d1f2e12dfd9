package port

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts, one vector per
	// input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorIndex is the thin client interface to the nearest-neighbor
// vector store. The store itself is an external collaborator; this core
// never reimplements approximate search.
type VectorIndex interface {
	// Upsert adds or updates chunk vectors.
	Upsert(ctx context.Context, items []VectorItem) error

	// Query finds the k nearest vectors to the query vector.
	Query(ctx context.Context, vector []float32, k int) ([]VectorMatch, error)

	// DeleteDoc removes all vectors belonging to a document.
	DeleteDoc(ctx context.Context, docID string) error
}

// VectorItem is a chunk vector to be stored.
type VectorItem struct {
	ChunkID string
	DocID   string
	Vector  []float32
}

// VectorMatch is a nearest-neighbor result.
type VectorMatch struct {
	ChunkID    string
	Similarity float64
	Vector     []float32 // populated when the store returns vectors, used for MMR
}
