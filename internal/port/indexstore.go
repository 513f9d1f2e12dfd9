package port

import "recall/internal/domain"

// IndexStore persists documents, chunks, postings and corpus stats.
//
// IndexDocument and DeleteDocument are atomic per document: either all
// of a document's chunks and postings are committed, or none are.
type IndexStore interface {
	IndexDocument(entry IndexedDocument) error

	DeleteDocument(docID string) error

	GetDoc(id string) (domain.Document, error)

	ListDocs() ([]domain.Document, error)

	GetChunk(id string) (domain.Chunk, error)

	GetChunksByDoc(docID string) ([]domain.Chunk, error)

	GetPostings(term string) ([]domain.Posting, error)

	GetStats() (domain.Stats, error)

	// HoldDocument retains a gated-out document outside the index so it
	// can be promoted manually later.
	HoldDocument(doc domain.Document, scores domain.QualityScores) error

	ListHeld() ([]domain.Document, error)

	GetHeld(docID string) (domain.Document, domain.QualityScores, error)

	ReleaseHeld(docID string) error

	PutQuality(scores domain.QualityScores) error

	GetQuality(docID string) (domain.QualityScores, error)

	Close() error
}

// IndexedDocument is one document's complete index contribution,
// committed in a single transaction.
type IndexedDocument struct {
	Doc      domain.Document
	Chunks   []domain.Chunk
	Postings map[string]map[string]int // term -> chunk ID -> tf
	Quality  domain.QualityScores
}
