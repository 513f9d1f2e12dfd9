package domain

import "time"

// ChunkType classifies the structural origin of a chunk. Unknown hint
// types map to ChunkProse explicitly rather than silently.
type ChunkType string

const (
	ChunkProse          ChunkType = "prose"
	ChunkHeadingSection ChunkType = "heading_section"
	ChunkTable          ChunkType = "table"
	ChunkCodeBlock      ChunkType = "code_block"
	ChunkTurn           ChunkType = "turn"
)

// HintType classifies a structural hint supplied by the document
// processing collaborator.
type HintType string

const (
	HintHeading   HintType = "heading"
	HintTable     HintType = "table"
	HintCodeBlock HintType = "code_block"
	HintTurn      HintType = "turn"
)

// StructuralHint marks a span of document text with structural meaning.
// For headings and turns, Start..End covers the marker line; the section
// it opens extends to the next hint of equal or higher rank. For tables
// and code blocks, Start..End covers the whole block.
type StructuralHint struct {
	Type  HintType
	Start int // byte offset, inclusive
	End   int // byte offset, exclusive
	Level int // heading level, 1 is highest; 0 for non-headings
	Title string
}

// Document is an immutable ingested document. Re-ingestion supersedes
// under a new ID; it never mutates an existing one.
type Document struct {
	ID        string
	Text      string
	Type      string // doc_type, e.g. "email", "note", "chat"
	CreatedAt time.Time
	Hints     []StructuralHint
}

// Chunk is the atomic indexed and retrievable unit.
//
// Sequence is strictly increasing and gapless within a document.
// Start..End are byte offsets into the source text; OverlapLen is the
// number of leading bytes duplicated from the previous chunk's tail.
// Trimming OverlapLen from each chunk and concatenating in sequence
// order reconstructs the source text exactly.
type Chunk struct {
	ID           string
	DocID        string
	Sequence     int
	Text         string
	Type         ChunkType
	SectionTitle string
	HeadingPath  []string
	TokenCount   int
	Start        int
	End          int
	OverlapLen   int
	Tokens       []string
}

// QualityScores gates a document's entry into the searchable corpus.
// All component scores are in [0,1]. Recency is recomputed from
// CreatedAt on read, never stored frozen.
type QualityScores struct {
	DocID         string
	Quality       float64
	Novelty       float64
	Actionability float64
	Recency       float64
	Signalness    float64
	DoIndex       bool
	NeedsReview   bool
}

// Candidate is a transient query-time record carrying a chunk through
// retrieval, fusion, reranking and boosting. Never persisted.
type Candidate struct {
	Chunk       Chunk
	SparseScore float64
	DenseScore  float64
	SparseNorm  float64
	DenseNorm   float64
	FusedScore  float64
	RerankScore float64
	FinalScore  float64
	Recency     float64
	Pinned      bool
	PinOrder    int
	Vector      []float32 // embedding when the candidate came through the dense side
}

// ScoredResult is the terminal output of the query pipeline.
type ScoredResult struct {
	ChunkID      string    `json:"chunk_id"`
	DocID        string    `json:"doc_id"`
	Text         string    `json:"text"`
	SectionTitle string    `json:"section_title,omitempty"`
	Type         ChunkType `json:"chunk_type"`
	Score        float64   `json:"score"`
	Pinned       bool      `json:"pinned,omitempty"`
}

// Feedback is a user feedback record for a document or chunk. Owned by
// the feedback collaborator; the retrieval core only reads it.
type Feedback struct {
	TargetID    string
	Correctness *float64
	Pinned      bool
	PinOrder    int
	ReviewCount int
}

// Posting is one inverted-index entry for a term.
type Posting struct {
	ChunkID string
	TF      int
}

// Stats holds corpus-level aggregates used by BM25 scoring.
type Stats struct {
	TotalDocs   int
	TotalChunks int
	AvgChunkLen float64
	IndexGen    uint64
}

// IngestReceipt is returned by the ingestion surface.
type IngestReceipt struct {
	DocID    string   `json:"doc_id"`
	ChunkIDs []string `json:"chunk_ids"`
	DoIndex  bool     `json:"do_index"`
	Held     bool     `json:"held"`
}
