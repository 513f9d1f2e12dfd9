package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDocument is reported when a document yields zero chunks.
	ErrEmptyDocument = errors.New("empty document")

	// ErrNotFound is reported for missing documents, chunks or records.
	ErrNotFound = errors.New("not found")

	// ErrMalformedHints marks structural hints that were discarded
	// (overlapping or out-of-range spans). Ingestion continues without
	// them; this error is only logged.
	ErrMalformedHints = errors.New("malformed structural hints")
)

// IngestError wraps a failure that rolled back a document's index
// writes. The caller may retry the whole document.
type IngestError struct {
	DocID string
	Err   error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest failed for document %s: %v", e.DocID, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}
