package port

import "recall/internal/domain"

// FeedbackStore exposes user feedback records. The records are owned
// and mutated by the feedback collaborator; the retrieval core only
// reads them at query time.
type FeedbackStore interface {
	// Lookup returns feedback for the target (chunk or document) ID, or
	// ok=false when none exists.
	Lookup(targetID string) (domain.Feedback, bool)
}
