// Package memstore is an in-memory IndexStore used by tests and
// throwaway runs. Semantics mirror the bbolt store, including atomic
// per-document writes.
package memstore

import (
	"fmt"
	"sync"

	"recall/internal/domain"
	"recall/internal/port"
)

type MemoryStore struct {
	mu        sync.RWMutex
	docs      map[string]domain.Document
	chunks    map[string]domain.Chunk
	docChunks map[string][]string
	postings  map[string][]domain.Posting
	held      map[string]domain.Document
	quality   map[string]domain.QualityScores
	feedback  map[string]domain.Feedback
	pinSeq    int
	tokenSum  int
	indexGen  uint64

	// FailWrites makes IndexDocument fail before mutating anything,
	// for rollback tests.
	FailWrites bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:      make(map[string]domain.Document),
		chunks:    make(map[string]domain.Chunk),
		docChunks: make(map[string][]string),
		postings:  make(map[string][]domain.Posting),
		held:      make(map[string]domain.Document),
		quality:   make(map[string]domain.QualityScores),
		feedback:  make(map[string]domain.Feedback),
	}
}

func (s *MemoryStore) IndexDocument(entry port.IndexedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites {
		return fmt.Errorf("simulated write failure")
	}

	s.docs[entry.Doc.ID] = entry.Doc
	ids := make([]string, 0, len(entry.Chunks))
	for _, chunk := range entry.Chunks {
		s.chunks[chunk.ID] = chunk
		ids = append(ids, chunk.ID)
		s.tokenSum += len(chunk.Tokens)
	}
	s.docChunks[entry.Doc.ID] = ids

	for term, chunkTFs := range entry.Postings {
		for chunkID, tf := range chunkTFs {
			s.postings[term] = append(s.postings[term], domain.Posting{ChunkID: chunkID, TF: tf})
		}
	}

	if entry.Quality.DocID != "" {
		s.quality[entry.Quality.DocID] = entry.Quality
	}
	s.indexGen++
	return nil
}

func (s *MemoryStore) DeleteDocument(docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doomed := make(map[string]struct{})
	for _, id := range s.docChunks[docID] {
		doomed[id] = struct{}{}
		if chunk, ok := s.chunks[id]; ok {
			s.tokenSum -= len(chunk.Tokens)
		}
		delete(s.chunks, id)
	}

	for term, list := range s.postings {
		filtered := list[:0]
		for _, p := range list {
			if _, drop := doomed[p.ChunkID]; !drop {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) == 0 {
			delete(s.postings, term)
		} else {
			s.postings[term] = filtered
		}
	}

	delete(s.docChunks, docID)
	delete(s.docs, docID)
	delete(s.held, docID)
	delete(s.quality, docID)
	s.indexGen++
	return nil
}

func (s *MemoryStore) GetDoc(id string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return domain.Document{}, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return doc, nil
}

func (s *MemoryStore) ListDocs() ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *MemoryStore) GetChunk(id string) (domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.chunks[id]
	if !ok {
		return domain.Chunk{}, fmt.Errorf("chunk %s: %w", id, domain.ErrNotFound)
	}
	return chunk, nil
}

func (s *MemoryStore) GetChunksByDoc(docID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := make([]domain.Chunk, 0, len(s.docChunks[docID]))
	for _, id := range s.docChunks[docID] {
		if chunk, ok := s.chunks[id]; ok {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

func (s *MemoryStore) GetPostings(term string) ([]domain.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.postings[term], nil
}

func (s *MemoryStore) GetStats() (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	avg := 0.0
	if len(s.chunks) > 0 {
		avg = float64(s.tokenSum) / float64(len(s.chunks))
	}
	return domain.Stats{
		TotalDocs:   len(s.docs),
		TotalChunks: len(s.chunks),
		AvgChunkLen: avg,
		IndexGen:    s.indexGen,
	}, nil
}

func (s *MemoryStore) HoldDocument(doc domain.Document, scores domain.QualityScores) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held[doc.ID] = doc
	if scores.DocID != "" {
		s.quality[scores.DocID] = scores
	}
	return nil
}

func (s *MemoryStore) ListHeld() ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.Document, 0, len(s.held))
	for _, doc := range s.held {
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *MemoryStore) GetHeld(docID string) (domain.Document, domain.QualityScores, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.held[docID]
	if !ok {
		return domain.Document{}, domain.QualityScores{}, fmt.Errorf("held document %s: %w", docID, domain.ErrNotFound)
	}
	return doc, s.quality[docID], nil
}

func (s *MemoryStore) ReleaseHeld(docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, docID)
	return nil
}

func (s *MemoryStore) PutQuality(scores domain.QualityScores) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quality[scores.DocID] = scores
	return nil
}

func (s *MemoryStore) GetQuality(docID string) (domain.QualityScores, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scores, ok := s.quality[docID]
	if !ok {
		return domain.QualityScores{}, fmt.Errorf("quality for %s: %w", docID, domain.ErrNotFound)
	}
	return scores, nil
}

func (s *MemoryStore) PutFeedback(fb domain.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.feedback[fb.TargetID]
	switch {
	case fb.Pinned && prev.Pinned:
		fb.PinOrder = prev.PinOrder
	case fb.Pinned:
		s.pinSeq++
		fb.PinOrder = s.pinSeq
	default:
		fb.PinOrder = 0
	}
	s.feedback[fb.TargetID] = fb
	return nil
}

func (s *MemoryStore) Lookup(targetID string) (domain.Feedback, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fb, ok := s.feedback[targetID]
	return fb, ok
}

func (s *MemoryStore) Close() error {
	return nil
}
