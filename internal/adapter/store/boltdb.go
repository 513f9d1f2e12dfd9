// Package store persists the sparse index in a single bbolt database.
// All writes for one document happen inside one transaction, so an
// ingest either commits completely or leaves no trace.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"recall/internal/domain"
	"recall/internal/port"
)

var (
	bucketDocs      = []byte("docs")
	bucketChunks    = []byte("chunks")
	bucketBlobs     = []byte("blobs")
	bucketTerms     = []byte("terms")
	bucketDocChunks = []byte("doc_chunks")
	bucketStats     = []byte("stats")
	bucketHeld      = []byte("held")
	bucketQuality   = []byte("quality")
	bucketFeedback  = []byte("feedback")
	keyStats        = []byte("corpus_stats")
	keyPinSeq       = []byte("pin_seq")
)

type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{
			bucketDocs, bucketChunks, bucketBlobs, bucketTerms,
			bucketDocChunks, bucketStats, bucketHeld, bucketQuality,
			bucketFeedback,
		}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

type docMeta struct {
	Type      string                  `json:"type"`
	CreatedAt int64                   `json:"created_at"`
	Text      string                  `json:"text"`
	Hints     []domain.StructuralHint `json:"hints,omitempty"`
}

type chunkMeta struct {
	DocID        string           `json:"doc_id"`
	Sequence     int              `json:"seq"`
	Type         domain.ChunkType `json:"type"`
	SectionTitle string           `json:"section_title,omitempty"`
	HeadingPath  []string         `json:"heading_path,omitempty"`
	TokenCount   int              `json:"token_count"`
	Start        int              `json:"start"`
	End          int              `json:"end"`
	OverlapLen   int              `json:"overlap_len"`
	Tokens       []string         `json:"tokens"`
}

type persistedStats struct {
	TotalDocs   int    `json:"total_docs"`
	TotalChunks int    `json:"total_chunks"`
	TokenSum    int    `json:"token_sum"`
	IndexGen    uint64 `json:"index_gen"`
}

func encodeDoc(doc domain.Document) ([]byte, error) {
	return json.Marshal(docMeta{
		Type:      doc.Type,
		CreatedAt: doc.CreatedAt.Unix(),
		Text:      doc.Text,
		Hints:     doc.Hints,
	})
}

func decodeDoc(id string, data []byte) (domain.Document, error) {
	var meta docMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return domain.Document{}, err
	}
	return domain.Document{
		ID:        id,
		Text:      meta.Text,
		Type:      meta.Type,
		CreatedAt: time.Unix(meta.CreatedAt, 0).UTC(),
		Hints:     meta.Hints,
	}, nil
}

// IndexDocument commits one document's chunks, postings and quality
// record in a single transaction.
func (s *BoltStore) IndexDocument(entry port.IndexedDocument) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := encodeDoc(entry.Doc)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketDocs).Put([]byte(entry.Doc.ID), data); err != nil {
			return err
		}

		chunksBucket := tx.Bucket(bucketChunks)
		blobsBucket := tx.Bucket(bucketBlobs)

		chunkIDs := make([]string, 0, len(entry.Chunks))
		tokenSum := 0
		for _, chunk := range entry.Chunks {
			meta := chunkMeta{
				DocID:        chunk.DocID,
				Sequence:     chunk.Sequence,
				Type:         chunk.Type,
				SectionTitle: chunk.SectionTitle,
				HeadingPath:  chunk.HeadingPath,
				TokenCount:   chunk.TokenCount,
				Start:        chunk.Start,
				End:          chunk.End,
				OverlapLen:   chunk.OverlapLen,
				Tokens:       chunk.Tokens,
			}
			data, err := json.Marshal(meta)
			if err != nil {
				return err
			}
			if err := chunksBucket.Put([]byte(chunk.ID), data); err != nil {
				return err
			}
			if err := blobsBucket.Put([]byte(chunk.ID), []byte(chunk.Text)); err != nil {
				return err
			}
			chunkIDs = append(chunkIDs, chunk.ID)
			tokenSum += len(chunk.Tokens)
		}

		idsData, err := json.Marshal(chunkIDs)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketDocChunks).Put([]byte(entry.Doc.ID), idsData); err != nil {
			return err
		}

		termsBucket := tx.Bucket(bucketTerms)
		for term, chunkTFs := range entry.Postings {
			var postings []domain.Posting
			if data := termsBucket.Get([]byte(term)); data != nil {
				if err := json.Unmarshal(data, &postings); err != nil {
					return err
				}
			}
			for chunkID, tf := range chunkTFs {
				postings = append(postings, domain.Posting{ChunkID: chunkID, TF: tf})
			}
			data, err := json.Marshal(postings)
			if err != nil {
				return err
			}
			if err := termsBucket.Put([]byte(term), data); err != nil {
				return err
			}
		}

		if err := putQualityTx(tx, entry.Quality); err != nil {
			return err
		}

		return adjustStatsTx(tx, 1, len(entry.Chunks), tokenSum)
	})
}

// DeleteDocument removes a document and all of its chunks and postings
// in a single transaction.
func (s *BoltStore) DeleteDocument(docID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		idsData := tx.Bucket(bucketDocChunks).Get([]byte(docID))
		if idsData == nil {
			// Maybe only held; drop that too.
			tx.Bucket(bucketHeld).Delete([]byte(docID))
			tx.Bucket(bucketQuality).Delete([]byte(docID))
			return tx.Bucket(bucketDocs).Delete([]byte(docID))
		}

		var chunkIDs []string
		if err := json.Unmarshal(idsData, &chunkIDs); err != nil {
			return err
		}

		chunksBucket := tx.Bucket(bucketChunks)
		blobsBucket := tx.Bucket(bucketBlobs)
		termsBucket := tx.Bucket(bucketTerms)

		removed := make(map[string]struct{}, len(chunkIDs))
		tokenSum := 0
		for _, id := range chunkIDs {
			removed[id] = struct{}{}
			if data := chunksBucket.Get([]byte(id)); data != nil {
				var meta chunkMeta
				if err := json.Unmarshal(data, &meta); err == nil {
					tokenSum += len(meta.Tokens)
					for _, term := range uniqueTerms(meta.Tokens) {
						if err := removePosting(termsBucket, term, removed); err != nil {
							return err
						}
					}
				}
			}
			if err := chunksBucket.Delete([]byte(id)); err != nil {
				return err
			}
			if err := blobsBucket.Delete([]byte(id)); err != nil {
				return err
			}
		}

		if err := tx.Bucket(bucketDocChunks).Delete([]byte(docID)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketQuality).Delete([]byte(docID)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketDocs).Delete([]byte(docID)); err != nil {
			return err
		}

		return adjustStatsTx(tx, -1, -len(chunkIDs), -tokenSum)
	})
}

func uniqueTerms(tokens []string) []string {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	terms := make([]string, 0, len(set))
	for t := range set {
		terms = append(terms, t)
	}
	return terms
}

func removePosting(termsBucket *bbolt.Bucket, term string, chunkIDs map[string]struct{}) error {
	data := termsBucket.Get([]byte(term))
	if data == nil {
		return nil
	}
	var postings []domain.Posting
	if err := json.Unmarshal(data, &postings); err != nil {
		return err
	}

	filtered := postings[:0]
	for _, p := range postings {
		if _, drop := chunkIDs[p.ChunkID]; !drop {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == len(postings) {
		return nil
	}
	if len(filtered) == 0 {
		return termsBucket.Delete([]byte(term))
	}
	out, err := json.Marshal(filtered)
	if err != nil {
		return err
	}
	return termsBucket.Put([]byte(term), out)
}

func (s *BoltStore) GetDoc(id string) (domain.Document, error) {
	var doc domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocs).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
		}
		var err error
		doc, err = decodeDoc(id, data)
		return err
	})
	return doc, err
}

func (s *BoltStore) ListDocs() ([]domain.Document, error) {
	var docs []domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			doc, err := decodeDoc(string(k), v)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
			return nil
		})
	})
	return docs, err
}

func (s *BoltStore) GetChunk(id string) (domain.Chunk, error) {
	var chunk domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		chunk, err = getChunkTx(tx, id)
		return err
	})
	return chunk, err
}

func getChunkTx(tx *bbolt.Tx, id string) (domain.Chunk, error) {
	data := tx.Bucket(bucketChunks).Get([]byte(id))
	if data == nil {
		return domain.Chunk{}, fmt.Errorf("chunk %s: %w", id, domain.ErrNotFound)
	}
	var meta chunkMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return domain.Chunk{}, err
	}
	text := tx.Bucket(bucketBlobs).Get([]byte(id))
	return domain.Chunk{
		ID:           id,
		DocID:        meta.DocID,
		Sequence:     meta.Sequence,
		Text:         string(text),
		Type:         meta.Type,
		SectionTitle: meta.SectionTitle,
		HeadingPath:  meta.HeadingPath,
		TokenCount:   meta.TokenCount,
		Start:        meta.Start,
		End:          meta.End,
		OverlapLen:   meta.OverlapLen,
		Tokens:       meta.Tokens,
	}, nil
}

func (s *BoltStore) GetChunksByDoc(docID string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocChunks).Get([]byte(docID))
		if data == nil {
			return nil
		}
		var chunkIDs []string
		if err := json.Unmarshal(data, &chunkIDs); err != nil {
			return err
		}
		for _, id := range chunkIDs {
			chunk, err := getChunkTx(tx, id)
			if err != nil {
				continue
			}
			chunks = append(chunks, chunk)
		}
		return nil
	})
	return chunks, err
}

func (s *BoltStore) GetPostings(term string) ([]domain.Posting, error) {
	var postings []domain.Posting
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketTerms).Get([]byte(term))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &postings)
	})
	return postings, err
}

func (s *BoltStore) GetStats() (domain.Stats, error) {
	var stats domain.Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketStats).Get(keyStats)
		if data == nil {
			return nil
		}
		var p persistedStats
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		stats = p.toDomain()
		return nil
	})
	return stats, err
}

func (p persistedStats) toDomain() domain.Stats {
	avg := 0.0
	if p.TotalChunks > 0 {
		avg = float64(p.TokenSum) / float64(p.TotalChunks)
	}
	return domain.Stats{
		TotalDocs:   p.TotalDocs,
		TotalChunks: p.TotalChunks,
		AvgChunkLen: avg,
		IndexGen:    p.IndexGen,
	}
}

func adjustStatsTx(tx *bbolt.Tx, docs, chunks, tokens int) error {
	b := tx.Bucket(bucketStats)
	var p persistedStats
	if data := b.Get(keyStats); data != nil {
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
	}
	p.TotalDocs += docs
	p.TotalChunks += chunks
	p.TokenSum += tokens
	p.IndexGen++
	if p.TotalDocs < 0 {
		p.TotalDocs = 0
	}
	if p.TotalChunks < 0 {
		p.TotalChunks = 0
		p.TokenSum = 0
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return b.Put(keyStats, data)
}

// HoldDocument retains a gated-out document outside the index. Held
// documents are absent from search but listable and promotable.
func (s *BoltStore) HoldDocument(doc domain.Document, scores domain.QualityScores) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := encodeDoc(doc)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketHeld).Put([]byte(doc.ID), data); err != nil {
			return err
		}
		return putQualityTx(tx, scores)
	})
}

func (s *BoltStore) ListHeld() ([]domain.Document, error) {
	var docs []domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketHeld).ForEach(func(k, v []byte) error {
			doc, err := decodeDoc(string(k), v)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
			return nil
		})
	})
	return docs, err
}

func (s *BoltStore) GetHeld(docID string) (domain.Document, domain.QualityScores, error) {
	var doc domain.Document
	var scores domain.QualityScores
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketHeld).Get([]byte(docID))
		if data == nil {
			return fmt.Errorf("held document %s: %w", docID, domain.ErrNotFound)
		}
		var err error
		doc, err = decodeDoc(docID, data)
		if err != nil {
			return err
		}
		if qData := tx.Bucket(bucketQuality).Get([]byte(docID)); qData != nil {
			return json.Unmarshal(qData, &scores)
		}
		return nil
	})
	return doc, scores, err
}

func (s *BoltStore) ReleaseHeld(docID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketHeld).Delete([]byte(docID))
	})
}

func putQualityTx(tx *bbolt.Tx, scores domain.QualityScores) error {
	if scores.DocID == "" {
		return nil
	}
	data, err := json.Marshal(scores)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketQuality).Put([]byte(scores.DocID), data)
}

func (s *BoltStore) PutQuality(scores domain.QualityScores) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putQualityTx(tx, scores)
	})
}

func (s *BoltStore) GetQuality(docID string) (domain.QualityScores, error) {
	var scores domain.QualityScores
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketQuality).Get([]byte(docID))
		if data == nil {
			return fmt.Errorf("quality for %s: %w", docID, domain.ErrNotFound)
		}
		return json.Unmarshal(data, &scores)
	})
	return scores, err
}

// PutFeedback stores a feedback record. A newly pinned target gets the
// next pin order; unpinning clears it. Correctness and review count
// are taken as given.
func (s *BoltStore) PutFeedback(fb domain.Feedback) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketFeedback)

		var prev domain.Feedback
		if data := b.Get([]byte(fb.TargetID)); data != nil {
			if err := json.Unmarshal(data, &prev); err != nil {
				return err
			}
		}

		switch {
		case fb.Pinned && prev.Pinned:
			fb.PinOrder = prev.PinOrder
		case fb.Pinned:
			seq := uint64(0)
			if data := b.Get(keyPinSeq); data != nil {
				if err := json.Unmarshal(data, &seq); err != nil {
					return err
				}
			}
			seq++
			seqData, err := json.Marshal(seq)
			if err != nil {
				return err
			}
			if err := b.Put(keyPinSeq, seqData); err != nil {
				return err
			}
			fb.PinOrder = int(seq)
		default:
			fb.PinOrder = 0
		}

		data, err := json.Marshal(fb)
		if err != nil {
			return err
		}
		return b.Put([]byte(fb.TargetID), data)
	})
}

// Lookup implements port.FeedbackStore.
func (s *BoltStore) Lookup(targetID string) (domain.Feedback, bool) {
	var fb domain.Feedback
	found := false
	s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketFeedback).Get([]byte(targetID))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &fb); err != nil {
			return nil
		}
		found = true
		return nil
	})
	return fb, found
}
