// Package usecase wires the adapters into the two public operations:
// ingest and search.
package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"recall/config"
	"recall/internal/adapter/gate"
	"recall/internal/adapter/markdown"
	"recall/internal/domain"
	"recall/internal/logger"
	"recall/internal/port"
)

// Ingester runs the ingestion pipeline: chunk, score, then index or
// hold. Documents are immutable; re-ingestion creates a new document.
type Ingester struct {
	store    port.IndexStore
	chunker  port.Chunker
	gate     *gate.QualityGate
	embedder port.Embedder
	vectors  port.VectorIndex
	walker   port.FileWalker
	workers  int
}

func NewIngester(store port.IndexStore, chunker port.Chunker, g *gate.QualityGate, embedder port.Embedder, vectors port.VectorIndex, walker port.FileWalker, cfg config.IngestConfig) *Ingester {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Ingester{
		store:    store,
		chunker:  chunker,
		gate:     g,
		embedder: embedder,
		vectors:  vectors,
		walker:   walker,
		workers:  workers,
	}
}

// Ingest chunks and scores one document. Passing documents are
// committed atomically; failing ones are held for review. The quality
// score comes from the enrichment collaborator (1.0 for plain text
// files read directly).
func (u *Ingester) Ingest(ctx context.Context, doc domain.Document, quality float64) (domain.IngestReceipt, error) {
	receipt := domain.IngestReceipt{DocID: doc.ID}

	chunks, err := u.chunker.Chunk(doc)
	if err != nil {
		return receipt, &domain.IngestError{DocID: doc.ID, Err: err}
	}

	scores, err := u.gate.Score(ctx, doc, chunks, quality)
	if err != nil {
		return receipt, &domain.IngestError{DocID: doc.ID, Err: err}
	}

	if !scores.DoIndex {
		if err := u.store.HoldDocument(doc, scores); err != nil {
			return receipt, &domain.IngestError{DocID: doc.ID, Err: err}
		}
		receipt.Held = true
		return receipt, nil
	}

	if err := u.index(ctx, doc, chunks, scores); err != nil {
		return receipt, &domain.IngestError{DocID: doc.ID, Err: err}
	}

	receipt.DoIndex = true
	for _, c := range chunks {
		receipt.ChunkIDs = append(receipt.ChunkIDs, c.ID)
	}
	return receipt, nil
}

// index commits the sparse side in one transaction, then pushes
// vectors. A dense-side failure after the sparse commit is degraded,
// not rolled back: the chunks stay lexically searchable and the vector
// store catches up on the next successful upsert.
func (u *Ingester) index(ctx context.Context, doc domain.Document, chunks []domain.Chunk, scores domain.QualityScores) error {
	postings := make(map[string]map[string]int)
	for _, chunk := range chunks {
		for _, token := range chunk.Tokens {
			if postings[token] == nil {
				postings[token] = make(map[string]int)
			}
			postings[token][chunk.ID]++
		}
	}

	err := u.store.IndexDocument(port.IndexedDocument{
		Doc:      doc,
		Chunks:   chunks,
		Postings: postings,
		Quality:  scores,
	})
	if err != nil {
		return fmt.Errorf("index write failed: %w", err)
	}

	if u.embedder != nil && u.vectors != nil {
		if err := u.upsertVectors(ctx, doc.ID, chunks); err != nil {
			logger.Degraded("ingest", "vector upsert failed for %s, sparse only: %v", doc.ID, err)
		}
	}

	return nil
}

func (u *Ingester) upsertVectors(ctx context.Context, docID string, chunks []domain.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	embeddings, err := u.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	items := make([]port.VectorItem, len(chunks))
	for i, c := range chunks {
		items[i] = port.VectorItem{ChunkID: c.ID, DocID: docID, Vector: embeddings[i]}
	}
	return u.vectors.Upsert(ctx, items)
}

// Delete removes a document from both index sides.
func (u *Ingester) Delete(ctx context.Context, docID string) error {
	if err := u.store.DeleteDocument(docID); err != nil {
		return err
	}
	if u.vectors != nil {
		if err := u.vectors.DeleteDoc(ctx, docID); err != nil {
			logger.Degraded("ingest", "vector delete failed for %s: %v", docID, err)
		}
	}
	return nil
}

// PromoteHeld moves a held document into the index, bypassing the
// gate. The stored quality record keeps its original scores with
// DoIndex flipped.
func (u *Ingester) PromoteHeld(ctx context.Context, docID string) (domain.IngestReceipt, error) {
	receipt := domain.IngestReceipt{DocID: docID}

	doc, scores, err := u.store.GetHeld(docID)
	if err != nil {
		return receipt, err
	}

	chunks, err := u.chunker.Chunk(doc)
	if err != nil {
		return receipt, &domain.IngestError{DocID: docID, Err: err}
	}

	scores.DoIndex = true
	scores.NeedsReview = false
	if err := u.index(ctx, doc, chunks, scores); err != nil {
		return receipt, &domain.IngestError{DocID: docID, Err: err}
	}
	if err := u.store.ReleaseHeld(docID); err != nil {
		return receipt, err
	}

	receipt.DoIndex = true
	for _, c := range chunks {
		receipt.ChunkIDs = append(receipt.ChunkIDs, c.ID)
	}
	return receipt, nil
}

// DirResult aggregates a directory ingestion run.
type DirResult struct {
	Indexed int
	Held    int
	Failed  int
	Errors  []string
}

// IngestFile reads one file from disk, synthesizing markdown hints.
func (u *Ingester) IngestFile(ctx context.Context, path string, modTime time.Time) (domain.IngestReceipt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.IngestReceipt{}, err
	}

	text := string(data)
	doc := domain.Document{
		ID:        uuid.NewString(),
		Text:      text,
		Type:      docTypeFor(path),
		CreatedAt: modTime,
		Hints:     markdown.Hints(text),
	}
	return u.Ingest(ctx, doc, 1.0)
}

// IngestDir walks a directory and ingests matching files with a
// bounded worker pool. Single-document failures are collected, never
// fatal to the run. progress may be nil.
func (u *Ingester) IngestDir(ctx context.Context, root string, progress func()) (*DirResult, error) {
	files, err := u.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	result := &DirResult{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, u.workers)

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(f port.FileInfo) {
			defer wg.Done()
			defer func() { <-sem }()

			receipt, err := u.IngestFile(ctx, f.Path, time.Unix(f.ModTime, 0))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", f.Path, err))
			case receipt.Held:
				result.Held++
			default:
				result.Indexed++
			}
			if progress != nil {
				progress()
			}
		}(file)
	}
	wg.Wait()

	return result, nil
}

// NumFiles returns how many files a directory ingestion would touch.
func (u *Ingester) NumFiles(root string) (int, error) {
	files, err := u.walker.Walk(root)
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

func docTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".eml":
		return "email"
	case ".md", ".markdown":
		return "note"
	case ".txt":
		return "note"
	default:
		return "note"
	}
}
