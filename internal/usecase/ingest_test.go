package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"recall/config"
	"recall/internal/adapter/analyzer"
	"recall/internal/adapter/chunker"
	"recall/internal/adapter/gate"
	"recall/internal/adapter/memstore"
	"recall/internal/domain"
)

func newIngester(store *memstore.MemoryStore, gateCfg config.GateConfig) *Ingester {
	tok := analyzer.NewTokenizer(true)
	return NewIngester(
		store,
		chunker.NewSectionChunker(512, 50, 1024, tok),
		gate.NewQualityGate(gateCfg, nil, nil),
		nil, nil, nil,
		config.IngestConfig{Workers: 2},
	)
}

func noteDoc(id, text string) domain.Document {
	return domain.Document{
		ID:        id,
		Text:      text,
		Type:      "note",
		CreatedAt: time.Now(),
	}
}

func TestIngestIndexesPassingDocument(t *testing.T) {
	store := memstore.NewMemoryStore()
	u := newIngester(store, config.DefaultConfig().Gate)

	receipt, err := u.Ingest(context.Background(), noteDoc("d1", "quarterly budget numbers look solid this year"), 1.0)
	if err != nil {
		t.Fatalf("Ingest() error: %v", err)
	}
	if !receipt.DoIndex || receipt.Held {
		t.Errorf("expected indexed receipt, got %+v", receipt)
	}
	if len(receipt.ChunkIDs) == 0 {
		t.Error("receipt must list the created chunk IDs")
	}

	chunks, err := store.GetChunksByDoc("d1")
	if err != nil || len(chunks) != len(receipt.ChunkIDs) {
		t.Errorf("stored chunks mismatch: %v, %d vs %d", err, len(chunks), len(receipt.ChunkIDs))
	}

	postings, _ := store.GetPostings("budget")
	if len(postings) == 0 {
		t.Error("postings must be written for chunk terms")
	}
}

func TestIngestHoldsLowSignalDocument(t *testing.T) {
	gateCfg := config.DefaultConfig().Gate
	gateCfg.DefaultThreshold = 0.99
	store := memstore.NewMemoryStore()
	u := newIngester(store, gateCfg)

	receipt, err := u.Ingest(context.Background(), noteDoc("d1", "random low value scribble"), 0.1)
	if err != nil {
		t.Fatalf("Ingest() error: %v", err)
	}
	if receipt.DoIndex || !receipt.Held {
		t.Errorf("expected held receipt, got %+v", receipt)
	}

	// Held documents are listable but absent from the index.
	held, _ := store.ListHeld()
	if len(held) != 1 || held[0].ID != "d1" {
		t.Errorf("unexpected held list: %+v", held)
	}
	if _, err := store.GetDoc("d1"); !errors.Is(err, domain.ErrNotFound) {
		t.Error("held document must not be searchable")
	}
}

func TestIngestEmptyDocument(t *testing.T) {
	store := memstore.NewMemoryStore()
	u := newIngester(store, config.DefaultConfig().Gate)

	_, err := u.Ingest(context.Background(), noteDoc("d1", "   \n  "), 1.0)
	if !errors.Is(err, domain.ErrEmptyDocument) {
		t.Errorf("expected ErrEmptyDocument, got %v", err)
	}
	var ingestErr *domain.IngestError
	if !errors.As(err, &ingestErr) || ingestErr.DocID != "d1" {
		t.Errorf("expected IngestError carrying the doc ID, got %v", err)
	}
}

func TestIngestWriteFailureLeavesNoTrace(t *testing.T) {
	store := memstore.NewMemoryStore()
	store.FailWrites = true
	u := newIngester(store, config.DefaultConfig().Gate)

	_, err := u.Ingest(context.Background(), noteDoc("d1", "quarterly budget numbers"), 1.0)
	var ingestErr *domain.IngestError
	if !errors.As(err, &ingestErr) {
		t.Fatalf("expected IngestError, got %v", err)
	}

	stats, _ := store.GetStats()
	if stats.TotalDocs != 0 || stats.TotalChunks != 0 {
		t.Errorf("failed ingest must leave no partial writes: %+v", stats)
	}
}

func TestPromoteHeld(t *testing.T) {
	gateCfg := config.DefaultConfig().Gate
	gateCfg.DefaultThreshold = 0.99
	store := memstore.NewMemoryStore()
	u := newIngester(store, gateCfg)

	if _, err := u.Ingest(context.Background(), noteDoc("d1", "held note about the kitchen remodel"), 0.1); err != nil {
		t.Fatal(err)
	}

	receipt, err := u.PromoteHeld(context.Background(), "d1")
	if err != nil {
		t.Fatalf("PromoteHeld() error: %v", err)
	}
	if !receipt.DoIndex {
		t.Error("promotion must index the document")
	}

	if _, err := store.GetDoc("d1"); err != nil {
		t.Errorf("promoted document must be searchable: %v", err)
	}
	if held, _ := store.ListHeld(); len(held) != 0 {
		t.Errorf("promoted document must leave the held list: %+v", held)
	}

	scores, err := store.GetQuality("d1")
	if err != nil || !scores.DoIndex {
		t.Errorf("quality record must reflect promotion: %+v, %v", scores, err)
	}
}

func TestPromoteHeldUnknownDoc(t *testing.T) {
	store := memstore.NewMemoryStore()
	u := newIngester(store, config.DefaultConfig().Gate)

	if _, err := u.PromoteHeld(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRemovesDocument(t *testing.T) {
	store := memstore.NewMemoryStore()
	u := newIngester(store, config.DefaultConfig().Gate)

	if _, err := u.Ingest(context.Background(), noteDoc("d1", "quarterly budget numbers"), 1.0); err != nil {
		t.Fatal(err)
	}
	if err := u.Delete(context.Background(), "d1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	if _, err := store.GetDoc("d1"); !errors.Is(err, domain.ErrNotFound) {
		t.Error("deleted document must be gone")
	}
	if postings, _ := store.GetPostings("budget"); len(postings) != 0 {
		t.Error("deletion must cascade to postings")
	}
}
