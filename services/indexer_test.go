package services

import (
	"context"
	"strings"
	"testing"

	"pdf-chat-platform/internal/ai"
	"pdf-chat-platform/internal/vector"
	"pdf-chat-platform/models"
)

// fakeEmbedder produces deterministic vectors and can be told to fail.
type fakeEmbedder struct {
	dim       int
	calls     int
	failAfter int // fail on call number failAfter (1-based); 0 means never
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.failAfter > 0 && f.calls >= f.failAfter {
		return nil, &ai.ProviderError{Provider: "fake", Status: 503, Message: "unavailable"}
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, f.dim)
		v[0] = float32(len(t))
		v[1] = 1
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vs, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

func newTestIndexer(t *testing.T, emb ai.Embedder, pages []models.Page) (*Indexer, vector.Store) {
	t.Helper()
	store := vector.NewMemoryStore()
	chunker, err := NewChunker(120, 30)
	if err != nil {
		t.Fatal(err)
	}
	ix := NewIndexer(emb, store, chunker, 3, nil)
	ix.extract = func([]byte) ([]models.Page, error) { return pages, nil }
	return ix, store
}

func somePages() []models.Page {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20)
	return []models.Page{
		{Number: 1, Text: text},
		{Number: 2, Text: text},
	}
}

func TestBuildOrLoadIndexesAndReuses(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{dim: 8}
	ix, store := newTestIndexer(t, emb, somePages())

	data := []byte("%PDF-fake")
	res, err := ix.BuildOrLoad(ctx, "alice", "report.pdf", data, nil, false)
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	if res.Reused {
		t.Fatal("first build reported reuse")
	}
	if res.ChunkCount == 0 {
		t.Fatal("no chunks indexed")
	}
	count, err := store.Count(ctx, res.Collection)
	if err != nil {
		t.Fatal(err)
	}
	if count != res.ChunkCount {
		t.Fatalf("store holds %d points, result says %d", count, res.ChunkCount)
	}

	record := &models.PDF{
		FileHash:   res.FileHash,
		Pages:      res.Pages,
		ChunkCount: res.ChunkCount,
	}
	callsBefore := emb.calls

	again, err := ix.BuildOrLoad(ctx, "alice", "report.pdf", data, record, false)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if !again.Reused {
		t.Fatal("unchanged content was reindexed")
	}
	if emb.calls != callsBefore {
		t.Fatal("reuse path called the embedder")
	}

	// rebuild forces a fresh index even with a matching hash
	forced, err := ix.BuildOrLoad(ctx, "alice", "report.pdf", data, record, true)
	if err != nil {
		t.Fatalf("forced rebuild: %v", err)
	}
	if forced.Reused {
		t.Fatal("rebuild=true still reused the index")
	}
}

func TestBuildOrLoadRejectsEmptyDocument(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{dim: 8}
	ix, store := newTestIndexer(t, emb, []models.Page{{Number: 1, Text: "   "}})

	_, err := ix.BuildOrLoad(ctx, "bob", "blank.pdf", []byte("%PDF-fake"), nil, false)
	if err == nil {
		t.Fatal("expected error for document without text")
	}
	exists, err := store.Exists(ctx, vector.CollectionName("bob", "blank.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("empty document left a collection behind")
	}
}

func TestBuildOrLoadCleansUpOnEmbedderFailure(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{dim: 8, failAfter: 2}
	ix, store := newTestIndexer(t, emb, somePages())

	_, err := ix.BuildOrLoad(ctx, "carol", "big.pdf", []byte("%PDF-fake"), nil, false)
	if err == nil {
		t.Fatal("expected provider failure to surface")
	}
	exists, existsErr := store.Exists(ctx, vector.CollectionName("carol", "big.pdf"))
	if existsErr != nil {
		t.Fatal(existsErr)
	}
	if exists {
		t.Fatal("failed build left a partial collection")
	}
}

func TestDropOwnerIndexesLeavesOtherOwnersIntact(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{dim: 8}
	ix, store := newTestIndexer(t, emb, somePages())

	data := []byte("%PDF-fake")
	// same filename for two owners must produce two distinct collections
	if _, err := ix.BuildOrLoad(ctx, "erin", "shared.pdf", data, nil, false); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.BuildOrLoad(ctx, "frank", "shared.pdf", data, nil, false); err != nil {
		t.Fatal(err)
	}

	if err := ix.DropOwnerIndexes(ctx, "erin"); err != nil {
		t.Fatal(err)
	}

	if exists, _ := store.Exists(ctx, vector.CollectionName("erin", "shared.pdf")); exists {
		t.Error("erin's collection survived owner deletion")
	}
	if exists, _ := store.Exists(ctx, vector.CollectionName("frank", "shared.pdf")); !exists {
		t.Error("frank's collection was removed by erin's deletion")
	}
}

func TestBuildOrLoadNilBytesRequiresExistingIndex(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{dim: 8}
	ix, _ := newTestIndexer(t, emb, somePages())

	if _, err := ix.BuildOrLoad(ctx, "dave", "missing.pdf", nil, nil, false); err == nil {
		t.Fatal("expected error for unindexed pdf")
	}

	if _, err := ix.BuildOrLoad(ctx, "dave", "present.pdf", []byte("%PDF-fake"), nil, false); err != nil {
		t.Fatal(err)
	}
	res, err := ix.BuildOrLoad(ctx, "dave", "present.pdf", nil, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Reused || res.ChunkCount == 0 {
		t.Fatalf("load-only result looks wrong: %+v", res)
	}
}
