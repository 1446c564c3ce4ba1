package services

import (
	"context"
	"fmt"
	"testing"

	"pdf-chat-platform/internal/vector"
	"pdf-chat-platform/models"
)

// memoryPDFRecords is the in-process PDFRecords used by tests.
type memoryPDFRecords struct {
	docs map[string]*models.PDF
}

func newMemoryPDFRecords() *memoryPDFRecords {
	return &memoryPDFRecords{docs: map[string]*models.PDF{}}
}

func recordKey(owner, filename string) string { return owner + "/" + filename }

func (r *memoryPDFRecords) Save(_ context.Context, record *models.PDF) error {
	copied := *record
	r.docs[recordKey(record.Owner, record.Filename)] = &copied
	return nil
}

func (r *memoryPDFRecords) Get(_ context.Context, owner, filename string) (*models.PDF, error) {
	record, ok := r.docs[recordKey(owner, filename)]
	if !ok {
		return nil, fmt.Errorf("pdf %q not found", filename)
	}
	copied := *record
	return &copied, nil
}

func (r *memoryPDFRecords) List(_ context.Context, owner string) ([]models.PDF, error) {
	records := []models.PDF{}
	for _, record := range r.docs {
		if record.Owner == owner {
			records = append(records, *record)
		}
	}
	return records, nil
}

func (r *memoryPDFRecords) Delete(_ context.Context, owner, filename string) error {
	delete(r.docs, recordKey(owner, filename))
	return nil
}

func (r *memoryPDFRecords) Collections(_ context.Context) ([]string, error) {
	var names []string
	for _, record := range r.docs {
		names = append(names, record.Collection)
	}
	return names, nil
}

type enqueueRecorder struct {
	calls int
}

func (e *enqueueRecorder) EnqueueIndex(context.Context, string, string) error {
	e.calls++
	return nil
}

func newTestPDFService(t *testing.T, emb *fakeEmbedder, syncLimit int64) (*PDFService, *enqueueRecorder, vector.Store) {
	t.Helper()
	ix, store := newTestIndexer(t, emb, somePages())
	rec := &enqueueRecorder{}
	svc := &PDFService{
		records:   newMemoryPDFRecords(),
		objects:   NewMemoryObjectStore(),
		indexer:   ix,
		history:   NewMemoryHistoryStore(),
		enqueuer:  rec,
		syncLimit: syncLimit,
	}
	return svc, rec, store
}

func TestUploadIndexesSmallFileInline(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{dim: 8}
	svc, queue, store := newTestPDFService(t, emb, 1<<20)

	record, reused, err := svc.Upload(ctx, "alice", "report.pdf", []byte("%PDF-small"), false)
	if err != nil {
		t.Fatal(err)
	}
	if reused {
		t.Fatal("first upload reported reuse")
	}
	if record.Status != models.StatusCompleted {
		t.Fatalf("status = %q, want completed", record.Status)
	}
	if record.ChunkCount == 0 {
		t.Fatal("no chunks recorded")
	}
	if queue.calls != 0 {
		t.Fatalf("small file was queued %d times", queue.calls)
	}
	exists, err := store.Exists(ctx, vector.CollectionName("alice", "report.pdf"))
	if err != nil || !exists {
		t.Fatalf("collection missing after inline indexing (exists=%v, err=%v)", exists, err)
	}
}

func TestUploadQueuesLargeFileAndWorkerIndexesIt(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{dim: 8}
	svc, queue, store := newTestPDFService(t, emb, 4)

	data := []byte("%PDF-a-file-well-above-the-sync-limit")
	record, reused, err := svc.Upload(ctx, "bob", "big.pdf", data, false)
	if err != nil {
		t.Fatal(err)
	}
	if reused {
		t.Fatal("queued upload reported reuse")
	}
	if record.Status != models.StatusPending {
		t.Fatalf("status = %q, want pending", record.Status)
	}
	if queue.calls != 1 {
		t.Fatalf("enqueued %d times, want 1", queue.calls)
	}

	if err := svc.ProcessStored(ctx, "bob", "big.pdf"); err != nil {
		t.Fatal(err)
	}
	record, err = svc.Get(ctx, "bob", "big.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if record.Status != models.StatusCompleted {
		t.Fatalf("status after worker run = %q, want completed", record.Status)
	}
	exists, err := store.Exists(ctx, vector.CollectionName("bob", "big.pdf"))
	if err != nil || !exists {
		t.Fatalf("collection missing after worker indexing (exists=%v, err=%v)", exists, err)
	}
}

func TestIdenticalLargeReuploadReusesIndex(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{dim: 8}
	svc, queue, _ := newTestPDFService(t, emb, 4)

	data := []byte("%PDF-a-file-well-above-the-sync-limit")
	if _, _, err := svc.Upload(ctx, "carol", "big.pdf", data, false); err != nil {
		t.Fatal(err)
	}
	if err := svc.ProcessStored(ctx, "carol", "big.pdf"); err != nil {
		t.Fatal(err)
	}
	embedCalls := emb.calls

	record, reused, err := svc.Upload(ctx, "carol", "big.pdf", data, false)
	if err != nil {
		t.Fatal(err)
	}
	if !reused {
		t.Fatal("identical re-upload rebuilt the index")
	}
	if record.Status != models.StatusCompleted {
		t.Fatalf("status = %q, want completed", record.Status)
	}
	if queue.calls != 1 {
		t.Fatalf("re-upload was queued (enqueued %d times, want 1)", queue.calls)
	}
	if emb.calls != embedCalls {
		t.Fatalf("re-upload re-embedded (%d calls, was %d)", emb.calls, embedCalls)
	}

	// rebuild=true must bypass reuse and go back through the queue.
	if _, reused, err = svc.Upload(ctx, "carol", "big.pdf", data, true); err != nil {
		t.Fatal(err)
	}
	if reused {
		t.Fatal("rebuild reported reuse")
	}
	if queue.calls != 2 {
		t.Fatalf("rebuild was not queued (enqueued %d times, want 2)", queue.calls)
	}
}

func TestDeletePDFRemovesAllArtifacts(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{dim: 8}
	svc, _, store := newTestPDFService(t, emb, 1<<20)

	if _, _, err := svc.Upload(ctx, "dave", "notes.pdf", []byte("%PDF-small"), false); err != nil {
		t.Fatal(err)
	}
	url, err := svc.DownloadURL(ctx, "dave", "notes.pdf", 0)
	if err != nil || url == "" {
		t.Fatalf("download url unavailable before delete (url=%q, err=%v)", url, err)
	}

	if err := svc.Delete(ctx, "dave", "notes.pdf"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Get(ctx, "dave", "notes.pdf"); err == nil {
		t.Error("record still present after delete")
	}
	if _, err := svc.objects.Get(ctx, ObjectKey("dave", "notes.pdf")); err == nil {
		t.Error("stored file still present after delete")
	}
	exists, err := store.Exists(ctx, vector.CollectionName("dave", "notes.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("collection still present after delete")
	}
	doc, err := svc.history.Load(ctx, "dave")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := doc.PDFChats["notes.pdf"]; ok {
		t.Error("chat transcript still present after delete")
	}
}
