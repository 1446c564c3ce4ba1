package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pdf-chat-platform/internal/logger"
	"pdf-chat-platform/internal/vector"
	"pdf-chat-platform/models"
	"pdf-chat-platform/utils"
)

// IndexEnqueuer hands large uploads off to the background worker.
type IndexEnqueuer interface {
	EnqueueIndex(ctx context.Context, owner, filename string) error
}

// PDFRecords persists upload metadata keyed by (owner, filename).
type PDFRecords interface {
	Save(ctx context.Context, record *models.PDF) error
	Get(ctx context.Context, owner, filename string) (*models.PDF, error)
	List(ctx context.Context, owner string) ([]models.PDF, error)
	Delete(ctx context.Context, owner, filename string) error
	Collections(ctx context.Context) ([]string, error)
}

// PDFService owns the upload lifecycle: validate, persist the original
// bytes, record the upload, and index either inline or via the worker
// depending on file size.
type PDFService struct {
	records   PDFRecords
	objects   ObjectStore
	indexer   *Indexer
	history   HistoryStore
	enqueuer  IndexEnqueuer
	syncLimit int64
}

func NewPDFService(db *mongo.Database, objects ObjectStore, indexer *Indexer, history HistoryStore, enqueuer IndexEnqueuer, syncLimit int64) *PDFService {
	return &PDFService{
		records:   &mongoPDFRecords{col: db.Collection("pdfs")},
		objects:   objects,
		indexer:   indexer,
		history:   history,
		enqueuer:  enqueuer,
		syncLimit: syncLimit,
	}
}

// Upload validates and stores a PDF, then indexes it. Files above the sync
// limit are queued for the worker and returned with status pending; smaller
// files are indexed before returning. A re-upload whose content hash matches
// an existing index is reused inline regardless of size. The second return
// value reports whether an existing index was reused instead of rebuilt.
func (s *PDFService) Upload(ctx context.Context, owner, filename string, data []byte, rebuild bool) (*models.PDF, bool, error) {
	if err := ValidatePDFBytes(data); err != nil {
		return nil, false, err
	}

	key := ObjectKey(owner, filename)
	if err := s.objects.Put(ctx, key, data, "application/pdf"); err != nil {
		return nil, false, fmt.Errorf("storing original file: %w", err)
	}

	record := &models.PDF{
		Owner:      owner,
		Filename:   filename,
		FileHash:   utils.ContentHash(data),
		Size:       int64(len(data)),
		Collection: vector.CollectionName(owner, filename),
		StorageKey: key,
		Status:     models.StatusPending,
		UploadedAt: time.Now(),
	}
	previous, _ := s.Get(ctx, owner, filename)
	if err := s.records.Save(ctx, record); err != nil {
		return nil, false, err
	}

	if s.enqueuer != nil && int64(len(data)) > s.syncLimit && !s.reusable(ctx, record, previous, rebuild) {
		if err := s.enqueuer.EnqueueIndex(ctx, owner, filename); err != nil {
			return nil, false, fmt.Errorf("queueing index job: %w", err)
		}
		logger.Info("queued pdf for background indexing", "owner", owner, "filename", filename, "size", len(data))
		return record, false, nil
	}

	return s.index(ctx, record, data, previous, rebuild)
}

// reusable reports whether the upload can be served from the existing index
// without a rebuild, which makes the inline path cheap even above the sync
// limit.
func (s *PDFService) reusable(ctx context.Context, record, previous *models.PDF, rebuild bool) bool {
	if rebuild || previous == nil || previous.FileHash != record.FileHash {
		return false
	}
	return s.indexer.HasIndex(ctx, record.Owner, record.Filename)
}

// ProcessStored runs the worker side of an async upload: fetch the stored
// bytes and index them.
func (s *PDFService) ProcessStored(ctx context.Context, owner, filename string) error {
	record, err := s.Get(ctx, owner, filename)
	if err != nil {
		return err
	}
	data, err := s.objects.Get(ctx, record.StorageKey)
	if err != nil {
		return fmt.Errorf("fetching stored pdf: %w", err)
	}
	_, _, err = s.index(ctx, record, data, nil, false)
	return err
}

func (s *PDFService) index(ctx context.Context, record *models.PDF, data []byte, previous *models.PDF, rebuild bool) (*models.PDF, bool, error) {
	record.Status = models.StatusProcessing
	if err := s.records.Save(ctx, record); err != nil {
		return nil, false, err
	}

	result, err := s.indexer.BuildOrLoad(ctx, record.Owner, record.Filename, data, previous, rebuild)
	if err != nil {
		record.Status = models.StatusFailed
		record.ErrorMessage = err.Error()
		if saveErr := s.records.Save(ctx, record); saveErr != nil {
			logger.Error("failed to record indexing failure", "owner", record.Owner, "filename", record.Filename, "error", saveErr)
		}
		return nil, false, err
	}

	record.Status = models.StatusCompleted
	record.ErrorMessage = ""
	record.Pages = result.Pages
	record.ChunkCount = result.ChunkCount
	record.ProcessedAt = time.Now()
	if err := s.records.Save(ctx, record); err != nil {
		return nil, false, err
	}

	s.recordInHistory(ctx, record)
	return record, result.Reused, nil
}

func (s *PDFService) recordInHistory(ctx context.Context, record *models.PDF) {
	doc, err := s.history.Load(ctx, record.Owner)
	if err != nil {
		logger.Warn("could not load history for pdf registration", "owner", record.Owner, "error", err)
		return
	}
	if !contains(doc.PDFHistory, record.Filename) {
		doc.PDFHistory = append(doc.PDFHistory, record.Filename)
	}
	if !contains(doc.UserCollections, record.Collection) {
		doc.UserCollections = append(doc.UserCollections, record.Collection)
	}
	if _, ok := doc.PDFChats[record.Filename]; !ok {
		doc.PDFChats[record.Filename] = []models.ChatTurn{}
	}
	if err := s.history.Save(ctx, doc); err != nil {
		logger.Warn("could not register pdf in history", "owner", record.Owner, "error", err)
	}
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}

// Get returns the record for (owner, filename).
func (s *PDFService) Get(ctx context.Context, owner, filename string) (*models.PDF, error) {
	return s.records.Get(ctx, owner, filename)
}

// List returns the owner's uploads, newest first.
func (s *PDFService) List(ctx context.Context, owner string) ([]models.PDF, error) {
	return s.records.List(ctx, owner)
}

// DownloadURL returns a time-limited link to the original file.
func (s *PDFService) DownloadURL(ctx context.Context, owner, filename string, expiry time.Duration) (string, error) {
	record, err := s.Get(ctx, owner, filename)
	if err != nil {
		return "", err
	}
	return s.objects.PresignGet(ctx, record.StorageKey, expiry)
}

// Delete removes the record, the stored file, the vector collection, and
// the chat history for one upload. Each step is attempted even when an
// earlier one fails.
func (s *PDFService) Delete(ctx context.Context, owner, filename string) error {
	record, err := s.Get(ctx, owner, filename)
	if err != nil {
		return err
	}

	var firstErr error
	if err := s.indexer.DropIndex(ctx, owner, filename); err != nil {
		firstErr = err
		logger.Error("dropping vector collection failed", "collection", record.Collection, "error", err)
	}
	if err := s.objects.Delete(ctx, record.StorageKey); err != nil {
		if firstErr == nil {
			firstErr = err
		}
		logger.Error("deleting stored file failed", "key", record.StorageKey, "error", err)
	}
	if err := s.history.RemovePDF(ctx, owner, filename); err != nil {
		if firstErr == nil {
			firstErr = err
		}
		logger.Error("removing pdf from history failed", "owner", owner, "filename", filename, "error", err)
	}
	if err := s.records.Delete(ctx, owner, filename); err != nil {
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeleteOwner removes every upload and the chat document for a user, for
// account deletion. Collections belonging to other users are never touched
// because names are owner-prefixed.
func (s *PDFService) DeleteOwner(ctx context.Context, owner string) error {
	records, err := s.List(ctx, owner)
	if err != nil {
		return err
	}
	var firstErr error
	for _, record := range records {
		if err := s.Delete(ctx, owner, record.Filename); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	// Sweep by prefix as well, in case a collection outlived its record.
	if err := s.indexer.DropOwnerIndexes(ctx, owner); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.history.Delete(ctx, owner); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// ReconcileOrphans deletes vector collections that no longer have a pdf
// record, typically left behind by a crash between delete steps. Run
// periodically by the worker.
func (s *PDFService) ReconcileOrphans(ctx context.Context, store vector.Store) (int, error) {
	names, err := store.List(ctx)
	if err != nil {
		return 0, err
	}
	collections, err := s.records.Collections(ctx)
	if err != nil {
		return 0, err
	}
	known := map[string]bool{}
	for _, name := range collections {
		known[name] = true
	}

	removed := 0
	for _, name := range names {
		if known[name] {
			continue
		}
		if err := store.Delete(ctx, name); err != nil {
			logger.Error("failed to delete orphan collection", "collection", name, "error", err)
			continue
		}
		logger.Info("deleted orphan collection", "collection", name)
		removed++
	}
	return removed, nil
}

// mongoPDFRecords keeps upload metadata in the pdfs collection.
type mongoPDFRecords struct {
	col *mongo.Collection
}

func (r *mongoPDFRecords) Save(ctx context.Context, record *models.PDF) error {
	update := bson.M{"$set": bson.M{
		"file_hash":     record.FileHash,
		"size":          record.Size,
		"collection":    record.Collection,
		"storage_key":   record.StorageKey,
		"status":        record.Status,
		"pages":         record.Pages,
		"chunk_count":   record.ChunkCount,
		"error_message": record.ErrorMessage,
		"uploaded_at":   record.UploadedAt,
		"processed_at":  record.ProcessedAt,
	}}
	_, err := r.col.UpdateOne(ctx,
		bson.M{"owner": record.Owner, "filename": record.Filename},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("saving pdf record: %w", err)
	}
	return nil
}

func (r *mongoPDFRecords) Get(ctx context.Context, owner, filename string) (*models.PDF, error) {
	var record models.PDF
	err := r.col.FindOne(ctx, bson.M{"owner": owner, "filename": filename}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("pdf %q not found", filename)
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *mongoPDFRecords) List(ctx context.Context, owner string) ([]models.PDF, error) {
	cursor, err := r.col.Find(ctx, bson.M{"owner": owner},
		options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := []models.PDF{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *mongoPDFRecords) Delete(ctx context.Context, owner, filename string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"owner": owner, "filename": filename})
	return err
}

func (r *mongoPDFRecords) Collections(ctx context.Context) ([]string, error) {
	cursor, err := r.col.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"collection": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var names []string
	for cursor.Next(ctx) {
		var row struct {
			Collection string `bson:"collection"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		names = append(names, row.Collection)
	}
	return names, cursor.Err()
}
