package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"pdf-chat-platform/internal/ai"
	"pdf-chat-platform/internal/logger"
	"pdf-chat-platform/internal/telemetry"
	"pdf-chat-platform/internal/vector"
	"pdf-chat-platform/models"
	"pdf-chat-platform/utils"
)

// Indexer turns an uploaded PDF into a queryable vector collection.
type Indexer struct {
	embedder  ai.Embedder
	store     vector.Store
	chunker   *Chunker
	batchSize int
	metrics   *telemetry.Metrics
	extract   func([]byte) ([]models.Page, error)
}

func NewIndexer(embedder ai.Embedder, store vector.Store, chunker *Chunker, batchSize int, metrics *telemetry.Metrics) *Indexer {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Indexer{
		embedder:  embedder,
		store:     store,
		chunker:   chunker,
		batchSize: batchSize,
		metrics:   metrics,
		extract:   ExtractPages,
	}
}

// BuildResult reports what the indexer did for an upload.
type BuildResult struct {
	Collection string
	FileHash   string
	Pages      int
	ChunkCount int
	Reused     bool
}

// BuildOrLoad indexes pdfBytes into the collection derived from
// (owner, filename). When the stored record carries the same content hash
// and the collection still exists, the existing index is reused unless
// rebuild is set. With nil bytes it only verifies that an index exists.
//
// A failed build never leaves a partial collection behind: the collection
// is deleted again before the error is returned.
func (ix *Indexer) BuildOrLoad(ctx context.Context, owner, filename string, pdfBytes []byte, record *models.PDF, rebuild bool) (*BuildResult, error) {
	ctx, span := otel.Tracer("indexer").Start(ctx, "indexer.BuildOrLoad")
	defer span.End()

	collection := vector.CollectionName(owner, filename)

	if pdfBytes == nil {
		exists, err := ix.store.Exists(ctx, collection)
		if err != nil {
			return nil, fmt.Errorf("checking collection %q: %w", collection, err)
		}
		if !exists {
			return nil, fmt.Errorf("pdf %q is not indexed", filename)
		}
		count, err := ix.store.Count(ctx, collection)
		if err != nil {
			return nil, fmt.Errorf("counting collection %q: %w", collection, err)
		}
		return &BuildResult{Collection: collection, ChunkCount: count, Reused: true}, nil
	}

	hash := utils.ContentHash(pdfBytes)
	if !rebuild && record != nil && record.FileHash == hash {
		exists, err := ix.store.Exists(ctx, collection)
		if err != nil {
			return nil, fmt.Errorf("checking collection %q: %w", collection, err)
		}
		if exists {
			logger.Info("reusing existing index", "collection", collection, "hash", hash)
			return &BuildResult{
				Collection: collection,
				FileHash:   hash,
				Pages:      record.Pages,
				ChunkCount: record.ChunkCount,
				Reused:     true,
			}, nil
		}
	}

	start := time.Now()
	result, err := ix.build(ctx, collection, filename, pdfBytes)
	if err != nil {
		return nil, err
	}
	result.FileHash = hash
	if ix.metrics != nil {
		ix.metrics.IndexDuration.Record(ctx, time.Since(start).Seconds())
	}
	logger.Info("indexed pdf",
		"collection", collection,
		"pages", result.Pages,
		"chunks", result.ChunkCount,
		"duration", time.Since(start).String(),
	)
	return result, nil
}

func (ix *Indexer) build(ctx context.Context, collection, filename string, pdfBytes []byte) (*BuildResult, error) {
	pages, err := ix.extract(pdfBytes)
	if err != nil {
		return nil, fmt.Errorf("extracting %q: %w", filename, err)
	}

	chunks := ix.chunker.Split(pages, filename)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("pdf %q contains no extractable text", filename)
	}

	// Any previous index for this name is stale at this point.
	if err := ix.store.Delete(ctx, collection); err != nil {
		return nil, fmt.Errorf("dropping stale collection %q: %w", collection, err)
	}
	if err := ix.store.Create(ctx, collection, ix.embedder.Dimension(), vector.DistanceCosine); err != nil {
		return nil, fmt.Errorf("creating collection %q: %w", collection, err)
	}

	for offset := 0; offset < len(chunks); offset += ix.batchSize {
		end := offset + ix.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[offset:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			ix.cleanup(ctx, collection)
			return nil, fmt.Errorf("embedding batch at chunk %d: %w", offset, err)
		}
		if ix.metrics != nil {
			ix.metrics.EmbeddingBatches.Add(ctx, 1)
		}

		points := make([]vector.Point, len(batch))
		for i, c := range batch {
			points[i] = vector.Point{
				ID:     uuid.NewString(),
				Vector: vectors[i],
				Payload: vector.Payload{
					Text:    c.Text,
					Source:  c.Source,
					Page:    c.Page,
					ChunkID: c.Index,
					Preview: c.Preview,
				},
			}
		}
		if err := ix.store.Upsert(ctx, collection, points); err != nil {
			ix.cleanup(ctx, collection)
			return nil, fmt.Errorf("upserting batch at chunk %d: %w", offset, err)
		}
	}

	return &BuildResult{
		Collection: collection,
		Pages:      len(pages),
		ChunkCount: len(chunks),
	}, nil
}

func (ix *Indexer) cleanup(ctx context.Context, collection string) {
	if err := ix.store.Delete(ctx, collection); err != nil {
		logger.Error("failed to remove partial collection", "collection", collection, "error", err)
	}
}

// HasIndex reports whether a collection exists for (owner, filename).
func (ix *Indexer) HasIndex(ctx context.Context, owner, filename string) bool {
	exists, err := ix.store.Exists(ctx, vector.CollectionName(owner, filename))
	return err == nil && exists
}

// DropIndex removes the collection for (owner, filename). Missing
// collections are not an error.
func (ix *Indexer) DropIndex(ctx context.Context, owner, filename string) error {
	return ix.store.Delete(ctx, vector.CollectionName(owner, filename))
}

// DropOwnerIndexes removes every collection carrying the owner's prefix,
// including ones whose pdf record is already gone. Other owners'
// collections never match the prefix.
func (ix *Indexer) DropOwnerIndexes(ctx context.Context, owner string) error {
	names, err := ix.store.List(ctx)
	if err != nil {
		return err
	}
	prefix := vector.OwnerPrefix(owner)
	var firstErr error
	for _, name := range names {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if err := ix.store.Delete(ctx, name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
