package vector

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
)

// ChromemStore is the embedded backend on chromem-go. It keeps everything
// in process (optionally persisted to disk), which also makes it the
// backend the tests run against.
type ChromemStore struct {
	db *chromem.DB
}

func NewChromemStore(dir string) (*ChromemStore, error) {
	if dir == "" {
		return &ChromemStore{db: chromem.NewDB()}, nil
	}
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open chromem database: %w", err)
	}
	return &ChromemStore{db: db}, nil
}

// NewMemoryStore returns a purely in-memory store.
func NewMemoryStore() *ChromemStore {
	return &ChromemStore{db: chromem.NewDB()}
}

func (s *ChromemStore) Exists(_ context.Context, name string) (bool, error) {
	return s.db.GetCollection(name, nil) != nil, nil
}

func (s *ChromemStore) Create(_ context.Context, name string, dimension int, distance string) error {
	if s.db.GetCollection(name, nil) != nil {
		return fmt.Errorf("collection %s already exists", name)
	}
	// chromem always ranks by cosine similarity; the distance argument is
	// accepted for interface parity and recorded as metadata
	_, err := s.db.GetOrCreateCollection(name, map[string]string{
		"dimension": strconv.Itoa(dimension),
		"distance":  distance,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return nil
}

func (s *ChromemStore) Upsert(ctx context.Context, name string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	col := s.db.GetCollection(name, nil)
	if col == nil {
		return fmt.Errorf("collection %s not found", name)
	}

	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		docs[i] = chromem.Document{
			ID:        p.ID,
			Content:   p.Payload.Text,
			Embedding: p.Vector,
			Metadata: map[string]string{
				"source":   p.Payload.Source,
				"page":     strconv.Itoa(p.Payload.Page),
				"chunk_id": strconv.Itoa(p.Payload.ChunkID),
				"preview":  p.Payload.Preview,
			},
		}
	}
	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents to %s: %w", name, err)
	}
	return nil
}

func (s *ChromemStore) Query(ctx context.Context, name string, vector []float32, k int) ([]Hit, error) {
	col := s.db.GetCollection(name, nil)
	if col == nil {
		return nil, fmt.Errorf("collection %s not found", name)
	}

	// an empty collection yields zero hits, not an error
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := col.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", name, err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		page, _ := strconv.Atoi(r.Metadata["page"])
		chunkID, _ := strconv.Atoi(r.Metadata["chunk_id"])
		hits = append(hits, Hit{
			Payload: Payload{
				Text:    r.Content,
				Source:  r.Metadata["source"],
				Page:    page,
				ChunkID: chunkID,
				Preview: r.Metadata["preview"],
			},
			Score: r.Similarity,
		})
	}
	return hits, nil
}

func (s *ChromemStore) Delete(_ context.Context, name string) error {
	if s.db.GetCollection(name, nil) == nil {
		return nil
	}
	return s.db.DeleteCollection(name)
}

func (s *ChromemStore) Count(_ context.Context, name string) (int, error) {
	col := s.db.GetCollection(name, nil)
	if col == nil {
		return 0, fmt.Errorf("collection %s not found", name)
	}
	return col.Count(), nil
}

func (s *ChromemStore) List(_ context.Context) ([]string, error) {
	cols := s.db.ListCollections()
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	return names, nil
}
