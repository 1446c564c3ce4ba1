package vector

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// DistanceCosine is the only metric the pipeline uses.
const DistanceCosine = "Cosine"

// Payload is the chunk data attached to every point, so a search hit
// carries the original text without a secondary lookup.
type Payload struct {
	Text    string `json:"text"`
	Source  string `json:"source"`
	Page    int    `json:"page"`
	ChunkID int    `json:"chunk_id"`
	Preview string `json:"preview"`
}

// Point is one (vector, payload) pair. ID is a random UUID; ordering and
// determinism are not required.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Hit is a ranked search result, best-first.
type Hit struct {
	Payload Payload
	Score   float32
}

// Store owns the lifecycle of named vector collections. Delete is
// idempotent; deleting an absent collection is not an error.
type Store interface {
	Exists(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, name string, dimension int, distance string) error
	Upsert(ctx context.Context, name string, points []Point) error
	Query(ctx context.Context, name string, vector []float32, k int) ([]Hit, error)
	Delete(ctx context.Context, name string) error
	Count(ctx context.Context, name string) (int, error)
	List(ctx context.Context) ([]string, error)
}

// CollectionName derives the collection name from the owner identity and
// the PDF filename. Scoping by owner prevents cross-user collisions when
// two users upload files with identical names.
func CollectionName(owner, filename string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	stem = strings.ReplaceAll(stem, " ", "_")
	return fmt.Sprintf("%s__%s", owner, stem)
}

// OwnerPrefix returns the prefix that matches every collection belonging
// to an owner. Account deletion removes exactly these.
func OwnerPrefix(owner string) string {
	return owner + "__"
}
