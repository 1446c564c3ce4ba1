package vector

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func testVector(seed float32) []float32 {
	v := make([]float32, 4)
	v[0] = seed
	v[1] = 1 - seed
	v[2] = seed / 2
	v[3] = 0.1
	return v
}

func TestChromemLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	exists, err := store.Exists(ctx, "alice__report")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatal("collection should not exist before create")
	}

	if err := store.Create(ctx, "alice__report", 4, DistanceCosine); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, "alice__report", 4, DistanceCosine); err == nil {
		t.Error("creating an existing collection should fail")
	}

	exists, _ = store.Exists(ctx, "alice__report")
	if !exists {
		t.Fatal("collection should exist after create")
	}

	// delete is idempotent
	if err := store.Delete(ctx, "alice__report"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "alice__report"); err != nil {
		t.Errorf("deleting an absent collection should not error: %v", err)
	}
}

func TestChromemPayloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Create(ctx, "bob__notes", 4, DistanceCosine); err != nil {
		t.Fatalf("create: %v", err)
	}

	want := Payload{
		Text:    "The mitochondria is the powerhouse of the cell.",
		Source:  "bob__notes",
		Page:    3,
		ChunkID: 7,
		Preview: "The mitochondria",
	}
	points := []Point{{ID: uuid.NewString(), Vector: testVector(0.9), Payload: want}}
	if err := store.Upsert(ctx, "bob__notes", points); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	hits, err := store.Query(ctx, "bob__notes", testVector(0.9), 4)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].Payload != want {
		t.Errorf("payload round trip mismatch:\n got %+v\nwant %+v", hits[0].Payload, want)
	}
}

func TestChromemQueryEmptyCollection(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Create(ctx, "carol__empty", 4, DistanceCosine); err != nil {
		t.Fatalf("create: %v", err)
	}

	hits, err := store.Query(ctx, "carol__empty", testVector(0.5), 4)
	if err != nil {
		t.Fatalf("querying an empty collection should not error: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected zero hits from empty collection, got %d", len(hits))
	}
}

func TestChromemQueryRanking(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Create(ctx, "dave__doc", 4, DistanceCosine); err != nil {
		t.Fatalf("create: %v", err)
	}

	points := []Point{
		{ID: uuid.NewString(), Vector: testVector(0.9), Payload: Payload{Text: "near", ChunkID: 0}},
		{ID: uuid.NewString(), Vector: testVector(0.1), Payload: Payload{Text: "far", ChunkID: 1}},
	}
	if err := store.Upsert(ctx, "dave__doc", points); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	hits, err := store.Query(ctx, "dave__doc", testVector(0.9), 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Payload.Text != "near" {
		t.Errorf("hits should be ordered best-first, got %q first", hits[0].Payload.Text)
	}
	if hits[0].Score < hits[1].Score {
		t.Errorf("scores not descending: %f then %f", hits[0].Score, hits[1].Score)
	}
}

func TestCollectionName(t *testing.T) {
	tests := []struct {
		owner    string
		filename string
		want     string
	}{
		{"alice", "report.pdf", "alice__report"},
		{"bob", "my notes.pdf", "bob__my_notes"},
		{"carol", "archive.tar.pdf", "carol__archive.tar"},
	}
	for _, tt := range tests {
		if got := CollectionName(tt.owner, tt.filename); got != tt.want {
			t.Errorf("CollectionName(%q, %q) = %q, want %q", tt.owner, tt.filename, got, tt.want)
		}
	}

	// identical filenames for two owners must not collide
	a := CollectionName("alice", "report.pdf")
	b := CollectionName("bob", "report.pdf")
	if a == b {
		t.Errorf("collection names for different owners collided: %q", a)
	}
}
