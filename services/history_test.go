package services

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pdf-chat-platform/models"
)

func TestMemoryHistoryStoreAppendAndClear(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHistoryStore()

	turn := models.ChatTurn{Question: "q1", Answer: "a1", Timestamp: time.Now()}
	if err := store.AppendTurn(ctx, "alice", "doc.pdf", turn); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendTurn(ctx, "alice", "doc.pdf", models.ChatTurn{Question: "q2", Answer: "a2"}); err != nil {
		t.Fatal(err)
	}

	doc, err := store.Load(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got := len(doc.PDFChats["doc.pdf"]); got != 2 {
		t.Fatalf("loaded %d turns, want 2", got)
	}
	if doc.PDFChats["doc.pdf"][0].Question != "q1" {
		t.Error("turns are not in append order")
	}

	if err := store.ClearChat(ctx, "alice", "doc.pdf"); err != nil {
		t.Fatal(err)
	}
	doc, err = store.Load(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got := len(doc.PDFChats["doc.pdf"]); got != 0 {
		t.Fatalf("cleared chat still holds %d turns", got)
	}
}

func TestMemoryHistoryStoreRemovePDF(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHistoryStore()

	doc := emptyChats("bob")
	doc.PDFHistory = []string{"a.pdf", "b.pdf"}
	doc.PDFChats["a.pdf"] = []models.ChatTurn{{Question: "q", Answer: "a"}}
	doc.PDFChats["b.pdf"] = []models.ChatTurn{{Question: "q", Answer: "a"}}
	if err := store.Save(ctx, doc); err != nil {
		t.Fatal(err)
	}

	if err := store.RemovePDF(ctx, "bob", "a.pdf"); err != nil {
		t.Fatal(err)
	}
	got, err := store.Load(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got.PDFChats["a.pdf"]; ok {
		t.Error("removed pdf still has a transcript")
	}
	if len(got.PDFHistory) != 1 || got.PDFHistory[0] != "b.pdf" {
		t.Errorf("pdf history = %v, want [b.pdf]", got.PDFHistory)
	}
	if _, ok := got.PDFChats["b.pdf"]; !ok {
		t.Error("unrelated pdf transcript was removed")
	}
}

func TestMemoryHistoryStoreLoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHistoryStore()
	if err := store.AppendTurn(ctx, "carol", "doc.pdf", models.ChatTurn{Question: "q", Answer: "a"}); err != nil {
		t.Fatal(err)
	}

	doc, _ := store.Load(ctx, "carol")
	doc.PDFChats["doc.pdf"][0].Answer = "mutated"

	fresh, _ := store.Load(ctx, "carol")
	if fresh.PDFChats["doc.pdf"][0].Answer != "a" {
		t.Fatal("Load leaked internal state")
	}
}

// failingHistoryStore simulates a primary outage.
type failingHistoryStore struct{}

var errHistoryDown = errors.New("history store unavailable")

func (failingHistoryStore) Load(context.Context, string) (*models.UserChats, error) {
	return nil, errHistoryDown
}
func (failingHistoryStore) Save(context.Context, *models.UserChats) error { return errHistoryDown }
func (failingHistoryStore) AppendTurn(context.Context, string, string, models.ChatTurn) error {
	return errHistoryDown
}
func (failingHistoryStore) ClearChat(context.Context, string, string) error { return errHistoryDown }
func (failingHistoryStore) RemovePDF(context.Context, string, string) error { return errHistoryDown }
func (failingHistoryStore) Delete(context.Context, string) error            { return errHistoryDown }

func TestResilientHistoryStoreSurvivesPrimaryOutage(t *testing.T) {
	ctx := context.Background()
	store := NewResilientHistoryStore(failingHistoryStore{})

	if err := store.AppendTurn(ctx, "dana", "doc.pdf", models.ChatTurn{Question: "q", Answer: "a"}); err != nil {
		t.Fatalf("append surfaced a primary failure: %v", err)
	}
	doc, err := store.Load(ctx, "dana")
	if err != nil {
		t.Fatalf("load surfaced a primary failure: %v", err)
	}
	if got := len(doc.PDFChats["doc.pdf"]); got != 1 {
		t.Fatalf("in-memory fallback holds %d turns, want 1", got)
	}
}

func TestMongoHistoryStoreRoundTrip(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Disconnect(ctx)

	db := client.Database("pdfbot_test")
	t.Cleanup(func() { db.Collection("user_chats").Drop(context.Background()) })

	// Filenames carry dots, so every round trip below exercises map keys
	// that dotted update paths would mangle.
	store := NewMongoHistoryStore(db)
	if err := store.AppendTurn(ctx, "itest", "doc.pdf", models.ChatTurn{Question: "q", Answer: "a", Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendTurn(ctx, "itest", "doc.pdf", models.ChatTurn{Question: "q2", Answer: "a2", Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendTurn(ctx, "itest", "other.pdf", models.ChatTurn{Question: "q", Answer: "a", Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}
	doc, err := store.Load(ctx, "itest")
	if err != nil {
		t.Fatal(err)
	}
	if got := len(doc.PDFChats["doc.pdf"]); got != 2 {
		t.Fatalf("loaded %d turns for doc.pdf, want 2", got)
	}

	if err := store.ClearChat(ctx, "itest", "doc.pdf"); err != nil {
		t.Fatal(err)
	}
	doc, err = store.Load(ctx, "itest")
	if err != nil {
		t.Fatal(err)
	}
	if got := len(doc.PDFChats["doc.pdf"]); got != 0 {
		t.Fatalf("cleared chat still holds %d turns", got)
	}
	if got := len(doc.PDFChats["other.pdf"]); got != 1 {
		t.Fatalf("unrelated chat holds %d turns, want 1", got)
	}

	if err := store.RemovePDF(ctx, "itest", "doc.pdf"); err != nil {
		t.Fatal(err)
	}
	doc, err = store.Load(ctx, "itest")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := doc.PDFChats["doc.pdf"]; ok {
		t.Error("removed pdf still has a transcript")
	}
	if err := store.Delete(ctx, "itest"); err != nil {
		t.Fatal(err)
	}
}
