package services

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pdf-chat-platform/internal/logger"
	"pdf-chat-platform/models"
)

// HistoryStore persists the per-user chat document. Turns are append-only
// per (user, pdf). The underlying write is read-modify-write with no
// optimistic concurrency check; concurrent sessions for the same user can
// lose updates (known limitation, kept as-is).
type HistoryStore interface {
	Load(ctx context.Context, username string) (*models.UserChats, error)
	Save(ctx context.Context, doc *models.UserChats) error
	AppendTurn(ctx context.Context, username, pdf string, turn models.ChatTurn) error
	ClearChat(ctx context.Context, username, pdf string) error
	RemovePDF(ctx context.Context, username, pdf string) error
	Delete(ctx context.Context, username string) error
}

// MongoHistoryStore keeps one document per user in the user_chats
// collection.
type MongoHistoryStore struct {
	col *mongo.Collection
}

func NewMongoHistoryStore(db *mongo.Database) *MongoHistoryStore {
	return &MongoHistoryStore{col: db.Collection("user_chats")}
}

func emptyChats(username string) *models.UserChats {
	return &models.UserChats{
		Username:        username,
		PDFChats:        map[string][]models.ChatTurn{},
		UserCollections: []string{},
		PDFHistory:      []string{},
	}
}

func (s *MongoHistoryStore) Load(ctx context.Context, username string) (*models.UserChats, error) {
	var doc models.UserChats
	err := s.col.FindOne(ctx, bson.M{"username": username}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return emptyChats(username), nil
	}
	if err != nil {
		return nil, err
	}
	if doc.PDFChats == nil {
		doc.PDFChats = map[string][]models.ChatTurn{}
	}
	return &doc, nil
}

func (s *MongoHistoryStore) Save(ctx context.Context, doc *models.UserChats) error {
	_, err := s.col.ReplaceOne(ctx,
		bson.M{"username": doc.Username},
		doc,
		options.Replace().SetUpsert(true),
	)
	return err
}

// Mutations below rewrite the whole document through Load and Save. Mongo
// update paths treat dots as nested-field separators, and every pdf_chats
// key is a filename containing one, so dotted-path operators like
// $push on "pdf_chats.<filename>" cannot address these keys.

func (s *MongoHistoryStore) AppendTurn(ctx context.Context, username, pdf string, turn models.ChatTurn) error {
	doc, err := s.Load(ctx, username)
	if err != nil {
		return err
	}
	appendTurn(doc, pdf, turn)
	return s.Save(ctx, doc)
}

func (s *MongoHistoryStore) ClearChat(ctx context.Context, username, pdf string) error {
	doc, err := s.Load(ctx, username)
	if err != nil {
		return err
	}
	doc.PDFChats[pdf] = []models.ChatTurn{}
	return s.Save(ctx, doc)
}

func (s *MongoHistoryStore) RemovePDF(ctx context.Context, username, pdf string) error {
	doc, err := s.Load(ctx, username)
	if err != nil {
		return err
	}
	removePDF(doc, pdf)
	return s.Save(ctx, doc)
}

func (s *MongoHistoryStore) Delete(ctx context.Context, username string) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"username": username})
	return err
}

func appendTurn(doc *models.UserChats, pdf string, turn models.ChatTurn) {
	doc.PDFChats[pdf] = append(doc.PDFChats[pdf], turn)
}

func removePDF(doc *models.UserChats, pdf string) {
	delete(doc.PDFChats, pdf)
	history := doc.PDFHistory[:0]
	for _, name := range doc.PDFHistory {
		if name != pdf {
			history = append(history, name)
		}
	}
	doc.PDFHistory = history
}

// MemoryHistoryStore is the in-process store used by tests and as the
// fallback when Mongo is unavailable.
type MemoryHistoryStore struct {
	mu   sync.Mutex
	docs map[string]*models.UserChats
}

func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{docs: map[string]*models.UserChats{}}
}

func (s *MemoryHistoryStore) Load(_ context.Context, username string) (*models.UserChats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[username]
	if !ok {
		return emptyChats(username), nil
	}
	copied := *doc
	copied.PDFChats = make(map[string][]models.ChatTurn, len(doc.PDFChats))
	for k, v := range doc.PDFChats {
		copied.PDFChats[k] = append([]models.ChatTurn(nil), v...)
	}
	return &copied, nil
}

func (s *MemoryHistoryStore) Save(_ context.Context, doc *models.UserChats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.Username] = doc
	return nil
}

func (s *MemoryHistoryStore) AppendTurn(_ context.Context, username, pdf string, turn models.ChatTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[username]
	if !ok {
		doc = emptyChats(username)
		s.docs[username] = doc
	}
	appendTurn(doc, pdf, turn)
	return nil
}

func (s *MemoryHistoryStore) ClearChat(_ context.Context, username, pdf string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.docs[username]; ok {
		doc.PDFChats[pdf] = []models.ChatTurn{}
	}
	return nil
}

func (s *MemoryHistoryStore) RemovePDF(_ context.Context, username, pdf string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.docs[username]; ok {
		removePDF(doc, pdf)
	}
	return nil
}

func (s *MemoryHistoryStore) Delete(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, username)
	return nil
}

// ResilientHistoryStore writes through to the primary store and falls back
// to memory when it is unavailable, so a persistence outage never surfaces
// as a chat failure. Failures are logged, not returned to chat callers.
type ResilientHistoryStore struct {
	primary  HistoryStore
	fallback *MemoryHistoryStore
}

func NewResilientHistoryStore(primary HistoryStore) *ResilientHistoryStore {
	return &ResilientHistoryStore{
		primary:  primary,
		fallback: NewMemoryHistoryStore(),
	}
}

func (s *ResilientHistoryStore) Load(ctx context.Context, username string) (*models.UserChats, error) {
	doc, err := s.primary.Load(ctx, username)
	if err != nil {
		logger.Warn("history load failed, serving in-memory copy", "user", username, "error", err)
		return s.fallback.Load(ctx, username)
	}
	return doc, nil
}

func (s *ResilientHistoryStore) Save(ctx context.Context, doc *models.UserChats) error {
	_ = s.fallback.Save(ctx, doc)
	if err := s.primary.Save(ctx, doc); err != nil {
		logger.Warn("history save failed, kept in memory", "user", doc.Username, "error", err)
	}
	return nil
}

func (s *ResilientHistoryStore) AppendTurn(ctx context.Context, username, pdf string, turn models.ChatTurn) error {
	turn.Timestamp = orNow(turn.Timestamp)
	_ = s.fallback.AppendTurn(ctx, username, pdf, turn)
	if err := s.primary.AppendTurn(ctx, username, pdf, turn); err != nil {
		logger.Warn("turn persistence failed, kept in memory", "user", username, "pdf", pdf, "error", err)
	}
	return nil
}

func (s *ResilientHistoryStore) ClearChat(ctx context.Context, username, pdf string) error {
	_ = s.fallback.ClearChat(ctx, username, pdf)
	return s.primary.ClearChat(ctx, username, pdf)
}

func (s *ResilientHistoryStore) RemovePDF(ctx context.Context, username, pdf string) error {
	_ = s.fallback.RemovePDF(ctx, username, pdf)
	return s.primary.RemovePDF(ctx, username, pdf)
}

func (s *ResilientHistoryStore) Delete(ctx context.Context, username string) error {
	_ = s.fallback.Delete(ctx, username)
	return s.primary.Delete(ctx, username)
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
