package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// PDF is the per-upload record. FileHash is the sha256 of the raw bytes and
// drives the reuse-vs-rebuild decision on re-upload.
type PDF struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Owner        string             `bson:"owner" json:"owner"`
	Filename     string             `bson:"filename" json:"filename"`
	FileHash     string             `bson:"file_hash" json:"file_hash"`
	Size         int64              `bson:"size" json:"size"`
	Collection   string             `bson:"collection" json:"collection"`
	StorageKey   string             `bson:"storage_key" json:"storage_key"`
	Status       string             `bson:"status" json:"status"`
	Pages        int                `bson:"pages" json:"pages"`
	ChunkCount   int                `bson:"chunk_count" json:"chunk_count"`
	ErrorMessage string             `bson:"error_message,omitempty" json:"error_message,omitempty"`
	UploadedAt   time.Time          `bson:"uploaded_at" json:"uploaded_at"`
	ProcessedAt  time.Time          `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

// Page is one page of extracted PDF text. Pages with no extractable text
// carry an empty Text and are not an error.
type Page struct {
	Number int
	Text   string
}

// Chunk is a bounded span of page text prepared for embedding.
type Chunk struct {
	Text    string `json:"text"`
	Source  string `json:"source"`
	Page    int    `json:"page"`
	Index   int    `json:"index"`
	Preview string `json:"preview"`
}
