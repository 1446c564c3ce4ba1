package models

import "time"

// ChatTurn is one (question, answer) pair scoped to a PDF and a user.
// Rendered records whether the UI typing animation has already played.
type ChatTurn struct {
	Question  string    `bson:"question" json:"question"`
	Answer    string    `bson:"answer" json:"answer"`
	Rendered  bool      `bson:"rendered" json:"rendered"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// UserChats is the per-user history document: one chat transcript per PDF,
// the owner's collection names and upload order.
type UserChats struct {
	Username        string                `bson:"username" json:"username"`
	PDFChats        map[string][]ChatTurn `bson:"pdf_chats" json:"pdf_chats"`
	UserCollections []string              `bson:"user_collections" json:"user_collections"`
	PDFHistory      []string              `bson:"pdf_history" json:"pdf_history"`
}

type ChatRequest struct {
	PDF     string `json:"pdf" binding:"required"`
	Message string `json:"message" binding:"required,min=1,max=2000"`
}

type ChatResponse struct {
	Reply     string    `json:"reply"`
	PDF       string    `json:"pdf"`
	Grounded  bool      `json:"grounded"`
	Timestamp time.Time `json:"timestamp"`
}
