// Package models defines core data models for the lexvault service
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DocumentStatus values for the ingestion lifecycle
const (
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusError      = "error"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// User represents a registered account. Every document, conversation and
// retrieval is scoped to exactly one user.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Document represents an uploaded legal document
type Document struct {
	ID           uuid.UUID `json:"id" db:"id"`
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	Filename     string    `json:"filename" db:"filename"`
	FileType     string    `json:"file_type" db:"file_type"`
	Status       string    `json:"status" db:"status"`
	ErrorMessage string    `json:"error_message,omitempty" db:"error_message"`
	ChunkCount   int       `json:"chunk_count" db:"chunk_count"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Chunk represents one bounded passage of a document's extracted text.
// Chunks are produced only by the chunker, are immutable once stored, and
// are removed with their parent document.
type Chunk struct {
	ID         uuid.UUID `json:"id" db:"id"`
	DocumentID uuid.UUID `json:"document_id" db:"document_id"`
	ChunkIndex int       `json:"chunk_index" db:"chunk_index"`
	Content    string    `json:"content" db:"content"`

	// Populated in memory during ingestion, stored as a pgvector column.
	Embedding []float32 `json:"-" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ChunkMatch is one ranked row returned by the vector search. The similarity
// score is populated only on retrieval, never on storage.
type ChunkMatch struct {
	DocumentID uuid.UUID `db:"document_id"`
	Content    string    `db:"content"`
	ChunkIndex int       `db:"chunk_index"`
	Similarity float64   `db:"similarity"`
}

// Citation is the user-facing provenance record for one retrieved chunk.
// Rebuilt on every query; persisted only as an opaque blob on messages.
type Citation struct {
	DocumentName string  `json:"documentName"`
	ChunkContent string  `json:"chunkContent"`
	Similarity   float64 `json:"similarity"`
	ChunkIndex   int     `json:"chunkIndex"`
}

// RetrievalContext is the assembled result of one retrieval query
type RetrievalContext struct {
	FormattedText string     `json:"formattedText"`
	Citations     []Citation `json:"citations"`
}

// Conversation groups chat messages for one user
type Conversation struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Title     string    `json:"title" db:"title"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Message is one turn of a conversation. Citations are stored as JSON and
// never interpreted by the persistence layer.
type Message struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	ConversationID uuid.UUID       `json:"conversation_id" db:"conversation_id"`
	Role           string          `json:"role" db:"role"`
	Content        string          `json:"content" db:"content"`
	Citations      json.RawMessage `json:"citations,omitempty" db:"citations"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}
