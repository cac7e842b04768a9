package store

import "time"

// Conversation modes.
const (
	ModeOpenChat = "open_chat"
	ModeRAG      = "rag_mode"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Document processing statuses. The vectorizer additionally writes
// "vectorizing (i/n)" progress strings between chunking and completed.
const (
	StatusPending   = "pending"
	StatusChunking  = "chunking"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type User struct {
	ID             int64     `json:"id"`
	ExternalUserID string    `json:"external_user_id"`
	PasswordHash   string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt      time.Time `json:"created_at"`
}

type Conversation struct {
	ID           string    `json:"id"` // UUID
	UserID       int64     `json:"user_id"`
	Title        string    `json:"title"`
	Mode         string    `json:"mode"` // "open_chat" or "rag_mode"
	DocumentIDs  []string  `json:"document_ids"`
	MessageCount int       `json:"message_count"`
	TotalTokens  int       `json:"total_tokens"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Message struct {
	ID             string    `json:"id"` // UUID
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"` // "user", "assistant" or "system"
	Content        string    `json:"content"`
	Tokens         int       `json:"tokens"`
	Timestamp      time.Time `json:"timestamp"`
}

type Document struct {
	ID          string `json:"id"` // UUID
	UserID      int64  `json:"user_id"`
	Filename    string `json:"filename"`
	FilePath    string `json:"-"` // On-disk blob reference, internal
	FileSize    int64  `json:"file_size"`
	ContentType string `json:"content_type"`

	// Vectorization state, mutated only by the vectorizer until terminal.
	TotalChunks      int    `json:"total_chunks"`
	VectorizedChunks int    `json:"vectorized_chunks"`
	IsVectorized     bool   `json:"is_vectorized"`
	ProcessingStatus string `json:"processing_status"`
	ProcessingError  string `json:"processing_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type Chunk struct {
	ID         string `json:"id"` // UUID
	DocumentID string `json:"document_id"`
	ChunkID    int    `json:"chunk_id"` // Position within the document, contiguous from 0
	Content    string `json:"content"`
	StartChar  int    `json:"start_char"`
	EndChar    int    `json:"end_char"`
	Tokens     int    `json:"tokens"`

	Embedding    []float32 `json:"-"` // Internal, persisted as JSON in the store
	IsVectorized bool      `json:"is_vectorized"`
}
