package store

import "errors"

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the persistence boundary for the service. Identifier coercion
// to whatever key type the backing database uses belongs to the adapter,
// never to the callers.
type Store interface {
	// Users
	CreateUser(externalUserID, passwordHash string) (*User, error)
	GetUserByExternalID(externalUserID string) (*User, error)

	// Conversations
	CreateConversation(conv *Conversation) error
	GetConversation(id string) (*Conversation, error)
	ListConversations(userID int64, limit, offset int) ([]Conversation, int, error)
	TouchConversation(id string, tokens int) error
	DeleteConversation(id string) error

	// Messages
	CreateMessage(msg *Message) error
	GetMessages(conversationID string) ([]Message, error)
	GetLastNMessages(conversationID string, n int) ([]Message, error)

	// Documents
	CreateDocument(doc *Document) error
	GetDocument(id string) (*Document, error)
	ListDocuments(userID int64, limit, offset int) ([]Document, int, error)
	UpdateDocumentFields(id string, fields map[string]any) error
	DeleteDocument(id string) error

	// Chunks
	CreateChunk(chunk *Chunk) error
	GetChunk(id string) (*Chunk, error)
	GetChunksByDocument(documentID string) ([]Chunk, error)
	UpdateChunkEmbedding(id string, embedding []float32) error

	Close() error
}
