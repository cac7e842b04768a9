package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping() error {
	return s.db.Ping()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        external_user_id TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS conversations (
        id TEXT PRIMARY KEY, -- UUID
        user_id INTEGER NOT NULL,
        title TEXT NOT NULL DEFAULT '',
        mode TEXT NOT NULL CHECK (mode IN ('open_chat', 'rag_mode')),
        document_ids TEXT NOT NULL DEFAULT '[]', -- JSON array of document UUIDs
        message_count INTEGER NOT NULL DEFAULT 0,
        total_tokens INTEGER NOT NULL DEFAULT 0,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );
    CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations (user_id);

    CREATE TABLE IF NOT EXISTS messages (
        id TEXT PRIMARY KEY, -- UUID
        conversation_id TEXT NOT NULL,
        role TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
        content TEXT NOT NULL,
        tokens INTEGER NOT NULL DEFAULT 0,
        timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (conversation_id) REFERENCES conversations (id)
    );
    CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, timestamp);

    CREATE TABLE IF NOT EXISTS documents (
        id TEXT PRIMARY KEY, -- UUID
        user_id INTEGER NOT NULL,
        filename TEXT NOT NULL,
        file_path TEXT NOT NULL,
        file_size INTEGER NOT NULL DEFAULT 0,
        content_type TEXT NOT NULL DEFAULT '',
        total_chunks INTEGER NOT NULL DEFAULT 0,
        vectorized_chunks INTEGER NOT NULL DEFAULT 0,
        is_vectorized BOOLEAN NOT NULL DEFAULT FALSE,
        processing_status TEXT NOT NULL DEFAULT 'pending',
        processing_error TEXT NOT NULL DEFAULT '',
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );
    CREATE INDEX IF NOT EXISTS idx_documents_user ON documents (user_id);

    CREATE TABLE IF NOT EXISTS chunks (
        id TEXT PRIMARY KEY, -- UUID
        document_id TEXT NOT NULL,
        chunk_id INTEGER NOT NULL,
        content TEXT NOT NULL,
        start_char INTEGER NOT NULL,
        end_char INTEGER NOT NULL,
        tokens INTEGER NOT NULL DEFAULT 0,
        embedding_json TEXT, -- JSON string of []float32, NULL until vectorized
        is_vectorized BOOLEAN NOT NULL DEFAULT FALSE,
        FOREIGN KEY (document_id) REFERENCES documents (id)
    );
    CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks (document_id, chunk_id);
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods
func (s *SQLiteStore) GetUserByExternalID(externalUserID string) (*User, error) {
	var user User
	err := s.db.QueryRow("SELECT id, external_user_id, password_hash, created_at FROM users WHERE external_user_id = ?", externalUserID).
		Scan(&user.ID, &user.ExternalUserID, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) CreateUser(externalUserID, passwordHash string) (*User, error) {
	res, err := s.db.Exec("INSERT INTO users (external_user_id, password_hash) VALUES (?, ?)", externalUserID, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	id, _ := res.LastInsertId()

	var user User
	err = s.db.QueryRow("SELECT id, external_user_id, password_hash, created_at FROM users WHERE id = ?", id).
		Scan(&user.ID, &user.ExternalUserID, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &user, nil
}

// Conversation methods
func (s *SQLiteStore) CreateConversation(conv *Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	conv.CreatedAt = now
	conv.UpdatedAt = now

	docIDs, err := json.Marshal(conv.DocumentIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal document ids: %w", err)
	}

	_, err = s.db.Exec(
		"INSERT INTO conversations (id, user_id, title, mode, document_ids, message_count, total_tokens, created_at, updated_at) VALUES (?, ?, ?, ?, ?, 0, 0, ?, ?)",
		conv.ID, conv.UserID, conv.Title, conv.Mode, string(docIDs), conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) scanConversation(row interface{ Scan(...any) error }) (*Conversation, error) {
	var conv Conversation
	var docIDs string
	err := row.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.Mode, &docIDs,
		&conv.MessageCount, &conv.TotalTokens, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if docIDs != "" {
		if err := json.Unmarshal([]byte(docIDs), &conv.DocumentIDs); err != nil {
			log.Printf("Warning: failed to unmarshal document ids for conversation %s: %v", conv.ID, err)
			conv.DocumentIDs = nil
		}
	}
	return &conv, nil
}

const conversationColumns = "id, user_id, title, mode, document_ids, message_count, total_tokens, created_at, updated_at"

func (s *SQLiteStore) GetConversation(id string) (*Conversation, error) {
	row := s.db.QueryRow("SELECT "+conversationColumns+" FROM conversations WHERE id = ?", id)
	conv, err := s.scanConversation(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

func (s *SQLiteStore) ListConversations(userID int64, limit, offset int) ([]Conversation, int, error) {
	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM conversations WHERE user_id = ?", userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count conversations: %w", err)
	}

	rows, err := s.db.Query("SELECT "+conversationColumns+" FROM conversations WHERE user_id = ? ORDER BY updated_at DESC LIMIT ? OFFSET ?", userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		conv, err := s.scanConversation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		conversations = append(conversations, *conv)
	}
	return conversations, total, rows.Err()
}

// TouchConversation bumps the message counter, adds the message's tokens
// to the running total and refreshes updated_at.
func (s *SQLiteStore) TouchConversation(id string, tokens int) error {
	res, err := s.db.Exec(
		"UPDATE conversations SET message_count = message_count + 1, total_tokens = total_tokens + ?, updated_at = ? WHERE id = ?",
		tokens, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update conversation stats: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteConversation(id string) error {
	if _, err := s.db.Exec("DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	res, err := s.db.Exec("DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Message methods
func (s *SQLiteStore) CreateMessage(msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	_, err := s.db.Exec(
		"INSERT INTO messages (id, conversation_id, role, content, tokens, timestamp) VALUES (?, ?, ?, ?, ?, ?)",
		msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.Tokens, msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetMessages(conversationID string) ([]Message, error) {
	rows, err := s.db.Query(
		"SELECT id, conversation_id, role, content, tokens, timestamp FROM messages WHERE conversation_id = ? ORDER BY timestamp ASC",
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// GetLastNMessages returns the most recent n messages in chronological
// (oldest first) order.
func (s *SQLiteStore) GetLastNMessages(conversationID string, n int) ([]Message, error) {
	rows, err := s.db.Query(`
        SELECT id, conversation_id, role, content, tokens, timestamp
        FROM (
            SELECT id, conversation_id, role, content, tokens, timestamp
            FROM messages
            WHERE conversation_id = ?
            ORDER BY timestamp DESC
            LIMIT ?
        ) ORDER BY timestamp ASC`,
		conversationID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.Tokens, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Document methods
func (s *SQLiteStore) CreateDocument(doc *Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.ProcessingStatus == "" {
		doc.ProcessingStatus = StatusPending
	}
	doc.CreatedAt = time.Now().UTC()

	_, err := s.db.Exec(
		`INSERT INTO documents (id, user_id, filename, file_path, file_size, content_type,
            total_chunks, vectorized_chunks, is_vectorized, processing_status, processing_error, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.UserID, doc.Filename, doc.FilePath, doc.FileSize, doc.ContentType,
		doc.TotalChunks, doc.VectorizedChunks, doc.IsVectorized, doc.ProcessingStatus, doc.ProcessingError, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

const documentColumns = `id, user_id, filename, file_path, file_size, content_type,
    total_chunks, vectorized_chunks, is_vectorized, processing_status, processing_error, created_at`

func scanDocument(row interface{ Scan(...any) error }) (*Document, error) {
	var doc Document
	err := row.Scan(&doc.ID, &doc.UserID, &doc.Filename, &doc.FilePath, &doc.FileSize, &doc.ContentType,
		&doc.TotalChunks, &doc.VectorizedChunks, &doc.IsVectorized, &doc.ProcessingStatus, &doc.ProcessingError, &doc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *SQLiteStore) GetDocument(id string) (*Document, error) {
	row := s.db.QueryRow("SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	doc, err := scanDocument(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func (s *SQLiteStore) ListDocuments(userID int64, limit, offset int) ([]Document, int, error) {
	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM documents WHERE user_id = ?", userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	rows, err := s.db.Query("SELECT "+documentColumns+" FROM documents WHERE user_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?", userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var documents []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan document row: %w", err)
		}
		documents = append(documents, *doc)
	}
	return documents, total, rows.Err()
}

// documentFieldColumns whitelists the fields the vectorizer is allowed to
// patch on a document record.
var documentFieldColumns = map[string]string{
	"total_chunks":      "total_chunks",
	"vectorized_chunks": "vectorized_chunks",
	"is_vectorized":     "is_vectorized",
	"processing_status": "processing_status",
	"processing_error":  "processing_error",
}

func (s *SQLiteStore) UpdateDocumentFields(id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	setClauses := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	for name, value := range fields {
		column, ok := documentFieldColumns[name]
		if !ok {
			return fmt.Errorf("unknown document field %q", name)
		}
		setClauses = append(setClauses, column+" = ?")
		args = append(args, value)
	}
	args = append(args, id)

	res, err := s.db.Exec("UPDATE documents SET "+strings.Join(setClauses, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to update document fields: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDocument removes a document and all its chunks.
func (s *SQLiteStore) DeleteDocument(id string) error {
	if _, err := s.db.Exec("DELETE FROM chunks WHERE document_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	res, err := s.db.Exec("DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Chunk methods
func (s *SQLiteStore) CreateChunk(chunk *Chunk) error {
	if chunk.ID == "" {
		chunk.ID = uuid.NewString()
	}

	var embeddingJSON sql.NullString
	if chunk.Embedding != nil {
		data, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding: %w", err)
		}
		embeddingJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.Exec(
		"INSERT INTO chunks (id, document_id, chunk_id, content, start_char, end_char, tokens, embedding_json, is_vectorized) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		chunk.ID, chunk.DocumentID, chunk.ChunkID, chunk.Content, chunk.StartChar, chunk.EndChar, chunk.Tokens, embeddingJSON, chunk.IsVectorized,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	return nil
}

// UpdateChunkEmbedding assigns a chunk's embedding and marks it
// vectorized. This is the single mutation a chunk record ever receives.
func (s *SQLiteStore) UpdateChunkEmbedding(id string, embedding []float32) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}
	res, err := s.db.Exec("UPDATE chunks SET embedding_json = ?, is_vectorized = TRUE WHERE id = ?", string(data), id)
	if err != nil {
		return fmt.Errorf("failed to update chunk embedding: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

const chunkColumns = "id, document_id, chunk_id, content, start_char, end_char, tokens, embedding_json, is_vectorized"

func scanChunk(row interface{ Scan(...any) error }) (*Chunk, error) {
	var chunk Chunk
	var embeddingJSON sql.NullString
	err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.ChunkID, &chunk.Content,
		&chunk.StartChar, &chunk.EndChar, &chunk.Tokens, &embeddingJSON, &chunk.IsVectorized)
	if err != nil {
		return nil, err
	}
	if embeddingJSON.Valid && embeddingJSON.String != "" {
		if err := json.Unmarshal([]byte(embeddingJSON.String), &chunk.Embedding); err != nil {
			log.Printf("Warning: failed to unmarshal embedding for chunk %s: %v. Embedding will be empty.", chunk.ID, err)
			chunk.Embedding = nil
		}
	}
	return &chunk, nil
}

func (s *SQLiteStore) GetChunk(id string) (*Chunk, error) {
	row := s.db.QueryRow("SELECT "+chunkColumns+" FROM chunks WHERE id = ?", id)
	chunk, err := scanChunk(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}
	return chunk, nil
}

// GetChunksByDocument returns a document's chunks in ascending chunk_id
// (document position) order.
func (s *SQLiteStore) GetChunksByDocument(documentID string) ([]Chunk, error) {
	rows, err := s.db.Query("SELECT "+chunkColumns+" FROM chunks WHERE document_id = ? ORDER BY chunk_id ASC", documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		chunks = append(chunks, *chunk)
	}
	return chunks, rows.Err()
}
