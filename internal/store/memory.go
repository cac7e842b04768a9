package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ensure both adapters satisfy the interface.
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// MemoryStore is an in-memory Store implementation used by tests.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]*User
	nextUserID    int64
	conversations map[string]*Conversation
	messages      map[string][]Message // keyed by conversation id
	documents     map[string]*Document
	chunks        map[string]*Chunk // keyed by chunk record id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*User),
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]Message),
		documents:     make(map[string]*Document),
		chunks:        make(map[string]*Chunk),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) CreateUser(externalUserID, passwordHash string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	user := &User{
		ID:             s.nextUserID,
		ExternalUserID: externalUserID,
		PasswordHash:   passwordHash,
		CreatedAt:      time.Now().UTC(),
	}
	s.users[externalUserID] = user
	return user, nil
}

func (s *MemoryStore) GetUserByExternalID(externalUserID string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[externalUserID]
	if !ok {
		return nil, ErrNotFound
	}
	u := *user
	return &u, nil
}

func (s *MemoryStore) CreateConversation(conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	c := *conv
	s.conversations[conv.ID] = &c
	return nil
}

func (s *MemoryStore) GetConversation(id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *conv
	return &c, nil
}

func (s *MemoryStore) ListConversations(userID int64, limit, offset int) ([]Conversation, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []Conversation
	for _, conv := range s.conversations {
		if conv.UserID == userID {
			all = append(all, *conv)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	return paginate(all, limit, offset), len(all), nil
}

func (s *MemoryStore) TouchConversation(id string, tokens int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}
	conv.MessageCount++
	conv.TotalTokens += tokens
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) DeleteConversation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return ErrNotFound
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

func (s *MemoryStore) CreateMessage(msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], *msg)
	return nil
}

func (s *MemoryStore) GetMessages(conversationID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := append([]Message(nil), s.messages[conversationID]...)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp.Before(msgs[j].Timestamp) })
	return msgs, nil
}

func (s *MemoryStore) GetLastNMessages(conversationID string, n int) ([]Message, error) {
	msgs, err := s.GetMessages(conversationID)
	if err != nil {
		return nil, err
	}
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return msgs, nil
}

func (s *MemoryStore) CreateDocument(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.ProcessingStatus == "" {
		doc.ProcessingStatus = StatusPending
	}
	doc.CreatedAt = time.Now().UTC()
	d := *doc
	s.documents[doc.ID] = &d
	return nil
}

func (s *MemoryStore) GetDocument(id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	d := *doc
	return &d, nil
}

func (s *MemoryStore) ListDocuments(userID int64, limit, offset int) ([]Document, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []Document
	for _, doc := range s.documents {
		if doc.UserID == userID {
			all = append(all, *doc)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, limit, offset), len(all), nil
}

func (s *MemoryStore) UpdateDocumentFields(id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return ErrNotFound
	}
	for name, value := range fields {
		switch name {
		case "total_chunks":
			doc.TotalChunks = value.(int)
		case "vectorized_chunks":
			doc.VectorizedChunks = value.(int)
		case "is_vectorized":
			doc.IsVectorized = value.(bool)
		case "processing_status":
			doc.ProcessingStatus = value.(string)
		case "processing_error":
			doc.ProcessingError = value.(string)
		default:
			return fmt.Errorf("unknown document field %q", name)
		}
	}
	return nil
}

func (s *MemoryStore) DeleteDocument(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return ErrNotFound
	}
	delete(s.documents, id)
	for chunkID, chunk := range s.chunks {
		if chunk.DocumentID == id {
			delete(s.chunks, chunkID)
		}
	}
	return nil
}

func (s *MemoryStore) CreateChunk(chunk *Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chunk.ID == "" {
		chunk.ID = uuid.NewString()
	}
	c := *chunk
	c.Embedding = append([]float32(nil), chunk.Embedding...)
	s.chunks[chunk.ID] = &c
	return nil
}

func (s *MemoryStore) GetChunk(id string) (*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.chunks[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *chunk
	return &c, nil
}

func (s *MemoryStore) GetChunksByDocument(documentID string) ([]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var chunks []Chunk
	for _, chunk := range s.chunks {
		if chunk.DocumentID == documentID {
			chunks = append(chunks, *chunk)
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ChunkID < chunks[j].ChunkID })
	return chunks, nil
}

func (s *MemoryStore) UpdateChunkEmbedding(id string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chunk, ok := s.chunks[id]
	if !ok {
		return ErrNotFound
	}
	chunk.Embedding = append([]float32(nil), embedding...)
	chunk.IsVectorized = true
	return nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
