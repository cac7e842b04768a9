package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/docuchat/backend/internal/store"
	"github.com/docuchat/backend/internal/utils"
)

// ErrDocumentsProcessing signals that retrieval was refused because one
// or more referenced documents are not fully vectorized yet. It is a
// retryable condition, not a hard failure.
var ErrDocumentsProcessing = errors.New("documents are still being processed")

const llmUnavailableReply = "I apologize, but I'm temporarily unable to respond. Please try again in a moment."

// ConversationService owns conversation and message flow: persistence,
// history assembly, the RAG gate, and completion calls.
type ConversationService struct {
	store         store.Store
	completer     Completer
	rag           *RAGService
	contextWindow int
	historyWindow int
}

func NewConversationService(st store.Store, completer Completer, rag *RAGService, contextWindow, historyWindow int) *ConversationService {
	return &ConversationService{
		store:         st,
		completer:     completer,
		rag:           rag,
		contextWindow: contextWindow,
		historyWindow: historyWindow,
	}
}

// CreateConversation starts a conversation with its first user message
// and returns the conversation along with the first message pair.
func (s *ConversationService) CreateConversation(ctx context.Context, userID int64, message, mode string, documentIDs []string) (*store.Conversation, *store.Message, *store.Message, error) {
	if mode != store.ModeOpenChat && mode != store.ModeRAG {
		return nil, nil, nil, fmt.Errorf("unknown conversation mode %q", mode)
	}

	title, err := s.completer.GenerateTitle(ctx, message)
	if err != nil {
		log.Printf("Title generation failed, using message prefix: %v", err)
		title = fallbackTitle(message)
	}

	conv := &store.Conversation{
		UserID:      userID,
		Title:       title,
		Mode:        mode,
		DocumentIDs: documentIDs,
	}
	if err := s.store.CreateConversation(conv); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	log.Printf("Created conversation %s for user %d (mode %s)", conv.ID, userID, mode)

	userMsg, assistantMsg, err := s.AddMessage(ctx, conv.ID, message)
	if err != nil {
		return nil, nil, nil, err
	}
	return conv, userMsg, assistantMsg, nil
}

// AddMessage appends a user message to a conversation and generates the
// assistant reply. In RAG mode the request is refused with
// ErrDocumentsProcessing, before any provider call, while any referenced
// document is still vectorizing.
func (s *ConversationService) AddMessage(ctx context.Context, conversationID, content string) (*store.Message, *store.Message, error) {
	conv, err := s.store.GetConversation(conversationID)
	if err != nil {
		return nil, nil, err
	}

	if conv.Mode == store.ModeRAG {
		if err := s.checkDocumentsReady(conv.DocumentIDs); err != nil {
			return nil, nil, err
		}
	}

	history, err := s.store.GetLastNMessages(conversationID, s.historyWindow)
	if err != nil {
		log.Printf("Failed to load history for conversation %s, proceeding without it: %v", conversationID, err)
		history = nil
	}

	userMsg := &store.Message{
		ConversationID: conversationID,
		Role:           store.RoleUser,
		Content:        content,
		Tokens:         utils.EstimateTokens(content),
	}
	if err := s.persistMessage(userMsg); err != nil {
		return nil, nil, fmt.Errorf("failed to store user message: %w", err)
	}

	llmMessages, err := s.prepareMessages(ctx, conv, history, content)
	if err != nil {
		return nil, nil, err
	}
	llmMessages = utils.TruncateMessagesToFit(llmMessages, s.contextWindow)

	assistantMsg := &store.Message{
		ConversationID: conversationID,
		Role:           store.RoleAssistant,
	}

	reply, totalTokens, err := s.completer.Complete(ctx, llmMessages)
	if err != nil {
		log.Printf("Completion failed for conversation %s: %v", conversationID, err)
		assistantMsg.Content = llmUnavailableReply
	} else {
		assistantMsg.Content = reply
		assistantMsg.Tokens = totalTokens
	}

	if err := s.persistMessage(assistantMsg); err != nil {
		return nil, nil, fmt.Errorf("failed to store assistant message: %w", err)
	}
	return userMsg, assistantMsg, nil
}

// checkDocumentsReady enforces the retrieval gate: every referenced
// document must be fully vectorized before a RAG query may proceed.
func (s *ConversationService) checkDocumentsReady(documentIDs []string) error {
	for _, id := range documentIDs {
		doc, err := s.store.GetDocument(id)
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("Referenced document %s no longer exists, skipping", id)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to check document %s: %w", id, err)
		}
		if !doc.IsVectorized {
			return fmt.Errorf("document %s (%s): %w", doc.ID, doc.ProcessingStatus, ErrDocumentsProcessing)
		}
	}
	return nil
}

func (s *ConversationService) prepareMessages(ctx context.Context, conv *store.Conversation, history []store.Message, query string) ([]store.Message, error) {
	if conv.Mode == store.ModeRAG && len(conv.DocumentIDs) > 0 {
		var allChunks []store.Chunk
		for _, docID := range conv.DocumentIDs {
			chunks, err := s.store.GetChunksByDocument(docID)
			if err != nil {
				return nil, fmt.Errorf("failed to load chunks for document %s: %w", docID, err)
			}
			allChunks = append(allChunks, chunks...)
		}

		relevant, err := s.rag.RetrieveRelevantChunks(ctx, query, allChunks)
		if err != nil {
			return nil, err
		}
		return s.rag.BuildMessages(query, relevant, trimHistory(history)), nil
	}

	messages := make([]store.Message, 0, len(history)+2)
	messages = append(messages, store.Message{Role: store.RoleSystem, Content: openChatSystemInstruction})
	messages = append(messages, trimHistory(history)...)
	messages = append(messages, store.Message{Role: store.RoleUser, Content: query})
	return messages, nil
}

// trimHistory drops system messages from stored history; the instruction
// for the current turn is supplied by the message builder.
func trimHistory(history []store.Message) []store.Message {
	trimmed := make([]store.Message, 0, len(history))
	for _, msg := range history {
		if msg.Role != store.RoleSystem {
			trimmed = append(trimmed, msg)
		}
	}
	return trimmed
}

func (s *ConversationService) persistMessage(msg *store.Message) error {
	if err := s.store.CreateMessage(msg); err != nil {
		return err
	}
	if err := s.store.TouchConversation(msg.ConversationID, msg.Tokens); err != nil {
		log.Printf("Failed to update stats for conversation %s: %v", msg.ConversationID, err)
	}
	return nil
}

// GetConversationWithMessages returns a conversation and its full
// message history.
func (s *ConversationService) GetConversationWithMessages(conversationID string) (*store.Conversation, []store.Message, error) {
	conv, err := s.store.GetConversation(conversationID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.store.GetMessages(conversationID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return conv, messages, nil
}

func (s *ConversationService) ListConversations(userID int64, limit, offset int) ([]store.Conversation, int, error) {
	return s.store.ListConversations(userID, limit, offset)
}

func (s *ConversationService) DeleteConversation(conversationID string) error {
	return s.store.DeleteConversation(conversationID)
}

func fallbackTitle(message string) string {
	words := strings.Fields(message)
	if len(words) > 5 {
		return strings.Join(words[:5], " ") + "..."
	}
	return strings.Join(words, " ")
}
