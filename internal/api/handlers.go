package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/docuchat/backend/internal/auth"
	"github.com/docuchat/backend/internal/core"
	"github.com/docuchat/backend/internal/store"
)

type contextKey string

const userIDKey contextKey = "userID"

const maxUploadBytes = 10 << 20 // 10 MiB

type APIHandler struct {
	store        store.Store
	conversation *core.ConversationService
	vectorizer   *core.Vectorizer
	jwtSecret    string
	uploadDir    string
}

func NewAPIHandler(st store.Store, cs *core.ConversationService, v *core.Vectorizer, jwtSecret, uploadDir string) *APIHandler {
	return &APIHandler{
		store:        st,
		conversation: cs,
		vectorizer:   v,
		jwtSecret:    jwtSecret,
		uploadDir:    uploadDir,
	}
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		externalUserID, err := auth.ValidateJWT(tokenString, h.jwtSecret)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		user, err := h.store.GetUserByExternalID(externalUserID)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}
		if err != nil {
			log.Printf("Error resolving user %s: %v", externalUserID, err)
			http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestUserID(r *http.Request) int64 {
	id, _ := r.Context().Value(userIDKey).(int64)
	return id
}

type CredentialsRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.Password == "" {
		http.Error(w, "User ID and password are required", http.StatusBadRequest)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("Error hashing password for user %s: %v", req.UserID, err)
		http.Error(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	user, err := h.store.CreateUser(req.UserID, hashedPassword)
	if err != nil {
		log.Printf("Error creating user %s: %v", req.UserID, err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.store.GetUserByExternalID(req.UserID)
	if err != nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateJWT(user.ExternalUserID, h.jwtSecret)
	if err != nil {
		log.Printf("Error generating token for user %s: %v", req.UserID, err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// Conversation handlers

type CreateConversationRequest struct {
	Message     string   `json:"message"`
	Mode        string   `json:"mode"`
	DocumentIDs []string `json:"document_ids"`
}

func (h *APIHandler) CreateConversationHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}
	if req.Mode == "" {
		req.Mode = store.ModeOpenChat
	}

	conv, userMsg, assistantMsg, err := h.conversation.CreateConversation(r.Context(), requestUserID(r), req.Message, req.Mode, req.DocumentIDs)
	if err != nil {
		h.writeConversationError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"conversation":      conv,
		"user_message":      userMsg,
		"assistant_message": assistantMsg,
	})
}

func (h *APIHandler) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	conversations, total, err := h.conversation.ListConversations(requestUserID(r), limit, offset)
	if err != nil {
		log.Printf("Failed to list conversations: %v", err)
		http.Error(w, "Failed to list conversations", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, listEnvelope("conversations", conversations, total, limit, offset))
}

func (h *APIHandler) GetConversationHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	conv, messages, err := h.conversation.GetConversationWithMessages(conversationID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("Failed to get conversation %s: %v", conversationID, err)
		http.Error(w, "Failed to get conversation", http.StatusInternalServerError)
		return
	}
	if conv.UserID != requestUserID(r) {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversation": conv,
		"messages":     messages,
	})
}

type AddMessageRequest struct {
	Message string `json:"message"`
}

func (h *APIHandler) AddMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req AddMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	conversationID := chi.URLParam(r, "conversationID")
	if !h.ownsConversation(w, r, conversationID) {
		return
	}

	userMsg, assistantMsg, err := h.conversation.AddMessage(r.Context(), conversationID, req.Message)
	if err != nil {
		h.writeConversationError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user_message":      userMsg,
		"assistant_message": assistantMsg,
	})
}

func (h *APIHandler) DeleteConversationHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if !h.ownsConversation(w, r, conversationID) {
		return
	}

	err := h.conversation.DeleteConversation(conversationID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("Failed to delete conversation %s: %v", conversationID, err)
		http.Error(w, "Failed to delete conversation", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "conversation_id": conversationID})
}

// ownsConversation verifies the conversation exists and belongs to the
// requesting user. Conversations of other users are reported as not
// found, never as forbidden. Writes the error response on failure.
func (h *APIHandler) ownsConversation(w http.ResponseWriter, r *http.Request, conversationID string) bool {
	conv, err := h.store.GetConversation(conversationID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return false
	}
	if err != nil {
		log.Printf("Failed to get conversation %s: %v", conversationID, err)
		http.Error(w, "Failed to process request", http.StatusInternalServerError)
		return false
	}
	if conv.UserID != requestUserID(r) {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return false
	}
	return true
}

// writeConversationError maps the processing gate to a retryable 409,
// missing records to 404 and everything else to 500.
func (h *APIHandler) writeConversationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrDocumentsProcessing):
		http.Error(w, "Documents are still being processed, please retry shortly", http.StatusConflict)
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	default:
		log.Printf("Conversation request failed: %v", err)
		http.Error(w, "Failed to process message", http.StatusInternalServerError)
	}
}

// Document handlers

func (h *APIHandler) UploadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "A file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		http.Error(w, "Failed to read file", http.StatusInternalServerError)
		return
	}
	if len(content) > maxUploadBytes {
		http.Error(w, "File exceeds the 10 MiB upload limit", http.StatusRequestEntityTooLarge)
		return
	}
	if !utf8.Valid(content) {
		http.Error(w, "Only UTF-8 text files are supported", http.StatusBadRequest)
		return
	}

	docID := uuid.NewString()
	filePath := filepath.Join(h.uploadDir, docID+".txt")
	if err := os.WriteFile(filePath, content, 0o644); err != nil {
		log.Printf("Failed to store upload %s: %v", filePath, err)
		http.Error(w, "Failed to store file", http.StatusInternalServerError)
		return
	}

	doc := &store.Document{
		ID:               docID,
		UserID:           requestUserID(r),
		Filename:         header.Filename,
		FilePath:         filePath,
		FileSize:         int64(len(content)),
		ContentType:      header.Header.Get("Content-Type"),
		ProcessingStatus: store.StatusPending,
	}
	if err := h.store.CreateDocument(doc); err != nil {
		log.Printf("Failed to create document record: %v", err)
		http.Error(w, "Failed to create document", http.StatusInternalServerError)
		return
	}

	h.vectorizer.Start(doc.ID)

	writeJSON(w, http.StatusCreated, map[string]any{
		"document_id": doc.ID,
		"filename":    doc.Filename,
		"message":     "Document uploaded, vectorization started",
	})
}

func (h *APIHandler) ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	documents, total, err := h.store.ListDocuments(requestUserID(r), limit, offset)
	if err != nil {
		log.Printf("Failed to list documents: %v", err)
		http.Error(w, "Failed to list documents", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, listEnvelope("documents", documents, total, limit, offset))
}

func (h *APIHandler) GetDocumentHandler(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")
	doc, err := h.store.GetDocument(documentID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("Failed to get document %s: %v", documentID, err)
		http.Error(w, "Failed to get document", http.StatusInternalServerError)
		return
	}
	if doc.UserID != requestUserID(r) {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}

	if r.URL.Query().Get("include_content") == "true" {
		content, err := os.ReadFile(doc.FilePath)
		if err != nil {
			log.Printf("Failed to read content for document %s: %v", documentID, err)
			http.Error(w, "Failed to read document content", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			*store.Document
			Content string `json:"content"`
		}{doc, string(content)})
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (h *APIHandler) DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")
	doc, err := h.store.GetDocument(documentID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && doc.UserID != requestUserID(r)) {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("Failed to get document %s: %v", documentID, err)
		http.Error(w, "Failed to delete document", http.StatusInternalServerError)
		return
	}

	if err := h.store.DeleteDocument(documentID); err != nil {
		log.Printf("Failed to delete document %s: %v", documentID, err)
		http.Error(w, "Failed to delete document", http.StatusInternalServerError)
		return
	}
	if doc.FilePath != "" {
		if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
			log.Printf("Failed to remove blob for document %s: %v", documentID, err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "document_id": documentID})
}

// helpers

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v >= 1 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

func listEnvelope[T any](key string, items []T, total, limit, offset int) map[string]any {
	if items == nil {
		items = []T{}
	}
	return map[string]any{
		key:        items,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
		"has_more": offset+limit < total,
	}
}
