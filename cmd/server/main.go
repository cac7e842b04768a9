package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/docuchat/backend/internal/api"
	"github.com/docuchat/backend/internal/config"
	"github.com/docuchat/backend/internal/core"
	"github.com/docuchat/backend/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if cfg.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("Failed to create upload directory: %v", err)
	}

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	// Initialize the Gemini client shared by the embedding and completion
	// services.
	ctx := context.Background()
	genaiClient, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		log.Fatalf("Failed to create GenAI client: %v", err)
	}
	defer genaiClient.Close()

	embedder := core.NewGeminiEmbedder(genaiClient, cfg.EmbeddingModel, cfg.EmbeddingDimension)
	completer := core.NewGeminiCompleter(genaiClient, cfg.ChatModel, cfg.MaxTokens, cfg.Temperature)

	chunker, err := core.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		log.Fatalf("Invalid chunker configuration: %v", err)
	}

	vectorizer := core.NewVectorizer(dbStore, embedder, chunker, time.Duration(cfg.VectorizeDelayMS)*time.Millisecond)
	ragService := core.NewRAGService(embedder, cfg.MaxChunksPerQuery)
	conversationService := core.NewConversationService(dbStore, completer, ragService, cfg.ContextWindowSize, cfg.HistoryWindow)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(dbStore, conversationService, vectorizer, cfg.JWTSecret, cfg.UploadDir)
	router := api.NewRouter(apiHandler, healthHandler(dbStore))

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give active connections time to finish. In-flight vectorization
	// pipelines are abandoned; affected documents keep whatever partial
	// state they reached.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}

func healthHandler(dbStore *store.SQLiteStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "healthy"}
		code := http.StatusOK
		if err := dbStore.Ping(); err != nil {
			status["status"] = "unhealthy"
			status["database"] = "disconnected"
			code = http.StatusServiceUnavailable
		} else {
			status["database"] = "connected"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(status)
	}
}
