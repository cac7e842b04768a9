package core

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/docuchat/backend/internal/store"
)

// Vectorizer runs the per-document vectorization pipeline as a tracked
// background task: chunk, persist chunk records, then embed each chunk
// strictly sequentially, updating the document's progress as it goes.
//
// Documents vectorize independently and concurrently; within one document
// chunk i+1 never starts before chunk i's attempt completes, which bounds
// provider rate consumption per document.
type Vectorizer struct {
	store    store.Store
	embedder Embedder
	chunker  *Chunker

	// delay between embedding calls, to respect provider rate limits.
	delay time.Duration

	mu      sync.Mutex
	running map[string]chan struct{}
}

func NewVectorizer(st store.Store, embedder Embedder, chunker *Chunker, delay time.Duration) *Vectorizer {
	return &Vectorizer{
		store:    st,
		embedder: embedder,
		chunker:  chunker,
		delay:    delay,
		running:  make(map[string]chan struct{}),
	}
}

// Start launches the pipeline for a document in the background. It
// returns false when a run for the same document is already in flight;
// a finished document may be re-triggered and reprocesses from scratch.
func (v *Vectorizer) Start(documentID string) bool {
	v.mu.Lock()
	if _, active := v.running[documentID]; active {
		v.mu.Unlock()
		log.Printf("Vectorization already running for document %s, ignoring trigger", documentID)
		return false
	}
	done := make(chan struct{})
	v.running[documentID] = done
	v.mu.Unlock()

	go func() {
		defer func() {
			v.mu.Lock()
			delete(v.running, documentID)
			v.mu.Unlock()
			close(done)
		}()
		v.process(context.Background(), documentID)
	}()

	log.Printf("Started background vectorization for document %s", documentID)
	return true
}

// Wait blocks until the pipeline for a document finishes. It returns
// immediately when no run is in flight.
func (v *Vectorizer) Wait(documentID string) {
	v.mu.Lock()
	done, active := v.running[documentID]
	v.mu.Unlock()
	if active {
		<-done
	}
}

// Status reports the document's current vectorization state.
func (v *Vectorizer) Status(documentID string) (*store.Document, error) {
	return v.store.GetDocument(documentID)
}

func (v *Vectorizer) process(ctx context.Context, documentID string) {
	defer func() {
		if r := recover(); r != nil {
			v.markFailed(documentID, fmt.Sprintf("panic during vectorization: %v", r))
		}
	}()

	doc, err := v.store.GetDocument(documentID)
	if err != nil {
		log.Printf("Vectorization aborted, document %s not readable: %v", documentID, err)
		v.markFailed(documentID, fmt.Sprintf("document not found: %v", err))
		return
	}
	if doc.FilePath == "" {
		v.markFailed(documentID, "document has no file path")
		return
	}

	v.setStatus(documentID, store.StatusChunking)

	content, err := os.ReadFile(doc.FilePath)
	if err != nil {
		v.markFailed(documentID, fmt.Sprintf("failed to read document content: %v", err))
		return
	}

	chunks := v.chunker.Chunk(string(content), doc.Filename)
	if len(chunks) == 0 {
		v.markFailed(documentID, "no chunks generated from document content")
		return
	}

	// Persist every chunk record, unvectorized, before any embedding
	// starts. Readers can observe the chunk set while embedding is still
	// in progress.
	chunkIDs := make([]string, 0, len(chunks))
	for i := range chunks {
		chunks[i].DocumentID = documentID
		if err := v.store.CreateChunk(&chunks[i]); err != nil {
			v.markFailed(documentID, fmt.Sprintf("failed to store chunk %d: %v", chunks[i].ChunkID, err))
			return
		}
		chunkIDs = append(chunkIDs, chunks[i].ID)
	}

	total := len(chunkIDs)
	if err := v.store.UpdateDocumentFields(documentID, map[string]any{"total_chunks": total}); err != nil {
		v.markFailed(documentID, fmt.Sprintf("failed to record chunk count: %v", err))
		return
	}
	log.Printf("Stored %d chunks for document %s", total, documentID)

	// Embed one chunk at a time in document order. A failed chunk is
	// skipped, not fatal; it stays unvectorized.
	vectorized := 0
	for i, chunkID := range chunkIDs {
		if err := v.vectorizeChunk(ctx, chunkID); err != nil {
			log.Printf("Failed to vectorize chunk %d/%d of document %s: %v. Skipping.", i+1, total, documentID, err)
		} else {
			vectorized++
			err := v.store.UpdateDocumentFields(documentID, map[string]any{
				"vectorized_chunks": vectorized,
				"processing_status": fmt.Sprintf("vectorizing (%d/%d)", vectorized, total),
			})
			if err != nil {
				v.markFailed(documentID, fmt.Sprintf("failed to record progress: %v", err))
				return
			}
		}

		if v.delay > 0 && i < total-1 {
			time.Sleep(v.delay)
		}
	}

	// The document is marked vectorized once the loop completes even when
	// chunks were skipped; vectorized_chunks < total_chunks is the quality
	// signal callers can read.
	err = v.store.UpdateDocumentFields(documentID, map[string]any{
		"is_vectorized":     true,
		"vectorized_chunks": vectorized,
		"total_chunks":      total,
		"processing_status": store.StatusCompleted,
	})
	if err != nil {
		v.markFailed(documentID, fmt.Sprintf("failed to mark document completed: %v", err))
		return
	}

	log.Printf("Document %s vectorization complete (%d/%d chunks)", documentID, vectorized, total)
}

func (v *Vectorizer) vectorizeChunk(ctx context.Context, chunkID string) error {
	chunk, err := v.store.GetChunk(chunkID)
	if err != nil {
		return fmt.Errorf("fetch chunk: %w", err)
	}

	embedding, err := v.embedder.EmbedText(ctx, chunk.Content)
	if err != nil {
		return fmt.Errorf("embed chunk: %w", err)
	}

	if err := v.store.UpdateChunkEmbedding(chunkID, embedding); err != nil {
		return fmt.Errorf("persist embedding: %w", err)
	}
	return nil
}

func (v *Vectorizer) setStatus(documentID, status string) {
	if err := v.store.UpdateDocumentFields(documentID, map[string]any{"processing_status": status}); err != nil {
		log.Printf("Failed to update status for document %s: %v", documentID, err)
	}
}

func (v *Vectorizer) markFailed(documentID, message string) {
	log.Printf("Vectorization failed for document %s: %s", documentID, message)
	err := v.store.UpdateDocumentFields(documentID, map[string]any{
		"is_vectorized":     false,
		"processing_status": store.StatusFailed,
		"processing_error":  message,
	})
	if err != nil {
		log.Printf("Failed to mark document %s as failed: %v", documentID, err)
	}
}
