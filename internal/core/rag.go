package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/docuchat/backend/internal/store"
)

const ragSystemInstruction = "You are a helpful assistant that answers questions based on the provided document excerpts. " +
	"Always cite the information from the documents when answering. " +
	"If the answer is not in the documents, say so clearly."

const noRelevantInformation = "No relevant information was found in the documents for this question."

// RAGService retrieves relevant chunks for a query and assembles the
// message sequence for the completion provider.
type RAGService struct {
	embedder  Embedder
	maxChunks int
}

func NewRAGService(embedder Embedder, maxChunks int) *RAGService {
	return &RAGService{embedder: embedder, maxChunks: maxChunks}
}

// RetrieveRelevantChunks ranks chunks against the query and returns the
// top subset. Vector ranking is used when any chunk carries an embedding;
// otherwise it falls back to lexical overlap and makes no provider call.
func (s *RAGService) RetrieveRelevantChunks(ctx context.Context, query string, chunks []store.Chunk) ([]store.Chunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	vectorized := false
	for _, chunk := range chunks {
		if len(chunk.Embedding) > 0 {
			vectorized = true
			break
		}
	}

	if !vectorized {
		relevant := RankByLexicalOverlap(query, chunks, s.maxChunks)
		log.Printf("Retrieved %d relevant chunks by lexical overlap", len(relevant))
		return relevant, nil
	}

	queryVector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	relevant := RankByEmbedding(queryVector, chunks, s.maxChunks)
	log.Printf("Retrieved %d relevant chunks by cosine similarity", len(relevant))
	return relevant, nil
}

// BuildMessages assembles the completion request: the RAG system
// instruction, the trimmed history verbatim, then a single user message
// holding the formatted excerpts followed by the query. Empty retrieval
// never fails; the excerpt block says so and the query is still asked.
func (s *RAGService) BuildMessages(query string, chunks []store.Chunk, history []store.Message) []store.Message {
	messages := make([]store.Message, 0, len(history)+2)
	messages = append(messages, store.Message{Role: store.RoleSystem, Content: ragSystemInstruction})
	messages = append(messages, history...)
	messages = append(messages, store.Message{Role: store.RoleUser, Content: buildContext(query, chunks)})
	return messages
}

func buildContext(query string, chunks []store.Chunk) string {
	var b strings.Builder

	if len(chunks) == 0 {
		b.WriteString(noRelevantInformation)
		b.WriteString("\n")
	} else {
		b.WriteString("Here is relevant information from the documents:\n")
		for i, chunk := range chunks {
			fmt.Fprintf(&b, "\n[Document Excerpt %d]\n%s\n", i+1, chunk.Content)
		}
	}

	b.WriteString("\nBased on the above information, please answer the following question:\n")
	b.WriteString(query)
	return b.String()
}
