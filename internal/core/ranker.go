package core

import (
	"regexp"
	"sort"
	"strings"

	"github.com/docuchat/backend/internal/store"
	"github.com/docuchat/backend/internal/utils"
)

var wordPattern = regexp.MustCompile(`\w+`)

type scoredChunk struct {
	chunk store.Chunk
	score float32
}

// topByScore sorts descending by score, keeping the original chunk order
// for ties, and truncates to maxChunks.
func topByScore(scored []scoredChunk, maxChunks int) []store.Chunk {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > maxChunks {
		scored = scored[:maxChunks]
	}
	chunks := make([]store.Chunk, len(scored))
	for i, sc := range scored {
		chunks[i] = sc.chunk
	}
	return chunks
}

// RankByEmbedding scores chunks against a query vector by cosine
// similarity and returns the top maxChunks in descending score order.
// Chunks without an embedding or with a zero-norm vector are excluded.
// There is no minimum-score floor.
func RankByEmbedding(queryVector []float32, chunks []store.Chunk, maxChunks int) []store.Chunk {
	scored := make([]scoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 || utils.Magnitude(chunk.Embedding) == 0 {
			continue
		}
		score, err := utils.CosineSimilarity(queryVector, chunk.Embedding)
		if err != nil {
			// Dimension mismatch; the chunk cannot be compared.
			continue
		}
		scored = append(scored, scoredChunk{chunk: chunk, score: score})
	}
	return topByScore(scored, maxChunks)
}

// RankByLexicalOverlap scores chunks by word-set overlap with the query:
// |query words ∩ chunk words| / |query words|. Chunks that share no words
// with the query are excluded. Used when no embeddings exist.
func RankByLexicalOverlap(query string, chunks []store.Chunk, maxChunks int) []store.Chunk {
	queryWords := wordSet(query)
	if len(queryWords) == 0 {
		return nil
	}

	scored := make([]scoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		overlap := 0
		for word := range wordSet(chunk.Content) {
			if queryWords[word] {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		score := float32(overlap) / float32(len(queryWords))
		scored = append(scored, scoredChunk{chunk: chunk, score: score})
	}
	return topByScore(scored, maxChunks)
}

func wordSet(text string) map[string]bool {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	set := make(map[string]bool, len(words))
	for _, word := range words {
		set[word] = true
	}
	return set
}
