package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuchat/backend/internal/store"
)

func embChunk(id int, embedding []float32) store.Chunk {
	return store.Chunk{ChunkID: id, Content: "chunk", Embedding: embedding}
}

func TestRankByEmbeddingOrdersByCosine(t *testing.T) {
	query := []float32{1, 0, 0}
	chunks := []store.Chunk{
		embChunk(0, []float32{0, 1, 0}),        // orthogonal, score 0
		embChunk(1, []float32{1, 0, 0}),        // identical, score 1
		embChunk(2, []float32{0.7, 0.7, 0}),    // partial match
		embChunk(3, []float32{-1, 0, 0}),       // opposite, score -1
	}

	ranked := RankByEmbedding(query, chunks, 10)
	require.Len(t, ranked, 4)
	assert.Equal(t, 1, ranked[0].ChunkID)
	assert.Equal(t, 2, ranked[1].ChunkID)
	assert.Equal(t, 0, ranked[2].ChunkID)
	assert.Equal(t, 3, ranked[3].ChunkID, "negative scores are kept, there is no floor")
}

func TestRankByEmbeddingTruncatesToMax(t *testing.T) {
	query := []float32{1, 0}
	chunks := []store.Chunk{
		embChunk(0, []float32{1, 0}),
		embChunk(1, []float32{0.9, 0.1}),
		embChunk(2, []float32{0.8, 0.2}),
	}
	ranked := RankByEmbedding(query, chunks, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, 0, ranked[0].ChunkID)
	assert.Equal(t, 1, ranked[1].ChunkID)
}

func TestRankByEmbeddingSkipsUncomparableChunks(t *testing.T) {
	query := []float32{1, 0, 0}
	chunks := []store.Chunk{
		embChunk(0, nil),                 // never vectorized
		embChunk(1, []float32{0, 0, 0}),  // zero norm
		embChunk(2, []float32{1, 0}),     // dimension mismatch
		embChunk(3, []float32{1, 0, 0}),
	}
	ranked := RankByEmbedding(query, chunks, 10)
	require.Len(t, ranked, 1)
	assert.Equal(t, 3, ranked[0].ChunkID)
}

func TestRankByEmbeddingStableTies(t *testing.T) {
	query := []float32{1, 0}
	// Same direction, same cosine score; original order must survive.
	chunks := []store.Chunk{
		embChunk(7, []float32{2, 0}),
		embChunk(3, []float32{1, 0}),
		embChunk(5, []float32{5, 0}),
	}
	ranked := RankByEmbedding(query, chunks, 10)
	require.Len(t, ranked, 3)
	assert.Equal(t, 7, ranked[0].ChunkID)
	assert.Equal(t, 3, ranked[1].ChunkID)
	assert.Equal(t, 5, ranked[2].ChunkID)
}

func TestRankByLexicalOverlap(t *testing.T) {
	chunks := []store.Chunk{
		{ChunkID: 0, Content: "The refund policy covers thirty days."},
		{ChunkID: 1, Content: "Shipping times vary by region."},
		{ChunkID: 2, Content: "Refund requests require the original receipt and policy number."},
	}

	ranked := RankByLexicalOverlap("what is the refund policy", chunks, 10)
	require.Len(t, ranked, 2, "chunks sharing no words are excluded")
	assert.Equal(t, 0, ranked[0].ChunkID)
	assert.Equal(t, 2, ranked[1].ChunkID)
}

func TestRankByLexicalOverlapEmptyQuery(t *testing.T) {
	chunks := []store.Chunk{{ChunkID: 0, Content: "anything"}}
	assert.Nil(t, RankByLexicalOverlap("", chunks, 10))
	assert.Nil(t, RankByLexicalOverlap("?!,.", chunks, 10))
}

func TestRankByLexicalOverlapCaseInsensitive(t *testing.T) {
	chunks := []store.Chunk{{ChunkID: 0, Content: "REFUND POLICY"}}
	ranked := RankByLexicalOverlap("refund", chunks, 10)
	require.Len(t, ranked, 1)
	assert.Equal(t, 0, ranked[0].ChunkID)
}
