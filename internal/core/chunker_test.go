package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunkerRejectsBadConfig(t *testing.T) {
	_, err := NewChunker(0, 0)
	assert.Error(t, err)

	_, err = NewChunker(100, 100)
	assert.Error(t, err)

	_, err = NewChunker(100, 150)
	assert.Error(t, err)

	_, err = NewChunker(100, 10)
	assert.NoError(t, err)
}

func TestChunkEmptyInput(t *testing.T) {
	c, err := NewChunker(100, 10)
	require.NoError(t, err)

	assert.Empty(t, c.Chunk("", "empty.txt"))
	assert.Empty(t, c.Chunk("   \n\t  ", "blank.txt"))
}

func TestChunkShortTextSingleChunk(t *testing.T) {
	c, err := NewChunker(500, 50)
	require.NoError(t, err)

	chunks := c.Chunk("Just one short paragraph.", "short.txt")
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].ChunkID)
	assert.Equal(t, "Just one short paragraph.", chunks[0].Content)
	assert.Greater(t, chunks[0].Tokens, 0)
}

func TestChunkSentenceBoundarySnapping(t *testing.T) {
	c, err := NewChunker(4, 0)
	require.NoError(t, err)

	chunks := c.Chunk("A. B. C.", "sentences.txt")
	require.Len(t, chunks, 3)
	assert.Equal(t, "A.", chunks[0].Content)
	assert.Equal(t, "B.", chunks[1].Content)
	assert.Equal(t, "C.", chunks[2].Content)
	for _, ch := range chunks {
		assert.Greater(t, ch.Tokens, 0)
	}
}

func TestChunkInvariants(t *testing.T) {
	c, err := NewChunker(40, 8)
	require.NoError(t, err)

	texts := []string{
		"The quick brown fox jumps over the lazy dog. It was a bright day. Everyone went outside to enjoy the weather and nobody stayed in.",
		strings.Repeat("abcdefghij", 12),
		"One sentence only without any terminal punctuation whatsoever here",
	}
	for _, text := range texts {
		chunks := c.Chunk(text, "doc.txt")
		require.NotEmpty(t, chunks, "non-empty text must produce at least one chunk")
		for i, ch := range chunks {
			assert.Equal(t, i, ch.ChunkID, "chunk ids must be contiguous from zero")
			assert.Less(t, ch.StartChar, ch.EndChar)
			assert.NotEmpty(t, ch.Content)
			assert.False(t, ch.IsVectorized)
		}
	}
}

func TestChunkOverlapCarriesText(t *testing.T) {
	c, err := NewChunker(10, 4)
	require.NoError(t, err)

	// No sentence boundaries, so every window advances by size-overlap.
	text := strings.Repeat("abcdefghij", 3)
	chunks := c.Chunk(text, "raw.txt")
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		assert.Equal(t, prev.EndChar-4, chunks[i].StartChar)
	}
}

func TestChunkIsDeterministic(t *testing.T) {
	c, err := NewChunker(30, 5)
	require.NoError(t, err)

	text := "First sentence here. Second sentence follows. Third one closes the set."
	first := c.Chunk(text, "a.txt")
	second := c.Chunk(text, "a.txt")
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Content, second[i].Content)
		assert.Equal(t, first[i].StartChar, second[i].StartChar)
		assert.Equal(t, first[i].EndChar, second[i].EndChar)
	}
}
