package core

import (
	"fmt"
	"log"
	"strings"

	"github.com/docuchat/backend/internal/store"
	"github.com/docuchat/backend/internal/utils"
)

// Chunker splits document text into bounded, slightly overlapping
// segments, preferring sentence or line boundaries.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker rejects overlap/size combinations that cannot make forward
// progress.
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", chunkOverlap, chunkSize)
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Chunk splits text into ordered chunks. Offsets are character (rune)
// positions into the original text. Empty input yields no chunks.
//
// The walk advances in windows of chunkSize characters. When a sentence
// terminator or newline falls in the second half of a window, the window
// end snaps back to it and the next window starts there with no overlap.
// Windows without such a boundary repeat the last chunkOverlap characters.
func (c *Chunker) Chunk(text, filename string) []store.Chunk {
	runes := []rune(text)
	n := len(runes)

	var chunks []store.Chunk
	chunkID := 0
	start := 0

	for start < n {
		end := start + c.chunkSize
		if end > n {
			end = n
		}

		snapped := false
		if end < n {
			// Snap only when the resulting chunk keeps at least half the
			// window, so a boundary near the window start cannot produce a
			// degenerate tiny chunk.
			if boundary := lastBoundary(runes, start, end); boundary >= 0 && boundary+1 >= start+c.chunkSize/2 {
				end = boundary + 1
				snapped = true
			}
		}

		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			chunks = append(chunks, store.Chunk{
				ChunkID:   chunkID,
				Content:   content,
				StartChar: start,
				EndChar:   end,
				Tokens:    utils.EstimateTokens(content),
			})
			chunkID++
		}

		if snapped || end == n {
			start = end
		} else {
			start = end - c.chunkOverlap
		}
	}

	log.Printf("Document %q split into %d chunks", filename, len(chunks))
	return chunks
}

// lastBoundary returns the index of the last sentence terminator or
// newline in runes[start:end), or -1 if there is none.
func lastBoundary(runes []rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		switch runes[i] {
		case '.', '!', '?', '\n':
			return i
		}
	}
	return -1
}
