package core

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
)

// Embedder produces fixed-dimension vectors for text. Implementations do
// not retry; retry policy belongs to the caller.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// GeminiEmbedder wraps the Gemini embedding API. One provider request per
// invocation; batch calls embed all inputs in a single request and return
// vectors in input order.
type GeminiEmbedder struct {
	model     *genai.EmbeddingModel
	modelName string
	dimension int
}

func NewGeminiEmbedder(client *genai.Client, modelName string, dimension int) *GeminiEmbedder {
	return &GeminiEmbedder{
		model:     client.EmbeddingModel(modelName),
		modelName: modelName,
		dimension: dimension,
	}
}

// Dimension reports the provider-declared vector dimension.
func (e *GeminiEmbedder) Dimension() int {
	return e.dimension
}

func (e *GeminiEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	res, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}

func (e *GeminiEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batch := e.model.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	res, err := e.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini batch embedding request failed: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(res.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(res.Embeddings))
	for i, emb := range res.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("no embedding data received from gemini for input %d", i)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}
