package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"

	"github.com/docuchat/backend/internal/store"
)

const (
	openChatSystemInstruction = "You are a helpful, friendly AI assistant. Provide clear, accurate, and helpful responses."

	titleSystemInstruction = "Generate a short, concise title (max 6 words) for a conversation that starts " +
		"with the following message. Only return the title, nothing else."

	completionMaxRetries = 3
)

// Completer generates chat completions from an ordered role/content
// message list, returning the generated text and the total token count.
type Completer interface {
	Complete(ctx context.Context, messages []store.Message) (string, int, error)
	GenerateTitle(ctx context.Context, firstMessage string) (string, error)
}

// GeminiCompleter is the Gemini-backed Completer. Transient provider
// failures are retried with exponential backoff, bounded by
// completionMaxRetries.
type GeminiCompleter struct {
	client      *genai.Client
	modelName   string
	maxTokens   int32
	temperature float32
}

func NewGeminiCompleter(client *genai.Client, modelName string, maxTokens int32, temperature float32) *GeminiCompleter {
	return &GeminiCompleter{
		client:      client,
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

func (c *GeminiCompleter) Complete(ctx context.Context, messages []store.Message) (string, int, error) {
	if len(messages) == 0 {
		return "", 0, fmt.Errorf("message list is empty for chat completion")
	}

	last := messages[len(messages)-1]
	if last.Role != store.RoleUser {
		return "", 0, fmt.Errorf("last message must be from %q, got %q", store.RoleUser, last.Role)
	}

	model := c.client.GenerativeModel(c.modelName)
	maxTokens := c.maxTokens
	temperature := c.temperature
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
		Temperature:     &temperature,
	}

	var history []*genai.Content
	for _, msg := range messages[:len(messages)-1] {
		if msg.Role == store.RoleSystem {
			model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(msg.Content)}}
			continue
		}
		history = append(history, &genai.Content{
			Role:  genaiRole(msg.Role),
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}

	var lastErr error
	for attempt := 0; attempt < completionMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			log.Printf("Retrying chat completion after %s (attempt %d/%d): %v", backoff, attempt+1, completionMaxRetries, lastErr)
			select {
			case <-ctx.Done():
				return "", 0, ctx.Err()
			case <-time.After(backoff):
			}
		}

		session := model.StartChat()
		session.History = history

		resp, err := session.SendMessage(ctx, genai.Text(last.Content))
		if err != nil {
			lastErr = fmt.Errorf("gemini chat request failed: %w", err)
			continue
		}

		text := responseText(resp)
		if text == "" {
			lastErr = fmt.Errorf("gemini returned an empty response")
			continue
		}

		totalTokens := 0
		if resp.UsageMetadata != nil {
			totalTokens = int(resp.UsageMetadata.TotalTokenCount)
		}
		return text, totalTokens, nil
	}

	return "", 0, fmt.Errorf("chat completion failed after %d attempts: %w", completionMaxRetries, lastErr)
}

// GenerateTitle asks the model for a concise conversation title.
func (c *GeminiCompleter) GenerateTitle(ctx context.Context, firstMessage string) (string, error) {
	model := c.client.GenerativeModel(c.modelName)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(titleSystemInstruction)}}

	maxTokens := int32(20)
	temperature := float32(0.3)
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
		Temperature:     &temperature,
	}

	resp, err := model.GenerateContent(ctx, genai.Text(firstMessage))
	if err != nil {
		return "", fmt.Errorf("gemini title generation failed: %w", err)
	}

	title := strings.Trim(responseText(resp), "\"'\n\r\t .")
	if title == "" {
		return "", fmt.Errorf("gemini generated an empty title")
	}
	if len(title) > 50 {
		title = title[:50]
	}
	return title, nil
}

func genaiRole(role string) string {
	if role == store.RoleAssistant {
		return "model"
	}
	return "user"
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}
