package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/docuchat/backend/internal/store"
)

// fakeEmbedder returns deterministic vectors and can be told to fail for
// specific inputs or to block until released.
type fakeEmbedder struct {
	mu      sync.Mutex
	calls   int
	failFor map[string]bool
	vectors map[string][]float32
	release chan struct{} // when set, EmbedText blocks until closed
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		failFor: make(map[string]bool),
		vectors: make(map[string][]float32),
	}
}

func (f *fakeEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	release := f.release
	f.mu.Unlock()

	if release != nil {
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[text] {
		return nil, fmt.Errorf("simulated embedding provider failure")
	}
	if vec, ok := f.vectors[text]; ok {
		return vec, nil
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := f.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeCompleter returns a canned reply and records the messages it was
// last asked to complete.
type fakeCompleter struct {
	mu           sync.Mutex
	calls        int
	reply        string
	tokens       int
	err          error
	titleErr     error
	lastMessages []store.Message
}

func newFakeCompleter(reply string) *fakeCompleter {
	return &fakeCompleter{reply: reply, tokens: 42}
}

func (f *fakeCompleter) Complete(_ context.Context, messages []store.Message) (string, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastMessages = append([]store.Message(nil), messages...)
	if f.err != nil {
		return "", 0, f.err
	}
	return f.reply, f.tokens, nil
}

func (f *fakeCompleter) GenerateTitle(_ context.Context, firstMessage string) (string, error) {
	if f.titleErr != nil {
		return "", f.titleErr
	}
	return "Test Title", nil
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeCompleter) last() []store.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastMessages
}
