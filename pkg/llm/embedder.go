package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
)

// EmbedderConfig configures the Ollama embedding model.
type EmbedderConfig struct {
	Model   string
	BaseURL string // Ollama server URL
}

// Embedder produces fixed-length vectors for text via an Ollama
// embedding model. The model name is the identity of the embedding
// space: an index built with one model must be queried with the same.
type Embedder struct {
	config EmbedderConfig
	llm    *ollama.LLM
}

func NewEmbedder(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	emb, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return &Embedder{config: config, llm: emb}, nil
}

func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings, err := e.llm.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding error: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding error: got %d vectors for %d texts", len(embeddings), len(texts))
	}
	return embeddings, nil
}

func (e *Embedder) Model() string {
	return e.config.Model
}
