package types

import (
	"context"

	"github.com/docchat/docchat/internal/models"
)

// Core interfaces

// Source produces documents with provenance metadata.
type Source interface {
	Load(ctx context.Context) ([]models.Document, error)
}

// Chunker splits documents into overlapping retrieval-sized chunks.
type Chunker interface {
	Split(docs []models.Document) []models.Chunk
}

// Embedder turns text into fixed-length vectors. Model identifies the
// embedding space; an index built with one model must never be queried
// with another.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Generator produces an answer from a fully rendered prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Result is one retrieved chunk with its similarity score.
type Result struct {
	Chunk models.Chunk
	Score float32
}

// Index stores chunk embeddings and answers nearest-neighbour queries.
// Once built, an index is read-only and safe for concurrent queries.
type Index interface {
	Build(ctx context.Context, chunks []models.Chunk) error
	Query(ctx context.Context, text string, k int) ([]Result, error)
	Count() int
	Close()
}
