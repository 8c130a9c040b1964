package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/docchat/docchat/internal/models"
	"github.com/docchat/docchat/internal/types"
)

const (
	manifestFile = "manifest.json"
	entriesFile  = "entries.json"
)

type LocalConfig struct {
	Path       string
	BatchSize  int
	OnProgress func(completed int)
}

// entry pairs one chunk with its embedding.
type entry struct {
	ID        string       `json:"id"`
	Chunk     models.Chunk `json:"chunk"`
	Embedding []float32    `json:"embedding"`
}

// Local is a file-backed index: a directory holding a manifest and the
// full entry list, searched by brute-force cosine similarity. Safe for
// concurrent queries once built or opened.
type Local struct {
	config   LocalConfig
	embedder types.Embedder

	mu       sync.RWMutex
	manifest Manifest
	entries  []entry
}

// NewLocal prepares a builder for an index at config.Path. The path
// does not need to exist yet; Build creates it.
func NewLocal(config LocalConfig, embedder types.Embedder) *Local {
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	return &Local{config: config, embedder: embedder}
}

// OpenLocal attaches to a previously built index. It fails with
// ErrNotFound when the location is absent and with ErrModelMismatch
// when the runtime embedder differs from the one that built it.
func OpenLocal(config LocalConfig, embedder types.Embedder) (*Local, error) {
	idx := NewLocal(config, embedder)

	manifestData, err := os.ReadFile(filepath.Join(config.Path, manifestFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s (run ingestion first)", ErrNotFound, config.Path)
		}
		return nil, fmt.Errorf("%w at %s: %v", ErrNotFound, config.Path, err)
	}
	if err := json.Unmarshal(manifestData, &idx.manifest); err != nil {
		return nil, fmt.Errorf("%w at %s: corrupt manifest: %v", ErrNotFound, config.Path, err)
	}

	if err := idx.manifest.checkModel(embedder.Model()); err != nil {
		return nil, err
	}

	entriesData, err := os.ReadFile(filepath.Join(config.Path, entriesFile))
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v", ErrNotFound, config.Path, err)
	}
	if err := json.Unmarshal(entriesData, &idx.entries); err != nil {
		return nil, fmt.Errorf("%w at %s: corrupt entries: %v", ErrNotFound, config.Path, err)
	}

	return idx, nil
}

// Build embeds every chunk and persists the result. The manifest is
// written last so that a failed build never leaves an openable index.
func (l *Local) Build(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return &BuildError{Err: ErrNoChunks}
	}

	entries := make([]entry, 0, len(chunks))
	for start := 0; start < len(chunks); start += l.config.BatchSize {
		end := start + l.config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Content
		}

		embeddings, err := l.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return &BuildError{Err: err}
		}

		for i, ch := range batch {
			entries = append(entries, entry{ID: ch.ID(), Chunk: ch, Embedding: embeddings[i]})
		}
		if l.config.OnProgress != nil {
			l.config.OnProgress(end)
		}
	}

	manifest := Manifest{
		EmbeddingModel: l.embedder.Model(),
		Dimension:      len(entries[0].Embedding),
		Count:          len(entries),
		CreatedAt:      time.Now(),
	}

	if err := l.persist(manifest, entries); err != nil {
		return &BuildError{Err: err}
	}

	l.mu.Lock()
	l.manifest = manifest
	l.entries = entries
	l.mu.Unlock()
	return nil
}

func (l *Local) persist(manifest Manifest, entries []entry) error {
	if err := os.MkdirAll(l.config.Path, 0o755); err != nil {
		return err
	}

	entriesData, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(l.config.Path, entriesFile), entriesData, 0o644); err != nil {
		return err
	}

	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(l.config.Path, manifestFile), manifestData, 0o644)
}

func (l *Local) Query(ctx context.Context, text string, k int) ([]types.Result, error) {
	embeddings, err := l.embedder.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	queryVec := embeddings[0]

	l.mu.RLock()
	defer l.mu.RUnlock()

	results := make([]types.Result, 0, len(l.entries))
	for _, e := range l.entries {
		results = append(results, types.Result{
			Chunk: e.Chunk,
			Score: cosineSimilarity(queryVec, e.Embedding),
		})
	}
	return topK(results, k), nil
}

func (l *Local) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.manifest.Count
}

func (l *Local) Close() {}
