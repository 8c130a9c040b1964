package index_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docchat/docchat/internal/models"
	"github.com/docchat/docchat/pkg/index"
)

// wordEmbedder is a deterministic embedder for tests: one dimension
// per vocabulary word, valued by occurrence count.
type wordEmbedder struct {
	vocab []string
	model string
}

func newWordEmbedder() *wordEmbedder {
	return &wordEmbedder{
		vocab: []string{"sky", "blue", "rayleigh", "scattering", "tuition", "deadline"},
		model: "test-embedder",
	}
}

func (e *wordEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		vec := make([]float32, len(e.vocab))
		for j, word := range e.vocab {
			vec[j] = float32(strings.Count(lower, word))
		}
		out[i] = vec
	}
	return out, nil
}

func (e *wordEmbedder) Model() string { return e.model }

type failingEmbedder struct{}

func (failingEmbedder) EmbedTexts(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding service unreachable")
}

func (failingEmbedder) Model() string { return "unreachable" }

func testChunks() []models.Chunk {
	return []models.Chunk{
		{Source: "science.txt", Ordinal: 0, Content: "The sky is blue due to Rayleigh scattering."},
		{Source: "fees.txt", Ordinal: 0, Content: "Tuition payment deadline is the first of March."},
		{Source: "misc.txt", Ordinal: 0, Content: "Office hours are Monday through Friday."},
	}
}

func TestLocal_BuildOpenQuery(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	emb := newWordEmbedder()
	ctx := context.Background()

	builder := index.NewLocal(index.LocalConfig{Path: dir}, emb)
	require.NoError(t, builder.Build(ctx, testChunks()))

	idx, err := index.OpenLocal(index.LocalConfig{Path: dir}, emb)
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, 3, idx.Count())

	results, err := idx.Query(ctx, "Why is the sky blue?", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "science.txt", results[0].Chunk.Source)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestLocal_BuildEmptyFails(t *testing.T) {
	builder := index.NewLocal(index.LocalConfig{Path: t.TempDir()}, newWordEmbedder())
	err := builder.Build(context.Background(), nil)

	var buildErr *index.BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.ErrorIs(t, err, index.ErrNoChunks)
}

func TestLocal_EmbedderFailureFailsBuild(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	builder := index.NewLocal(index.LocalConfig{Path: dir}, failingEmbedder{})
	err := builder.Build(context.Background(), testChunks())

	var buildErr *index.BuildError
	require.ErrorAs(t, err, &buildErr)

	// A failed build must not leave an openable index behind.
	_, err = index.OpenLocal(index.LocalConfig{Path: dir}, failingEmbedder{})
	assert.ErrorIs(t, err, index.ErrNotFound)
}

func TestLocal_OpenMissingNamesLocation(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "never_built")
	_, err := index.OpenLocal(index.LocalConfig{Path: missing}, newWordEmbedder())

	require.ErrorIs(t, err, index.ErrNotFound)
	assert.Contains(t, err.Error(), missing)
	assert.Contains(t, err.Error(), "run ingestion first")
}

func TestLocal_RejectsModelMismatch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	ctx := context.Background()

	builder := index.NewLocal(index.LocalConfig{Path: dir}, newWordEmbedder())
	require.NoError(t, builder.Build(ctx, testChunks()))

	other := newWordEmbedder()
	other.model = "different-embedder"
	_, err := index.OpenLocal(index.LocalConfig{Path: dir}, other)
	assert.ErrorIs(t, err, index.ErrModelMismatch)
}

func TestLocal_BuildIsIdempotent(t *testing.T) {
	ctx := context.Background()
	emb := newWordEmbedder()
	question := "sky blue scattering"

	var orders [][]string
	for i := 0; i < 2; i++ {
		dir := filepath.Join(t.TempDir(), "idx")
		builder := index.NewLocal(index.LocalConfig{Path: dir}, emb)
		require.NoError(t, builder.Build(ctx, testChunks()))

		idx, err := index.OpenLocal(index.LocalConfig{Path: dir}, emb)
		require.NoError(t, err)

		results, err := idx.Query(ctx, question, 3)
		require.NoError(t, err)

		order := make([]string, len(results))
		for j, r := range results {
			order[j] = r.Chunk.ID()
		}
		orders = append(orders, order)
	}
	assert.Equal(t, orders[0], orders[1])
}

func TestLocal_QueryIsDeterministic(t *testing.T) {
	ctx := context.Background()
	builder := index.NewLocal(index.LocalConfig{Path: filepath.Join(t.TempDir(), "idx")}, newWordEmbedder())
	require.NoError(t, builder.Build(ctx, testChunks()))

	first, err := builder.Query(ctx, "tuition deadline", 3)
	require.NoError(t, err)
	second, err := builder.Query(ctx, "tuition deadline", 3)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLocal_TiesBreakByInsertionOrder(t *testing.T) {
	ctx := context.Background()
	chunks := []models.Chunk{
		{Source: "first.txt", Ordinal: 0, Content: "sky sky"},
		{Source: "second.txt", Ordinal: 0, Content: "sky sky"},
	}

	builder := index.NewLocal(index.LocalConfig{Path: filepath.Join(t.TempDir(), "idx")}, newWordEmbedder())
	require.NoError(t, builder.Build(ctx, chunks))

	results, err := builder.Query(ctx, "sky", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "first.txt", results[0].Chunk.Source)
	assert.Equal(t, results[0].Score, results[1].Score)
}

func TestLocal_ConcurrentQueries(t *testing.T) {
	ctx := context.Background()
	builder := index.NewLocal(index.LocalConfig{Path: filepath.Join(t.TempDir(), "idx")}, newWordEmbedder())
	require.NoError(t, builder.Build(ctx, testChunks()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := builder.Query(ctx, "sky blue", 2)
			assert.NoError(t, err)
			assert.Len(t, results, 2)
		}()
	}
	wg.Wait()
}

func TestLocal_DefaultK(t *testing.T) {
	ctx := context.Background()
	chunks := make([]models.Chunk, 6)
	for i := range chunks {
		chunks[i] = models.Chunk{Source: "s.txt", Ordinal: i, Content: "sky blue sky"}
	}

	builder := index.NewLocal(index.LocalConfig{Path: filepath.Join(t.TempDir(), "idx")}, newWordEmbedder())
	require.NoError(t, builder.Build(ctx, chunks))

	results, err := builder.Query(ctx, "sky", 0)
	require.NoError(t, err)
	assert.Len(t, results, index.DefaultK)
}
