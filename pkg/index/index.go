// Package index persists chunk embeddings and answers top-k similarity
// queries. Two backends share the same contract: a local file-backed
// index and a pgvector-backed one. An index records the identity of
// the embedding model it was built with and refuses to serve queries
// from a different one.
package index

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/docchat/docchat/internal/types"
)

const DefaultK = 4

var (
	// ErrNotFound means the index storage location is absent or
	// unreadable. The usual cause is querying before any ingestion
	// has run.
	ErrNotFound = errors.New("index not found")

	// ErrNoChunks means a build was attempted with nothing to store.
	ErrNoChunks = errors.New("no chunks to index")

	// ErrModelMismatch means the runtime embedding model differs from
	// the one the index was built with. Mixing embedding spaces
	// corrupts retrieval silently, so this is fatal.
	ErrModelMismatch = errors.New("embedding model mismatch")
)

// BuildError wraps any failure during an index build. After a failed
// build the storage location must be treated as unusable.
type BuildError struct {
	Err error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("index build failed: %v", e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Manifest describes a persisted index: which embedding model built
// it, the vector dimension and how many chunks it holds.
type Manifest struct {
	EmbeddingModel string    `json:"embedding_model"`
	Dimension      int       `json:"dimension"`
	Count          int       `json:"count"`
	CreatedAt      time.Time `json:"created_at"`
}

func (m Manifest) checkModel(model string) error {
	if m.EmbeddingModel != model {
		return fmt.Errorf("%w: index built with %q, runtime uses %q",
			ErrModelMismatch, m.EmbeddingModel, model)
	}
	return nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// topK orders results by descending score. The sort is stable so that
// equal scores keep insertion order, first indexed wins.
func topK(results []types.Result, k int) []types.Result {
	if k <= 0 {
		k = DefaultK
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if k > len(results) {
		k = len(results)
	}
	return results[:k]
}
