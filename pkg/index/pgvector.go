package index

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/docchat/docchat/internal/models"
	"github.com/docchat/docchat/internal/types"
)

type PGConfig struct {
	DatabaseURL string
	Table       string
	BatchSize   int
	OnProgress  func(completed int)
}

// PG is a pgvector-backed index. The collection is one table plus a
// manifest table carrying the embedding model identity; queries use
// cosine distance with insertion order breaking score ties.
type PG struct {
	config   PGConfig
	embedder types.Embedder
	pool     *pgxpool.Pool
	manifest Manifest
}

// NewPG connects a builder to the database. The collection tables do
// not need to exist yet; Build creates them.
func NewPG(ctx context.Context, config PGConfig, embedder types.Embedder) (*PG, error) {
	if config.Table == "" {
		config.Table = "chunks"
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	pool, err := pgxpool.New(ctx, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &PG{config: config, embedder: embedder, pool: pool}, nil
}

// OpenPG attaches to a previously built collection, verifying that it
// exists and was built with the runtime embedding model.
func OpenPG(ctx context.Context, config PGConfig, embedder types.Embedder) (*PG, error) {
	idx, err := NewPG(ctx, config, embedder)
	if err != nil {
		return nil, err
	}

	row := idx.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT embedding_model, dimension, count, created_at FROM %s_manifest LIMIT 1`,
		idx.config.Table))
	err = row.Scan(&idx.manifest.EmbeddingModel, &idx.manifest.Dimension,
		&idx.manifest.Count, &idx.manifest.CreatedAt)
	if err != nil {
		idx.pool.Close()
		return nil, fmt.Errorf("%w: collection %q is missing or unreadable (run ingestion first): %v",
			ErrNotFound, idx.config.Table, err)
	}

	if err := idx.manifest.checkModel(embedder.Model()); err != nil {
		idx.pool.Close()
		return nil, err
	}
	return idx, nil
}

// Build embeds every chunk and replaces the collection in one
// transaction. The manifest row is written last, inside the same
// transaction, so a failed build never leaves an openable collection.
func (p *PG) Build(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return &BuildError{Err: ErrNoChunks}
	}

	embeddings := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += p.config.BatchSize {
		end := start + p.config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, end-start)
		for i, ch := range chunks[start:end] {
			texts[i] = ch.Content
		}

		batch, err := p.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return &BuildError{Err: err}
		}
		embeddings = append(embeddings, batch...)

		if p.config.OnProgress != nil {
			p.config.OnProgress(end)
		}
	}

	dimension := len(embeddings[0])
	if err := p.persist(ctx, chunks, embeddings, dimension); err != nil {
		return &BuildError{Err: err}
	}

	p.manifest = Manifest{
		EmbeddingModel: p.embedder.Model(),
		Dimension:      dimension,
		Count:          len(chunks),
		CreatedAt:      time.Now(),
	}
	return nil
}

func (p *PG) persist(ctx context.Context, chunks []models.Chunk, embeddings [][]float32, dimension int) error {
	if _, err := p.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	statements := []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS %s_manifest`, p.config.Table),
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, p.config.Table),
		fmt.Sprintf(`
			CREATE TABLE %s (
				seq BIGSERIAL PRIMARY KEY,
				id TEXT UNIQUE NOT NULL,
				source TEXT NOT NULL,
				ordinal INTEGER NOT NULL,
				start_offset INTEGER NOT NULL,
				content TEXT NOT NULL,
				metadata JSONB,
				embedding vector(%d)
			)`, p.config.Table, dimension),
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (id, source, ordinal, start_offset, content, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, p.config.Table)

	for i, ch := range chunks {
		_, err := tx.Exec(ctx, insert,
			ch.ID(), ch.Source, ch.Ordinal, ch.StartOffset, ch.Content, ch.Metadata,
			pgvector.NewVector(embeddings[i]))
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", ch.ID(), err)
		}
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`, p.config.Table, p.config.Table)
	if _, err := tx.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}

	manifest := []string{
		fmt.Sprintf(`
			CREATE TABLE %s_manifest (
				embedding_model TEXT NOT NULL,
				dimension INTEGER NOT NULL,
				count INTEGER NOT NULL,
				created_at TIMESTAMPTZ NOT NULL
			)`, p.config.Table),
		fmt.Sprintf(`INSERT INTO %s_manifest VALUES ($1, $2, $3, $4)`, p.config.Table),
	}
	if _, err := tx.Exec(ctx, manifest[0]); err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	if _, err := tx.Exec(ctx, manifest[1],
		p.embedder.Model(), dimension, len(chunks), time.Now()); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return tx.Commit(ctx)
}

func (p *PG) Query(ctx context.Context, text string, k int) ([]types.Result, error) {
	if k <= 0 {
		k = DefaultK
	}

	embeddings, err := p.embedder.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT source, ordinal, start_offset, content, metadata,
		       1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1, seq
		LIMIT $2`, p.config.Table)

	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(embeddings[0]), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}
	defer rows.Close()

	var results []types.Result
	for rows.Next() {
		var ch models.Chunk
		var score float64
		err := rows.Scan(&ch.Source, &ch.Ordinal, &ch.StartOffset, &ch.Content, &ch.Metadata, &score)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, types.Result{Chunk: ch, Score: float32(score)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *PG) Count() int {
	return p.manifest.Count
}

func (p *PG) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}
