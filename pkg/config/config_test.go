package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "docchat.yaml")

	configData := `
source:
  path: "data"
  urls:
    - "https://example.com/enrollment"
    - "https://example.com/fees"
  timeout_secs: 5
  rate_limit: 1.5

chunker:
  chunk_size: 500
  chunk_overlap: 100

retrieval:
  k: 6

llm:
  base_url: "http://localhost:11434"
  embedding_model: "nomic-embed-text"
  generation_model: "phi3:mini"
  temperature: 0.5
  max_tokens: 1000

index:
  backend: "local"
  path: "my_index"
  batch_size: 50
`
	err := os.WriteFile(configPath, []byte(configData), 0o644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "data", config.Source.Path)
	assert.Len(t, config.Source.URLs, 2)
	assert.Equal(t, 500, config.Chunker.ChunkSize)
	assert.Equal(t, 100, config.Chunker.ChunkOverlap)
	assert.Equal(t, 6, config.Retrieval.K)
	assert.Equal(t, "phi3:mini", config.LLM.GenerationModel)
	assert.Equal(t, "my_index", config.Index.Path)
	assert.Equal(t, 50, config.Index.BatchSize)
}

func TestConfigDefaults(t *testing.T) {
	config := defaultConfig()

	assert.Equal(t, 1000, config.Chunker.ChunkSize)
	assert.Equal(t, 200, config.Chunker.ChunkOverlap)
	assert.Equal(t, 4, config.Retrieval.K)
	assert.Equal(t, "nomic-embed-text", config.LLM.EmbeddingModel)
	assert.Equal(t, "phi3:mini", config.LLM.GenerationModel)
	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, "local", config.Index.Backend)
	assert.Equal(t, "docchat_index", config.Index.Path)
}

func TestExplicitZerosSurviveLoading(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "docchat.yaml")

	// Zero is a legal setting for these keys, not an omission.
	configData := `
chunker:
  chunk_overlap: 0

llm:
  temperature: 0
`
	err := os.WriteFile(configPath, []byte(configData), 0o644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, 0, config.Chunker.ChunkOverlap)
	assert.Equal(t, 0.0, config.LLM.Temperature)
	// Keys the file omits still pick up defaults.
	assert.Equal(t, 1000, config.Chunker.ChunkSize)
	assert.Equal(t, 2000, config.LLM.MaxTokens)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		wantErrs []string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name: "overlap equals chunk size",
			mutate: func(c *Config) {
				c.Chunker.ChunkSize = 200
				c.Chunker.ChunkOverlap = 200
			},
			wantErrs: []string{"chunker.chunk_overlap"},
		},
		{
			name:     "non-positive k",
			mutate:   func(c *Config) { c.Retrieval.K = -1 },
			wantErrs: []string{"retrieval.k"},
		},
		{
			name:     "bad source URL",
			mutate:   func(c *Config) { c.Source.URLs = []string{"not a url"} },
			wantErrs: []string{"source.urls"},
		},
		{
			name:     "unknown backend",
			mutate:   func(c *Config) { c.Index.Backend = "chroma" },
			wantErrs: []string{"index.backend"},
		},
		{
			name:     "pgvector without database URL",
			mutate:   func(c *Config) { c.Index.Backend = "pgvector" },
			wantErrs: []string{"index.database_url"},
		},
		{
			name:     "temperature out of range",
			mutate:   func(c *Config) { c.LLM.Temperature = 3.0 },
			wantErrs: []string{"llm.temperature"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := defaultConfig()
			tt.mutate(config)

			errors := config.Validate()
			require.Len(t, errors, len(tt.wantErrs))
			for i, field := range tt.wantErrs {
				assert.Contains(t, errors[i].Error(), field)
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/docchat")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/docchat", config.Index.DatabaseURL)
}
