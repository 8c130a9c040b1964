package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Source struct {
		Path        string   `yaml:"path"`
		URLs        []string `yaml:"urls"`
		TimeoutSecs int      `yaml:"timeout_secs"`
		RateLimit   float64  `yaml:"rate_limit"`
	} `yaml:"source"`

	Chunker struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
	} `yaml:"chunker"`

	Retrieval struct {
		K int `yaml:"k"`
	} `yaml:"retrieval"`

	LLM struct {
		BaseURL         string  `yaml:"base_url"`
		EmbeddingModel  string  `yaml:"embedding_model"`
		GenerationModel string  `yaml:"generation_model"`
		Temperature     float64 `yaml:"temperature"`
		MaxTokens       int     `yaml:"max_tokens"`
	} `yaml:"llm"`

	Index struct {
		Backend     string `yaml:"backend"` // "local" or "pgvector"
		Path        string `yaml:"path"`
		DatabaseURL string `yaml:"database_url"`
		Table       string `yaml:"table"`
		BatchSize   int    `yaml:"batch_size"`
	} `yaml:"index"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"docchat.yaml",
			"docchat.yml",
			filepath.Join(os.Getenv("HOME"), ".config/docchat/config.yaml"),
			"/etc/docchat/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	config := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %v", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %v", err)
		}
	}

	mergeWithEnv(config)
	return config, nil
}

// defaultConfig returns a fully populated config. User YAML is
// unmarshalled on top of it, so only the keys the file actually sets
// are overridden and an explicit zero (chunk_overlap: 0,
// temperature: 0) survives loading.
func defaultConfig() *Config {
	config := &Config{}
	config.Source.TimeoutSecs = 10
	config.Source.RateLimit = 2.0
	config.Chunker.ChunkSize = 1000
	config.Chunker.ChunkOverlap = 200
	config.Retrieval.K = 4
	config.LLM.BaseURL = "http://localhost:11434"
	config.LLM.EmbeddingModel = "nomic-embed-text"
	config.LLM.GenerationModel = "phi3:mini"
	config.LLM.Temperature = 0.7
	config.LLM.MaxTokens = 2000
	config.Index.Backend = "local"
	config.Index.Path = "docchat_index"
	config.Index.Table = "chunks"
	config.Index.BatchSize = 100
	return config
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Index.DatabaseURL = dbURL
	}
}
