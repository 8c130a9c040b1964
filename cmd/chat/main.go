package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"github.com/fatih/color"

	"github.com/docchat/docchat/internal/types"
	"github.com/docchat/docchat/pkg/config"
	"github.com/docchat/docchat/pkg/index"
	"github.com/docchat/docchat/pkg/llm"
	"github.com/docchat/docchat/pkg/pipeline"
	"github.com/docchat/docchat/pkg/session"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.Parse()

	if err := run(configPath); err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("invalid configuration: %v", e)
		}
		return errors.New("configuration is invalid")
	}

	ctx := context.Background()

	embedder, err := llm.NewEmbedder(llm.EmbedderConfig{
		Model:   cfg.LLM.EmbeddingModel,
		BaseURL: cfg.LLM.BaseURL,
	})
	if err != nil {
		return err
	}

	color.Cyan("Starting chat... (this can take a moment)")

	idx, err := openIndex(ctx, cfg, embedder)
	if err != nil {
		// No question can succeed without a usable index, so open
		// failures end the process with remediation hints.
		printStartupDiagnostics(cfg, err)
		return err
	}
	defer idx.Close()

	generator, err := llm.NewGenerator(llm.GeneratorConfig{
		Model:       cfg.LLM.GenerationModel,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return err
	}

	pipe := pipeline.New(pipeline.Config{K: cfg.Retrieval.K}, idx, generator)

	color.Cyan("\n✓ Ready. Ask about your documents; %d chunks indexed. Type 'exit' to quit.", idx.Count())
	return session.New(session.Config{}, pipe, os.Stdin, os.Stdout).Run(ctx)
}

func openIndex(ctx context.Context, cfg *config.Config, embedder types.Embedder) (types.Index, error) {
	switch cfg.Index.Backend {
	case "pgvector":
		return index.OpenPG(ctx, index.PGConfig{
			DatabaseURL: cfg.Index.DatabaseURL,
			Table:       cfg.Index.Table,
		}, embedder)
	default:
		return index.OpenLocal(index.LocalConfig{
			Path: cfg.Index.Path,
		}, embedder)
	}
}

func printStartupDiagnostics(cfg *config.Config, err error) {
	color.Red("\n✗ Could not start the chat.\n")
	switch {
	case errors.Is(err, index.ErrNotFound):
		color.Yellow("The index has not been built yet, or its location is wrong.")
		color.Yellow("Run the ingestion command first, for example:")
		color.Yellow("  docchat-ingest -source ./data")
	case errors.Is(err, index.ErrModelMismatch):
		color.Yellow("The index was built with a different embedding model.")
		color.Yellow("Either set llm.embedding_model to match it, or re-run ingestion with %q.", cfg.LLM.EmbeddingModel)
	default:
		color.Yellow("Check that Ollama is running (`ollama list`) and that the models")
		color.Yellow("%q and %q are installed.", cfg.LLM.EmbeddingModel, cfg.LLM.GenerationModel)
	}
}
