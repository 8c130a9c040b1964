package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/docchat/docchat/internal/models"
	"github.com/docchat/docchat/internal/types"
	"github.com/docchat/docchat/pkg/chunker"
	"github.com/docchat/docchat/pkg/config"
	"github.com/docchat/docchat/pkg/index"
	"github.com/docchat/docchat/pkg/llm"
	"github.com/docchat/docchat/pkg/source"
)

func main() {
	var configPath, sourcePath, urlsPath string
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&sourcePath, "source", "", "Directory of documents to ingest (overrides config)")
	flag.StringVar(&urlsPath, "urls", "", "File with one URL per line (overrides config)")
	flag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if sourcePath != "" {
		cfg.Source.Path = sourcePath
	}
	if urlsPath != "" {
		urls, err := readURLList(urlsPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg.Source.URLs = urls
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("invalid configuration: %v", e)
		}
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

func readURLList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			urls = append(urls, line)
		}
	}
	return urls, scanner.Err()
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	embedder, err := llm.NewEmbedder(llm.EmbedderConfig{
		Model:   cfg.LLM.EmbeddingModel,
		BaseURL: cfg.LLM.BaseURL,
	})
	if err != nil {
		return err
	}

	docs, err := loadDocuments(ctx, cfg)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return errors.New("nothing to ingest: no source directory or URL list produced documents")
	}
	color.Green("✓ Loaded %d documents\n", len(docs))

	splitter, err := chunker.New(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
	if err != nil {
		return err
	}
	chunks := splitter.Split(docs)
	if len(chunks) == 0 {
		return errors.New("nothing to ingest: documents produced no chunks")
	}
	color.Green("✓ Split into %d chunks\n", len(chunks))

	embeddingBar := getProgressBar(len(chunks), "Embedding and storing chunks...")
	idx, err := newIndexBuilder(ctx, cfg, embedder, func(completed int) {
		embeddingBar.Set(completed)
	})
	if err != nil {
		return err
	}
	defer idx.Close()

	if err := idx.Build(ctx, chunks); err != nil {
		return err
	}
	embeddingBar.Finish()

	color.Green("\n✓ Index built at %s with %d chunks (embedding model %s)\n",
		indexLocation(cfg), idx.Count(), embedder.Model())
	return nil
}

func loadDocuments(ctx context.Context, cfg *config.Config) ([]models.Document, error) {
	var docs []models.Document

	if cfg.Source.Path != "" {
		color.Blue("Loading files from %s\n", cfg.Source.Path)
		fileBar := getProgressBar(-1, "Reading files...")
		files := source.NewFileSource(source.FileConfig{
			Path:       cfg.Source.Path,
			OnProgress: func(string) { fileBar.Add(1) },
		})

		loaded, err := files.Load(ctx)
		fileBar.Finish()
		switch {
		case errors.Is(err, source.ErrNoDocuments):
			log.Printf("file source: %v", err)
		case err != nil:
			return nil, err
		default:
			docs = append(docs, loaded...)
		}
	}

	if len(cfg.Source.URLs) > 0 {
		color.Blue("Fetching %d URLs\n", len(cfg.Source.URLs))
		webBar := getProgressBar(len(cfg.Source.URLs), "Fetching pages...")
		web := source.NewWebSource(source.WebConfig{
			URLs:       cfg.Source.URLs,
			Timeout:    time.Duration(cfg.Source.TimeoutSecs) * time.Second,
			RateLimit:  cfg.Source.RateLimit,
			OnProgress: func(string) { webBar.Add(1) },
		})

		loaded, err := web.Load(ctx)
		webBar.Finish()
		switch {
		case errors.Is(err, source.ErrNoDocuments):
			log.Printf("web source: %v", err)
		case err != nil:
			return nil, err
		default:
			docs = append(docs, loaded...)
		}
	}

	return docs, nil
}

func newIndexBuilder(ctx context.Context, cfg *config.Config, embedder types.Embedder, onProgress func(int)) (types.Index, error) {
	switch cfg.Index.Backend {
	case "pgvector":
		return index.NewPG(ctx, index.PGConfig{
			DatabaseURL: cfg.Index.DatabaseURL,
			Table:       cfg.Index.Table,
			BatchSize:   cfg.Index.BatchSize,
			OnProgress:  onProgress,
		}, embedder)
	default:
		return index.NewLocal(index.LocalConfig{
			Path:       cfg.Index.Path,
			BatchSize:  cfg.Index.BatchSize,
			OnProgress: onProgress,
		}, embedder), nil
	}
}

func indexLocation(cfg *config.Config) string {
	if cfg.Index.Backend == "pgvector" {
		return "collection " + cfg.Index.Table
	}
	return cfg.Index.Path
}
