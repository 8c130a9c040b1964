package source

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/docchat/docchat/internal/models"
)

type FileConfig struct {
	Path       string
	OnProgress func(path string)
}

// FileSource reads every supported file under a directory: plain text
// files as single documents, PDF files as one document per page.
type FileSource struct {
	config FileConfig
}

func NewFileSource(config FileConfig) *FileSource {
	return &FileSource{config: config}
}

func (s *FileSource) Load(ctx context.Context) ([]models.Document, error) {
	if _, err := os.Stat(s.config.Path); err != nil {
		return nil, fmt.Errorf("source directory %s: %w", s.config.Path, err)
	}

	var documents []models.Document
	err := filepath.WalkDir(s.config.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Printf("skipping %s: %v", path, err)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		var docs []models.Document
		var loadErr error
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt":
			docs, loadErr = loadTextFile(path)
		case ".pdf":
			docs, loadErr = loadPDFFile(path)
		default:
			return nil
		}

		// One bad file must not stop the whole load.
		if loadErr != nil {
			log.Printf("skipping %s: %v", path, loadErr)
			return nil
		}

		documents = append(documents, docs...)
		if s.config.OnProgress != nil {
			s.config.OnProgress(path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(documents) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoDocuments, s.config.Path)
	}
	return documents, nil
}

func loadTextFile(path string) ([]models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return []models.Document{{
		Source:  path,
		Title:   filepath.Base(path),
		Content: string(data),
		Metadata: map[string]interface{}{
			"type":     "text",
			"loadedAt": time.Now(),
		},
	}}, nil
}

func loadPDFFile(path string) ([]models.Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var documents []models.Document
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Printf("skipping page %d of %s: %v", i, path, err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		documents = append(documents, models.Document{
			Source:  fmt.Sprintf("%s#page%d", path, i),
			Title:   filepath.Base(path),
			Content: text,
			Metadata: map[string]interface{}{
				"type":     "pdf",
				"page":     i,
				"loadedAt": time.Now(),
			},
		})
	}
	return documents, nil
}
