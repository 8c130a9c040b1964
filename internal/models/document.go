package models

import "fmt"

// Document is a single loaded source item: one text file, one PDF page
// or one scraped web page. Content is never mutated after creation.
type Document struct {
	Source   string
	Title    string
	Content  string
	Metadata map[string]interface{}
}

// Chunk is one retrieval-sized slice of a Document. Ordinal is the
// position of the chunk within its parent document, StartOffset the
// byte offset of the chunk content in the parent.
type Chunk struct {
	Source      string
	Ordinal     int
	StartOffset int
	Content     string
	Metadata    map[string]interface{}
}

// ID is stable across rebuilds of the same source material, which keeps
// repeated index builds idempotent.
func (c Chunk) ID() string {
	return fmt.Sprintf("%s#%d", c.Source, c.Ordinal)
}
