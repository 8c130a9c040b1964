package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/docchat/docchat/internal/models"
)

// Separators tried in priority order when a window would otherwise end
// mid-token: paragraph break, line break, sentence end, word boundary.
// A hard cut at the window edge is the last resort.
var separators = []string{"\n\n", "\n", ". ", " "}

// Splitter cuts documents into overlapping windows of a target size.
// Split is a pure function of the splitter configuration and its input,
// so the same documents always produce the same chunks.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

func New(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("chunk overlap cannot be negative, got %d", chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be less than chunk size %d", chunkOverlap, chunkSize)
	}
	return &Splitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Split chunks every document, preserving document order and the order
// of chunks within each document. An empty document yields no chunks; a
// document no longer than the chunk size yields exactly one.
func (s *Splitter) Split(docs []models.Document) []models.Chunk {
	var chunks []models.Chunk
	for _, doc := range docs {
		chunks = append(chunks, s.splitDocument(doc)...)
	}
	return chunks
}

func (s *Splitter) splitDocument(doc models.Document) []models.Chunk {
	if len(doc.Content) == 0 {
		return nil
	}

	var chunks []models.Chunk
	start := 0
	for start < len(doc.Content) {
		end := start + s.chunkSize
		if end >= len(doc.Content) {
			chunks = append(chunks, s.newChunk(doc, len(chunks), start, doc.Content[start:]))
			break
		}

		// The window edge is a byte count and can land inside a
		// multi-byte rune; pull it back so no cut splits a rune.
		for end > start && !utf8.RuneStart(doc.Content[end]) {
			end--
		}
		if end == start {
			// A single rune wider than the chunk size. Take it whole.
			_, size := utf8.DecodeRuneInString(doc.Content[start:])
			end = start + size
		}

		cut := s.findCut(doc.Content[start:end])
		chunks = append(chunks, s.newChunk(doc, len(chunks), start, doc.Content[start:start+cut]))

		next := start + cut - s.chunkOverlap
		for next > start && !utf8.RuneStart(doc.Content[next]) {
			next--
		}
		if next <= start {
			// Overlap would swallow the whole chunk; step past it instead.
			next = start + cut
		}
		start = next
	}
	return chunks
}

// findCut returns the length of the next chunk within a full window,
// preferring the last natural boundary found in the window. The
// separator stays attached to the chunk it closes.
func (s *Splitter) findCut(window string) int {
	for _, sep := range separators {
		if i := strings.LastIndex(window, sep); i > 0 {
			return i + len(sep)
		}
	}
	return len(window)
}

func (s *Splitter) newChunk(doc models.Document, ordinal, offset int, content string) models.Chunk {
	return models.Chunk{
		Source:      doc.Source,
		Ordinal:     ordinal,
		StartOffset: offset,
		Content:     content,
		Metadata:    doc.Metadata,
	}
}
