// Package source loads raw documents with provenance metadata, either
// from a directory of files or from a fixed list of web pages. A
// failure on one file or URL never aborts the rest of the batch.
package source

import "errors"

// ErrNoDocuments reports that a source had no readable items at all.
var ErrNoDocuments = errors.New("no readable documents found")
