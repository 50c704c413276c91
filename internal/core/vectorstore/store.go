// Package vectorstore provides named, isolated vector collections over
// interchangeable index providers.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrEmptyChunks indicates an empty or nil chunk batch.
	ErrEmptyChunks = errors.New("empty or nil chunks")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Chunk is one indexable text segment with its source metadata.
type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// SearchResult is one retrieved chunk ordered by similarity.
type SearchResult struct {
	ID       string
	Text     string
	Score    float32
	Metadata map[string]string
}

// CollectionStats reports existence and size of a collection.
type CollectionStats struct {
	Exists bool `json:"exists"`
	Count  int  `json:"document_count"`
}

// Store is the index-provider abstraction. Implementations must not panic
// on provider failure; they return an error and the caller decides whether
// to rotate credentials and retry.
type Store interface {
	// CreateCollection creates the collection if needed and indexes the
	// given chunks into it.
	CreateCollection(ctx context.Context, name string, chunks []Chunk) error

	// AppendToCollection adds chunks to an existing (or new) collection.
	AppendToCollection(ctx context.Context, name string, chunks []Chunk) error

	// Query returns up to k chunks most similar to the query text,
	// highest score first.
	Query(ctx context.Context, name string, query string, k int) ([]SearchResult, error)

	// DeleteCollection removes the collection and all its chunks.
	// Deleting a missing collection is not an error.
	DeleteCollection(ctx context.Context, name string) error

	// Stats reports whether the collection exists and how many chunks it
	// holds.
	Stats(ctx context.Context, name string) (CollectionStats, error)

	Close() error
}
