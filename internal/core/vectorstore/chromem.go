package vectorstore

import (
	"context"
	"fmt"
	"os"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/xenyhq/ragserve/internal/core"
)

// ChromemStore implements Store on chromem-go, an embeddable pure-Go vector
// database. Collections persist as gob files under the configured directory;
// with an empty path the database lives in memory only (used by tests).
type ChromemStore struct {
	db       *chromem.DB
	embedder core.EmbeddingProvider
	logger   *zap.Logger
}

func NewChromemStore(path string, embedder core.EmbeddingProvider, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		if err = os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("creating vector directory %s: %w", path, err)
		}
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("opening chromem DB: %w", err)
		}
	}

	logger.Info("chromem store initialized", zap.String("path", path))
	return &ChromemStore{db: db, embedder: embedder, logger: logger}, nil
}

// embeddingFunc adapts the embedding provider to chromem's query-time hook.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

func (s *ChromemStore) CreateCollection(ctx context.Context, name string, chunks []Chunk) error {
	return s.addChunks(ctx, name, chunks)
}

func (s *ChromemStore) AppendToCollection(ctx context.Context, name string, chunks []Chunk) error {
	return s.addChunks(ctx, name, chunks)
}

func (s *ChromemStore) addChunks(ctx context.Context, name string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return ErrEmptyChunks
	}

	collection, err := s.db.GetOrCreateCollection(name, nil, s.embeddingFunc())
	if err != nil {
		return fmt.Errorf("getting/creating collection %s: %w", name, err)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	// Embed in one batch up front so a provider failure surfaces before
	// anything is written.
	embeddings, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("%w: embedder returned %d vectors for %d chunks", core.ErrProvider, len(embeddings), len(chunks))
	}

	docs := make([]chromem.Document, len(chunks))
	for i, ch := range chunks {
		id := ch.ID
		if id == "" {
			id = fmt.Sprintf("%s_%d", name, collection.Count()+i)
		}
		docs[i] = chromem.Document{
			ID:        id,
			Content:   ch.Text,
			Metadata:  ch.Metadata,
			Embedding: embeddings[i],
		}
	}

	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding documents to %s: %w", name, err)
	}

	s.logger.Debug("indexed chunks",
		zap.String("collection", name),
		zap.Int("count", len(chunks)),
	)
	return nil
}

func (s *ChromemStore) Query(ctx context.Context, name string, query string, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	collection := s.db.GetCollection(name, s.embeddingFunc())
	if collection == nil {
		return nil, ErrCollectionNotFound
	}

	// chromem requires k <= document count.
	count := collection.Count()
	if count == 0 {
		return []SearchResult{}, nil
	}
	if k > count {
		k = count
	}

	results, err := collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", name, err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			ID:       r.ID,
			Text:     r.Content,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		}
	}
	return out, nil
}

func (s *ChromemStore) DeleteCollection(ctx context.Context, name string) error {
	if s.db.GetCollection(name, s.embeddingFunc()) == nil {
		return nil
	}
	if err := s.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}
	s.logger.Info("deleted collection", zap.String("collection", name))
	return nil
}

func (s *ChromemStore) Stats(ctx context.Context, name string) (CollectionStats, error) {
	collection := s.db.GetCollection(name, s.embeddingFunc())
	if collection == nil {
		return CollectionStats{}, nil
	}
	return CollectionStats{Exists: true, Count: collection.Count()}, nil
}

// Close is a no-op: chromem persists on every write.
func (s *ChromemStore) Close() error {
	return nil
}

var _ Store = (*ChromemStore)(nil)
