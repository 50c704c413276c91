package vectorstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/xenyhq/ragserve/internal/core"
)

//go:embed scripts/initdb.sql
var bootstrapFS embed.FS

// PgvectorStore implements Store on Postgres with the pgvector extension.
// Logical collections map to rows in kb_collections; their chunks live in a
// shared kb_chunks table keyed by collection name.
type PgvectorStore struct {
	db       *sql.DB
	embedder core.EmbeddingProvider
	logger   *zap.Logger
}

func NewPgvectorStore(ctx context.Context, databaseURL string, embedder core.EmbeddingProvider, logger *zap.Logger) (*PgvectorStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := ensureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	logger.Info("pgvector store initialized")
	return &PgvectorStore{db: db, embedder: embedder, logger: logger}, nil
}

func ensureBootstrapped(ctx context.Context, db *sql.DB) error {
	bootCtx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	var exists bool
	err := db.QueryRowContext(bootCtx, `
		SELECT EXISTS (
		  SELECT 1 FROM information_schema.tables
		  WHERE table_name = 'ragserve_meta'
		)`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("meta table check failed: %w", err)
	}
	if exists {
		return nil
	}

	sqlBytes, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	if err != nil {
		return fmt.Errorf("read initdb.sql: %w", err)
	}

	tx, err := db.BeginTx(bootCtx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(bootCtx, string(sqlBytes)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec bootstrap: %w", err)
	}
	return tx.Commit()
}

func (s *PgvectorStore) CreateCollection(ctx context.Context, name string, chunks []Chunk) error {
	return s.addChunks(ctx, name, chunks)
}

func (s *PgvectorStore) AppendToCollection(ctx context.Context, name string, chunks []Chunk) error {
	return s.addChunks(ctx, name, chunks)
}

func (s *PgvectorStore) addChunks(ctx context.Context, name string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return ErrEmptyChunks
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	embeddings, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("%w: embedder returned %d vectors for %d chunks", core.ErrProvider, len(embeddings), len(chunks))
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO kb_collections (name) VALUES ($1) ON CONFLICT DO NOTHING`, name,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("upsert collection %s: %w", name, err)
	}

	const q = `
		INSERT INTO kb_chunks (id, collection, text, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (collection, id) DO UPDATE
			SET text = EXCLUDED.text, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		id := ch.ID
		if id == "" {
			id = fmt.Sprintf("%s_%d", name, i)
		}
		meta, err := json.Marshal(ch.Metadata)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshal metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			id, name, ch.Text, meta, pgvector.NewVector(embeddings[i]),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert chunk %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Debug("indexed chunks",
		zap.String("collection", name),
		zap.Int("count", len(chunks)),
	)
	return nil
}

func (s *PgvectorStore) Query(ctx context.Context, name string, query string, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM kb_collections WHERE name = $1)`, name,
	).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrCollectionNotFound
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	const q = `
		SELECT id, text, metadata, 1 - (embedding <=> $2) AS score
		FROM kb_chunks
		WHERE collection = $1
		ORDER BY embedding <=> $2
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, q, name, pgvector.NewVector(queryVec), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var (
			r    SearchResult
			meta []byte
		)
		if err := rows.Scan(&r.ID, &r.Text, &meta, &r.Score); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &r.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		out = append(out, r)
	}
	if out == nil {
		out = []SearchResult{}
	}
	return out, rows.Err()
}

func (s *PgvectorStore) DeleteCollection(ctx context.Context, name string) error {
	// Chunk rows cascade from the collection row.
	_, err := s.db.ExecContext(ctx, `DELETE FROM kb_collections WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}
	s.logger.Info("deleted collection", zap.String("collection", name))
	return nil
}

func (s *PgvectorStore) Stats(ctx context.Context, name string) (CollectionStats, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM kb_collections WHERE name = $1)`, name,
	).Scan(&exists); err != nil {
		return CollectionStats{}, err
	}
	if !exists {
		return CollectionStats{}, nil
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM kb_chunks WHERE collection = $1`, name,
	).Scan(&count); err != nil {
		return CollectionStats{}, err
	}
	return CollectionStats{Exists: true, Count: count}, nil
}

func (s *PgvectorStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ Store = (*PgvectorStore)(nil)
