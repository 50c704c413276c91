package app

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/xenyhq/ragserve/internal/config"
	"github.com/xenyhq/ragserve/internal/core/ingestion"
	"github.com/xenyhq/ragserve/internal/core/llm"
	"github.com/xenyhq/ragserve/internal/core/retrieval"
	"github.com/xenyhq/ragserve/internal/core/storage"
	"github.com/xenyhq/ragserve/internal/core/vectorstore"
	"github.com/xenyhq/ragserve/internal/services"
	"github.com/xenyhq/ragserve/internal/sessions"
)

// App wires the configured backends into the running service.
type App struct {
	Server *Server

	logger   *zap.Logger
	store    vectorstore.Store
	embedder *llm.GeminiEmbedder
	provider *llm.GeminiLLM
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}

	ring, err := llm.NewKeyring(cfg.GeminiAPIKeys)
	if err != nil {
		return nil, err
	}
	embedder := llm.NewGeminiEmbedder(ring, cfg.EmbedModel)
	provider := llm.NewGeminiLLM(ring, cfg.GenModel)

	var st storage.Storage
	switch cfg.StorageBackend {
	case "s3":
		st, err = storage.NewS3Storage(ctx, cfg, logger)
	default:
		st, err = storage.NewLocalStorage(cfg.DataDir, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	var store vectorstore.Store
	switch cfg.VectorBackend {
	case "pgvector":
		store, err = vectorstore.NewPgvectorStore(ctx, cfg.DatabaseURL, embedder, logger)
	default:
		store, err = vectorstore.NewChromemStore(cfg.VectorDir, embedder, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("init vector store: %w", err)
	}
	index := vectorstore.NewManager(store, logger)

	var sessionStore sessions.Store
	switch cfg.SessionBackend {
	case "redis":
		sessionStore, err = sessions.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("init session store: %w", err)
		}
	default:
		sessionStore = sessions.NewMemoryStore()
	}

	loader := ingestion.NewLoader(logger)
	splitter := ingestion.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	builder := ingestion.NewBuilder(st, index, loader, splitter, ring, logger)
	engine := retrieval.NewEngine(index, builder, st, provider, ring, cfg.TopK, logger)

	docService := services.NewDocumentService(st, index, builder, logger)
	userService, err := services.NewUserService(filepath.Join(cfg.DataDir, "users.json"), logger)
	if err != nil {
		return nil, fmt.Errorf("init user service: %w", err)
	}

	server := NewServer(cfg, logger, docService, userService, builder, engine, sessionStore, ring)

	logger.Info("application wired",
		zap.String("storage_backend", cfg.StorageBackend),
		zap.String("vector_backend", cfg.VectorBackend),
		zap.String("session_backend", cfg.SessionBackend),
		zap.Int("api_keys", ring.Size()),
	)

	return &App{
		Server:   server,
		logger:   logger,
		store:    store,
		embedder: embedder,
		provider: provider,
	}, nil
}

func (a *App) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.provider != nil {
		_ = a.provider.Close()
	}
	_ = a.logger.Sync()
}
