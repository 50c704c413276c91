package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/xenyhq/ragserve/internal/api/handlers"
	"github.com/xenyhq/ragserve/internal/api/middlewares"
	"github.com/xenyhq/ragserve/internal/config"
	"github.com/xenyhq/ragserve/internal/core/ingestion"
	"github.com/xenyhq/ragserve/internal/core/llm"
	"github.com/xenyhq/ragserve/internal/core/retrieval"
	"github.com/xenyhq/ragserve/internal/services"
	"github.com/xenyhq/ragserve/internal/sessions"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds and wires all routes.
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	docs *services.DocumentService,
	users *services.UserService,
	builder *ingestion.Builder,
	engine *retrieval.Engine,
	sessionStore sessions.Store,
	ring *llm.Keyring,
) *Server {
	authHandler := handlers.NewAuthHandler(users, cfg.JWTSecret)
	companyHandler := handlers.NewCompanyHandler(docs, builder, engine)
	documentHandler := handlers.NewDocumentHandler(docs, builder, engine, logger)
	queryHandler := handlers.NewQueryHandler(engine, docs, sessionStore, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		companies, err := docs.ListCompanies(r.Context())
		if err != nil {
			logger.Warn("health: listing companies failed", zap.Error(err))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":         "healthy",
			"api_keys":       ring.Size(),
			"companies":      len(companies),
			"vector_backend": cfg.VectorBackend,
		})
	})

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(middlewares.JWT(cfg.JWTSecret))

			protected.Route("/companies", func(c chi.Router) {
				c.Post("/", companyHandler.Create)
				c.Get("/", companyHandler.List)
				c.Get("/{companyID}", companyHandler.Get)
				c.Delete("/{companyID}", companyHandler.Delete)
				c.Post("/{companyID}/build", companyHandler.Build)
				c.Get("/{companyID}/build-status", companyHandler.BuildStatus)
				c.Get("/{companyID}/stats", companyHandler.Stats)
			})

			protected.Route("/files", func(f chi.Router) {
				f.Post("/upload", documentHandler.Upload)
				f.Get("/list", documentHandler.List)
				f.Get("/{fileID}", documentHandler.Get)
				f.Delete("/{fileID}", documentHandler.Delete)
			})

			protected.Route("/query", func(q chi.Router) {
				q.Post("/", queryHandler.Query)
				q.Post("/chat", queryHandler.Chat)
				q.Post("/file-chat", queryHandler.FileChat)
				q.Get("/chat/{sessionID}", queryHandler.ChatHistory)
				q.Delete("/chat/{sessionID}", queryHandler.ClearChat)
				q.Get("/sessions", queryHandler.ListSessions)
				q.Get("/file-info/{fileID}", queryHandler.FileInfo)
			})
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, logger: logger}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
