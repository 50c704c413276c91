package handlers

import (
	"context"
	"io"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xenyhq/ragserve/internal/core/ingestion"
	"github.com/xenyhq/ragserve/internal/core/retrieval"
	"github.com/xenyhq/ragserve/internal/services"
)

type DocumentHandler struct {
	docs    *services.DocumentService
	builder *ingestion.Builder
	engine  *retrieval.Engine
	logger  *zap.Logger
}

func NewDocumentHandler(docs *services.DocumentService, builder *ingestion.Builder, engine *retrieval.Engine, logger *zap.Logger) *DocumentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentHandler{docs: docs, builder: builder, engine: engine, logger: logger}
}

// Upload stores a document and kicks off background indexing: the file's
// chunks are appended to the company collection so the document is
// queryable right away, and its own collection is warmed for targeted
// chat. A failed append falls back to a full rebuild.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(services.MaxFileSize + 1024); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	companyID := r.FormValue("company_id")
	if companyID == "" {
		http.Error(w, "company_id is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, services.MaxFileSize+1))
	if err != nil {
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return
	}

	cleanFilename := filepath.Base(header.Filename)
	info, err := h.docs.Upload(r.Context(), companyID, cleanFilename, data)
	if err != nil {
		writeError(w, err)
		return
	}

	// Background indexing outlives the request.
	h.engine.ForgetCompany(companyID)
	go func() {
		if err := h.builder.AppendFile(context.Background(), companyID, info.FileID); err != nil {
			h.logger.Warn("incremental index append failed, dispatching full rebuild",
				zap.String("company_id", companyID),
				zap.String("file_id", info.FileID),
				zap.Error(err),
			)
			h.builder.Dispatch(companyID)
		}
		if err := h.builder.MaterializeFile(context.Background(), companyID, info.FileID); err != nil {
			h.logger.Warn("file collection materialization failed",
				zap.String("company_id", companyID),
				zap.String("file_id", info.FileID),
				zap.Error(err),
			)
		}
	}()

	writeJSON(w, http.StatusCreated, info)
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("company_id")
	if companyID == "" {
		http.Error(w, "company_id is required", http.StatusBadRequest)
		return
	}

	files, err := h.docs.ListFiles(r.Context(), companyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("company_id")
	fileID := chi.URLParam(r, "fileID")
	if companyID == "" {
		http.Error(w, "company_id is required", http.StatusBadRequest)
		return
	}

	info, err := h.docs.GetFile(r.Context(), companyID, fileID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("company_id")
	fileID := chi.URLParam(r, "fileID")
	if companyID == "" {
		http.Error(w, "company_id is required", http.StatusBadRequest)
		return
	}

	if err := h.docs.DeleteFile(r.Context(), companyID, fileID); err != nil {
		writeError(w, err)
		return
	}
	h.engine.ForgetCompany(companyID)

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "File " + fileID + " deleted successfully",
	})
}
