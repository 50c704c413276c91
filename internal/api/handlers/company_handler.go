package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenyhq/ragserve/internal/core/ingestion"
	"github.com/xenyhq/ragserve/internal/core/retrieval"
	"github.com/xenyhq/ragserve/internal/services"
)

type CompanyHandler struct {
	docs    *services.DocumentService
	builder *ingestion.Builder
	engine  *retrieval.Engine
}

func NewCompanyHandler(docs *services.DocumentService, builder *ingestion.Builder, engine *retrieval.Engine) *CompanyHandler {
	return &CompanyHandler{docs: docs, builder: builder, engine: engine}
}

type createCompanyRequest struct {
	CompanyID   string `json:"company_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	info, err := h.docs.CreateCompany(r.Context(), req.CompanyID, req.Name, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	companies, err := h.docs.ListCompanies(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, companies)
}

func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")

	info, err := h.docs.GetCompany(r.Context(), companyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Delete cascades the company's collections, files, build status and any
// cached retrieval pipelines.
func (h *CompanyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")

	if err := h.docs.DeleteCompany(r.Context(), companyID); err != nil {
		writeError(w, err)
		return
	}
	h.engine.ForgetCompany(companyID)

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Company " + companyID + " deleted successfully",
	})
}

// Build dispatches a background rebuild and returns the building status
// immediately. A second request while building is a no-op.
func (h *CompanyHandler) Build(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")

	h.builder.Dispatch(companyID)
	h.engine.ForgetCompany(companyID)

	writeJSON(w, http.StatusAccepted, h.builder.Status(companyID))
}

func (h *CompanyHandler) BuildStatus(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")
	writeJSON(w, http.StatusOK, h.builder.Status(companyID))
}

func (h *CompanyHandler) Stats(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")

	stats, fileCount, err := h.docs.IndexStats(r.Context(), companyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"company_id":   companyID,
		"collection":   stats,
		"file_count":   fileCount,
		"build_status": h.builder.Status(companyID).Status,
	})
}
