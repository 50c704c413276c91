package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenyhq/ragserve/internal/core/retrieval"
	"github.com/xenyhq/ragserve/internal/models"
	"github.com/xenyhq/ragserve/internal/services"
	"github.com/xenyhq/ragserve/internal/sessions"
)

type QueryHandler struct {
	engine   *retrieval.Engine
	docs     *services.DocumentService
	sessions sessions.Store
	logger   *zap.Logger
}

func NewQueryHandler(engine *retrieval.Engine, docs *services.DocumentService, store sessions.Store, logger *zap.Logger) *QueryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryHandler{engine: engine, docs: docs, sessions: store, logger: logger}
}

type queryRequest struct {
	CompanyID string               `json:"company_id"`
	Query     string               `json:"query"`
	SessionID string               `json:"session_id,omitempty"`
	History   []models.ChatMessage `json:"history,omitempty"`
}

type fileChatRequest struct {
	FileID    string               `json:"file_id"`
	Query     string               `json:"query"`
	SessionID string               `json:"session_id,omitempty"`
	History   []models.ChatMessage `json:"history,omitempty"`
}

type fileInfoRef struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
}

type queryResponse struct {
	Response  string       `json:"response"`
	CompanyID string       `json:"company_id"`
	SessionID string       `json:"session_id"`
	Timestamp time.Time    `json:"timestamp"`
	Sources   []string     `json:"sources"`
	FileInfo  *fileInfoRef `json:"file_info,omitempty"`
}

// Query answers a one-shot question without touching session state.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.CompanyID == "" || req.Query == "" {
		http.Error(w, "company_id and query are required", http.StatusBadRequest)
		return
	}

	ans, err := h.engine.AnswerCompany(r.Context(), req.CompanyID, req.Query, req.History)
	if err != nil {
		writeError(w, err)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	writeJSON(w, http.StatusOK, queryResponse{
		Response:  ans.Response,
		CompanyID: req.CompanyID,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Sources:   ans.Sources,
	})
}

// Chat answers a question and appends both turns to the session transcript.
// When the request carries no explicit history, the stored transcript is
// used for the history-aware retrieval step.
func (h *QueryHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.CompanyID == "" || req.Query == "" {
		http.Error(w, "company_id and query are required", http.StatusBadRequest)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	history := req.History
	if len(history) == 0 {
		if stored, err := h.sessions.History(r.Context(), sessionID); err == nil {
			history = stored
		}
	}

	h.appendMessage(r.Context(), sessionID, req.CompanyID, "user", req.Query)

	ans, err := h.engine.AnswerCompany(r.Context(), req.CompanyID, req.Query, history)
	if err != nil {
		writeError(w, err)
		return
	}

	h.appendMessage(r.Context(), sessionID, req.CompanyID, "bot", ans.Response)

	writeJSON(w, http.StatusOK, queryResponse{
		Response:  ans.Response,
		CompanyID: req.CompanyID,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Sources:   ans.Sources,
	})
}

// FileChat chats with one document; the owning company is resolved from the
// file id.
func (h *QueryHandler) FileChat(w http.ResponseWriter, r *http.Request) {
	var req fileChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.FileID == "" || req.Query == "" {
		http.Error(w, "file_id and query are required", http.StatusBadRequest)
		return
	}

	companyID, _, err := h.docs.FindCompanyByFileID(r.Context(), req.FileID)
	if err != nil {
		writeError(w, err)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	history := req.History
	if len(history) == 0 {
		if stored, err := h.sessions.History(r.Context(), sessionID); err == nil {
			history = stored
		}
	}

	h.appendMessage(r.Context(), sessionID, companyID, "user", req.Query)

	ans, err := h.engine.AnswerFile(r.Context(), companyID, req.FileID, req.Query, history)
	if err != nil {
		writeError(w, err)
		return
	}

	h.appendMessage(r.Context(), sessionID, companyID, "bot", ans.Response)

	resp := queryResponse{
		Response:  ans.Response,
		CompanyID: companyID,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Sources:   ans.Sources,
	}
	if ans.FileID != "" {
		resp.FileInfo = &fileInfoRef{FileID: ans.FileID, Filename: ans.Filename}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *QueryHandler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	history, err := h.sessions.History(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *QueryHandler) ClearChat(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.sessions.Clear(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat history cleared"})
}

func (h *QueryHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.sessions.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// FileInfo resolves a file id to its record without knowing the company.
func (h *QueryHandler) FileInfo(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")

	companyID, info, err := h.docs.FindCompanyByFileID(r.Context(), fileID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"file_id":           info.FileID,
		"company_id":        companyID,
		"filename":          info.Filename,
		"original_filename": info.OriginalFilename,
		"size":              info.Size,
		"extension":         info.Extension,
		"created_at":        info.CreatedAt,
	})
}

func (h *QueryHandler) appendMessage(ctx context.Context, sessionID, companyID, sender, text string) {
	msg := models.ChatMessage{
		Message:   text,
		Sender:    sender,
		SessionID: sessionID,
		CompanyID: companyID,
		Timestamp: time.Now().UTC(),
	}
	if err := h.sessions.Append(ctx, sessionID, msg); err != nil {
		h.logger.Warn("failed to append chat message",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}
