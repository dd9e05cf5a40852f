package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vectorleaf/ragserve/internal/chat"
	"github.com/vectorleaf/ragserve/internal/registry"
)

type ChatHandler struct {
	registry     *registry.Service
	orchestrator *chat.Orchestrator
}

func NewChatHandler(reg *registry.Service, orch *chat.Orchestrator) *ChatHandler {
	return &ChatHandler{registry: reg, orchestrator: orch}
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var req struct {
		SessionID      string   `json:"session_id"`
		Message        string   `json:"message"`
		SourceIDs      []string `json:"source_ids"`
		TopK           int      `json:"top_k"`
		IncludeHistory *bool    `json:"include_history"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.TopK == 0 {
		req.TopK = 5
	}
	// History is replayed unless the caller opts out.
	includeHistory := true
	if req.IncludeHistory != nil {
		includeHistory = *req.IncludeHistory
	}

	if err := h.registry.TenantExists(r.Context(), tenantID); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.orchestrator.Chat(r.Context(), chat.Request{
		TenantID:       tenantID,
		SessionID:      req.SessionID,
		Message:        req.Message,
		SourceIDs:      req.SourceIDs,
		TopK:           req.TopK,
		IncludeHistory: includeHistory,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// History returns the stored turns for a session, oldest first.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	sessionID := chi.URLParam(r, "sessionID")

	turns, err := h.orchestrator.SessionHistory(r.Context(), tenantID, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"turns": turns, "count": len(turns)})
}
