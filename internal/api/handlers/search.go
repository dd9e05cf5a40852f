package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vectorleaf/ragserve/internal/chat"
	"github.com/vectorleaf/ragserve/internal/registry"
	"github.com/vectorleaf/ragserve/internal/vectorstore"
)

type SearchHandler struct {
	registry   *registry.Service
	embedder   chat.QueryEmbedder
	vectors    vectorstore.Store
	maxSearchK int
}

func NewSearchHandler(reg *registry.Service, embedder chat.QueryEmbedder, vectors vectorstore.Store, maxSearchK int) *SearchHandler {
	return &SearchHandler{registry: reg, embedder: embedder, vectors: vectors, maxSearchK: maxSearchK}
}

// Search runs retrieval only: embed the query, return scored matches.
// No chat provider is involved.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var req struct {
		Query     string   `json:"query"`
		SourceIDs []string `json:"source_ids"`
		TopK      int      `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query required"})
		return
	}
	if req.TopK == 0 {
		req.TopK = 5
	}
	if req.TopK < 1 || req.TopK > h.maxSearchK {
		writeError(w, fmt.Errorf("%w: %d not in [1, %d]", chat.ErrInvalidTopK, req.TopK, h.maxSearchK))
		return
	}

	if err := h.registry.TenantExists(r.Context(), tenantID); err != nil {
		writeError(w, err)
		return
	}

	vec, err := h.embedder.EmbedSingle(r.Context(), req.Query)
	if err != nil {
		writeError(w, err)
		return
	}

	matches, err := h.vectors.Search(r.Context(),
		vectorstore.Scope{TenantID: tenantID, SourceIDs: req.SourceIDs}, vec, req.TopK)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": matches, "count": len(matches)})
}
