package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vectorleaf/ragserve/internal/ingest"
	"github.com/vectorleaf/ragserve/internal/queue"
	"github.com/vectorleaf/ragserve/internal/registry"
)

const maxUploadBytes = 32 << 20 // 32 MiB

type DocumentHandler struct {
	registry    *registry.Service
	pipeline    *ingest.Pipeline
	queueClient *queue.Client
}

func NewDocumentHandler(reg *registry.Service, pipeline *ingest.Pipeline, qc *queue.Client) *DocumentHandler {
	return &DocumentHandler{registry: reg, pipeline: pipeline, queueClient: qc}
}

// Upload ingests a multipart file synchronously and reports how many
// chunks were new versus already known.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	sourceID, err := uuid.Parse(chi.URLParam(r, "sourceID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid source id"})
		return
	}
	if _, err := h.registry.GetSource(r.Context(), tenantID, sourceID); err != nil {
		writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read upload: " + err.Error()})
		return
	}

	result, err := h.pipeline.Ingest(r.Context(), ingest.Request{
		TenantID: tenantID,
		SourceID: sourceID,
		Filename: header.Filename,
		Data:     data,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	sourceID, err := uuid.Parse(chi.URLParam(r, "sourceID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid source id"})
		return
	}
	if _, err := h.registry.GetSource(r.Context(), tenantID, sourceID); err != nil {
		writeError(w, err)
		return
	}

	docs, err := h.registry.ListDocuments(r.Context(), tenantID, sourceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "count": len(docs)})
}

// IngestDirectory enqueues a background scan of a server-local
// directory. Processing happens in the worker; the call returns as soon
// as the task is queued.
func (h *DocumentHandler) IngestDirectory(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	sourceID, err := uuid.Parse(chi.URLParam(r, "sourceID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid source id"})
		return
	}
	if _, err := h.registry.GetSource(r.Context(), tenantID, sourceID); err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Dir string `json:"dir"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Dir == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "dir required"})
		return
	}

	if err := h.queueClient.EnqueueIngestDirectory(queue.IngestDirectoryPayload{
		TenantID: tenantID,
		SourceID: sourceID.String(),
		Dir:      req.Dir,
	}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
