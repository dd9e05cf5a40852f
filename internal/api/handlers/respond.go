package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vectorleaf/ragserve/internal/chat"
	"github.com/vectorleaf/ragserve/internal/embedding"
	"github.com/vectorleaf/ragserve/internal/ingest"
	"github.com/vectorleaf/ragserve/internal/llm"
	"github.com/vectorleaf/ragserve/internal/registry"
	"github.com/vectorleaf/ragserve/internal/session"
	"github.com/vectorleaf/ragserve/pkg/chunker"
	"github.com/vectorleaf/ragserve/pkg/textextract"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps sentinel errors onto HTTP statuses. Unknown errors
// are logged and returned as opaque 500s.
func writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, registry.ErrInvalidTenantID),
		errors.Is(err, registry.ErrInvalidSourceName),
		errors.Is(err, chat.ErrInvalidTopK),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chunker.ErrInvalidConfig),
		errors.Is(err, ingest.ErrNoText),
		errors.Is(err, textextract.ErrUnsupportedType):
		status = http.StatusBadRequest
	case errors.Is(err, registry.ErrTenantNotFound),
		errors.Is(err, registry.ErrSourceNotFound),
		errors.Is(err, session.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrTenantMismatch):
		status = http.StatusForbidden
	case errors.Is(err, llm.ErrProvider),
		errors.Is(err, ingest.ErrIngestionFailed):
		status = http.StatusBadGateway
	case errors.Is(err, embedding.ErrDimensionMismatch):
		status = http.StatusInternalServerError
	default:
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
