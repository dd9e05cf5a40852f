// Package workers holds asynq task handlers for background ingestion.
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/vectorleaf/ragserve/internal/ingest"
	"github.com/vectorleaf/ragserve/internal/queue"
	"github.com/vectorleaf/ragserve/pkg/textextract"
)

type IngestWorker struct {
	pipeline    *ingest.Pipeline
	queueClient *queue.Client
}

func NewIngestWorker(pipeline *ingest.Pipeline, qc *queue.Client) *IngestWorker {
	return &IngestWorker{pipeline: pipeline, queueClient: qc}
}

// ProcessDirectoryTask fans a directory out into per-file tasks so each
// file gets its own retry budget.
func (w *IngestWorker) ProcessDirectoryTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.IngestDirectoryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	entries, err := os.ReadDir(payload.Dir)
	if err != nil {
		return fmt.Errorf("read directory %s: %w", payload.Dir, err)
	}

	supported := make(map[string]bool)
	for _, ext := range textextract.SupportedTypes() {
		supported[ext] = true
	}

	enqueued := 0
	for _, entry := range entries {
		if entry.IsDir() || !supported[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		if err := w.queueClient.EnqueueIngestFile(queue.IngestFilePayload{
			TenantID: payload.TenantID,
			SourceID: payload.SourceID,
			Path:     filepath.Join(payload.Dir, entry.Name()),
		}); err != nil {
			return fmt.Errorf("enqueue %s: %w", entry.Name(), err)
		}
		enqueued++
	}

	slog.Info("directory scan complete",
		"tenant_id", payload.TenantID, "dir", payload.Dir, "files", enqueued)
	return nil
}

func (w *IngestWorker) ProcessFileTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.IngestFilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	sourceID, err := uuid.Parse(payload.SourceID)
	if err != nil {
		return fmt.Errorf("parse source id: %w", err)
	}

	data, err := os.ReadFile(payload.Path)
	if err != nil {
		return fmt.Errorf("read file %s: %w", payload.Path, err)
	}

	res, err := w.pipeline.Ingest(ctx, ingest.Request{
		TenantID: payload.TenantID,
		SourceID: sourceID,
		Filename: filepath.Base(payload.Path),
		Data:     data,
	})
	if err != nil {
		return fmt.Errorf("ingest %s: %w", payload.Path, err)
	}

	slog.Info("background file ingested",
		"tenant_id", payload.TenantID,
		"path", payload.Path,
		"new_chunks", res.NewChunks,
		"skipped_duplicates", res.SkippedDuplicates,
	)
	return nil
}
