// Package ingest orchestrates upload processing: extract text, chunk,
// fingerprint, dedup-check against the vector store, embed only what is
// new, upsert, and record document metadata. Dedup is content-based,
// which makes re-running a failed or repeated upload safe: fingerprints
// that already exist are never re-embedded.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vectorleaf/ragserve/internal/models"
	"github.com/vectorleaf/ragserve/internal/vectorstore"
	"github.com/vectorleaf/ragserve/pkg/chunker"
	"github.com/vectorleaf/ragserve/pkg/fingerprint"
	"github.com/vectorleaf/ragserve/pkg/textextract"
)

// ErrIngestionFailed wraps mid-pipeline failures. Nothing is upserted
// when it is returned: partial embedding output is discarded, so the
// caller can retry the whole upload.
var ErrIngestionFailed = errors.New("ingest: ingestion failed")

// ErrNoText is returned when extraction yields an empty document.
var ErrNoText = errors.New("ingest: no text extracted from document")

// Extractor is the external text-extraction collaborator.
type Extractor interface {
	Extract(filename string, data []byte) (string, error)
}

// Embedder maps texts to vectors, order preserving.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Recorder persists document metadata after a successful upsert.
type Recorder interface {
	RecordDocument(ctx context.Context, doc *models.Document) error
	HasDocumentWithHash(ctx context.Context, tenantID string, sourceID uuid.UUID, contentHash string) (bool, error)
}

type Pipeline struct {
	extractor Extractor
	embedder  Embedder
	store     vectorstore.Store
	recorder  Recorder
	chunkOpts chunker.Options
}

func NewPipeline(extractor Extractor, embedder Embedder, store vectorstore.Store, recorder Recorder, opts chunker.Options) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		embedder:  embedder,
		store:     store,
		recorder:  recorder,
		chunkOpts: opts,
	}
}

type Request struct {
	TenantID string
	SourceID uuid.UUID
	Filename string
	Data     []byte
}

type Result struct {
	NewChunks         int `json:"new_chunks"`
	SkippedDuplicates int `json:"skipped_duplicates"`
}

func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Result, error) {
	scope := vectorstore.Scope{TenantID: req.TenantID}
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	text, err := p.extractor.Extract(req.Filename, req.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: extract %s: %v", ErrIngestionFailed, req.Filename, err)
	}

	chunks, err := chunker.Split(text, p.chunkOpts)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoText, req.Filename)
	}

	sourceKey := ""
	if req.SourceID != uuid.Nil {
		sourceKey = req.SourceID.String()
	}

	// Fingerprint every chunk and drop in-batch duplicates before
	// touching the store: a file repeating a passage should embed it
	// once.
	type candidate struct {
		fp    fingerprint.Fingerprint
		chunk chunker.TextChunk
	}
	var candidates []candidate
	seen := make(map[fingerprint.Fingerprint]bool, len(chunks))
	for _, c := range chunks {
		fp := fingerprint.New(req.TenantID, sourceKey, c.Content)
		if seen[fp] {
			continue
		}
		seen[fp] = true
		candidates = append(candidates, candidate{fp: fp, chunk: c})
	}

	fps := make([]fingerprint.Fingerprint, len(candidates))
	for i, c := range candidates {
		fps[i] = c.fp
	}
	existing, err := p.store.Exists(ctx, scope, fps)
	if err != nil {
		return nil, fmt.Errorf("%w: dedup check: %v", ErrIngestionFailed, err)
	}

	var fresh []candidate
	for _, c := range candidates {
		if !existing[c.fp] {
			fresh = append(fresh, c)
		}
	}

	docID := uuid.New()
	entries := make([]vectorstore.Entry, 0, len(fresh))
	if len(fresh) > 0 {
		texts := make([]string, len(fresh))
		for i, c := range fresh {
			texts[i] = c.chunk.Content
		}

		// One failed batch fails the whole call; nothing below runs,
		// so no partial chunk set is ever committed.
		vectors, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("%w: embed: %v", ErrIngestionFailed, err)
		}
		if len(vectors) != len(fresh) {
			return nil, fmt.Errorf("%w: embed returned %d vectors for %d chunks",
				ErrIngestionFailed, len(vectors), len(fresh))
		}

		for i, c := range fresh {
			entries = append(entries, vectorstore.Entry{
				Fingerprint: c.fp,
				Vector:      vectors[i],
				Metadata: vectorstore.Metadata{
					SourceID:   sourceKey,
					DocumentID: docID.String(),
					Filename:   req.Filename,
					ChunkIndex: c.chunk.Index,
					Content:    c.chunk.Content,
				},
			})
		}

		if err := p.store.Upsert(ctx, scope, entries); err != nil {
			return nil, fmt.Errorf("%w: upsert: %v", ErrIngestionFailed, err)
		}
	}

	contentHash := fingerprint.Sum256(req.Data)
	if dup, err := p.recorder.HasDocumentWithHash(ctx, req.TenantID, req.SourceID, contentHash); err == nil && dup {
		slog.Info("byte-identical file re-uploaded",
			"tenant_id", req.TenantID, "filename", req.Filename)
	}
	if err := p.recorder.RecordDocument(ctx, &models.Document{
		ID:          docID,
		TenantID:    req.TenantID,
		SourceID:    req.SourceID,
		Filename:    req.Filename,
		ContentHash: contentHash,
	}); err != nil {
		return nil, fmt.Errorf("%w: record document: %v", ErrIngestionFailed, err)
	}

	result := &Result{
		NewChunks:         len(entries),
		SkippedDuplicates: len(chunks) - len(entries),
	}
	slog.Info("document ingested",
		"tenant_id", req.TenantID,
		"source_id", sourceKey,
		"filename", req.Filename,
		"new_chunks", result.NewChunks,
		"skipped_duplicates", result.SkippedDuplicates,
	)
	return result, nil
}

// FileExtractor adapts pkg/textextract to the Extractor interface.
type FileExtractor struct{}

func (FileExtractor) Extract(filename string, data []byte) (string, error) {
	out, err := textextract.FromFilename(filename, data)
	if err != nil {
		return "", err
	}
	return out.Content, nil
}
