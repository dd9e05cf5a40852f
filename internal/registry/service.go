// Package registry is the metadata layer for tenants, sources and
// documents. Source deletion cascades: vectors are removed first, then
// document rows, then the source record, so a crash mid-sequence can
// only leave unreachable orphan vectors, never metadata pointing at
// vectors that no longer exist.
package registry

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/vectorleaf/ragserve/internal/models"
	"github.com/vectorleaf/ragserve/internal/vectorstore"
)

var (
	ErrInvalidTenantID   = errors.New("registry: invalid tenant id")
	ErrInvalidSourceName = errors.New("registry: source name required")
	ErrTenantNotFound    = errors.New("registry: tenant not found")
	ErrSourceNotFound    = errors.New("registry: source not found")
)

var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,64}$`)

// ValidTenantID reports whether id matches the accepted tenant id
// pattern. Exposed for request validation at the transport layer.
func ValidTenantID(id string) bool {
	return tenantIDPattern.MatchString(id)
}

// Service validates requests and owns the delete cascade; metadata
// persistence is delegated to a Store.
type Service struct {
	meta    Store
	vectors vectorstore.Store
}

func NewService(meta Store, vectors vectorstore.Store) *Service {
	return &Service{meta: meta, vectors: vectors}
}

// CreateTenant registers a caller-named tenant. Idempotent: re-creating
// an existing tenant succeeds without error.
func (s *Service) CreateTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	if !ValidTenantID(tenantID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTenantID, tenantID)
	}
	return s.meta.InsertTenant(ctx, tenantID)
}

func (s *Service) TenantExists(ctx context.Context, tenantID string) error {
	exists, err := s.meta.TenantExists(ctx, tenantID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %q", ErrTenantNotFound, tenantID)
	}
	return nil
}

func (s *Service) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	return s.meta.ListTenants(ctx)
}

// CreateSource always generates a fresh id; duplicate names within a
// tenant are allowed.
func (s *Service) CreateSource(ctx context.Context, tenantID, name string) (*models.Source, error) {
	if name == "" {
		return nil, ErrInvalidSourceName
	}
	if err := s.TenantExists(ctx, tenantID); err != nil {
		return nil, err
	}

	src := &models.Source{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.meta.InsertSource(ctx, src); err != nil {
		return nil, err
	}
	return src, nil
}

func (s *Service) GetSource(ctx context.Context, tenantID string, sourceID uuid.UUID) (*models.Source, error) {
	return s.meta.GetSource(ctx, tenantID, sourceID)
}

func (s *Service) ListSources(ctx context.Context, tenantID string) ([]models.Source, error) {
	return s.meta.ListSources(ctx, tenantID)
}

// DeleteSource removes the source's vectors, then its document rows,
// then the source record. Vector delete runs first: if we crash after
// it, the orphaned metadata still points at nothing dangerous and the
// delete can be retried.
func (s *Service) DeleteSource(ctx context.Context, tenantID string, sourceID uuid.UUID) error {
	if _, err := s.meta.GetSource(ctx, tenantID, sourceID); err != nil {
		return err
	}

	scope := vectorstore.Scope{TenantID: tenantID, SourceIDs: []string{sourceID.String()}}
	if err := s.vectors.Delete(ctx, scope); err != nil {
		return fmt.Errorf("delete source vectors: %w", err)
	}

	return s.meta.DeleteSource(ctx, tenantID, sourceID)
}

// RecordDocument stores the metadata row for an uploaded file,
// including its whole-file content hash.
func (s *Service) RecordDocument(ctx context.Context, doc *models.Document) error {
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	return s.meta.InsertDocument(ctx, doc)
}

func (s *Service) ListDocuments(ctx context.Context, tenantID string, sourceID uuid.UUID) ([]models.Document, error) {
	return s.meta.ListDocuments(ctx, tenantID, sourceID)
}

// HasDocumentWithHash reports whether a byte-identical file was already
// uploaded into this source. Independent of chunk-level dedup; used for
// logging, not to skip ingestion.
func (s *Service) HasDocumentWithHash(ctx context.Context, tenantID string, sourceID uuid.UUID, contentHash string) (bool, error) {
	return s.meta.HasDocumentWithHash(ctx, tenantID, sourceID, contentHash)
}
