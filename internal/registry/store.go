package registry

import (
	"context"

	"github.com/google/uuid"

	"github.com/vectorleaf/ragserve/internal/models"
)

// Store persists tenant/source/document metadata. Implementations
// return ErrSourceNotFound for missing sources; validation and the
// delete cascade live in Service, not here.
type Store interface {
	// InsertTenant is idempotent: inserting an existing tenant returns
	// the stored record.
	InsertTenant(ctx context.Context, tenantID string) (*models.Tenant, error)
	TenantExists(ctx context.Context, tenantID string) (bool, error)
	ListTenants(ctx context.Context) ([]models.Tenant, error)

	InsertSource(ctx context.Context, src *models.Source) error
	GetSource(ctx context.Context, tenantID string, sourceID uuid.UUID) (*models.Source, error)
	ListSources(ctx context.Context, tenantID string) ([]models.Source, error)
	// DeleteSource removes the source's document rows and then the
	// source record, atomically.
	DeleteSource(ctx context.Context, tenantID string, sourceID uuid.UUID) error

	InsertDocument(ctx context.Context, doc *models.Document) error
	ListDocuments(ctx context.Context, tenantID string, sourceID uuid.UUID) ([]models.Document, error)
	HasDocumentWithHash(ctx context.Context, tenantID string, sourceID uuid.UUID, contentHash string) (bool, error)
}
