package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vectorleaf/ragserve/internal/models"
)

// PgStore keeps metadata in the tenants/sources/documents tables.
type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) InsertTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	_, err := s.db.Exec(ctx,
		"INSERT INTO tenants (tenant_id) VALUES ($1) ON CONFLICT (tenant_id) DO NOTHING",
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}

	var t models.Tenant
	err = s.db.QueryRow(ctx,
		"SELECT tenant_id, created_at FROM tenants WHERE tenant_id = $1", tenantID,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &t, nil
}

func (s *PgStore) TenantExists(ctx context.Context, tenantID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM tenants WHERE tenant_id = $1)", tenantID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check tenant: %w", err)
	}
	return exists, nil
}

func (s *PgStore) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	rows, err := s.db.Query(ctx, "SELECT tenant_id, created_at FROM tenants ORDER BY tenant_id")
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (s *PgStore) InsertSource(ctx context.Context, src *models.Source) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO sources (source_id, tenant_id, source_name, created_at) VALUES ($1, $2, $3, $4)`,
		src.ID, src.TenantID, src.Name, src.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create source: %w", err)
	}
	return nil
}

func (s *PgStore) GetSource(ctx context.Context, tenantID string, sourceID uuid.UUID) (*models.Source, error) {
	var src models.Source
	err := s.db.QueryRow(ctx,
		`SELECT source_id, tenant_id, source_name, created_at
		 FROM sources WHERE tenant_id = $1 AND source_id = $2`,
		tenantID, sourceID,
	).Scan(&src.ID, &src.TenantID, &src.Name, &src.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, sourceID)
	}
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}
	return &src, nil
}

func (s *PgStore) ListSources(ctx context.Context, tenantID string) ([]models.Source, error) {
	rows, err := s.db.Query(ctx,
		`SELECT source_id, tenant_id, source_name, created_at
		 FROM sources WHERE tenant_id = $1 ORDER BY created_at DESC`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var sources []models.Source
	for rows.Next() {
		var src models.Source
		if err := rows.Scan(&src.ID, &src.TenantID, &src.Name, &src.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func (s *PgStore) DeleteSource(ctx context.Context, tenantID string, sourceID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		"DELETE FROM documents WHERE tenant_id = $1 AND source_id = $2",
		tenantID, sourceID,
	); err != nil {
		return fmt.Errorf("delete source documents: %w", err)
	}
	if _, err := tx.Exec(ctx,
		"DELETE FROM sources WHERE tenant_id = $1 AND source_id = $2",
		tenantID, sourceID,
	); err != nil {
		return fmt.Errorf("delete source record: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PgStore) InsertDocument(ctx context.Context, doc *models.Document) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO documents (document_id, tenant_id, source_id, filename, content_hash, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		doc.ID, doc.TenantID, doc.SourceID, doc.Filename, doc.ContentHash, doc.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("record document: %w", err)
	}
	return nil
}

func (s *PgStore) ListDocuments(ctx context.Context, tenantID string, sourceID uuid.UUID) ([]models.Document, error) {
	rows, err := s.db.Query(ctx,
		`SELECT document_id, tenant_id, source_id, filename, content_hash, uploaded_at
		 FROM documents WHERE tenant_id = $1 AND source_id = $2 ORDER BY uploaded_at DESC`,
		tenantID, sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.TenantID, &d.SourceID, &d.Filename, &d.ContentHash, &d.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *PgStore) HasDocumentWithHash(ctx context.Context, tenantID string, sourceID uuid.UUID, contentHash string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM documents
		 WHERE tenant_id = $1 AND source_id = $2 AND content_hash = $3)`,
		tenantID, sourceID, contentHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check document hash: %w", err)
	}
	return exists, nil
}
