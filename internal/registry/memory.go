package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vectorleaf/ragserve/internal/models"
)

// MemoryStore keeps metadata in process memory for tests and
// no-infra development.
type MemoryStore struct {
	mu        sync.RWMutex
	tenants   map[string]models.Tenant
	sources   map[uuid.UUID]models.Source
	documents map[uuid.UUID]models.Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:   make(map[string]models.Tenant),
		sources:   make(map[uuid.UUID]models.Source),
		documents: make(map[uuid.UUID]models.Document),
	}
}

func (s *MemoryStore) InsertTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.tenants[tenantID]; ok {
		return &existing, nil
	}
	t := models.Tenant{ID: tenantID, CreatedAt: time.Now().UTC()}
	s.tenants[tenantID] = t
	return &t, nil
}

func (s *MemoryStore) TenantExists(ctx context.Context, tenantID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tenants[tenantID]
	return ok, nil
}

func (s *MemoryStore) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenants := make([]models.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		tenants = append(tenants, t)
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].ID < tenants[j].ID })
	return tenants, nil
}

func (s *MemoryStore) InsertSource(ctx context.Context, src *models.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[src.ID] = *src
	return nil
}

func (s *MemoryStore) GetSource(ctx context.Context, tenantID string, sourceID uuid.UUID) (*models.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src, ok := s.sources[sourceID]
	if !ok || src.TenantID != tenantID {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, sourceID)
	}
	return &src, nil
}

func (s *MemoryStore) ListSources(ctx context.Context, tenantID string) ([]models.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sources []models.Source
	for _, src := range s.sources {
		if src.TenantID == tenantID {
			sources = append(sources, src)
		}
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].CreatedAt.After(sources[j].CreatedAt) })
	return sources, nil
}

func (s *MemoryStore) DeleteSource(ctx context.Context, tenantID string, sourceID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, doc := range s.documents {
		if doc.TenantID == tenantID && doc.SourceID == sourceID {
			delete(s.documents, id)
		}
	}
	delete(s.sources, sourceID)
	return nil
}

func (s *MemoryStore) InsertDocument(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = *doc
	return nil
}

func (s *MemoryStore) ListDocuments(ctx context.Context, tenantID string, sourceID uuid.UUID) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []models.Document
	for _, doc := range s.documents {
		if doc.TenantID == tenantID && doc.SourceID == sourceID {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].UploadedAt.After(docs[j].UploadedAt) })
	return docs, nil
}

func (s *MemoryStore) HasDocumentWithHash(ctx context.Context, tenantID string, sourceID uuid.UUID, contentHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.documents {
		if doc.TenantID == tenantID && doc.SourceID == sourceID && doc.ContentHash == contentHash {
			return true, nil
		}
	}
	return false, nil
}
