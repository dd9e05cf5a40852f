package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectorleaf/ragserve/internal/models"
	"github.com/vectorleaf/ragserve/internal/vectorstore"
	"github.com/vectorleaf/ragserve/pkg/fingerprint"
)

// recordingVectorStore captures Delete calls so tests can assert the
// cascade reaches the vector store before metadata is touched.
type recordingVectorStore struct {
	deletes   []vectorstore.Scope
	deleteErr error
}

func (f *recordingVectorStore) Upsert(ctx context.Context, scope vectorstore.Scope, entries []vectorstore.Entry) error {
	return nil
}

func (f *recordingVectorStore) Exists(ctx context.Context, scope vectorstore.Scope, fps []fingerprint.Fingerprint) (map[fingerprint.Fingerprint]bool, error) {
	return map[fingerprint.Fingerprint]bool{}, nil
}

func (f *recordingVectorStore) Search(ctx context.Context, scope vectorstore.Scope, query []float32, topK int) ([]vectorstore.Match, error) {
	return nil, nil
}

func (f *recordingVectorStore) Delete(ctx context.Context, scope vectorstore.Scope) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes = append(f.deletes, scope)
	return nil
}

func newTestService(vectors vectorstore.Store) *Service {
	return NewService(NewMemoryStore(), vectors)
}

func seedSource(t *testing.T, svc *Service, tenantID, name string, docCount int) *models.Source {
	t.Helper()
	ctx := context.Background()

	_, err := svc.CreateTenant(ctx, tenantID)
	require.NoError(t, err)
	src, err := svc.CreateSource(ctx, tenantID, name)
	require.NoError(t, err)

	for i := 0; i < docCount; i++ {
		require.NoError(t, svc.RecordDocument(ctx, &models.Document{
			ID:          uuid.New(),
			TenantID:    tenantID,
			SourceID:    src.ID,
			Filename:    "doc.txt",
			ContentHash: fingerprint.Sum256([]byte{byte(i)}),
		}))
	}
	return src
}

func TestCreateTenant_Idempotent(t *testing.T) {
	svc := newTestService(&recordingVectorStore{})
	ctx := context.Background()

	first, err := svc.CreateTenant(ctx, "acme")
	require.NoError(t, err)
	second, err := svc.CreateTenant(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	tenants, err := svc.ListTenants(ctx)
	require.NoError(t, err)
	assert.Len(t, tenants, 1)
}

func TestCreateSource_Validation(t *testing.T) {
	svc := newTestService(&recordingVectorStore{})
	ctx := context.Background()

	_, err := svc.CreateSource(ctx, "acme", "")
	assert.ErrorIs(t, err, ErrInvalidSourceName)

	_, err = svc.CreateSource(ctx, "ghost", "docs")
	assert.ErrorIs(t, err, ErrTenantNotFound)

	_, err = svc.CreateTenant(ctx, "acme")
	require.NoError(t, err)
	a, err := svc.CreateSource(ctx, "acme", "docs")
	require.NoError(t, err)
	b, err := svc.CreateSource(ctx, "acme", "docs")
	require.NoError(t, err, "duplicate names are allowed")
	assert.NotEqual(t, a.ID, b.ID)
}

func TestDeleteSource_Cascade(t *testing.T) {
	vectors := &recordingVectorStore{}
	svc := newTestService(vectors)
	ctx := context.Background()

	src := seedSource(t, svc, "acme", "handbook", 3)
	keep := seedSource(t, svc, "acme", "wiki", 1)

	require.NoError(t, svc.DeleteSource(ctx, "acme", src.ID))

	// Vector store was told to drop exactly this source's scope.
	require.Len(t, vectors.deletes, 1)
	assert.Equal(t, vectorstore.Scope{TenantID: "acme", SourceIDs: []string{src.ID.String()}}, vectors.deletes[0])

	// Source and its documents are gone; the sibling source is intact.
	_, err := svc.GetSource(ctx, "acme", src.ID)
	assert.ErrorIs(t, err, ErrSourceNotFound)
	docs, err := svc.ListDocuments(ctx, "acme", src.ID)
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = svc.GetSource(ctx, "acme", keep.ID)
	require.NoError(t, err)
	kept, err := svc.ListDocuments(ctx, "acme", keep.ID)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestDeleteSource_VectorFailureKeepsMetadata(t *testing.T) {
	vectors := &recordingVectorStore{deleteErr: errors.New("store unavailable")}
	svc := newTestService(vectors)
	ctx := context.Background()

	src := seedSource(t, svc, "acme", "handbook", 2)

	err := svc.DeleteSource(ctx, "acme", src.ID)
	require.Error(t, err)

	// Vectors go first; when that fails, no metadata is touched and the
	// delete can be retried.
	_, err = svc.GetSource(ctx, "acme", src.ID)
	require.NoError(t, err)
	docs, err := svc.ListDocuments(ctx, "acme", src.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestDeleteSource_Unknown(t *testing.T) {
	vectors := &recordingVectorStore{}
	svc := newTestService(vectors)
	ctx := context.Background()

	_, err := svc.CreateTenant(ctx, "acme")
	require.NoError(t, err)

	err = svc.DeleteSource(ctx, "acme", uuid.New())
	assert.ErrorIs(t, err, ErrSourceNotFound)
	assert.Empty(t, vectors.deletes, "no vector delete for an unknown source")
}

func TestDeleteSource_ForeignTenant(t *testing.T) {
	vectors := &recordingVectorStore{}
	svc := newTestService(vectors)
	ctx := context.Background()

	src := seedSource(t, svc, "acme", "handbook", 1)
	_, err := svc.CreateTenant(ctx, "globex")
	require.NoError(t, err)

	err = svc.DeleteSource(ctx, "globex", src.ID)
	assert.ErrorIs(t, err, ErrSourceNotFound, "a source id is not addressable from another tenant")
	assert.Empty(t, vectors.deletes)
}

func TestValidTenantID(t *testing.T) {
	valid := []string{"acme", "acme-corp", "tenant_42", "ABC"}
	for _, id := range valid {
		assert.True(t, ValidTenantID(id), "expected %q to be valid", id)
	}

	invalid := []string{"", "ab", "has space", "slash/id", "dot.id", "ünïcode"}
	for _, id := range invalid {
		assert.False(t, ValidTenantID(id), "expected %q to be invalid", id)
	}

	long := make([]byte, 65)
	for i := range long {
		long[i] = 'a'
	}
	assert.False(t, ValidTenantID(string(long)))
	assert.True(t, ValidTenantID(string(long[:64])))
}
