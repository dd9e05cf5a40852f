package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectorleaf/ragserve/internal/models"
	"github.com/vectorleaf/ragserve/internal/vectorstore"
	"github.com/vectorleaf/ragserve/pkg/chunker"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(filename string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.text != "" {
		return f.text, nil
	}
	return string(data), nil
}

type fakeEmbedder struct {
	calls int
	texts [][]string
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.texts = append(f.texts, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}

type fakeRecorder struct {
	docs   []*models.Document
	hashes map[string]bool
	err    error
}

func (f *fakeRecorder) RecordDocument(ctx context.Context, doc *models.Document) error {
	if f.err != nil {
		return f.err
	}
	f.docs = append(f.docs, doc)
	if f.hashes == nil {
		f.hashes = make(map[string]bool)
	}
	f.hashes[doc.ContentHash] = true
	return nil
}

func (f *fakeRecorder) HasDocumentWithHash(ctx context.Context, tenantID string, sourceID uuid.UUID, hash string) (bool, error) {
	return f.hashes[hash], nil
}

func newTestPipeline(store vectorstore.Store, embedder *fakeEmbedder, recorder *fakeRecorder) *Pipeline {
	return NewPipeline(&fakeExtractor{}, embedder, store, recorder, chunker.Options{Size: 40, Overlap: 10})
}

func TestIngest_NewDocument(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	embedder := &fakeEmbedder{}
	recorder := &fakeRecorder{}
	p := newTestPipeline(store, embedder, recorder)

	res, err := p.Ingest(context.Background(), Request{
		TenantID: "acme",
		SourceID: uuid.New(),
		Filename: "notes.txt",
		Data:     []byte("alpha bravo charlie delta echo foxtrot golf hotel india juliet kilo lima"),
	})
	require.NoError(t, err)
	assert.Positive(t, res.NewChunks)
	assert.Zero(t, res.SkippedDuplicates)
	assert.Equal(t, res.NewChunks, store.Len())
	require.Len(t, recorder.docs, 1)
	assert.Equal(t, "notes.txt", recorder.docs[0].Filename)
	assert.NotEmpty(t, recorder.docs[0].ContentHash)
}

func TestIngest_ReingestSkipsEverything(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	embedder := &fakeEmbedder{}
	recorder := &fakeRecorder{}
	p := newTestPipeline(store, embedder, recorder)

	data := []byte("the quick brown fox jumps over the lazy dog again and again and again")
	req := Request{TenantID: "acme", SourceID: uuid.New(), Filename: "fox.txt", Data: data}

	first, err := p.Ingest(context.Background(), req)
	require.NoError(t, err)
	require.Positive(t, first.NewChunks)
	embedCallsAfterFirst := embedder.calls

	second, err := p.Ingest(context.Background(), req)
	require.NoError(t, err)
	assert.Zero(t, second.NewChunks)
	assert.Equal(t, first.NewChunks+first.SkippedDuplicates,
		second.NewChunks+second.SkippedDuplicates)
	assert.Equal(t, embedCallsAfterFirst, embedder.calls,
		"nothing new to embed on re-ingestion")
	assert.Equal(t, first.NewChunks, store.Len(), "store size unchanged")
}

func TestIngest_SameTextDifferentTenantIsNew(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	embedder := &fakeEmbedder{}
	recorder := &fakeRecorder{}
	p := newTestPipeline(store, embedder, recorder)

	data := []byte("shared onboarding handbook text that both tenants happen to upload")
	src := uuid.New()

	a, err := p.Ingest(context.Background(), Request{TenantID: "acme", SourceID: src, Filename: "h.txt", Data: data})
	require.NoError(t, err)
	b, err := p.Ingest(context.Background(), Request{TenantID: "globex", SourceID: src, Filename: "h.txt", Data: data})
	require.NoError(t, err)

	assert.Equal(t, a.NewChunks, b.NewChunks, "no cross-tenant dedup")
	assert.Zero(t, b.SkippedDuplicates)
}

func TestIngest_EmbedFailureCommitsNothing(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	embedder := &fakeEmbedder{err: errors.New("rate limited")}
	recorder := &fakeRecorder{}
	p := newTestPipeline(store, embedder, recorder)

	_, err := p.Ingest(context.Background(), Request{
		TenantID: "acme",
		SourceID: uuid.New(),
		Filename: "doc.txt",
		Data:     []byte("some content that would have produced at least one chunk to embed"),
	})
	require.ErrorIs(t, err, ErrIngestionFailed)
	assert.Zero(t, store.Len(), "no chunks committed")
	assert.Empty(t, recorder.docs, "no document recorded")
}

func TestIngest_ExtractFailure(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	embedder := &fakeEmbedder{}
	p := NewPipeline(&fakeExtractor{err: errors.New("corrupt pdf")}, embedder, store, &fakeRecorder{}, chunker.DefaultOptions())

	_, err := p.Ingest(context.Background(), Request{TenantID: "acme", Filename: "bad.pdf", Data: []byte{0x01}})
	require.ErrorIs(t, err, ErrIngestionFailed)
	assert.Zero(t, embedder.calls)
}

func TestIngest_EmptyDocument(t *testing.T) {
	p := newTestPipeline(vectorstore.NewMemoryStore(), &fakeEmbedder{}, &fakeRecorder{})

	_, err := p.Ingest(context.Background(), Request{TenantID: "acme", Filename: "blank.txt", Data: []byte("   \n\t  ")})
	assert.ErrorIs(t, err, ErrNoText)
}

func TestIngest_MissingTenant(t *testing.T) {
	p := newTestPipeline(vectorstore.NewMemoryStore(), &fakeEmbedder{}, &fakeRecorder{})

	_, err := p.Ingest(context.Background(), Request{Filename: "doc.txt", Data: []byte("text")})
	assert.ErrorIs(t, err, vectorstore.ErrTenantScopeRequired)
}

func TestIngest_InBatchDuplicatesEmbeddedOnce(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	embedder := &fakeEmbedder{}
	p := NewPipeline(&fakeExtractor{}, embedder, store, &fakeRecorder{}, chunker.Options{Size: 10, Overlap: 0})

	// Two identical windows, one distinct.
	res, err := p.Ingest(context.Background(), Request{
		TenantID: "acme",
		Filename: "rep.txt",
		Data:     []byte("aaaabbbbccaaaabbbbcczzzzyyyyxx"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.NewChunks)
	assert.Equal(t, 1, res.SkippedDuplicates)
	require.Len(t, embedder.texts, 1)
	assert.Len(t, embedder.texts[0], 2)
}
