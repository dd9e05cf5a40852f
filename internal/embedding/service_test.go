package embedding

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectorleaf/ragserve/internal/llm"
)

type fakeProvider struct {
	calls int
	dim   int
	err   error
}

func (f *fakeProvider) GenerateEmbedding(ctx context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vecs := make([][]float32, len(req.Input))
	for i := range req.Input {
		vec := make([]float32, f.dim)
		vec[0] = float32(len(req.Input[i]))
		vecs[i] = vec
	}
	return &llm.EmbeddingResponse{Provider: "fake", Model: req.Model, Embeddings: vecs}, nil
}

func (f *fakeProvider) ChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, errors.New("not used")
}

func (f *fakeProvider) Name() string { return "fake" }

type mapCache struct {
	data map[string][]float32
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string][]float32)} }

func (c *mapCache) Get(ctx context.Context, key string) ([]float32, bool) {
	vec, ok := c.data[key]
	return vec, ok
}

func (c *mapCache) Put(ctx context.Context, key string, vec []float32) {
	c.data[key] = vec
}

func TestEmbed_OrderPreserving(t *testing.T) {
	svc := NewService(&fakeProvider{dim: 4}, "test-model", 4)

	vecs, err := svc.Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, float32(1), vecs[0][0])
	assert.Equal(t, float32(2), vecs[1][0])
	assert.Equal(t, float32(3), vecs[2][0])
}

func TestEmbed_DimensionMismatchIsFatal(t *testing.T) {
	svc := NewService(&fakeProvider{dim: 5}, "test-model", 4)

	_, err := svc.Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestEmbed_ProviderErrorPropagates(t *testing.T) {
	svc := NewService(&fakeProvider{err: fmt.Errorf("%w: quota", llm.ErrProvider)}, "test-model", 4)

	_, err := svc.Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, llm.ErrProvider)
}

func TestEmbed_CacheSkipsProvider(t *testing.T) {
	provider := &fakeProvider{dim: 4}
	svc := NewService(provider, "test-model", 4).WithCache(newMapCache())

	_, err := svc.Embed(context.Background(), []string{"hello", "world"})
	require.NoError(t, err)
	require.Equal(t, 1, provider.calls)

	// Same texts again: everything served from cache.
	_, err = svc.Embed(context.Background(), []string{"hello", "world"})
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls)

	// One new text: exactly one more provider call.
	vecs, err := svc.Embed(context.Background(), []string{"hello", "fresh"})
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls)
	assert.Equal(t, float32(5), vecs[0][0])
}

func TestEmbed_Empty(t *testing.T) {
	provider := &fakeProvider{dim: 4}
	svc := NewService(provider, "test-model", 4)

	vecs, err := svc.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
	assert.Zero(t, provider.calls)
}
