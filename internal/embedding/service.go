// Package embedding maps text to fixed-length vectors through the
// configured provider. The service pins the vector dimensionality for
// the deployment: a provider returning any other length is a fatal
// configuration error, because mixed dimensionalities would corrupt
// similarity search for every tenant sharing the store.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/vectorleaf/ragserve/internal/llm"
)

// ErrDimensionMismatch indicates the provider returned vectors whose
// length differs from the configured dimension. Never retried.
var ErrDimensionMismatch = errors.New("embedding: dimension mismatch")

// Cache stores previously computed vectors keyed by (model, text).
// Implementations may evict freely; a miss only costs a provider call.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Put(ctx context.Context, key string, vec []float32)
}

type Service struct {
	provider  llm.Provider
	model     string
	dimension int
	cache     Cache
}

// NewService wraps the provider. dimension <= 0 disables the check
// (tests with synthetic vectors use that).
func NewService(p llm.Provider, model string, dimension int) *Service {
	return &Service{provider: p, model: model, dimension: dimension}
}

// WithCache attaches an optional vector cache.
func (s *Service) WithCache(c Cache) *Service {
	s.cache = c
	return s
}

// Embed returns one vector per input text, order preserving. Provider
// failures surface unwrapped-of-retries as llm.ErrProvider; retry
// policy belongs to the caller.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		if s.cache != nil {
			if vec, ok := s.cache.Get(ctx, s.cacheKey(text)); ok {
				out[i] = vec
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	// Batch in groups of 100 for provider API limits.
	const batchSize = 100
	var fetched [][]float32
	for i := 0; i < len(missTexts); i += batchSize {
		end := min(i+batchSize, len(missTexts))

		resp, err := s.provider.GenerateEmbedding(ctx, llm.EmbeddingRequest{
			Model: s.model,
			Input: missTexts[i:end],
		})
		if err != nil {
			return nil, fmt.Errorf("embed batch %d: %w", i/batchSize, err)
		}
		if len(resp.Embeddings) != end-i {
			return nil, fmt.Errorf("%w: got %d vectors for %d inputs",
				llm.ErrProvider, len(resp.Embeddings), end-i)
		}
		fetched = append(fetched, resp.Embeddings...)
	}

	for i, vec := range fetched {
		if s.dimension > 0 && len(vec) != s.dimension {
			return nil, fmt.Errorf("%w: expected %d, provider %s returned %d",
				ErrDimensionMismatch, s.dimension, s.provider.Name(), len(vec))
		}
		out[missIdx[i]] = vec
		if s.cache != nil {
			s.cache.Put(ctx, s.cacheKey(missTexts[i]), vec)
		}
	}

	return out, nil
}

func (s *Service) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", llm.ErrProvider)
	}
	return vecs[0], nil
}

func (s *Service) cacheKey(text string) string {
	h := sha256.New()
	h.Write([]byte(s.model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
