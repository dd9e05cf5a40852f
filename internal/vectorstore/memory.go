package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/vectorleaf/ragserve/pkg/fingerprint"
)

type memoryEntry struct {
	tenantID string
	entry    Entry
}

// MemoryStore is an in-process Store backed by a map and brute-force
// cosine similarity. It backs tests and the no-infra dev mode.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[fingerprint.Fingerprint]memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[fingerprint.Fingerprint]memoryEntry)}
}

func (s *MemoryStore) Upsert(ctx context.Context, scope Scope, entries []Entry) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.entries[e.Fingerprint] = memoryEntry{tenantID: scope.TenantID, entry: e}
	}
	return nil
}

func (s *MemoryStore) Exists(ctx context.Context, scope Scope, fps []fingerprint.Fingerprint) (map[fingerprint.Fingerprint]bool, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	existing := make(map[fingerprint.Fingerprint]bool, len(fps))
	for _, fp := range fps {
		if rec, ok := s.entries[fp]; ok && rec.tenantID == scope.TenantID {
			existing[fp] = true
		}
	}
	return existing, nil
}

func (s *MemoryStore) Search(ctx context.Context, scope Scope, query []float32, topK int) ([]Match, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Match
	for fp, rec := range s.entries {
		if rec.tenantID != scope.TenantID || !scope.matchesSource(rec.entry.Metadata.SourceID) {
			continue
		}
		results = append(results, Match{
			Fingerprint: fp,
			Score:       cosineSimilarity(query, rec.entry.Vector),
			Metadata:    rec.entry.Metadata,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Fingerprint < results[j].Fingerprint
	})

	if topK >= 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *MemoryStore) Delete(ctx context.Context, scope Scope) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for fp, rec := range s.entries {
		if rec.tenantID == scope.TenantID && scope.matchesSource(rec.entry.Metadata.SourceID) {
			delete(s.entries, fp)
		}
	}
	return nil
}

// Len reports the total number of stored entries across all tenants.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
