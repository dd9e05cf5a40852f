// Package vectorstore wraps the physical vector database behind a
// tenant/source-scoped capability: upsert, batch existence check,
// filtered similarity search and filtered delete. The Scope parameter
// is mandatory on every call so that an isolation violation is a
// visible omission at the call site, not a runtime leak.
package vectorstore

import (
	"context"
	"errors"

	"github.com/vectorleaf/ragserve/pkg/fingerprint"
)

// ErrTenantScopeRequired rejects any operation issued without a tenant
// scope. This is never recovered; it indicates a bug in the caller.
var ErrTenantScopeRequired = errors.New("vectorstore: tenant scope required")

// Scope narrows every store operation to one tenant and, optionally, a
// set of that tenant's sources.
type Scope struct {
	TenantID  string
	SourceIDs []string
}

func (s Scope) Validate() error {
	if s.TenantID == "" {
		return ErrTenantScopeRequired
	}
	return nil
}

func (s Scope) matchesSource(sourceID string) bool {
	if len(s.SourceIDs) == 0 {
		return true
	}
	for _, id := range s.SourceIDs {
		if id == sourceID {
			return true
		}
	}
	return false
}

// Metadata travels with each vector and comes back on search hits; it
// is what citations are derived from.
type Metadata struct {
	SourceID   string `json:"source_id"`
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	ChunkIndex int    `json:"chunk_index"`
	Content    string `json:"content"`
}

// Entry is one chunk/vector pair keyed by its content fingerprint.
type Entry struct {
	Fingerprint fingerprint.Fingerprint
	Vector      []float32
	Metadata    Metadata
}

type Match struct {
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Score       float64                 `json:"score"`
	Metadata    Metadata                `json:"metadata"`
}

// Store is the vector database capability. Implementations must
// guarantee that operations under tenant A's scope never observe or
// mutate entries tagged with tenant B, even when tenants share physical
// structures.
type Store interface {
	// Upsert inserts or replaces entries keyed by fingerprint. Dedup
	// happens before this call via Exists; a replacing upsert is a
	// correctness no-op.
	Upsert(ctx context.Context, scope Scope, entries []Entry) error

	// Exists reports which of the given fingerprints are already
	// present under the scope.
	Exists(ctx context.Context, scope Scope, fps []fingerprint.Fingerprint) (map[fingerprint.Fingerprint]bool, error)

	// Search returns up to topK entries ordered by descending
	// similarity; ties are broken by fingerprint for determinism.
	Search(ctx context.Context, scope Scope, query []float32, topK int) ([]Match, error)

	// Delete removes all entries matching the scope.
	Delete(ctx context.Context, scope Scope) error
}
