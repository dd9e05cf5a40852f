package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/vectorleaf/ragserve/pkg/fingerprint"
)

// PgVectorStore keeps all tenants in one pgvector-backed table and
// isolates them by a mandatory tenant_id predicate on every statement.
// The chunk fingerprint is the primary key; it already encodes the
// tenant, so identical text across tenants never collides.
type PgVectorStore struct {
	db *pgxpool.Pool
}

func NewPgVectorStore(db *pgxpool.Pool) *PgVectorStore {
	return &PgVectorStore{db: db}
}

func (s *PgVectorStore) Upsert(ctx context.Context, scope Scope, entries []Entry) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		_, err := tx.Exec(ctx,
			`INSERT INTO rag_chunks (fingerprint, tenant_id, source_id, document_id, filename, chunk_index, content, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (fingerprint) DO UPDATE
			   SET document_id = $4, filename = $5, chunk_index = $6, content = $7, embedding = $8`,
			string(e.Fingerprint), scope.TenantID, e.Metadata.SourceID, e.Metadata.DocumentID,
			e.Metadata.Filename, e.Metadata.ChunkIndex, e.Metadata.Content, pgvector.NewVector(e.Vector),
		)
		if err != nil {
			return fmt.Errorf("upsert chunk %d: %w", e.Metadata.ChunkIndex, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PgVectorStore) Exists(ctx context.Context, scope Scope, fps []fingerprint.Fingerprint) (map[fingerprint.Fingerprint]bool, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	existing := make(map[fingerprint.Fingerprint]bool, len(fps))
	if len(fps) == 0 {
		return existing, nil
	}

	keys := make([]string, len(fps))
	for i, fp := range fps {
		keys[i] = string(fp)
	}

	rows, err := s.db.Query(ctx,
		"SELECT fingerprint FROM rag_chunks WHERE tenant_id = $1 AND fingerprint = ANY($2)",
		scope.TenantID, keys,
	)
	if err != nil {
		return nil, fmt.Errorf("exists lookup: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		existing[fingerprint.Fingerprint(fp)] = true
	}
	return existing, rows.Err()
}

func (s *PgVectorStore) Search(ctx context.Context, scope Scope, query []float32, topK int) ([]Match, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	embedding := pgvector.NewVector(query)

	// Secondary sort on fingerprint makes equal-distance results
	// deterministic.
	sql := `SELECT fingerprint, source_id, document_id, filename, chunk_index, content,
	               1 - (embedding <=> $1) AS score
	        FROM rag_chunks
	        WHERE tenant_id = $2`
	args := []any{embedding, scope.TenantID}
	if len(scope.SourceIDs) > 0 {
		sql += " AND source_id = ANY($3)"
		args = append(args, scope.SourceIDs)
	}
	sql += fmt.Sprintf(" ORDER BY embedding <=> $1, fingerprint LIMIT %d", topK)

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var results []Match
	for rows.Next() {
		var m Match
		var fp string
		if err := rows.Scan(&fp, &m.Metadata.SourceID, &m.Metadata.DocumentID,
			&m.Metadata.Filename, &m.Metadata.ChunkIndex, &m.Metadata.Content, &m.Score); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		m.Fingerprint = fingerprint.Fingerprint(fp)
		results = append(results, m)
	}
	return results, rows.Err()
}

func (s *PgVectorStore) Delete(ctx context.Context, scope Scope) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	if len(scope.SourceIDs) > 0 {
		_, err := s.db.Exec(ctx,
			"DELETE FROM rag_chunks WHERE tenant_id = $1 AND source_id = ANY($2)",
			scope.TenantID, scope.SourceIDs,
		)
		return err
	}

	_, err := s.db.Exec(ctx, "DELETE FROM rag_chunks WHERE tenant_id = $1", scope.TenantID)
	return err
}
