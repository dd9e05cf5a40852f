package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vectorleaf/ragserve/internal/models"
)

// PgStore persists sessions in chat_sessions/chat_turns. Appends take a
// row lock on the session, which serializes writers per session across
// processes and keeps turn_index gap-free and chronological.
type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) GetOrCreate(ctx context.Context, tenantID, sessionID string) (string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	} else if _, err := uuid.Parse(sessionID); err != nil {
		return "", fmt.Errorf("%w: malformed session id", ErrSessionNotFound)
	}

	// The no-op update makes RETURNING report whichever tenant won the
	// insert, so a lost create race surfaces as a mismatch here instead
	// of handing out a session id the caller doesn't own.
	var owner string
	err := s.db.QueryRow(ctx,
		`INSERT INTO chat_sessions (session_id, tenant_id) VALUES ($1, $2)
		 ON CONFLICT (session_id) DO UPDATE SET tenant_id = chat_sessions.tenant_id
		 RETURNING tenant_id`,
		sessionID, tenantID,
	).Scan(&owner)
	if err != nil {
		return "", fmt.Errorf("get or create session: %w", err)
	}
	if owner != tenantID {
		return "", fmt.Errorf("%w: session %s", ErrTenantMismatch, sessionID)
	}
	return sessionID, nil
}

func (s *PgStore) AppendTurns(ctx context.Context, tenantID, sessionID string, turns []models.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// FOR UPDATE serializes concurrent appends on the same session.
	var owner string
	err = tx.QueryRow(ctx,
		"SELECT tenant_id FROM chat_sessions WHERE session_id = $1 FOR UPDATE", sessionID,
	).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: session %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return fmt.Errorf("lock session: %w", err)
	}
	if owner != tenantID {
		return fmt.Errorf("%w: session %s", ErrTenantMismatch, sessionID)
	}

	var nextIdx int
	if err := tx.QueryRow(ctx,
		"SELECT COALESCE(MAX(turn_index), -1) + 1 FROM chat_turns WHERE session_id = $1", sessionID,
	).Scan(&nextIdx); err != nil {
		return fmt.Errorf("next turn index: %w", err)
	}

	for i, turn := range turns {
		createdAt := turn.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO chat_turns (session_id, tenant_id, turn_index, role, content, citations, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			sessionID, tenantID, nextIdx+i, turn.Role, turn.Content, turn.Citations, createdAt,
		); err != nil {
			return fmt.Errorf("append turn %d: %w", nextIdx+i, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PgStore) History(ctx context.Context, tenantID, sessionID string, maxTurns int) ([]models.Turn, error) {
	var owner string
	err := s.db.QueryRow(ctx,
		"SELECT tenant_id FROM chat_sessions WHERE session_id = $1", sessionID,
	).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if owner != tenantID {
		return nil, fmt.Errorf("%w: session %s", ErrTenantMismatch, sessionID)
	}

	sql := `SELECT role, content, citations, created_at
	        FROM chat_turns WHERE session_id = $1 ORDER BY turn_index DESC`
	if maxTurns > 0 {
		sql += fmt.Sprintf(" LIMIT %d", maxTurns)
	}

	rows, err := s.db.Query(ctx, sql, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var t models.Turn
		if err := rows.Scan(&t.Role, &t.Content, &t.Citations, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows came newest-first; flip to chronological.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
