// Package session holds ordered conversation turns per session id.
// Sessions are created lazily on the first chat call, belong to exactly
// one tenant for their entire lifetime, and their turns are append-only.
// Expiry/eviction is deliberately not implemented here; it belongs to a
// collaborator behind the Store interface.
package session

import (
	"context"
	"errors"

	"github.com/vectorleaf/ragserve/internal/models"
)

var (
	// ErrTenantMismatch rejects use of a session id owned by another
	// tenant. Logged as a severe condition by callers; never recovered.
	ErrTenantMismatch = errors.New("session: tenant mismatch")

	ErrSessionNotFound = errors.New("session: not found")
)

type Store interface {
	// GetOrCreate resolves a session id. An empty id creates a new
	// session owned by the tenant. A supplied id must belong to the
	// tenant; ids owned by other tenants fail with ErrTenantMismatch,
	// unknown ids are adopted as new sessions.
	GetOrCreate(ctx context.Context, tenantID, sessionID string) (string, error)

	// AppendTurns atomically appends turns to the session, preserving
	// call order. Appends for one session are serialized.
	AppendTurns(ctx context.Context, tenantID, sessionID string, turns []models.Turn) error

	// History returns turns in chronological order. maxTurns > 0
	// truncates to the most recent maxTurns for prompt-size control.
	History(ctx context.Context, tenantID, sessionID string, maxTurns int) ([]models.Turn, error)
}
