package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vectorleaf/ragserve/internal/models"
)

type memorySession struct {
	mu       sync.Mutex
	tenantID string
	turns    []models.Turn
}

// MemoryStore keeps sessions in process memory. Appends hold the
// per-session mutex, giving the same single-writer-per-session
// guarantee as the Postgres row lock.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memorySession)}
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, tenantID, sessionID string) (string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[sessionID]; ok {
		if existing.tenantID != tenantID {
			return "", fmt.Errorf("%w: session %s", ErrTenantMismatch, sessionID)
		}
		return sessionID, nil
	}

	s.sessions[sessionID] = &memorySession{tenantID: tenantID}
	return sessionID, nil
}

func (s *MemoryStore) AppendTurns(ctx context.Context, tenantID, sessionID string, turns []models.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	sess, err := s.lookup(tenantID, sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	for _, turn := range turns {
		if turn.CreatedAt.IsZero() {
			turn.CreatedAt = time.Now().UTC()
		}
		sess.turns = append(sess.turns, turn)
	}
	return nil
}

func (s *MemoryStore) History(ctx context.Context, tenantID, sessionID string, maxTurns int) ([]models.Turn, error) {
	sess, err := s.lookup(tenantID, sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	turns := sess.turns
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	out := make([]models.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *MemoryStore) lookup(tenantID, sessionID string) (*memorySession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", ErrSessionNotFound, sessionID)
	}
	if sess.tenantID != tenantID {
		return nil, fmt.Errorf("%w: session %s", ErrTenantMismatch, sessionID)
	}
	return sess, nil
}
