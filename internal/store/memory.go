package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/HonestImpact/tryit-orchestrator/pkg/models"
	"github.com/google/uuid"
)

// maxTraces caps in-memory trace retention; oldest entries are dropped.
const maxTraces = 1000

// MemoryStore is the default in-process Store.
type MemoryStore struct {
	mu       sync.RWMutex
	traces   []*models.Trace
	sessions map[string]*models.Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.Session),
	}
}

func (s *MemoryStore) CreateTrace(_ context.Context, trace *models.Trace) error {
	if trace == nil {
		return fmt.Errorf("trace must not be nil")
	}
	cp := *trace
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces = append(s.traces, &cp)
	if len(s.traces) > maxTraces {
		s.traces = s.traces[len(s.traces)-maxTraces:]
	}
	return nil
}

// ListTraces returns traces newest first, optionally filtered by session.
func (s *MemoryStore) ListTraces(_ context.Context, sessionID string, limit int) ([]*models.Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Trace
	for _, t := range s.traces {
		if sessionID != "" && t.SessionID != sessionID {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UpsertSession(_ context.Context, session *models.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session id must not be empty")
	}
	cp := *session
	cp.Messages = append([]models.ChatMessage(nil), session.Messages...)
	cp.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[cp.ID] = &cp
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	cp := *session
	cp.Messages = append([]models.ChatMessage(nil), session.Messages...)
	return &cp, nil
}

func (s *MemoryStore) HealthCheck(_ context.Context) error {
	return nil // always healthy, it's in-memory
}
