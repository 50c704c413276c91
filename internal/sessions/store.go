// Package sessions keeps per-session chat transcripts. The memory store is
// the default; the Redis store survives restarts and can be shared across
// replicas.
package sessions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xenyhq/ragserve/internal/models"
)

// SessionSummary describes an active session for listing endpoints.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	CompanyID    string    `json:"company_id"`
	LastActivity time.Time `json:"last_activity"`
	MessageCount int       `json:"message_count"`
}

// Store is an append-only per-session transcript log.
type Store interface {
	Append(ctx context.Context, sessionID string, msg models.ChatMessage) error
	History(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	Clear(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]SessionSummary, error)
}

// MemoryStore keeps transcripts in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]models.ChatMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string][]models.ChatMessage{}}
}

func (s *MemoryStore) Append(ctx context.Context, sessionID string, msg models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], msg)
	return nil
}

func (s *MemoryStore) History(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.sessions[sessionID]
	out := make([]models.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []SessionSummary{}
	for id, msgs := range s.sessions {
		if len(msgs) == 0 {
			continue
		}
		last := msgs[len(msgs)-1]
		out = append(out, SessionSummary{
			SessionID:    id,
			CompanyID:    last.CompanyID,
			LastActivity: last.Timestamp,
			MessageCount: len(msgs),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
