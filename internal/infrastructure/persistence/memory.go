package persistence

import (
	"context"
	"sync"

	"github.com/janhq/jan-chat-sync/internal/domain/conversation"
	"github.com/janhq/jan-chat-sync/internal/domain/session"
	"github.com/janhq/jan-chat-sync/internal/domain/user"
)

// MemoryStore is a process-local Persistence used by tests and --ephemeral runs.
type MemoryStore struct {
	mu         sync.RWMutex
	token      string
	user       *user.User
	defaultAge int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Token(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *MemoryStore) SetToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryStore) User(context.Context) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone(), nil
}

func (s *MemoryStore) SetUser(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u.Clone()
	return nil
}

func (s *MemoryStore) DefaultAge(context.Context) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultAge, s.defaultAge != 0, nil
}

func (s *MemoryStore) SetDefaultAge(ctx context.Context, age int) error {
	if err := conversation.ValidateAge(ctx, age); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultAge = age
	return nil
}

func (s *MemoryStore) ClearSession(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
	return nil
}

var _ session.Persistence = (*MemoryStore)(nil)
