package store

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-chat-sync/internal/domain/conversation"
	"github.com/janhq/jan-chat-sync/internal/domain/user"
)

// MemoryStore is the normalized in-memory entity store.
// Thread-safe via sync.RWMutex; listeners are notified after the lock is released.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*conversation.Conversation
	active        *conversation.Conversation
	user          *user.User

	subMu     sync.Mutex
	listeners map[int]conversation.Listener
	nextSub   int

	log zerolog.Logger
}

// NewMemoryStore creates an empty entity store.
func NewMemoryStore(log zerolog.Logger) *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*conversation.Conversation),
		listeners:     make(map[int]conversation.Listener),
		log:           log.With().Str("component", "entity-store").Logger(),
	}
}

// ActiveConversation returns a copy of the active conversation.
func (s *MemoryStore) ActiveConversation() *conversation.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active.Clone()
}

// SetActiveConversation replaces the active conversation as a whole.
// A non-provisional conversation also refreshes its summary entry.
func (s *MemoryStore) SetActiveConversation(conv *conversation.Conversation) {
	s.mu.Lock()
	id := ""
	if conv == nil {
		if s.active != nil {
			id = s.active.ID
		}
		s.active = nil
	} else {
		s.active = conv.Clone()
		id = conv.ID
		if !conv.IsProvisional() {
			if _, known := s.conversations[conv.ID]; known {
				summary := conv.Summary()
				s.conversations[conv.ID] = &summary
			}
		}
	}
	s.mu.Unlock()

	s.publish(conversation.Event{Type: conversation.EventActiveConversationChanged, ConversationID: id})
}

// UpdateActiveConversation mutates a private copy and swaps it in on success.
func (s *MemoryStore) UpdateActiveConversation(fn func(conv *conversation.Conversation) error) (bool, error) {
	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return false, nil
	}
	next := s.active.Clone()
	if err := fn(next); err != nil {
		s.mu.Unlock()
		return true, err
	}
	s.active = next
	id := next.ID
	s.mu.Unlock()

	s.publish(conversation.Event{Type: conversation.EventActiveConversationChanged, ConversationID: id})
	return true, nil
}

// ReplaceActiveIf is a compare-and-swap on the active conversation id.
func (s *MemoryStore) ReplaceActiveIf(expectedID string, next *conversation.Conversation) bool {
	s.mu.Lock()
	currentID := ""
	if s.active != nil {
		currentID = s.active.ID
	}
	if currentID != expectedID {
		s.mu.Unlock()
		return false
	}
	s.active = next.Clone()
	id := expectedID
	if next != nil {
		id = next.ID
	}
	s.mu.Unlock()

	s.publish(conversation.Event{Type: conversation.EventActiveConversationChanged, ConversationID: id})
	return true
}

// Conversation returns a summary by id.
func (s *MemoryStore) Conversation(id string) (*conversation.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, false
	}
	return conv.Clone(), true
}

// Conversations resolves ids against the normalized map, preserving order.
func (s *MemoryStore) Conversations(ids []string) []conversation.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]conversation.Conversation, 0, len(ids))
	for _, id := range ids {
		if conv, ok := s.conversations[id]; ok {
			result = append(result, *conv.Clone())
		}
	}
	return result
}

// UpsertConversations stores summaries, dropping any embedded messages.
func (s *MemoryStore) UpsertConversations(list []conversation.Conversation) {
	if len(list) == 0 {
		return
	}
	s.mu.Lock()
	for i := range list {
		summary := list[i].Summary()
		s.conversations[summary.ID] = &summary
	}
	s.mu.Unlock()

	s.publish(conversation.Event{Type: conversation.EventConversationsChanged})
}

// RemoveConversations drops summaries and clears the active conversation when it is removed.
func (s *MemoryStore) RemoveConversations(ids ...string) {
	if len(ids) == 0 {
		return
	}
	s.mu.Lock()
	activeCleared := ""
	for _, id := range ids {
		delete(s.conversations, id)
		if s.active != nil && s.active.ID == id {
			activeCleared = id
			s.active = nil
		}
	}
	s.mu.Unlock()

	s.publish(conversation.Event{Type: conversation.EventConversationsChanged})
	if activeCleared != "" {
		s.publish(conversation.Event{Type: conversation.EventActiveConversationChanged, ConversationID: activeCleared})
	}
}

// PruneConversations drops every summary not listed in keep.
func (s *MemoryStore) PruneConversations(keep map[string]struct{}) {
	s.mu.Lock()
	removed := 0
	for id := range s.conversations {
		if _, ok := keep[id]; !ok {
			delete(s.conversations, id)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.log.Debug().Int("removed", removed).Msg("pruned conversation summaries")
		s.publish(conversation.Event{Type: conversation.EventConversationsChanged})
	}
}

// User returns a copy of the session user.
func (s *MemoryStore) User() *user.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

// SetUser replaces the session user.
func (s *MemoryStore) SetUser(u *user.User) {
	s.mu.Lock()
	s.user = u.Clone()
	s.mu.Unlock()

	s.publish(conversation.Event{Type: conversation.EventUserChanged})
}

// Reset drops every cached entity.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	s.conversations = make(map[string]*conversation.Conversation)
	s.active = nil
	s.user = nil
	s.mu.Unlock()

	s.log.Info().Msg("entity store reset")
	s.publish(conversation.Event{Type: conversation.EventReset})
}

// Subscribe registers a listener. The returned function removes it.
func (s *MemoryStore) Subscribe(listener conversation.Listener) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = listener
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.listeners, id)
			s.subMu.Unlock()
		})
	}
}

func (s *MemoryStore) publish(evt conversation.Event) {
	s.subMu.Lock()
	listeners := make([]conversation.Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.subMu.Unlock()

	for _, l := range listeners {
		l(evt)
	}
}

var _ conversation.Store = (*MemoryStore)(nil)
