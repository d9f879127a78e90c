package store_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/jan-chat-sync/internal/domain/conversation"
	"github.com/janhq/jan-chat-sync/internal/domain/user"
	"github.com/janhq/jan-chat-sync/internal/infrastructure/store"
)

func newStore() *store.MemoryStore {
	return store.NewMemoryStore(zerolog.Nop())
}

func TestMemoryStore_ActiveConversationIsCopied(t *testing.T) {
	s := newStore()
	conv := &conversation.Conversation{ID: "conv_1", Messages: []conversation.Message{{ID: "msg_1", Content: "hi"}}}
	s.SetActiveConversation(conv)

	conv.Messages[0].Content = "mutated by caller"
	got := s.ActiveConversation()
	require.NotNil(t, got)
	assert.Equal(t, "hi", got.Messages[0].Content)

	got.Messages[0].Content = "mutated by reader"
	assert.Equal(t, "hi", s.ActiveConversation().Messages[0].Content)
}

func TestMemoryStore_UpdateActiveConversation(t *testing.T) {
	s := newStore()

	found, err := s.UpdateActiveConversation(func(*conversation.Conversation) error { return nil })
	require.NoError(t, err)
	assert.False(t, found)

	s.SetActiveConversation(&conversation.Conversation{ID: "conv_1", Title: "before"})

	found, err = s.UpdateActiveConversation(func(c *conversation.Conversation) error {
		c.Title = "half applied"
		return errors.New("boom")
	})
	assert.True(t, found)
	require.Error(t, err)
	assert.Equal(t, "before", s.ActiveConversation().Title)

	found, err = s.UpdateActiveConversation(func(c *conversation.Conversation) error {
		c.Title = "after"
		return nil
	})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "after", s.ActiveConversation().Title)
}

func TestMemoryStore_ConversationsPreserveOrderAndDropMessages(t *testing.T) {
	s := newStore()
	s.UpsertConversations([]conversation.Conversation{
		{ID: "conv_1", Title: "one", Messages: []conversation.Message{{ID: "msg_1"}}},
		{ID: "conv_2", Title: "two"},
	})

	list := s.Conversations([]string{"conv_2", "missing", "conv_1"})
	require.Len(t, list, 2)
	assert.Equal(t, "conv_2", list[0].ID)
	assert.Equal(t, "conv_1", list[1].ID)
	assert.Empty(t, list[1].Messages)
}

func TestMemoryStore_SetActiveRefreshesKnownSummary(t *testing.T) {
	s := newStore()
	s.UpsertConversations([]conversation.Conversation{{ID: "conv_1", Title: "old"}})
	s.SetActiveConversation(&conversation.Conversation{ID: "conv_1", Title: "new"})

	conv, ok := s.Conversation("conv_1")
	require.True(t, ok)
	assert.Equal(t, "new", conv.Title)

	s.SetActiveConversation(&conversation.Conversation{ID: "tmp_1_abc", Title: "draft"})
	_, ok = s.Conversation("tmp_1_abc")
	assert.False(t, ok)
}

func TestMemoryStore_RemoveClearsActive(t *testing.T) {
	s := newStore()
	s.UpsertConversations([]conversation.Conversation{{ID: "conv_1"}, {ID: "conv_2"}})
	s.SetActiveConversation(&conversation.Conversation{ID: "conv_1"})

	s.RemoveConversations("conv_1")
	assert.Nil(t, s.ActiveConversation())
	_, ok := s.Conversation("conv_1")
	assert.False(t, ok)
	_, ok = s.Conversation("conv_2")
	assert.True(t, ok)
}

func TestMemoryStore_Prune(t *testing.T) {
	s := newStore()
	s.UpsertConversations([]conversation.Conversation{{ID: "conv_1"}, {ID: "conv_2"}, {ID: "conv_3"}})
	s.PruneConversations(map[string]struct{}{"conv_2": {}})

	assert.Len(t, s.Conversations([]string{"conv_1", "conv_2", "conv_3"}), 1)
}

func TestMemoryStore_ResetAndEvents(t *testing.T) {
	s := newStore()

	var (
		mu     sync.Mutex
		events []conversation.EventType
	)
	cancel := s.Subscribe(func(evt conversation.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, evt.Type)
	})

	s.SetUser(&user.User{ID: "user_1"})
	s.UpsertConversations([]conversation.Conversation{{ID: "conv_1"}})
	s.SetActiveConversation(&conversation.Conversation{ID: "conv_1"})
	s.Reset()

	assert.Nil(t, s.User())
	assert.Nil(t, s.ActiveConversation())
	assert.Empty(t, s.Conversations([]string{"conv_1"}))

	cancel()
	cancel()
	s.SetUser(&user.User{ID: "user_2"})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []conversation.EventType{
		conversation.EventUserChanged,
		conversation.EventConversationsChanged,
		conversation.EventActiveConversationChanged,
		conversation.EventReset,
	}, events)
}

func TestMemoryStore_ListenerMayReadStore(t *testing.T) {
	s := newStore()
	var seen string
	s.Subscribe(func(evt conversation.Event) {
		if active := s.ActiveConversation(); active != nil {
			seen = active.ID
		}
	})
	s.SetActiveConversation(&conversation.Conversation{ID: "conv_9"})
	assert.Equal(t, "conv_9", seen)
}

func TestMemoryStore_ReplaceActiveIf(t *testing.T) {
	s := newStore()

	assert.True(t, s.ReplaceActiveIf("", &conversation.Conversation{ID: "tmp_1_abc"}))
	assert.False(t, s.ReplaceActiveIf("conv_other", nil))
	assert.Equal(t, "tmp_1_abc", s.ActiveConversation().ID)

	assert.True(t, s.ReplaceActiveIf("tmp_1_abc", &conversation.Conversation{ID: "conv_1"}))
	assert.Equal(t, "conv_1", s.ActiveConversation().ID)

	assert.True(t, s.ReplaceActiveIf("conv_1", nil))
	assert.Nil(t, s.ActiveConversation())
}
