package conversation

import (
	"github.com/janhq/jan-chat-sync/internal/domain/user"
)

// EventType identifies what changed in the entity store.
type EventType string

const (
	EventActiveConversationChanged EventType = "active_conversation_changed"
	EventConversationsChanged      EventType = "conversations_changed"
	EventUserChanged               EventType = "user_changed"
	EventReset                     EventType = "reset"
)

// Event is published to subscribers after the store lock has been released.
type Event struct {
	Type           EventType
	ConversationID string
}

// Listener receives store events. It must not block.
type Listener func(Event)

// Store is the in-memory mirror of server side entities. It is the single
// normalized source of truth shared by every view; views select from it by id.
//
// The active conversation is only ever replaced as a whole object, and every
// reader receives its own deep copy.
type Store interface {
	// ActiveConversation returns a copy of the active conversation or nil.
	ActiveConversation() *Conversation

	// SetActiveConversation replaces the active conversation; nil clears it.
	SetActiveConversation(conv *Conversation)

	// UpdateActiveConversation applies fn to a private copy and publishes the
	// copy as the new active conversation if fn succeeds. Returns false when
	// there is no active conversation.
	UpdateActiveConversation(fn func(conv *Conversation) error) (bool, error)

	// ReplaceActiveIf swaps in next (nil clears) only while the active
	// conversation id equals expectedID; "" matches no active conversation.
	ReplaceActiveIf(expectedID string, next *Conversation) bool

	// Conversation returns a copy of a conversation summary by id.
	Conversation(id string) (*Conversation, bool)

	// Conversations returns copies of the summaries for ids, in order, skipping unknown ids.
	Conversations(ids []string) []Conversation

	// UpsertConversations replaces summaries by id.
	UpsertConversations(list []Conversation)

	// RemoveConversations drops summaries, clearing the active conversation if it is among them.
	RemoveConversations(ids ...string)

	// PruneConversations drops summaries whose id is not in keep.
	PruneConversations(keep map[string]struct{})

	User() *user.User
	SetUser(u *user.User)

	// Reset drops every cached entity.
	Reset()

	// Subscribe registers a listener and returns its cancel function.
	Subscribe(listener Listener) func()
}
