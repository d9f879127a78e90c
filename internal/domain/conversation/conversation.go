package conversation

import (
	"time"

	"github.com/janhq/jan-chat-sync/internal/utils/idgen"
)

// ===============================================
// Age Context
// ===============================================

const (
	MinAgeContext = 1
	MaxAgeContext = 19
)

// ValidAgeContext reports whether age is inside the accepted audience range.
func ValidAgeContext(age int) bool {
	return age >= MinAgeContext && age <= MaxAgeContext
}

// ===============================================
// Conversation Structure
// ===============================================

type Conversation struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	AgeContext *int      `json:"age_context"`
	IsArchived bool      `json:"is_archived"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Messages   []Message `json:"messages,omitempty"`
}

// NewProvisionalConversation builds the placeholder used while the first message
// of a brand-new conversation is in flight.
func NewProvisionalConversation(correlationID string, ageContext int, now time.Time) *Conversation {
	age := ageContext
	return &Conversation{
		ID:         correlationID,
		Title:      "New conversation",
		AgeContext: &age,
		CreatedAt:  now,
		UpdatedAt:  now,
		Messages:   []Message{},
	}
}

// IsProvisional reports whether the conversation has not been confirmed by the backend.
func (c *Conversation) IsProvisional() bool {
	return idgen.IsProvisional(c.ID)
}

// AgeContextEditable is true only while the conversation has no messages.
func (c *Conversation) AgeContextEditable() bool {
	return len(c.Messages) == 0
}

// Age returns the conversation age context, or 0 when none is set.
func (c *Conversation) Age() int {
	if c == nil || c.AgeContext == nil {
		return 0
	}
	return *c.AgeContext
}

// IndexOfMessage returns the position of the message with the given id, or -1.
func (c *Conversation) IndexOfMessage(messageID string) int {
	for i := range c.Messages {
		if c.Messages[i].ID == messageID {
			return i
		}
	}
	return -1
}

// FindMessage returns a pointer into Messages for in-place edits on a private copy.
func (c *Conversation) FindMessage(messageID string) *Message {
	if idx := c.IndexOfMessage(messageID); idx >= 0 {
		return &c.Messages[idx]
	}
	return nil
}

// RemoveByCorrelation drops every message tagged with correlationID and reports how many were removed.
func (c *Conversation) RemoveByCorrelation(correlationID string) int {
	if correlationID == "" {
		return 0
	}
	kept := c.Messages[:0:0]
	removed := 0
	for _, msg := range c.Messages {
		if msg.CorrelationID == correlationID {
			removed++
			continue
		}
		kept = append(kept, msg)
	}
	c.Messages = kept
	return removed
}

// Normalize repairs message version bookkeeping on data received from the backend.
func (c *Conversation) Normalize() {
	for i := range c.Messages {
		c.Messages[i].Normalize()
	}
}

// Summary returns a copy without messages, as carried by list responses.
func (c *Conversation) Summary() Conversation {
	cp := c.Clone()
	cp.Messages = nil
	return *cp
}

// Clone returns a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	if c.AgeContext != nil {
		age := *c.AgeContext
		cp.AgeContext = &age
	}
	if c.Messages != nil {
		cp.Messages = make([]Message, len(c.Messages))
		for i := range c.Messages {
			cp.Messages[i] = c.Messages[i].Clone()
		}
	}
	return &cp
}
