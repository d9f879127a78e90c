package conversation

import (
	"time"

	"github.com/janhq/jan-chat-sync/internal/utils/idgen"
)

type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Source is a document reference attached to a bot answer.
type Source struct {
	Title       string `json:"title"`
	Pages       []int  `json:"pages,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// Message is one turn of a conversation with its full version history.
//
// Invariants once reconciled with the backend:
//   - 1 <= CurrentVersion <= len(Versions)
//   - Content == Versions[CurrentVersion-1]
type Message struct {
	ID             string    `json:"id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	Versions       []string  `json:"versions"`
	CurrentVersion int       `json:"current_version"`
	IsEdited       bool      `json:"is_edited"`
	Sources        []Source  `json:"sources,omitempty"`
	IsRegenerating bool      `json:"is_regenerating"`

	// Local-only state, never serialized.
	IsEditing     bool   `json:"-"`
	CorrelationID string `json:"-"`
}

// NewProvisionalPair builds the user turn and the pending bot turn for an
// in-flight send. Both share the correlation id so they can be rolled back together.
func NewProvisionalPair(correlationID, content string, now time.Time) (Message, Message) {
	userMsg := Message{
		ID:             correlationID + "_user",
		Role:           RoleUser,
		Content:        content,
		Timestamp:      now,
		Versions:       []string{content},
		CurrentVersion: 1,
		CorrelationID:  correlationID,
	}
	botMsg := Message{
		ID:             correlationID + "_bot",
		Role:           RoleBot,
		Content:        "",
		Timestamp:      now,
		Versions:       []string{""},
		CurrentVersion: 1,
		IsRegenerating: true,
		CorrelationID:  correlationID,
	}
	return userMsg, botMsg
}

// IsProvisional reports whether the message exists only locally.
func (m *Message) IsProvisional() bool {
	return idgen.IsProvisional(m.ID)
}

// TotalVersions is the number of stored versions.
func (m *Message) TotalVersions() int {
	return len(m.Versions)
}

// HasPreviousVersion and HasNextVersion drive the version navigation affordances.
func (m *Message) HasPreviousVersion() bool {
	return m.CurrentVersion > 1
}

func (m *Message) HasNextVersion() bool {
	return m.CurrentVersion < len(m.Versions)
}

// Normalize enforces the version invariants on backend payloads. A payload
// without versions is treated as a single-version message.
func (m *Message) Normalize() {
	if len(m.Versions) == 0 {
		m.Versions = []string{m.Content}
	}
	if m.CurrentVersion < 1 || m.CurrentVersion > len(m.Versions) {
		m.CurrentVersion = len(m.Versions)
	}
	m.Content = m.Versions[m.CurrentVersion-1]
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	cp := m
	if m.Versions != nil {
		cp.Versions = append([]string(nil), m.Versions...)
	}
	if m.Sources != nil {
		cp.Sources = make([]Source, len(m.Sources))
		for i, src := range m.Sources {
			cp.Sources[i] = src
			if src.Pages != nil {
				cp.Sources[i].Pages = append([]int(nil), src.Pages...)
			}
		}
	}
	return cp
}
