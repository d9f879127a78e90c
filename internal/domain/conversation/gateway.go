package conversation

import (
	"context"

	"github.com/janhq/jan-chat-sync/internal/domain/user"
)

// ===============================================
// Gateway Requests
// ===============================================

type ChatRequest struct {
	Message        string `json:"message" validate:"required,notblank"`
	Age            int    `json:"age" validate:"min=1,max=19"`
	ConversationID string `json:"conversation_id,omitempty" validate:"omitempty,serverid"`
}

type ChatResult struct {
	ConversationID string `json:"conversation_id"`
	Response       string `json:"response"`
}

type ListOptions struct {
	IncludeArchived bool
	Page            int `validate:"min=1"`
	PerPage         int `validate:"min=1,max=100"`
}

type Pagination struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
	Pages   int `json:"pages"`
}

type ConversationPage struct {
	Conversations []Conversation
	Pagination    Pagination
}

type CreateConversationRequest struct {
	Title      string `json:"title" validate:"required,notblank,max=200"`
	AgeContext *int   `json:"age_context,omitempty" validate:"omitempty,min=1,max=19"`
}

type UpdateConversationRequest struct {
	Title      *string `json:"title,omitempty" validate:"omitempty,notblank,max=200"`
	AgeContext *int    `json:"age_context,omitempty" validate:"omitempty,min=1,max=19"`
}

type EditMessageRequest struct {
	Content        string `json:"content" validate:"required,notblank"`
	ConversationID string `json:"conversation_id" validate:"required,serverid"`
	Age            int    `json:"age" validate:"min=1,max=19"`
}

type SwitchVersionRequest struct {
	ConversationID string `json:"conversation_id" validate:"required,serverid"`
}

type RegenerateRequest struct {
	ConversationID string `json:"conversation_id" validate:"required,serverid"`
	Age            int    `json:"age" validate:"min=1,max=19"`
}

type DeleteMessageRequest struct {
	ConversationID string `json:"conversation_id" validate:"required,serverid"`
}

type BulkDeleteRequest struct {
	ConversationIDs []string `json:"conversation_ids" validate:"required,min=1,dive,serverid"`
}

// ===============================================
// Gateway Port
// ===============================================

// Gateway is the typed view of the chat backend REST API.
// Implementations return *platformerrors.PlatformError values classified by type.
type Gateway interface {
	SendChat(ctx context.Context, req ChatRequest) (*ChatResult, error)

	ListConversations(ctx context.Context, opts ListOptions) (*ConversationPage, error)
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	CreateConversation(ctx context.Context, req CreateConversationRequest) (*Conversation, error)
	UpdateConversation(ctx context.Context, id string, req UpdateConversationRequest) (*Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	ArchiveConversation(ctx context.Context, id string) error
	UnarchiveConversation(ctx context.Context, id string) error
	BulkDeleteConversations(ctx context.Context, req BulkDeleteRequest) error

	EditMessage(ctx context.Context, messageID string, req EditMessageRequest) error
	SwitchMessageVersion(ctx context.Context, messageID string, version int, req SwitchVersionRequest) error
	RegenerateMessage(ctx context.Context, messageID string, req RegenerateRequest) error
	DeleteMessage(ctx context.Context, messageID string, req DeleteMessageRequest) error

	CurrentUser(ctx context.Context) (*user.User, error)
}
