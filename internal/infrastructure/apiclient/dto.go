package apiclient

import (
	"github.com/janhq/jan-chat-sync/internal/domain/conversation"
	"github.com/janhq/jan-chat-sync/internal/domain/user"
)

// envelope is the status part shared by every backend response.
type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *envelope) status() *envelope { return e }

// enveloped is implemented by every response body.
type enveloped interface {
	status() *envelope
}

type chatResponse struct {
	envelope
	ConversationID string `json:"conversation_id"`
	Response       string `json:"response"`
}

type listResponse struct {
	envelope
	Conversations []conversation.Conversation `json:"conversations"`
	Pagination    conversation.Pagination     `json:"pagination"`
}

type conversationResponse struct {
	envelope
	Conversation *conversation.Conversation `json:"conversation"`
}

type userResponse struct {
	envelope
	User *user.User `json:"user"`
}

type statusResponse struct {
	envelope
}
