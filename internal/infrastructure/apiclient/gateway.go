package apiclient

import (
	"context"
	"net/http"
	"strconv"

	"github.com/janhq/jan-chat-sync/internal/domain/conversation"
	"github.com/janhq/jan-chat-sync/internal/domain/user"
	"github.com/janhq/jan-chat-sync/internal/utils/platformerrors"
)

// ===============================================
// Chat
// ===============================================

func (c *Client) SendChat(ctx context.Context, req conversation.ChatRequest) (*conversation.ChatResult, error) {
	if err := conversation.ValidateRequest(ctx, req); err != nil {
		return nil, err
	}
	var resp chatResponse
	if err := c.do(ctx, call{operation: "send_chat", method: http.MethodPost, path: "/chat", body: req, result: &resp}); err != nil {
		return nil, err
	}
	if resp.ConversationID == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerGateway, platformerrors.ErrorTypeServerRejected,
			"chat response carried no conversation id", nil, "f5a6b7c8-d9e0-4f1a-8b3c-4d5e6f7a8b9c")
	}
	return &conversation.ChatResult{ConversationID: resp.ConversationID, Response: resp.Response}, nil
}

// ===============================================
// Conversations
// ===============================================

func (c *Client) ListConversations(ctx context.Context, opts conversation.ListOptions) (*conversation.ConversationPage, error) {
	if err := conversation.ValidateRequest(ctx, opts); err != nil {
		return nil, err
	}
	var resp listResponse
	err := c.do(ctx, call{
		operation: "list_conversations",
		method:    http.MethodGet,
		path:      "/conversations",
		query: map[string]string{
			"include_archived": strconv.FormatBool(opts.IncludeArchived),
			"page":             strconv.Itoa(opts.Page),
			"per_page":         strconv.Itoa(opts.PerPage),
		},
		result: &resp,
	})
	if err != nil {
		return nil, err
	}
	for i := range resp.Conversations {
		resp.Conversations[i].Normalize()
	}
	return &conversation.ConversationPage{Conversations: resp.Conversations, Pagination: resp.Pagination}, nil
}

func (c *Client) GetConversation(ctx context.Context, id string) (*conversation.Conversation, error) {
	if err := conversation.ValidateServerID(ctx, "conversation", id); err != nil {
		return nil, err
	}
	var resp conversationResponse
	err := c.do(ctx, call{
		operation:  "get_conversation",
		method:     http.MethodGet,
		path:       "/conversations/{id}",
		pathParams: map[string]string{"id": id},
		result:     &resp,
	})
	if err != nil {
		return nil, err
	}
	return c.conversationOf(ctx, &resp)
}

func (c *Client) CreateConversation(ctx context.Context, req conversation.CreateConversationRequest) (*conversation.Conversation, error) {
	if err := conversation.ValidateRequest(ctx, req); err != nil {
		return nil, err
	}
	var resp conversationResponse
	if err := c.do(ctx, call{operation: "create_conversation", method: http.MethodPost, path: "/conversations", body: req, result: &resp}); err != nil {
		return nil, err
	}
	return c.conversationOf(ctx, &resp)
}

func (c *Client) UpdateConversation(ctx context.Context, id string, req conversation.UpdateConversationRequest) (*conversation.Conversation, error) {
	if err := conversation.ValidateServerID(ctx, "conversation", id); err != nil {
		return nil, err
	}
	if err := conversation.ValidateRequest(ctx, req); err != nil {
		return nil, err
	}
	var resp conversationResponse
	err := c.do(ctx, call{
		operation:  "update_conversation",
		method:     http.MethodPut,
		path:       "/conversations/{id}",
		pathParams: map[string]string{"id": id},
		body:       req,
		result:     &resp,
	})
	if err != nil {
		return nil, err
	}
	return c.conversationOf(ctx, &resp)
}

func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.conversationAction(ctx, "delete_conversation", http.MethodDelete, "/conversations/{id}", id)
}

func (c *Client) ArchiveConversation(ctx context.Context, id string) error {
	return c.conversationAction(ctx, "archive_conversation", http.MethodPost, "/conversations/{id}/archive", id)
}

func (c *Client) UnarchiveConversation(ctx context.Context, id string) error {
	return c.conversationAction(ctx, "unarchive_conversation", http.MethodPost, "/conversations/{id}/unarchive", id)
}

func (c *Client) BulkDeleteConversations(ctx context.Context, req conversation.BulkDeleteRequest) error {
	if err := conversation.ValidateRequest(ctx, req); err != nil {
		return err
	}
	return c.do(ctx, call{operation: "bulk_delete_conversations", method: http.MethodPost, path: "/conversations/bulk-delete", body: req})
}

func (c *Client) conversationAction(ctx context.Context, operation, method, path, id string) error {
	if err := conversation.ValidateServerID(ctx, "conversation", id); err != nil {
		return err
	}
	return c.do(ctx, call{operation: operation, method: method, path: path, pathParams: map[string]string{"id": id}})
}

func (c *Client) conversationOf(ctx context.Context, resp *conversationResponse) (*conversation.Conversation, error) {
	if resp.Conversation == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerGateway, platformerrors.ErrorTypeServerRejected,
			"response carried no conversation", nil, "a6b7c8d9-e0f1-4a2b-9c4d-5e6f7a8b9c0d")
	}
	resp.Conversation.Normalize()
	return resp.Conversation, nil
}

// ===============================================
// Messages
// ===============================================

func (c *Client) EditMessage(ctx context.Context, messageID string, req conversation.EditMessageRequest) error {
	return c.messageAction(ctx, "edit_message", http.MethodPut, "/messages/{id}/edit", messageID, nil, req)
}

func (c *Client) SwitchMessageVersion(ctx context.Context, messageID string, version int, req conversation.SwitchVersionRequest) error {
	params := map[string]string{"version": strconv.Itoa(version)}
	return c.messageAction(ctx, "switch_message_version", http.MethodPut, "/messages/{id}/versions/{version}", messageID, params, req)
}

func (c *Client) RegenerateMessage(ctx context.Context, messageID string, req conversation.RegenerateRequest) error {
	return c.messageAction(ctx, "regenerate_message", http.MethodPost, "/messages/{id}/regenerate", messageID, nil, req)
}

func (c *Client) DeleteMessage(ctx context.Context, messageID string, req conversation.DeleteMessageRequest) error {
	return c.messageAction(ctx, "delete_message", http.MethodDelete, "/messages/{id}", messageID, nil, req)
}

func (c *Client) messageAction(ctx context.Context, operation, method, path, messageID string, params map[string]string, body any) error {
	if err := conversation.ValidateServerID(ctx, "message", messageID); err != nil {
		return err
	}
	if err := conversation.ValidateRequest(ctx, body); err != nil {
		return err
	}
	pathParams := map[string]string{"id": messageID}
	for k, v := range params {
		pathParams[k] = v
	}
	return c.do(ctx, call{operation: operation, method: method, path: path, pathParams: pathParams, body: body})
}

// ===============================================
// Users
// ===============================================

func (c *Client) CurrentUser(ctx context.Context) (*user.User, error) {
	var resp userResponse
	if err := c.do(ctx, call{operation: "current_user", method: http.MethodGet, path: "/users/me", result: &resp}); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerGateway, platformerrors.ErrorTypeServerRejected,
			"response carried no user", nil, "b7c8d9e0-f1a2-4b3c-8d5e-6f7a8b9c0d1e")
	}
	return resp.User, nil
}

var _ conversation.Gateway = (*Client)(nil)
