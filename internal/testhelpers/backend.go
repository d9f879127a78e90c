package testhelpers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/janhq/jan-chat-sync/internal/domain/conversation"
	"github.com/janhq/jan-chat-sync/internal/domain/user"
	"github.com/janhq/jan-chat-sync/internal/utils/idgen"
	"github.com/janhq/jan-chat-sync/internal/utils/platformerrors"
)

// Gateway method names used for call counting and failure injection.
const (
	MethodSendChat      = "SendChat"
	MethodList          = "ListConversations"
	MethodGet           = "GetConversation"
	MethodCreate        = "CreateConversation"
	MethodUpdate        = "UpdateConversation"
	MethodDelete        = "DeleteConversation"
	MethodArchive       = "ArchiveConversation"
	MethodUnarchive     = "UnarchiveConversation"
	MethodBulkDelete    = "BulkDeleteConversations"
	MethodEditMessage   = "EditMessage"
	MethodSwitchVersion = "SwitchMessageVersion"
	MethodRegenerate    = "RegenerateMessage"
	MethodDeleteMessage = "DeleteMessage"
	MethodCurrentUser   = "CurrentUser"
)

// FakeBackend is an in-memory conversation.Gateway with server-side semantics:
// chat appends a user and bot turn, edits and regenerations add versions, and
// message deletes cascade. Every call is counted; failures can be injected per method.
type FakeBackend struct {
	mu            sync.Mutex
	conversations map[string]*conversation.Conversation
	order         []string
	user          *user.User
	seq           int
	now           func() time.Time

	calls      map[string]int
	failures   map[string][]error
	sentIDs    []string
	beforeCall func(method string)
}

// NewFakeBackend creates an empty backend owned by a default user.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		conversations: make(map[string]*conversation.Conversation),
		user:          &user.User{ID: "user_1", Name: "Test User", Email: "test@example.com", Role: user.RoleUser},
		now:           func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) },
		calls:         make(map[string]int),
		failures:      make(map[string][]error),
	}
}

// FailNext queues err as the result of the next call to method.
func (b *FakeBackend) FailNext(method string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method] = append(b.failures[method], err)
}

// BeforeCall installs a hook run outside the lock at the start of every call.
func (b *FakeBackend) BeforeCall(hook func(method string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.beforeCall = hook
}

// Calls returns how many times method was invoked.
func (b *FakeBackend) Calls(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method]
}

// SentIDs returns every identifier the client put in a request.
func (b *FakeBackend) SentIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.sentIDs...)
}

// NetworkError builds the error a transport failure produces.
func NetworkError() error {
	return platformerrors.NewError(context.Background(), platformerrors.LayerGateway, platformerrors.ErrorTypeNetwork,
		"connection refused", nil, "c0ffee00-0000-4000-8000-000000000001")
}

// Seed stores a conversation as if it had been created server side.
func (b *FakeBackend) Seed(conv conversation.Conversation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := conv.Clone()
	cp.Normalize()
	if _, exists := b.conversations[cp.ID]; !exists {
		b.order = append(b.order, cp.ID)
	}
	b.conversations[cp.ID] = cp
}

// Stored returns a copy of the server-side conversation.
func (b *FakeBackend) Stored(id string) (*conversation.Conversation, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	conv, ok := b.conversations[id]
	return conv.Clone(), ok
}

func (b *FakeBackend) enter(ctx context.Context, method string, ids ...string) error {
	b.mu.Lock()
	hook := b.beforeCall
	b.mu.Unlock()
	if hook != nil {
		hook(method)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[method]++
	b.sentIDs = append(b.sentIDs, ids...)
	if err := ctx.Err(); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerGateway, err, "request aborted")
	}
	if queue := b.failures[method]; len(queue) > 0 {
		b.failures[method] = queue[1:]
		return queue[0]
	}
	for _, id := range ids {
		if idgen.IsProvisional(id) {
			return rejected(ctx, platformerrors.ErrorTypeValidation, fmt.Sprintf("unknown identifier %s", id))
		}
	}
	return nil
}

func rejected(ctx context.Context, errorType platformerrors.ErrorType, message string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerGateway, errorType, message, nil, "c0ffee00-0000-4000-8000-000000000002")
}

func (b *FakeBackend) nextID(prefix string) string {
	b.seq++
	return fmt.Sprintf("%s_%d", prefix, b.seq)
}

// findMessage must be called with the lock held.
func (b *FakeBackend) findMessage(ctx context.Context, conversationID, messageID string) (*conversation.Conversation, int, error) {
	conv, ok := b.conversations[conversationID]
	if !ok {
		return nil, -1, rejected(ctx, platformerrors.ErrorTypeNotFound, "conversation not found")
	}
	idx := conv.IndexOfMessage(messageID)
	if idx < 0 {
		return nil, -1, rejected(ctx, platformerrors.ErrorTypeNotFound, "message not found")
	}
	return conv, idx, nil
}

func (b *FakeBackend) SendChat(ctx context.Context, req conversation.ChatRequest) (*conversation.ChatResult, error) {
	if err := b.enter(ctx, MethodSendChat, req.ConversationID); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var conv *conversation.Conversation
	if req.ConversationID != "" {
		existing, ok := b.conversations[req.ConversationID]
		if !ok {
			return nil, rejected(ctx, platformerrors.ErrorTypeNotFound, "conversation not found")
		}
		conv = existing
	} else {
		age := req.Age
		conv = &conversation.Conversation{
			ID:         b.nextID("conv"),
			Title:      truncate(req.Message, 40),
			AgeContext: &age,
			CreatedAt:  b.now(),
		}
		b.conversations[conv.ID] = conv
		b.order = append(b.order, conv.ID)
	}

	response := fmt.Sprintf("answer to %q for age %d", req.Message, req.Age)
	conv.Messages = append(conv.Messages,
		conversation.Message{ID: b.nextID("msg"), Role: conversation.RoleUser, Content: req.Message, Versions: []string{req.Message}, CurrentVersion: 1, Timestamp: b.now()},
		conversation.Message{ID: b.nextID("msg"), Role: conversation.RoleBot, Content: response, Versions: []string{response}, CurrentVersion: 1, Timestamp: b.now()},
	)
	conv.UpdatedAt = b.now()
	return &conversation.ChatResult{ConversationID: conv.ID, Response: response}, nil
}

func (b *FakeBackend) ListConversations(ctx context.Context, opts conversation.ListOptions) (*conversation.ConversationPage, error) {
	if err := b.enter(ctx, MethodList); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var all []conversation.Conversation
	for _, id := range b.order {
		conv, ok := b.conversations[id]
		if !ok || (conv.IsArchived && !opts.IncludeArchived) {
			continue
		}
		all = append(all, conv.Summary())
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })

	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := opts.Page
	if page <= 0 {
		page = 1
	}
	pages := (len(all) + perPage - 1) / perPage
	start := (page - 1) * perPage
	end := start + perPage
	if start > len(all) {
		start = len(all)
	}
	if end > len(all) {
		end = len(all)
	}
	return &conversation.ConversationPage{
		Conversations: all[start:end],
		Pagination:    conversation.Pagination{Page: page, PerPage: perPage, Total: len(all), Pages: pages},
	}, nil
}

func (b *FakeBackend) GetConversation(ctx context.Context, id string) (*conversation.Conversation, error) {
	if err := b.enter(ctx, MethodGet, id); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	conv, ok := b.conversations[id]
	if !ok {
		return nil, rejected(ctx, platformerrors.ErrorTypeNotFound, "conversation not found")
	}
	return conv.Clone(), nil
}

func (b *FakeBackend) CreateConversation(ctx context.Context, req conversation.CreateConversationRequest) (*conversation.Conversation, error) {
	if err := b.enter(ctx, MethodCreate); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	conv := &conversation.Conversation{
		ID:        b.nextID("conv"),
		Title:     req.Title,
		CreatedAt: b.now(),
		UpdatedAt: b.now(),
	}
	if req.AgeContext != nil {
		age := *req.AgeContext
		conv.AgeContext = &age
	}
	b.conversations[conv.ID] = conv
	b.order = append(b.order, conv.ID)
	return conv.Clone(), nil
}

// UpdateConversation rejects age changes once messages exist.
func (b *FakeBackend) UpdateConversation(ctx context.Context, id string, req conversation.UpdateConversationRequest) (*conversation.Conversation, error) {
	if err := b.enter(ctx, MethodUpdate, id); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	conv, ok := b.conversations[id]
	if !ok {
		return nil, rejected(ctx, platformerrors.ErrorTypeNotFound, "conversation not found")
	}
	if req.AgeContext != nil {
		if len(conv.Messages) > 0 {
			return nil, rejected(ctx, platformerrors.ErrorTypeConflict, "age context is locked once messages exist")
		}
		age := *req.AgeContext
		conv.AgeContext = &age
	}
	if req.Title != nil {
		conv.Title = *req.Title
	}
	conv.UpdatedAt = b.now()
	summary := conv.Summary()
	return &summary, nil
}

func (b *FakeBackend) DeleteConversation(ctx context.Context, id string) error {
	if err := b.enter(ctx, MethodDelete, id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deleteLocked(ctx, id)
}

func (b *FakeBackend) deleteLocked(ctx context.Context, id string) error {
	if _, ok := b.conversations[id]; !ok {
		return rejected(ctx, platformerrors.ErrorTypeNotFound, "conversation not found")
	}
	delete(b.conversations, id)
	for i, existing := range b.order {
		if existing == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return nil
}

func (b *FakeBackend) ArchiveConversation(ctx context.Context, id string) error {
	return b.setArchived(ctx, MethodArchive, id, true)
}

func (b *FakeBackend) UnarchiveConversation(ctx context.Context, id string) error {
	return b.setArchived(ctx, MethodUnarchive, id, false)
}

func (b *FakeBackend) setArchived(ctx context.Context, method, id string, archived bool) error {
	if err := b.enter(ctx, method, id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	conv, ok := b.conversations[id]
	if !ok {
		return rejected(ctx, platformerrors.ErrorTypeNotFound, "conversation not found")
	}
	conv.IsArchived = archived
	return nil
}

func (b *FakeBackend) BulkDeleteConversations(ctx context.Context, req conversation.BulkDeleteRequest) error {
	if err := b.enter(ctx, MethodBulkDelete, req.ConversationIDs...); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range req.ConversationIDs {
		if err := b.deleteLocked(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// EditMessage appends a version to the edited message; following messages are untouched.
func (b *FakeBackend) EditMessage(ctx context.Context, messageID string, req conversation.EditMessageRequest) error {
	if err := b.enter(ctx, MethodEditMessage, messageID, req.ConversationID); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	conv, idx, err := b.findMessage(ctx, req.ConversationID, messageID)
	if err != nil {
		return err
	}
	msg := &conv.Messages[idx]
	msg.Versions = append(msg.Versions, req.Content)
	msg.CurrentVersion = len(msg.Versions)
	msg.Content = req.Content
	msg.IsEdited = true
	return nil
}

func (b *FakeBackend) SwitchMessageVersion(ctx context.Context, messageID string, version int, req conversation.SwitchVersionRequest) error {
	if err := b.enter(ctx, MethodSwitchVersion, messageID, req.ConversationID); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	conv, idx, err := b.findMessage(ctx, req.ConversationID, messageID)
	if err != nil {
		return err
	}
	msg := &conv.Messages[idx]
	if version < 1 || version > len(msg.Versions) {
		return rejected(ctx, platformerrors.ErrorTypeServerRejected, fmt.Sprintf("version %d out of range", version))
	}
	msg.CurrentVersion = version
	msg.Content = msg.Versions[version-1]
	return nil
}

func (b *FakeBackend) RegenerateMessage(ctx context.Context, messageID string, req conversation.RegenerateRequest) error {
	if err := b.enter(ctx, MethodRegenerate, messageID, req.ConversationID); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	conv, idx, err := b.findMessage(ctx, req.ConversationID, messageID)
	if err != nil {
		return err
	}
	msg := &conv.Messages[idx]
	if msg.Role != conversation.RoleBot {
		return rejected(ctx, platformerrors.ErrorTypeValidation, "only bot messages can be regenerated")
	}
	answer := fmt.Sprintf("regenerated answer %d for age %d", len(msg.Versions)+1, req.Age)
	msg.Versions = append(msg.Versions, answer)
	msg.CurrentVersion = len(msg.Versions)
	msg.Content = answer
	return nil
}

// DeleteMessage removes the message and every message after it.
func (b *FakeBackend) DeleteMessage(ctx context.Context, messageID string, req conversation.DeleteMessageRequest) error {
	if err := b.enter(ctx, MethodDeleteMessage, messageID, req.ConversationID); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	conv, idx, err := b.findMessage(ctx, req.ConversationID, messageID)
	if err != nil {
		return err
	}
	conv.Messages = conv.Messages[:idx]
	return nil
}

func (b *FakeBackend) CurrentUser(ctx context.Context) (*user.User, error) {
	if err := b.enter(ctx, MethodCurrentUser); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.user.Clone(), nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ conversation.Gateway = (*FakeBackend)(nil)
